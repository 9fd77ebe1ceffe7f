package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

// ChunkRepository implements storage.ChunkRepository using BadgerDB.
type ChunkRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	idSeq, err := backend.GetSequence(chunkIDSeq)
	if err != nil {
		return nil, err
	}
	return &ChunkRepository{backend: backend, idSeq: idSeq}, nil
}

// Close releases the ID sequence.
func (r *ChunkRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddChunks stores new chunks.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := r.insertChunks(tx, chunks); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return chunks, err
}

// ReplaceSourceChunks deletes the chunks of a source text together with every
// model's vectors for them, then stores the new chunks.
func (r *ChunkRepository) ReplaceSourceChunks(ctx context.Context, sourceID core.ID, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		touched := make(map[core.ID]struct{})
		for _, key := range scanKeys(tx, makeKey(chunkSourcePrefix, uint64(sourceID))) {
			chunkID := keyPart(key, chunkSourcePrefix, 2)
			for _, idxKey := range scanKeys(tx, makeKey(chunkEmbeddingByChunk, uint64(chunkID))) {
				modelID := keyPart(idxKey, chunkEmbeddingByChunk, 1)
				if err := tx.Delete(makeChunkEmbeddingKey(modelID, chunkID)); err != nil {
					return err
				}
				if err := tx.Delete(idxKey); err != nil {
					return err
				}
				touched[modelID] = struct{}{}
			}
			if err := tx.Delete(makeChunkKey(chunkID)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		for modelID := range touched {
			if err := bumpGeneration(tx, modelID); err != nil {
				return err
			}
		}
		for _, c := range chunks {
			c.SourceTextId = sourceID
		}
		if err := r.insertChunks(tx, chunks); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return chunks, err
}

func (r *ChunkRepository) insertChunks(tx *badger.Txn, chunks []*core.Chunk) error {
	for _, c := range chunks {
		if err := core.ValidateChunk(c); err != nil {
			return err
		}
		id, err := nextID(r.idSeq)
		if err != nil {
			return err
		}
		c.Id = id
		c.InsertedAt = time.Now().UTC()
		if err := tx.Set(makeChunkKey(c.Id), storage.MarshalChunk(c)); err != nil {
			return err
		}
		if err := tx.Set(makeChunkSourceKey(c), storage.MarshalID(c.Id)); err != nil {
			return err
		}
	}
	return nil
}

// GetChunk retrieves a chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, makeChunkKey(id), storage.UnmarshalChunk)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListChunks returns all chunks in insertion order.
func (r *ChunkRepository) ListChunks(ctx context.Context) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = listRecords(tx, []byte(chunkPrefix), storage.UnmarshalChunk)
		return err
	}, false)
	return results, err
}

// ListChunksBySource returns one source text's chunks ordered by ChunkIndex.
func (r *ChunkRepository) ListChunksBySource(ctx context.Context, sourceID core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range scanKeys(tx, makeKey(chunkSourcePrefix, uint64(sourceID))) {
			chunk, err := readRecord(tx, makeChunkKey(keyPart(key, chunkSourcePrefix, 2)), storage.UnmarshalChunk)
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)
	return results, err
}

// CountChunks returns the number of stored chunks.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		n = len(scanKeys(tx, []byte(chunkPrefix)))
		return nil
	}, false)
	return n, err
}
