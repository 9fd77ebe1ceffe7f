package badger

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

// EmbeddingRepository implements storage.EmbeddingRepository using BadgerDB.
type EmbeddingRepository struct {
	backend *Backend
}

var _ storage.EmbeddingRepository = (*EmbeddingRepository)(nil)

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(backend *Backend) *EmbeddingRepository {
	return &EmbeddingRepository{backend: backend}
}

// Close is a no-op; the backend is owned by the caller.
func (r *EmbeddingRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *EmbeddingRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// ChunkEmbeddingHashes returns the stored content hash per embedded chunk.
func (r *EmbeddingRepository) ChunkEmbeddingHashes(ctx context.Context, modelID core.ID) (map[core.ID]string, error) {
	hashes := make(map[core.ID]string)
	err := r.ForEachChunkEmbedding(ctx, modelID, func(e *core.ChunkEmbedding) error {
		hashes[e.ChunkId] = e.ContentHash
		return nil
	})
	return hashes, err
}

// ForEachChunkEmbedding streams the model's chunk vectors in chunk ID order.
func (r *EmbeddingRepository) ForEachChunkEmbedding(ctx context.Context, modelID core.ID, fn func(*core.ChunkEmbedding) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeKey(chunkEmbeddingPrefix, uint64(modelID)), func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := storage.UnmarshalChunkEmbedding(val)
			if err != nil {
				return err
			}
			return fn(e)
		})
	}, false)
}

// ReplaceChunkEmbeddings writes the new set for the given chunks under the
// model in one transaction. A row is keyed by (model, chunk), so each write
// replaces the previous row of its chunk.
func (r *EmbeddingRepository) ReplaceChunkEmbeddings(ctx context.Context, modelID core.ID, embeddings ...*core.ChunkEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, e := range embeddings {
			e.ModelId = modelID
			e.UpdatedAt = now
			if err := tx.Set(makeChunkEmbeddingKey(modelID, e.ChunkId), storage.MarshalChunkEmbedding(e)); err != nil {
				return err
			}
			if err := tx.Set(makeChunkEmbeddingIndexKey(e.ChunkId, modelID), nil); err != nil {
				return err
			}
		}
		if err := bumpGeneration(tx, modelID); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetPhraseEmbedding retrieves the vector of a phrase under a model.
func (r *EmbeddingRepository) GetPhraseEmbedding(ctx context.Context, phraseID, modelID core.ID) (*core.PhraseEmbedding, error) {
	var result *core.PhraseEmbedding
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, makePhraseEmbeddingKey(modelID, phraseID), storage.UnmarshalPhraseEmbedding)
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

// ReplacePhraseEmbeddings writes the new set for the given phrases under the
// model in one transaction, replacing each phrase's previous row.
func (r *EmbeddingRepository) ReplacePhraseEmbeddings(ctx context.Context, modelID core.ID, embeddings ...*core.PhraseEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, e := range embeddings {
			e.ModelId = modelID
			e.UpdatedAt = now
			if err := tx.Set(makePhraseEmbeddingKey(modelID, e.PhraseId), storage.MarshalPhraseEmbedding(e)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Generation returns the model's chunk embedding generation counter.
func (r *EmbeddingRepository) Generation(ctx context.Context, modelID core.ID) (uint64, error) {
	var gen uint64
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		gen, err = readGeneration(tx, modelID)
		return err
	}, false)
	return gen, err
}

// CountEmbeddings counts the model's chunk and phrase vectors.
func (r *EmbeddingRepository) CountEmbeddings(ctx context.Context, modelID core.ID) (int, int, error) {
	var chunks, phrases int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		chunks = len(scanKeys(tx, makeKey(chunkEmbeddingPrefix, uint64(modelID))))
		phrases = len(scanKeys(tx, makeKey(phraseEmbeddingPrefix, uint64(modelID))))
		return nil
	}, false)
	return chunks, phrases, err
}

func readGeneration(tx *badger.Txn, modelID core.ID) (uint64, error) {
	val, err := readValue(tx, makeGenerationKey(modelID))
	if err != nil || len(val) != 8 {
		return 0, err
	}
	return binary.BigEndian.Uint64(val), nil
}

// bumpGeneration advances the model's generation inside tx.
func bumpGeneration(tx *badger.Txn, modelID core.ID) error {
	gen, err := readGeneration(tx, modelID)
	if err != nil {
		return err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, gen+1)
	return tx.Set(makeGenerationKey(modelID), buf)
}
