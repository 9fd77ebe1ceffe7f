package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

// SourceTextRepository implements storage.SourceTextRepository using BadgerDB.
type SourceTextRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.SourceTextRepository = (*SourceTextRepository)(nil)

// NewSourceTextRepository creates a new SourceTextRepository.
func NewSourceTextRepository(backend *Backend) (*SourceTextRepository, error) {
	idSeq, err := backend.GetSequence(sourceTextIDSeq)
	if err != nil {
		return nil, err
	}
	return &SourceTextRepository{backend: backend, idSeq: idSeq}, nil
}

// Close releases the ID sequence.
func (r *SourceTextRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *SourceTextRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddSourceTexts stores new source texts.
func (r *SourceTextRepository) AddSourceTexts(ctx context.Context, texts ...*core.SourceText) ([]*core.SourceText, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, text := range texts {
			if err := core.ValidateSourceText(text); err != nil {
				return err
			}
			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			text.Id = id
			text.InsertedAt = time.Now().UTC()
			text.UpdatedAt = text.InsertedAt
			if err := tx.Set(makeSourceTextKey(text.Id), storage.MarshalSourceText(text)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	return texts, err
}

// UpdateSourceText overwrites an existing source text.
func (r *SourceTextRepository) UpdateSourceText(ctx context.Context, text *core.SourceText) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeSourceTextKey(text.Id)
		old, err := readRecord(tx, key, storage.UnmarshalSourceText)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}
		text.InsertedAt = old.InsertedAt
		text.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalSourceText(text)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetSourceText retrieves a source text by ID.
func (r *SourceTextRepository) GetSourceText(ctx context.Context, id core.ID) (*core.SourceText, error) {
	var result *core.SourceText
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, makeSourceTextKey(id), storage.UnmarshalSourceText)
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

// ListSourceTexts returns all source texts in insertion order.
func (r *SourceTextRepository) ListSourceTexts(ctx context.Context) ([]*core.SourceText, error) {
	var results []*core.SourceText
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = listRecords(tx, []byte(sourceTextPrefix), storage.UnmarshalSourceText)
		return err
	}, false)
	return results, err
}
