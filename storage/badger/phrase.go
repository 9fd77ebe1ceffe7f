package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

// PhraseRepository implements storage.PhraseRepository using BadgerDB.
type PhraseRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.PhraseRepository = (*PhraseRepository)(nil)

// NewPhraseRepository creates a new PhraseRepository.
func NewPhraseRepository(backend *Backend) (*PhraseRepository, error) {
	idSeq, err := backend.GetSequence(phraseIDSeq)
	if err != nil {
		return nil, err
	}
	return &PhraseRepository{backend: backend, idSeq: idSeq}, nil
}

// Close releases the ID sequence.
func (r *PhraseRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *PhraseRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddPhrases stores new phrases.
func (r *PhraseRepository) AddPhrases(ctx context.Context, phrases ...*core.TestPhrase) ([]*core.TestPhrase, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, p := range phrases {
			if err := core.ValidateTestPhrase(p); err != nil {
				return err
			}
			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			p.Id = id
			p.InsertedAt = time.Now().UTC()
			if err := tx.Set(makePhraseKey(p.Id), storage.MarshalTestPhrase(p)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	return phrases, err
}

// UpdatePhrase overwrites an existing phrase.
func (r *PhraseRepository) UpdatePhrase(ctx context.Context, phrase *core.TestPhrase) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makePhraseKey(phrase.Id)
		old, err := readRecord(tx, key, storage.UnmarshalTestPhrase)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}
		phrase.InsertedAt = old.InsertedAt
		if err := tx.Set(key, storage.MarshalTestPhrase(phrase)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetPhrase retrieves a phrase by ID.
func (r *PhraseRepository) GetPhrase(ctx context.Context, id core.ID) (*core.TestPhrase, error) {
	var result *core.TestPhrase
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, makePhraseKey(id), storage.UnmarshalTestPhrase)
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

// ListPhrases returns all phrases in insertion order.
func (r *PhraseRepository) ListPhrases(ctx context.Context) ([]*core.TestPhrase, error) {
	var results []*core.TestPhrase
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = listRecords(tx, []byte(phrasePrefix), storage.UnmarshalTestPhrase)
		return err
	}, false)
	return results, err
}
