package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

// ModelRepository implements storage.ModelRepository using BadgerDB.
// Names are unique within each catalog and indexed for lookup.
type ModelRepository struct {
	backend     *Backend
	modelSeq    *badger.Sequence
	rerankerSeq *badger.Sequence
}

var _ storage.ModelRepository = (*ModelRepository)(nil)

// NewModelRepository creates a new ModelRepository.
func NewModelRepository(backend *Backend) (*ModelRepository, error) {
	modelSeq, err := backend.GetSequence(modelIDSeq)
	if err != nil {
		return nil, err
	}
	rerankerSeq, err := backend.GetSequence(rerankerIDSeq)
	if err != nil {
		modelSeq.Release()
		return nil, err
	}
	return &ModelRepository{backend: backend, modelSeq: modelSeq, rerankerSeq: rerankerSeq}, nil
}

// Close releases the ID sequences.
func (r *ModelRepository) Close() error {
	err := r.modelSeq.Release()
	if rerr := r.rerankerSeq.Release(); err == nil {
		err = rerr
	}
	return err
}

// WithTransaction delegates to the backend.
func (r *ModelRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddEmbeddingModels stores new embedding models.
func (r *ModelRepository) AddEmbeddingModels(ctx context.Context, models ...*core.EmbeddingModel) ([]*core.EmbeddingModel, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, m := range models {
			if err := core.ValidateEmbeddingModel(m); err != nil {
				return err
			}
			nameKey := makeNameKey(modelNamePrefix, m.Name)
			existing, err := readValue(tx, nameKey)
			if err != nil {
				return err
			}
			if existing != nil {
				return storage.ErrDuplicateKey
			}
			id, err := nextID(r.modelSeq)
			if err != nil {
				return err
			}
			m.Id = id
			m.InsertedAt = time.Now().UTC()
			if err := tx.Set(makeModelKey(m.Id), storage.MarshalEmbeddingModel(m)); err != nil {
				return err
			}
			if err := tx.Set(nameKey, storage.MarshalID(m.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	return models, err
}

// GetEmbeddingModel retrieves an embedding model by ID.
func (r *ModelRepository) GetEmbeddingModel(ctx context.Context, id core.ID) (*core.EmbeddingModel, error) {
	var result *core.EmbeddingModel
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, makeModelKey(id), storage.UnmarshalEmbeddingModel)
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

// FindEmbeddingModel retrieves an embedding model by name.
func (r *ModelRepository) FindEmbeddingModel(ctx context.Context, name string) (*core.EmbeddingModel, error) {
	var result *core.EmbeddingModel
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		id, err := lookupName(tx, modelNamePrefix, name)
		if err != nil {
			return err
		}
		result, err = readRecord(tx, makeModelKey(id), storage.UnmarshalEmbeddingModel)
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

// ListEmbeddingModels returns all embedding models in insertion order.
func (r *ModelRepository) ListEmbeddingModels(ctx context.Context) ([]*core.EmbeddingModel, error) {
	var results []*core.EmbeddingModel
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = listRecords(tx, []byte(modelPrefix), storage.UnmarshalEmbeddingModel)
		return err
	}, false)
	return results, err
}

// AddRerankerModels stores new reranker models.
func (r *ModelRepository) AddRerankerModels(ctx context.Context, models ...*core.RerankerModel) ([]*core.RerankerModel, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, m := range models {
			if err := core.ValidateRerankerModel(m); err != nil {
				return err
			}
			nameKey := makeNameKey(rerankerNamePrefix, m.Name)
			existing, err := readValue(tx, nameKey)
			if err != nil {
				return err
			}
			if existing != nil {
				return storage.ErrDuplicateKey
			}
			id, err := nextID(r.rerankerSeq)
			if err != nil {
				return err
			}
			m.Id = id
			m.InsertedAt = time.Now().UTC()
			if err := tx.Set(makeRerankerKey(m.Id), storage.MarshalRerankerModel(m)); err != nil {
				return err
			}
			if err := tx.Set(nameKey, storage.MarshalID(m.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	return models, err
}

// GetRerankerModel retrieves a reranker by ID.
func (r *ModelRepository) GetRerankerModel(ctx context.Context, id core.ID) (*core.RerankerModel, error) {
	var result *core.RerankerModel
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, makeRerankerKey(id), storage.UnmarshalRerankerModel)
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

// FindRerankerModel retrieves a reranker by name.
func (r *ModelRepository) FindRerankerModel(ctx context.Context, name string) (*core.RerankerModel, error) {
	var result *core.RerankerModel
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		id, err := lookupName(tx, rerankerNamePrefix, name)
		if err != nil {
			return err
		}
		result, err = readRecord(tx, makeRerankerKey(id), storage.UnmarshalRerankerModel)
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

// ListRerankerModels returns all rerankers in insertion order.
func (r *ModelRepository) ListRerankerModels(ctx context.Context) ([]*core.RerankerModel, error) {
	var results []*core.RerankerModel
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = listRecords(tx, []byte(rerankerPrefix), storage.UnmarshalRerankerModel)
		return err
	}, false)
	return results, err
}

func lookupName(tx *badger.Txn, prefix, name string) (core.ID, error) {
	val, err := readValue(tx, makeNameKey(prefix, name))
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, storage.ErrNotFound
	}
	return storage.UnmarshalID(val)
}
