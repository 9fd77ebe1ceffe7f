package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

const jobSummaryPrefix = "job:"

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{
		backend: backend,
	}
}

// SaveJobSummary persists the latest job summary of a model.
func (r *JobRepository) SaveJobSummary(ctx context.Context, summary *core.JobSummary) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		summary.UpdatedAt = time.Now().UTC()
		key := makeKey(jobSummaryPrefix, uint64(summary.ModelId))
		if err := tx.Set(key, storage.MarshalJobSummary(summary)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadJobSummary retrieves the job summary of a model.
// Returns nil, nil if no summary exists.
func (r *JobRepository) LoadJobSummary(ctx context.Context, modelID core.ID) (*core.JobSummary, error) {
	var summary *core.JobSummary
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		summary, err = readRecord(tx, makeKey(jobSummaryPrefix, uint64(modelID)), storage.UnmarshalJobSummary)
		return err
	}, false)
	return summary, err
}
