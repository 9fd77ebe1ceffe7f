package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

// EvalRepository implements storage.EvalRepository using BadgerDB.
type EvalRepository struct {
	backend   *Backend
	idSeq     *badger.Sequence
	resultSeq *badger.Sequence
}

var _ storage.EvalRepository = (*EvalRepository)(nil)

// NewEvalRepository creates a new EvalRepository.
func NewEvalRepository(backend *Backend) (*EvalRepository, error) {
	idSeq, err := backend.GetSequence(runIDSeq)
	if err != nil {
		return nil, err
	}
	resSeq, err := backend.GetSequence(resultSeq)
	if err != nil {
		idSeq.Release()
		return nil, err
	}
	return &EvalRepository{backend: backend, idSeq: idSeq, resultSeq: resSeq}, nil
}

// Close releases the ID sequences.
func (r *EvalRepository) Close() error {
	err := r.idSeq.Release()
	if rerr := r.resultSeq.Release(); err == nil {
		err = rerr
	}
	return err
}

// WithTransaction delegates to the backend.
func (r *EvalRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// CreateRun stores a new run in the running state.
func (r *EvalRepository) CreateRun(ctx context.Context, run *core.EvalRun) (*core.EvalRun, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		id, err := nextID(r.idSeq)
		if err != nil {
			return err
		}
		run.Id = id
		run.Status = core.RunRunning
		run.CreatedAt = time.Now().UTC()
		run.FinalizedAt = time.Time{}
		if err := tx.Set(makeRunKey(run.Id), storage.MarshalEvalRun(run)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return run, err
}

// FinalizeRun writes the aggregate outcome of a run exactly once.
func (r *EvalRepository) FinalizeRun(ctx context.Context, runID core.ID, outcome storage.RunOutcome) (*core.EvalRun, error) {
	var run *core.EvalRun
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRunKey(runID)
		var err error
		run, err = readRecord(tx, key, storage.UnmarshalEvalRun)
		if err != nil {
			return err
		}
		if run == nil {
			return storage.ErrNotFound
		}
		if !run.FinalizedAt.IsZero() {
			return storage.ErrRunFinalized
		}
		run.Status = outcome.Status
		run.Metrics = outcome.Metrics
		run.TotalPhrases = outcome.TotalPhrases
		run.EvaluatedPhrases = outcome.EvaluatedPhrases
		run.ExcludedPhrases = outcome.ExcludedPhrases
		run.AvgLatencyMs = outcome.AvgLatencyMs
		run.FinalizedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalEvalRun(run)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (r *EvalRepository) GetRun(ctx context.Context, id core.ID) (*core.EvalRun, error) {
	var result *core.EvalRun
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, makeRunKey(id), storage.UnmarshalEvalRun)
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

// ListRuns returns all runs, newest first.
func (r *EvalRepository) ListRuns(ctx context.Context) ([]*core.EvalRun, error) {
	var results []*core.EvalRun
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = listRecords(tx, []byte(runPrefix), storage.UnmarshalEvalRun)
		return err
	}, false)
	// Run IDs are allocated in creation order.
	slices.Reverse(results)
	return results, err
}

// AddResult stores one phrase result of a run.
func (r *EvalRepository) AddResult(ctx context.Context, result *core.EvalResult) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		seq, err := r.resultSeq.Next()
		if err != nil {
			return err
		}
		if err := tx.Set(makeResultKey(result.RunId, seq), storage.MarshalEvalResult(result)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListResults returns the results of a run in the order they were added.
func (r *EvalRepository) ListResults(ctx context.Context, runID core.ID) ([]*core.EvalResult, error) {
	var results []*core.EvalResult
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = listRecords(tx, makeKey(resultPrefix, uint64(runID)), storage.UnmarshalEvalResult)
		return err
	}, false)
	return results, err
}
