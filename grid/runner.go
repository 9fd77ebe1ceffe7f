package grid

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/embedeval/compare"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/eval"
	"github.com/poiesic/embedeval/ingestion"
	"github.com/poiesic/embedeval/reembed"
	"github.com/poiesic/embedeval/storage"
)

// Rechunker replaces the corpus chunks.
type Rechunker interface {
	Rechunk(ctx context.Context, config ingestion.ChunkConfig) (*ingestion.Result, error)
}

// EmbeddingJob embeds the corpus and the phrases for a model.
type EmbeddingJob interface {
	Run(ctx context.Context, req reembed.Request) (iter.Seq[reembed.Event], error)
}

// Evaluator runs one evaluation.
type Evaluator interface {
	Run(ctx context.Context, req eval.Request) (iter.Seq[eval.Event], error)
}

var (
	_ Rechunker    = (*ingestion.Pipeline)(nil)
	_ EmbeddingJob = (*reembed.Job)(nil)
	_ Evaluator    = (*eval.Coordinator)(nil)
)

// Request selects the model and the axes of a search. Empty axes use the
// defaults.
type Request struct {
	ModelID       core.ID
	RerankerID    core.ID
	MatryoshkaDim int
	TopK          int
	BatchSize     int
	Sizes         []int
	Overlaps      []int
	Strategies    []string
}

// Runner drives grid searches.
type Runner struct {
	rechunker Rechunker
	job       EmbeddingJob
	evaluator Evaluator
	phrases   storage.PhraseRepository
	chunks    storage.ChunkRepository
	models    storage.ModelRepository
	logger    *slog.Logger
}

// NewRunner creates a grid search runner.
func NewRunner(rechunker Rechunker, job EmbeddingJob, evaluator Evaluator,
	phrases storage.PhraseRepository, chunks storage.ChunkRepository, models storage.ModelRepository,
	logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		rechunker: rechunker,
		job:       job,
		evaluator: evaluator,
		phrases:   phrases,
		chunks:    chunks,
		models:    models,
		logger:    logger.With("component", "grid"),
	}
}

// Run validates req and returns the event stream of the search. An unknown
// model, an unsupported dimension or an empty grid is returned before any
// configuration is tried.
func (r *Runner) Run(ctx context.Context, req Request) (iter.Seq[Event], error) {
	sizes, overlaps, strategies := req.Sizes, req.Overlaps, req.Strategies
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}
	if len(overlaps) == 0 {
		overlaps = DefaultOverlaps
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	configs, err := Configs(sizes, overlaps, strategies)
	if err != nil {
		return nil, err
	}

	model, err := r.models.GetEmbeddingModel(ctx, req.ModelID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", core.ErrUnknownModel, req.ModelID)
	}
	if err != nil {
		return nil, err
	}
	if err := core.ValidateMatryoshkaDim(model, req.MatryoshkaDim); err != nil {
		return nil, err
	}
	if req.RerankerID != 0 {
		if _, err := r.models.GetRerankerModel(ctx, req.RerankerID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: %d", core.ErrUnknownReranker, req.RerankerID)
			}
			return nil, err
		}
	}

	return func(yield func(Event) bool) {
		s := &session{yield: yield}
		r.execute(ctx, req, model, configs, s)
	}, nil
}

type session struct {
	yield   func(Event) bool
	stopped bool
}

func (s *session) emit(ev Event) {
	if s.stopped {
		return
	}
	if !s.yield(ev) {
		s.stopped = true
	}
}

func (s *session) progress(label, format string, args ...any) {
	s.emit(Event{Type: EventProgress, Message: label + ": " + fmt.Sprintf(format, args...)})
}

func (s *session) fail(label, format string, args ...any) {
	s.emit(Event{Type: EventError, Message: label + ": " + fmt.Sprintf(format, args...)})
}

func (r *Runner) execute(ctx context.Context, req Request, model *core.EmbeddingModel, configs []ingestion.ChunkConfig, s *session) {
	start := time.Now()
	logger := r.logger.With("model", model.Name)
	logger.Info("grid search started", "configs", len(configs))

	var results []Result
	for i, config := range configs {
		if ctx.Err() != nil || s.stopped {
			break
		}
		s.emit(Event{Type: EventConfig, Current: i + 1, Total: len(configs), Config: config})

		res, fatal := r.tryConfig(ctx, req, config, s)
		if fatal {
			break
		}
		if res == nil {
			continue
		}
		results = append(results, *res)
		s.emit(Event{Type: EventResult, Result: res})
	}

	logger.Info("grid search finished", "configs", len(configs), "results", len(results),
		"duration", time.Since(start).Round(time.Millisecond))

	if ctx.Err() != nil || s.stopped {
		s.emit(Event{Type: EventError, Message: fmt.Sprintf(
			"cancelled after %d of %d configurations", len(results), len(configs))})
		return
	}
	s.emit(Event{Type: EventComplete, Summary: &Summary{Results: results, Recommendation: recommend(results)}})
}

// tryConfig runs one configuration. fatal reports that the corpus is in an
// unknown state or the search was cancelled, so no further configuration
// can be tried. A nil result without fatal skips the configuration.
func (r *Runner) tryConfig(ctx context.Context, req Request, config ingestion.ChunkConfig, s *session) (res *Result, fatal bool) {
	label := config.String()

	s.progress(label, "re-chunking source texts")
	chunked, err := r.rechunker.Rechunk(ctx, config)
	if err != nil {
		s.fail(label, "re-chunking failed: %v", err)
		return nil, true
	}
	s.progress(label, "%d chunks created", chunked.Chunks)

	remap, err := compare.Remap(ctx, r.phrases, r.chunks)
	if err != nil {
		s.fail(label, "remapping failed: %v", err)
		return nil, true
	}
	if remap.Unmatched > 0 {
		s.progress(label, "%d phrases remapped, %d unmatched", remap.Remapped, remap.Unmatched)
	} else {
		s.progress(label, "%d phrases remapped", remap.Remapped)
	}

	s.progress(label, "embedding")
	events, err := r.job.Run(ctx, reembed.Request{ModelID: req.ModelID, Scope: core.ScopeAll, BatchSize: req.BatchSize})
	if err != nil {
		s.fail(label, "embedding failed: %v", err)
		return nil, true
	}
	embedded := false
	for ev := range events {
		switch ev.Type {
		case reembed.EventProgress:
			s.progress(label, "%s", ev.Progress.Message)
		case reembed.EventError:
			s.fail(label, "%s", ev.Message)
		case reembed.EventComplete:
			embedded = true
		}
		if s.stopped {
			return nil, true
		}
	}
	if ctx.Err() != nil {
		return nil, true
	}
	// Without a complete event the vectors do not match the new chunks.
	if !embedded {
		s.fail(label, "embedding did not complete")
		return nil, true
	}

	s.progress(label, "evaluating")
	evalEvents, err := r.evaluator.Run(ctx, eval.Request{
		ModelID:       req.ModelID,
		RerankerID:    req.RerankerID,
		MatryoshkaDim: req.MatryoshkaDim,
		TopK:          req.TopK,
	})
	if err != nil {
		s.fail(label, "evaluation failed: %v", err)
		return nil, true
	}
	var outcome *eval.Result
	for ev := range evalEvents {
		switch ev.Type {
		case eval.EventProgress:
			s.progress(label, "%s", ev.Progress.Message)
		case eval.EventError:
			s.fail(label, "%s", ev.Message)
		case eval.EventComplete:
			outcome = ev.Result
		}
		if s.stopped {
			return nil, true
		}
	}
	if outcome == nil {
		return nil, ctx.Err() != nil
	}

	return &Result{
		Config:           config,
		Metrics:          outcome.Metrics,
		RunID:            outcome.RunID,
		TotalChunks:      chunked.Chunks,
		TotalPhrases:     outcome.TotalPhrases,
		EvaluatedPhrases: outcome.EvaluatedPhrases,
		Remapped:         remap.Remapped,
		Unmatched:        remap.Unmatched,
		AvgLatencyMs:     outcome.AvgLatencyMs,
		Details:          outcome.Details,
	}, false
}

func recommend(results []Result) *Recommendation {
	runs := make([]*core.EvalRun, len(results))
	for i, res := range results {
		runs[i] = &core.EvalRun{Id: res.RunID, ChunkSize: res.Config.Size, Metrics: res.Metrics}
	}
	best, err := compare.Recommend(runs)
	if err != nil {
		return nil
	}
	res := results[slices.Index(runs, best)]
	return &Recommendation{ChunkConfig: res.Config, Metrics: res.Metrics, RunID: res.RunID}
}
