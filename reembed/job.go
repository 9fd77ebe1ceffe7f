// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/poiesic/embedeval/ai"
	"github.com/poiesic/embedeval/cache"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage"
)

// Config holds configuration for embedding jobs.
type Config struct {
	// BatchSize is the number of texts sent to the backend per call
	BatchSize int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:  50,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}

// Stores groups the repositories a job reads and writes.
type Stores struct {
	Chunks     storage.ChunkRepository
	Phrases    storage.PhraseRepository
	Models     storage.ModelRepository
	Embeddings storage.EmbeddingRepository
	Jobs       storage.JobRepository
}

// Request selects what a job embeds. A zero Scope means all and a zero
// BatchSize means the configured default.
type Request struct {
	ModelID   core.ID
	Scope     core.Scope
	BatchSize int
}

// Job orchestrates embedding of the corpus and the test phrases for a model.
type Job struct {
	stores   Stores
	provider ai.Provider
	config   *Config
	monitor  Monitor
	logger   *slog.Logger
}

// Option configures a Job.
type Option func(*Job) error

// WithConfig replaces the default job configuration.
func WithConfig(config *Config) Option {
	return func(j *Job) error {
		if config == nil {
			config = DefaultConfig()
		}
		if config.BatchSize <= 0 {
			return ErrInvalidBatchSize
		}
		if config.MaxRetries <= 0 {
			return ErrInvalidMaxAttempts
		}
		j.config = config
		return nil
	}
}

// WithMonitor sets a monitor notified of batches and finished jobs.
func WithMonitor(monitor Monitor) Option {
	return func(j *Job) error {
		if monitor == nil {
			monitor = noopMonitor{}
		}
		j.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) error {
		if logger == nil {
			logger = slog.Default()
		}
		j.logger = logger
		return nil
	}
}

// NewJob creates a new embedding job runner.
func NewJob(stores Stores, provider ai.Provider, opts ...Option) (*Job, error) {
	if stores.Chunks == nil || stores.Phrases == nil || stores.Models == nil ||
		stores.Embeddings == nil || stores.Jobs == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	j := &Job{
		stores:   stores,
		provider: provider,
		config:   DefaultConfig(),
		monitor:  noopMonitor{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(j); err != nil {
			return nil, err
		}
	}
	j.logger = j.logger.With("component", "embedding-job")
	return j, nil
}

// plan is a validated request.
type plan struct {
	model     *core.EmbeddingModel
	scope     core.Scope
	batchSize int
	batcher   *Batcher
}

// Run validates req and returns the event stream of the job. Configuration
// errors are returned before any work starts; everything that goes wrong
// afterwards is reported as an error event. The job stops issuing batches
// when ctx is cancelled or the consumer stops iterating.
func (j *Job) Run(ctx context.Context, req Request) (iter.Seq[Event], error) {
	p, err := j.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return func(yield func(Event) bool) {
		j.execute(ctx, p, &emitter{yield: yield})
	}, nil
}

// EmbedEveryModel runs the job for every catalog model in insertion order,
// one model at a time. Each model ends with its own complete event.
func (j *Job) EmbedEveryModel(ctx context.Context, scope core.Scope, batchSize int) (iter.Seq[Event], error) {
	models, err := j.stores.Models.ListEmbeddingModels(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, ErrNoModels
	}

	plans := make([]*plan, len(models))
	for i, model := range models {
		if plans[i], err = j.prepare(ctx, Request{ModelID: model.Id, Scope: scope, BatchSize: batchSize}); err != nil {
			return nil, err
		}
	}

	return func(yield func(Event) bool) {
		out := &emitter{yield: yield}
		for _, p := range plans {
			if ctx.Err() != nil || out.stopped {
				return
			}
			j.execute(ctx, p, out)
		}
	}, nil
}

func (j *Job) prepare(ctx context.Context, req Request) (*plan, error) {
	scope, err := core.ParseScope(string(req.Scope))
	if err != nil {
		return nil, err
	}

	batchSize := req.BatchSize
	if batchSize == 0 {
		batchSize = j.config.BatchSize
	}
	if batchSize < 0 {
		return nil, ErrInvalidBatchSize
	}

	model, err := j.stores.Models.GetEmbeddingModel(ctx, req.ModelID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", core.ErrUnknownModel, req.ModelID)
	}
	if err != nil {
		return nil, err
	}

	embedder, err := j.provider.EmbedderFor(model)
	if err != nil {
		return nil, err
	}

	return &plan{
		model:     model,
		scope:     scope,
		batchSize: batchSize,
		batcher:   NewBatcher(embedder, model, j.config.MaxRetries, j.config.RetryDelay),
	}, nil
}

// emitter forwards events until the consumer stops accepting them.
type emitter struct {
	yield   func(Event) bool
	stopped bool
}

func (e *emitter) emit(ev Event) {
	if e.stopped {
		return
	}
	if !e.yield(ev) {
		e.stopped = true
	}
}

func (j *Job) execute(ctx context.Context, p *plan, out *emitter) {
	start := time.Now()
	summary := &Summary{ModelID: uint64(p.model.Id), Model: p.model.Name}
	logger := j.logger.With("model", p.model.Name, "scope", p.scope)
	logger.Info("embedding job started", "batchSize", p.batchSize)

	ok := true
	if p.scope.IncludesChunks() {
		ok = j.embedChunks(ctx, p, summary, start, out)
	}
	if ok && p.scope.IncludesPhrases() && ctx.Err() == nil && !out.stopped {
		ok = j.embedPhrases(ctx, p, summary, start, out)
	}

	summary.TotalDurationMs = time.Since(start).Milliseconds()
	summary.Cancelled = ctx.Err() != nil || out.stopped
	j.saveSummary(ctx, p, summary)
	j.monitor.JobFinished(summary)

	logger.Info("embedding job finished",
		"chunksEmbedded", summary.ChunksEmbedded,
		"chunksSkipped", summary.ChunksSkipped,
		"phrasesEmbedded", summary.PhrasesEmbedded,
		"failedBatches", summary.FailedBatches,
		"cancelled", summary.Cancelled,
		"duration", time.Since(start).Round(time.Millisecond))

	if !ok {
		return
	}
	if summary.Cancelled {
		out.emit(errorEvent(p.model.Name, fmt.Sprintf(
			"cancelled after embedding %d chunks and %d phrases; completed batches were saved",
			summary.ChunksEmbedded, summary.PhrasesEmbedded)))
		return
	}
	out.emit(completeEvent(summary))
}

func (j *Job) embedChunks(ctx context.Context, p *plan, summary *Summary, start time.Time, out *emitter) bool {
	name := p.model.Name

	chunks, err := j.stores.Chunks.ListChunks(ctx)
	if err != nil {
		out.emit(errorEvent(name, fmt.Sprintf("failed to load chunks: %v", err)))
		return false
	}
	stored, err := j.stores.Embeddings.ChunkEmbeddingHashes(ctx, p.model.Id)
	if err != nil {
		out.emit(errorEvent(name, fmt.Sprintf("failed to load stored embeddings: %v", err)))
		return false
	}

	stale := cache.Stale(chunks, stored)
	summary.ChunksSkipped = len(chunks) - len(stale)

	tracker := NewProgressTracker(PhaseChunks, "chunks", len(stale), start)
	out.emit(progressEvent(name, tracker.Start(
		fmt.Sprintf("Embedding %d chunks (%d cached)", len(stale), summary.ChunksSkipped))))
	if len(stale) == 0 {
		return true
	}

	texts := make([]string, len(stale))
	for i, c := range stale {
		texts[i] = c.Content
	}

	var embedded []*core.ChunkEmbedding
	j.runBatches(ctx, p, PhaseChunks, texts, core.RoleDocument, tracker, summary, out, func(res BatchResult) {
		now := time.Now().UTC()
		for i, vector := range res.Vectors {
			c := stale[res.Start+i]
			embedded = append(embedded, &core.ChunkEmbedding{
				ChunkId:     c.Id,
				ModelId:     p.model.Id,
				Vector:      vector,
				ContentHash: c.ContentHash,
				UpdatedAt:   now,
			})
		}
	})

	if len(embedded) == 0 {
		return true
	}
	// Completed batches are committed even when the job was cancelled.
	if err := j.stores.Embeddings.ReplaceChunkEmbeddings(context.WithoutCancel(ctx), p.model.Id, embedded...); err != nil {
		j.logger.Error("failed to persist chunk embeddings", "model", name, "err", err)
		out.emit(errorEvent(name, fmt.Sprintf("failed to persist chunk embeddings: %v", err)))
		return false
	}
	summary.ChunksEmbedded = len(embedded)
	return true
}

func (j *Job) embedPhrases(ctx context.Context, p *plan, summary *Summary, start time.Time, out *emitter) bool {
	name := p.model.Name

	phrases, err := j.stores.Phrases.ListPhrases(ctx)
	if err != nil {
		out.emit(errorEvent(name, fmt.Sprintf("failed to load phrases: %v", err)))
		return false
	}

	tracker := NewProgressTracker(PhasePhrases, "phrases", len(phrases), start)
	out.emit(progressEvent(name, tracker.Start(fmt.Sprintf("Embedding %d phrases", len(phrases)))))
	if len(phrases) == 0 {
		return true
	}

	texts := make([]string, len(phrases))
	for i, phrase := range phrases {
		texts[i] = phrase.Phrase
	}

	var embedded []*core.PhraseEmbedding
	j.runBatches(ctx, p, PhasePhrases, texts, core.RoleQuery, tracker, summary, out, func(res BatchResult) {
		now := time.Now().UTC()
		for i, vector := range res.Vectors {
			embedded = append(embedded, &core.PhraseEmbedding{
				PhraseId:  phrases[res.Start+i].Id,
				ModelId:   p.model.Id,
				Vector:    vector,
				UpdatedAt: now,
			})
		}
	})

	if len(embedded) == 0 {
		return true
	}
	if err := j.stores.Embeddings.ReplacePhraseEmbeddings(context.WithoutCancel(ctx), p.model.Id, embedded...); err != nil {
		j.logger.Error("failed to persist phrase embeddings", "model", name, "err", err)
		out.emit(errorEvent(name, fmt.Sprintf("failed to persist phrase embeddings: %v", err)))
		return false
	}
	summary.PhrasesEmbedded = len(embedded)
	return true
}

// runBatches drives the batcher for one phase, reporting every batch.
func (j *Job) runBatches(ctx context.Context, p *plan, phase string, texts []string, role core.Role,
	tracker *ProgressTracker, summary *Summary, out *emitter, accept func(BatchResult)) {
	name := p.model.Name
	last := time.Now()

	for res := range p.batcher.EmbedAll(ctx, texts, role, p.batchSize) {
		elapsed := time.Since(last)
		last = time.Now()

		if res.Err != nil {
			summary.FailedBatches++
			j.monitor.BatchFailed(name, phase)
			j.logger.Warn("batch failed", "model", name, "phase", phase,
				"start", res.Start, "end", res.End, "err", res.Err)
			out.emit(errorEvent(name, fmt.Sprintf("%s %d-%d failed: %v", phase, res.Start+1, res.End, res.Err)))
		} else {
			accept(res)
			j.monitor.BatchEmbedded(name, phase, res.End-res.Start, elapsed)
		}

		out.emit(progressEvent(name, tracker.Update(res.End)))
		if out.stopped {
			return
		}
	}
}

func (j *Job) saveSummary(ctx context.Context, p *plan, s *Summary) {
	err := j.stores.Jobs.SaveJobSummary(context.WithoutCancel(ctx), &core.JobSummary{
		ModelId:         p.model.Id,
		Scope:           p.scope,
		ChunksEmbedded:  s.ChunksEmbedded,
		ChunksSkipped:   s.ChunksSkipped,
		PhrasesEmbedded: s.PhrasesEmbedded,
		FailedBatches:   s.FailedBatches,
		DurationMs:      s.TotalDurationMs,
		Cancelled:       s.Cancelled,
		UpdatedAt:       time.Now().UTC(),
	})
	if err != nil {
		j.logger.Warn("failed to save job summary", "model", p.model.Name, "err", err)
	}
}
