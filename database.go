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

// Package embedeval measures how well embedding models retrieve the chunk
// that answers a test phrase.
//
// A Database opens the store and wires the backends, the search engine, the
// embedding job, the evaluation coordinator and the grid runner on top of it:
//
//	db, err := embedeval.NewDatabase("./eval.db")
//	if err != nil { ... }
//	defer db.Close()
//
//	job, _ := db.NewEmbeddingJob()
//	events, err := job.Run(ctx, reembed.Request{ModelID: 1})
//	for ev := range events { ... }
package embedeval

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/poiesic/embedeval/ai"
	"github.com/poiesic/embedeval/ai/openai"
	"github.com/poiesic/embedeval/catalog"
	"github.com/poiesic/embedeval/compare"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/eval"
	"github.com/poiesic/embedeval/export"
	"github.com/poiesic/embedeval/grid"
	"github.com/poiesic/embedeval/ingestion"
	"github.com/poiesic/embedeval/reembed"
	"github.com/poiesic/embedeval/search"
	"github.com/poiesic/embedeval/server"
	"github.com/poiesic/embedeval/storage/badger"
	"github.com/poiesic/embedeval/telemetry"
)

type Database struct {
	repos    *badger.Repositories
	provider ai.Provider
	engine   *search.Engine
	pipeline *ingestion.Pipeline
	options  *databaseOptions
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig   *ai.Config
	provider   ai.Provider
	inMemory   bool
	jobConfig  *reembed.Config
	evalConfig *eval.Config
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// WithAIConfig configures the backend clients built from catalog entries.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) { o.aiConfig = config }
}

// WithProvider replaces the backend provider. The database closes it.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) { o.provider = provider }
}

// InMemory keeps everything in memory; the file path is ignored.
func InMemory() DatabaseOption {
	return func(o *databaseOptions) { o.inMemory = true }
}

// WithJobConfig sets the batch size and retry policy of embedding jobs.
func WithJobConfig(config *reembed.Config) DatabaseOption {
	return func(o *databaseOptions) { o.jobConfig = config }
}

// WithEvalConfig sets the evaluation defaults.
func WithEvalConfig(config *eval.Config) DatabaseOption {
	return func(o *databaseOptions) { o.evalConfig = config }
}

// WithMetrics reports jobs, searches and runs to m.
func WithMetrics(m *telemetry.Metrics) DatabaseOption {
	return func(o *databaseOptions) { o.metrics = m }
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) { o.logger = logger }
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig:   ai.DefaultConfig(),
		jobConfig:  reembed.DefaultConfig(),
		evalConfig: eval.DefaultConfig(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	repos, err := badger.OpenRepositories(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		if provider, err = openai.NewProvider(options.aiConfig); err != nil {
			repos.Close()
			return nil, err
		}
	}

	searchOpts := []search.Option{search.WithLogger(options.logger)}
	if options.metrics != nil {
		searchOpts = append(searchOpts, search.WithMonitor(options.metrics))
	}
	engine, err := search.NewEngine(repos.Embeddings, repos.Chunks, repos.Sources, searchOpts...)
	if err != nil {
		provider.Close()
		repos.Close()
		return nil, err
	}

	pipeline, err := ingestion.NewPipeline(repos.Sources, repos.Chunks, ingestion.WithLogger(options.logger))
	if err != nil {
		provider.Close()
		repos.Close()
		return nil, err
	}

	return &Database{
		repos:    repos,
		provider: provider,
		engine:   engine,
		pipeline: pipeline,
		options:  options,
		logger:   options.logger,
	}, nil
}

func (db *Database) Close() error {
	db.pipeline.Release()

	// Close AI provider first
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.repos.Close(); err != nil {
		db.logger.Error("error closing storage", "err", err)
		return err
	}
	return nil
}

// Repositories exposes the underlying store.
func (db *Database) Repositories() *badger.Repositories {
	return db.repos
}

func (db *Database) Engine() *search.Engine {
	return db.engine
}

func (db *Database) Pipeline() *ingestion.Pipeline {
	return db.pipeline
}

func (db *Database) NewEmbeddingJob(opts ...reembed.Option) (*reembed.Job, error) {
	base := []reembed.Option{
		reembed.WithConfig(db.options.jobConfig),
		reembed.WithLogger(db.logger),
	}
	if db.options.metrics != nil {
		base = append(base, reembed.WithMonitor(db.options.metrics))
	}
	return reembed.NewJob(reembed.Stores{
		Chunks:     db.repos.Chunks,
		Phrases:    db.repos.Phrases,
		Models:     db.repos.Models,
		Embeddings: db.repos.Embeddings,
		Jobs:       db.repos.Jobs,
	}, db.provider, append(base, opts...)...)
}

func (db *Database) NewCoordinator(opts ...eval.Option) (*eval.Coordinator, error) {
	base := []eval.Option{
		eval.WithConfig(db.options.evalConfig),
		eval.WithProvider(db.provider),
		eval.WithLogger(db.logger),
	}
	if db.options.metrics != nil {
		base = append(base, eval.WithMonitor(db.options.metrics))
	}
	return eval.NewCoordinator(eval.Stores{
		Sources:    db.repos.Sources,
		Chunks:     db.repos.Chunks,
		Phrases:    db.repos.Phrases,
		Models:     db.repos.Models,
		Embeddings: db.repos.Embeddings,
		Evals:      db.repos.Evals,
	}, db.engine, append(base, opts...)...)
}

// NewGridRunner builds a grid runner on the database pipeline.
func (db *Database) NewGridRunner() (*grid.Runner, error) {
	job, err := db.NewEmbeddingJob()
	if err != nil {
		return nil, err
	}
	coord, err := db.NewCoordinator()
	if err != nil {
		return nil, err
	}
	return grid.NewRunner(db.pipeline, job, coord,
		db.repos.Phrases, db.repos.Chunks, db.repos.Models, db.logger), nil
}

// NewServer builds the HTTP API with grid search enabled.
func (db *Database) NewServer(opts ...server.Option) (*server.Server, error) {
	job, err := db.NewEmbeddingJob()
	if err != nil {
		return nil, err
	}
	coord, err := db.NewCoordinator()
	if err != nil {
		return nil, err
	}
	runner, err := db.NewGridRunner()
	if err != nil {
		return nil, err
	}

	base := []server.Option{server.WithGrid(runner), server.WithLogger(db.logger)}
	if db.options.metrics != nil {
		base = append(base, server.WithMetrics(db.options.metrics))
	}
	return server.New(server.Deps{
		Embedder:  job,
		Evaluator: coord,
		Models:    db.repos.Models,
		Evals:     db.repos.Evals,
		Phrases:   db.repos.Phrases,
	}, append(base, opts...)...)
}

// Seed adds the catalog's models and rerankers that are not stored yet.
func (db *Database) Seed(ctx context.Context, c *catalog.Catalog) (*catalog.SeedResult, error) {
	return catalog.Seed(ctx, db.repos.Models, c)
}

// ImportCorpus stores and chunks the corpus sources and adds its phrases.
func (db *Database) ImportCorpus(ctx context.Context, c *catalog.Corpus) (*catalog.ImportResult, error) {
	return catalog.Import(ctx, db.pipeline, db.repos.Chunks, db.repos.Phrases, c)
}

// Compare returns the comparison table of the latest completed run of each
// model, or of every model when none are given.
func (db *Database) Compare(ctx context.Context, metric compare.Metric, modelIDs ...core.ID) ([]compare.Row, error) {
	return compare.Compare(ctx, db.repos.Evals, db.repos.Models, metric, modelIDs...)
}

// CompareAll returns the comparison table of every completed run of the
// given models, or of all models when none are given.
func (db *Database) CompareAll(ctx context.Context, metric compare.Metric, modelIDs ...core.ID) ([]compare.Row, error) {
	return compare.CompareAll(ctx, db.repos.Evals, db.repos.Models, metric, modelIDs...)
}

// CompareRuns returns the comparison table of the given runs.
func (db *Database) CompareRuns(ctx context.Context, metric compare.Metric, runIDs ...core.ID) ([]compare.Row, error) {
	return compare.CompareRuns(ctx, db.repos.Evals, db.repos.Models, metric, runIDs...)
}

// ExportRun writes the results of a run to a parquet file.
func (db *Database) ExportRun(ctx context.Context, runID core.ID, path string) (int, error) {
	return export.ExportRun(ctx, export.Stores{
		Evals:   db.repos.Evals,
		Models:  db.repos.Models,
		Phrases: db.repos.Phrases,
	}, runID, path)
}

// ResolveModel looks up an embedding model by name, falling back to
// treating name as a numeric id.
func (db *Database) ResolveModel(ctx context.Context, name string) (*core.EmbeddingModel, error) {
	m, err := db.repos.Models.FindEmbeddingModel(ctx, name)
	if err == nil {
		return m, nil
	}
	if id, ok := parseID(name); ok {
		if m, err := db.repos.Models.GetEmbeddingModel(ctx, id); err == nil {
			return m, nil
		}
	}
	return nil, errors.Join(core.ErrUnknownModel, err)
}

// ResolveReranker looks up a reranker by name or numeric id.
func (db *Database) ResolveReranker(ctx context.Context, name string) (*core.RerankerModel, error) {
	r, err := db.repos.Models.FindRerankerModel(ctx, name)
	if err == nil {
		return r, nil
	}
	if id, ok := parseID(name); ok {
		if r, err := db.repos.Models.GetRerankerModel(ctx, id); err == nil {
			return r, nil
		}
	}
	return nil, errors.Join(core.ErrUnknownReranker, err)
}

// Search embeds query with model's query prefix and returns the topK most
// similar chunks.
func (db *Database) Search(ctx context.Context, model *core.EmbeddingModel, query string, topK, matryoshkaDim int) ([]search.Hit, error) {
	if err := core.ValidateMatryoshkaDim(model, matryoshkaDim); err != nil {
		return nil, err
	}
	embedder, err := db.provider.EmbedderFor(model)
	if err != nil {
		return nil, err
	}
	vector, err := embedder.EmbedText(ctx, model.Prefix(core.RoleQuery)+query)
	if err != nil {
		return nil, err
	}
	return db.engine.Search(ctx, vector, model, topK, matryoshkaDim)
}

func parseID(s string) (core.ID, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return core.ID(n), true
}
