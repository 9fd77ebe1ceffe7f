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

package storage

import (
	"context"

	"github.com/poiesic/embedeval/core"
)

// Repository is the base interface for all storage repositories.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}

// SourceTextRepository manages the documents chunks are cut from.
type SourceTextRepository interface {
	Repository
	// AddSourceTexts stores new source texts, assigning IDs from a sequence.
	AddSourceTexts(ctx context.Context, texts ...*core.SourceText) ([]*core.SourceText, error)

	// UpdateSourceText overwrites an existing source text.
	// Returns ErrNotFound if it doesn't exist.
	UpdateSourceText(ctx context.Context, text *core.SourceText) error

	// GetSourceText retrieves a source text by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetSourceText(ctx context.Context, id core.ID) (*core.SourceText, error)

	// ListSourceTexts returns all source texts in insertion order.
	ListSourceTexts(ctx context.Context) ([]*core.SourceText, error)
}

// ChunkRepository manages chunks. Chunks are never updated in place.
type ChunkRepository interface {
	Repository
	// AddChunks stores new chunks, assigning IDs from a sequence.
	// Chunks are returned with IDs and InsertedAt populated.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// ReplaceSourceChunks deletes every chunk of a source text, including the
	// chunk embeddings of all models, and stores the new chunks in the same
	// transaction.
	ReplaceSourceChunks(ctx context.Context, sourceID core.ID, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunk retrieves a chunk by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// ListChunks returns all chunks in insertion order.
	ListChunks(ctx context.Context) ([]*core.Chunk, error)

	// ListChunksBySource returns the chunks of one source text ordered by ChunkIndex.
	ListChunksBySource(ctx context.Context, sourceID core.ID) ([]*core.Chunk, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)
}

// PhraseRepository manages test phrases.
type PhraseRepository interface {
	Repository
	// AddPhrases stores new phrases, assigning IDs from a sequence.
	AddPhrases(ctx context.Context, phrases ...*core.TestPhrase) ([]*core.TestPhrase, error)

	// UpdatePhrase overwrites an existing phrase, e.g. after remapping its
	// ground truth. Returns ErrNotFound if it doesn't exist.
	UpdatePhrase(ctx context.Context, phrase *core.TestPhrase) error

	// GetPhrase retrieves a phrase by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetPhrase(ctx context.Context, id core.ID) (*core.TestPhrase, error)

	// ListPhrases returns all phrases in insertion order.
	ListPhrases(ctx context.Context) ([]*core.TestPhrase, error)
}

// ModelRepository manages the embedding and reranker catalog.
type ModelRepository interface {
	Repository
	// AddEmbeddingModels stores new embedding models.
	// Returns ErrDuplicateKey if a model with the same name exists.
	AddEmbeddingModels(ctx context.Context, models ...*core.EmbeddingModel) ([]*core.EmbeddingModel, error)

	// GetEmbeddingModel retrieves an embedding model by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetEmbeddingModel(ctx context.Context, id core.ID) (*core.EmbeddingModel, error)

	// FindEmbeddingModel retrieves an embedding model by name.
	// Returns ErrNotFound if it doesn't exist.
	FindEmbeddingModel(ctx context.Context, name string) (*core.EmbeddingModel, error)

	// ListEmbeddingModels returns all embedding models in insertion order.
	ListEmbeddingModels(ctx context.Context) ([]*core.EmbeddingModel, error)

	// AddRerankerModels stores new reranker models.
	// Returns ErrDuplicateKey if a reranker with the same name exists.
	AddRerankerModels(ctx context.Context, models ...*core.RerankerModel) ([]*core.RerankerModel, error)

	// GetRerankerModel retrieves a reranker by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetRerankerModel(ctx context.Context, id core.ID) (*core.RerankerModel, error)

	// FindRerankerModel retrieves a reranker by name.
	// Returns ErrNotFound if it doesn't exist.
	FindRerankerModel(ctx context.Context, name string) (*core.RerankerModel, error)

	// ListRerankerModels returns all rerankers in insertion order.
	ListRerankerModels(ctx context.Context) ([]*core.RerankerModel, error)
}

// EmbeddingRepository stores chunk and phrase vectors per model.
type EmbeddingRepository interface {
	Repository
	// ChunkEmbeddingHashes returns the stored content hash of every chunk
	// embedded under the model, keyed by chunk ID.
	ChunkEmbeddingHashes(ctx context.Context, modelID core.ID) (map[core.ID]string, error)

	// ForEachChunkEmbedding calls fn for every chunk embedding of the model in
	// chunk insertion order. Iteration stops at the first error fn returns.
	ForEachChunkEmbedding(ctx context.Context, modelID core.ID, fn func(*core.ChunkEmbedding) error) error

	// ReplaceChunkEmbeddings deletes the existing rows for the given chunk IDs
	// under the model and inserts the new set, in one transaction.
	ReplaceChunkEmbeddings(ctx context.Context, modelID core.ID, embeddings ...*core.ChunkEmbedding) error

	// GetPhraseEmbedding retrieves the vector of a phrase under a model.
	// Returns ErrNotFound if the phrase has not been embedded.
	GetPhraseEmbedding(ctx context.Context, phraseID, modelID core.ID) (*core.PhraseEmbedding, error)

	// ReplacePhraseEmbeddings deletes the existing rows for the given phrase
	// IDs under the model and inserts the new set, in one transaction.
	ReplacePhraseEmbeddings(ctx context.Context, modelID core.ID, embeddings ...*core.PhraseEmbedding) error

	// Generation returns a counter that changes whenever the model's chunk
	// embeddings change. Readers use it to invalidate cached snapshots.
	Generation(ctx context.Context, modelID core.ID) (uint64, error)

	// CountEmbeddings returns the number of chunk and phrase embeddings stored
	// for the model.
	CountEmbeddings(ctx context.Context, modelID core.ID) (chunks, phrases int, err error)
}

// EvalRepository stores evaluation runs and their per-phrase results.
type EvalRepository interface {
	Repository
	// CreateRun stores a new run in the running state.
	CreateRun(ctx context.Context, run *core.EvalRun) (*core.EvalRun, error)

	// FinalizeRun writes the aggregate outcome of a run. It is the only
	// mutation a run accepts; a second call returns ErrRunFinalized.
	FinalizeRun(ctx context.Context, runID core.ID, outcome RunOutcome) (*core.EvalRun, error)

	// GetRun retrieves a run by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetRun(ctx context.Context, id core.ID) (*core.EvalRun, error)

	// ListRuns returns all runs, newest first.
	ListRuns(ctx context.Context) ([]*core.EvalRun, error)

	// AddResult stores one phrase result of a run.
	AddResult(ctx context.Context, result *core.EvalResult) error

	// ListResults returns the results of a run in the order they were added.
	ListResults(ctx context.Context, runID core.ID) ([]*core.EvalResult, error)
}

// RunOutcome is the finalization payload of an evaluation run.
type RunOutcome struct {
	Status           core.RunStatus
	Metrics          core.Metrics
	TotalPhrases     int
	EvaluatedPhrases int
	ExcludedPhrases  int
	AvgLatencyMs     float64
}

// JobRepository keeps the latest embedding job summary per model.
type JobRepository interface {
	// SaveJobSummary persists the summary, replacing the previous one for
	// the same model.
	SaveJobSummary(ctx context.Context, summary *core.JobSummary) error

	// LoadJobSummary retrieves the summary for a model.
	// Returns nil, nil if the model was never embedded.
	LoadJobSummary(ctx context.Context, modelID core.ID) (*core.JobSummary, error)
}
