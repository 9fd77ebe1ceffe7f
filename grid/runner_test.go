package grid

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/embedeval/ai/mock"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/eval"
	"github.com/poiesic/embedeval/ingestion"
	"github.com/poiesic/embedeval/reembed"
	"github.com/poiesic/embedeval/search"
	"github.com/poiesic/embedeval/storage"
	"github.com/poiesic/embedeval/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repos  *badger.Repositories
	runner *Runner
	model  *core.EmbeddingModel
}

// failingEmbeddings rejects every chunk embedding write.
type failingEmbeddings struct {
	storage.EmbeddingRepository
}

func (failingEmbeddings) ReplaceChunkEmbeddings(context.Context, core.ID, ...*core.ChunkEmbedding) error {
	return errors.New("disk full")
}

func setupGrid(t *testing.T) *fixture {
	return setupGridWith(t, nil)
}

func setupGridWith(t *testing.T, wrap func(storage.EmbeddingRepository) storage.EmbeddingRepository) *fixture {
	t.Helper()
	ctx := context.Background()

	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	models, err := repos.Models.AddEmbeddingModels(ctx, &core.EmbeddingModel{Name: "nomic-embed-text", Provider: "ollama", Dimensions: 8})
	require.NoError(t, err)

	pipeline, err := ingestion.NewPipeline(repos.Sources, repos.Chunks)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	_, err = pipeline.Import(ctx, ingestion.ChunkConfig{Size: 10, Overlap: 0, Strategy: ingestion.StrategySentence},
		&core.SourceText{Title: "KI", Content: "Erster Satz hier. Zweiter Satz hier. Dritter Satz hier. Vierter Satz hier."})
	require.NoError(t, err)
	chunks, err := repos.Chunks.ListChunks(ctx)
	require.NoError(t, err)

	_, err = repos.Phrases.AddPhrases(ctx, &core.TestPhrase{
		Phrase:          "Was steht im dritten Satz?",
		ExpectedChunkId: chunks[1].Id,
		ExpectedContent: "Dritter Satz hier.",
		SourceTextId:    chunks[1].SourceTextId,
	})
	require.NoError(t, err)

	var embeddings storage.EmbeddingRepository = repos.Embeddings
	if wrap != nil {
		embeddings = wrap(embeddings)
	}

	provider := mock.NewMockProvider()
	job, err := reembed.NewJob(reembed.Stores{
		Chunks:     repos.Chunks,
		Phrases:    repos.Phrases,
		Models:     repos.Models,
		Embeddings: embeddings,
		Jobs:       repos.Jobs,
	}, provider, reembed.WithConfig(&reembed.Config{BatchSize: 2, MaxRetries: 1, RetryDelay: time.Millisecond}))
	require.NoError(t, err)

	engine, err := search.NewEngine(repos.Embeddings, repos.Chunks, repos.Sources)
	require.NoError(t, err)
	coord, err := eval.NewCoordinator(eval.Stores{
		Sources:    repos.Sources,
		Chunks:     repos.Chunks,
		Phrases:    repos.Phrases,
		Models:     repos.Models,
		Embeddings: repos.Embeddings,
		Evals:      repos.Evals,
	}, engine, eval.WithProvider(provider))
	require.NoError(t, err)

	runner := NewRunner(pipeline, job, coord, repos.Phrases, repos.Chunks, repos.Models, nil)
	return &fixture{repos: repos, runner: runner, model: models[0]}
}

func ofType(events []Event, typ EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestRunner_Search(t *testing.T) {
	f := setupGrid(t)
	ctx := context.Background()

	seq, err := f.runner.Run(ctx, Request{ModelID: f.model.Id, Sizes: []int{10, 100}, Overlaps: []int{0}})
	require.NoError(t, err)
	var events []Event
	for ev := range seq {
		events = append(events, ev)
	}

	configs := ofType(events, EventConfig)
	require.Len(t, configs, 2)
	assert.Equal(t, 1, configs[0].Current)
	assert.Equal(t, 2, configs[0].Total)
	assert.Equal(t, 100, configs[1].Config.Size)

	results := ofType(events, EventResult)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Result.TotalChunks)
	assert.Equal(t, 1, results[1].Result.TotalChunks)
	assert.Equal(t, 1, results[0].Result.Remapped)
	assert.Equal(t, 1, results[0].Result.TotalPhrases)
	assert.Equal(t, 1, results[0].Result.EvaluatedPhrases)
	// A single chunk always holds the expected content.
	assert.Equal(t, 1.0, results[1].Result.Metrics.TopKAccuracy1)

	final := events[len(events)-1]
	require.Equal(t, EventComplete, final.Type)
	require.Len(t, final.Summary.Results, 2)
	require.NotNil(t, final.Summary.Recommendation)
	assert.Equal(t, 1.0, final.Summary.Recommendation.Metrics.TopKAccuracy1)

	runs, err := f.repos.Evals.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 100, runs[0].ChunkSize)
	assert.Equal(t, 10, runs[1].ChunkSize)

	sources, err := f.repos.Sources.ListSourceTexts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, sources[0].ChunkSize)
}

func TestRunner_EmbeddingFailureStopsSearch(t *testing.T) {
	f := setupGridWith(t, func(e storage.EmbeddingRepository) storage.EmbeddingRepository {
		return failingEmbeddings{e}
	})
	ctx := context.Background()

	seq, err := f.runner.Run(ctx, Request{ModelID: f.model.Id, Sizes: []int{10, 100}, Overlaps: []int{0}})
	require.NoError(t, err)
	var events []Event
	for ev := range seq {
		events = append(events, ev)
	}

	assert.Len(t, ofType(events, EventConfig), 1, "no further configuration is tried")
	assert.Empty(t, ofType(events, EventResult))
	errs := ofType(events, EventError)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[len(errs)-1].Message, "embedding did not complete")

	final := events[len(events)-1]
	require.Equal(t, EventComplete, final.Type)
	assert.Empty(t, final.Summary.Results)
	assert.Nil(t, final.Summary.Recommendation)

	runs, err := f.repos.Evals.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs, "no run is evaluated against missing vectors")
}

func TestRunner_ConsumerStop(t *testing.T) {
	f := setupGrid(t)
	ctx := context.Background()

	seq, err := f.runner.Run(ctx, Request{ModelID: f.model.Id, Sizes: []int{10, 100}, Overlaps: []int{0}})
	require.NoError(t, err)
	for ev := range seq {
		if ev.Type == EventResult {
			break
		}
	}

	runs, err := f.repos.Evals.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunner_ConfigurationErrors(t *testing.T) {
	f := setupGrid(t)
	ctx := context.Background()

	_, err := f.runner.Run(ctx, Request{ModelID: 42})
	assert.ErrorIs(t, err, core.ErrUnknownModel)

	_, err = f.runner.Run(ctx, Request{ModelID: f.model.Id, RerankerID: 42})
	assert.ErrorIs(t, err, core.ErrUnknownReranker)

	_, err = f.runner.Run(ctx, Request{ModelID: f.model.Id, MatryoshkaDim: 4})
	assert.ErrorIs(t, err, core.ErrUnsupportedDimension)

	_, err = f.runner.Run(ctx, Request{ModelID: f.model.Id, Sizes: []int{30}, Overlaps: []int{30}})
	assert.ErrorIs(t, err, ErrNoConfigs)
}

func TestEvent_JSON(t *testing.T) {
	data, err := json.Marshal(Event{Type: EventConfig, Current: 1, Total: 12,
		Config: ingestion.ChunkConfig{Size: 100, Overlap: 0, Strategy: "sentence"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"config","current":1,"total":12,"chunkSize":100,"chunkOverlap":0,"strategy":"sentence"}`, string(data))

	data, err = json.Marshal(Event{Type: EventResult, Result: &Result{RunID: 3}})
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "result", decoded["type"])
	assert.EqualValues(t, 3, decoded["runId"])
}
