package reembed

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/embedeval/ai/mock"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repos    *badger.Repositories
	provider *mock.MockProvider
	job      *Job
	model    *core.EmbeddingModel
	chunks   []*core.Chunk
	phrases  []*core.TestPhrase
}

func setupJob(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	models, err := repos.Models.AddEmbeddingModels(ctx, &core.EmbeddingModel{
		Name:           "nomic-embed-text",
		Provider:       "ollama",
		Dimensions:     8,
		QueryPrefix:    "search_query: ",
		DocumentPrefix: "search_document: ",
	})
	require.NoError(t, err)

	sources, err := repos.Sources.AddSourceTexts(ctx, &core.SourceText{Title: "KI", Content: "KI ist ein Teilgebiet der Informatik."})
	require.NoError(t, err)

	contents := []string{
		"KI ist ein Teilgebiet der Informatik.",
		"Machine Learning lernt aus Daten.",
		"Neuronale Netze bestehen aus Schichten.",
		"Deep Learning nutzt tiefe Netze.",
		"Transformer verwenden Attention.",
	}
	chunks := make([]*core.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = &core.Chunk{SourceTextId: sources[0].Id, ChunkIndex: i, Content: c, ContentHash: core.HashContent(c)}
	}
	chunks, err = repos.Chunks.AddChunks(ctx, chunks...)
	require.NoError(t, err)

	phrases, err := repos.Phrases.AddPhrases(ctx,
		&core.TestPhrase{Phrase: "Was ist KI?", ExpectedChunkId: chunks[0].Id},
		&core.TestPhrase{Phrase: "Was ist Machine Learning?", ExpectedChunkId: chunks[1].Id},
	)
	require.NoError(t, err)

	provider := mock.NewMockProvider()
	stores := Stores{
		Chunks:     repos.Chunks,
		Phrases:    repos.Phrases,
		Models:     repos.Models,
		Embeddings: repos.Embeddings,
		Jobs:       repos.Jobs,
	}
	opts = append([]Option{WithConfig(&Config{BatchSize: 2, MaxRetries: 1, RetryDelay: time.Millisecond})}, opts...)
	job, err := NewJob(stores, provider, opts...)
	require.NoError(t, err)

	return &fixture{repos: repos, provider: provider, job: job, model: models[0], chunks: chunks, phrases: phrases}
}

func collect(t *testing.T, job *Job, ctx context.Context, req Request) []Event {
	t.Helper()
	seq, err := job.Run(ctx, req)
	require.NoError(t, err)
	var events []Event
	for ev := range seq {
		events = append(events, ev)
	}
	return events
}

func last(events []Event) Event {
	return events[len(events)-1]
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

func TestJob_EmbedsEverything(t *testing.T) {
	f := setupJob(t)
	ctx := context.Background()

	events := collect(t, f.job, ctx, Request{ModelID: f.model.Id})

	final := last(events)
	require.Equal(t, EventComplete, final.Type)
	assert.Equal(t, 5, final.Summary.ChunksEmbedded)
	assert.Equal(t, 0, final.Summary.ChunksSkipped)
	assert.Equal(t, 2, final.Summary.PhrasesEmbedded)
	assert.Zero(t, final.Summary.FailedBatches)
	assert.Empty(t, ofType(events, EventError))

	chunks, phrases, err := f.repos.Embeddings.CountEmbeddings(ctx, f.model.Id)
	require.NoError(t, err)
	assert.Equal(t, 5, chunks)
	assert.Equal(t, 2, phrases)

	pe, err := f.repos.Embeddings.GetPhraseEmbedding(ctx, f.phrases[0].Id, f.model.Id)
	require.NoError(t, err)
	assert.Equal(t, mock.DeterministicVector("search_query: Was ist KI?", 8), pe.Vector)

	summary, err := f.repos.Jobs.LoadJobSummary(ctx, f.model.Id)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 5, summary.ChunksEmbedded)
	assert.False(t, summary.Cancelled)
}

func TestJob_ProgressEvents(t *testing.T) {
	f := setupJob(t)

	events := collect(t, f.job, context.Background(), Request{ModelID: f.model.Id})

	var chunkProgress []Progress
	for _, ev := range ofType(events, EventProgress) {
		if ev.Progress.Phase == PhaseChunks {
			chunkProgress = append(chunkProgress, ev.Progress)
		}
	}
	// opening snapshot plus one per batch of two
	require.Len(t, chunkProgress, 4)
	assert.Equal(t, []int{0, 2, 4, 5}, []int{
		chunkProgress[0].Current, chunkProgress[1].Current,
		chunkProgress[2].Current, chunkProgress[3].Current,
	})
	for _, p := range chunkProgress {
		assert.Equal(t, 5, p.Total)
	}
}

func TestJob_SecondRunIsCacheHit(t *testing.T) {
	f := setupJob(t)
	ctx := context.Background()

	collect(t, f.job, ctx, Request{ModelID: f.model.Id})
	embedder := f.provider.GetMockEmbedder()
	embedder.Reset()

	final := last(collect(t, f.job, ctx, Request{ModelID: f.model.Id, Scope: core.ScopeChunks}))
	require.Equal(t, EventComplete, final.Type)
	assert.Equal(t, 0, final.Summary.ChunksEmbedded)
	assert.Equal(t, 5, final.Summary.ChunksSkipped)
	assert.Zero(t, embedder.CallCount())
}

func TestJob_RechunkedSourceIsReembedded(t *testing.T) {
	f := setupJob(t)
	ctx := context.Background()

	collect(t, f.job, ctx, Request{ModelID: f.model.Id, Scope: core.ScopeChunks})

	content := "Ein neuer Abschnitt."
	_, err := f.repos.Chunks.ReplaceSourceChunks(ctx, f.chunks[0].SourceTextId,
		&core.Chunk{SourceTextId: f.chunks[0].SourceTextId, ChunkIndex: 0, Content: content, ContentHash: core.HashContent(content)})
	require.NoError(t, err)

	final := last(collect(t, f.job, ctx, Request{ModelID: f.model.Id, Scope: core.ScopeChunks}))
	require.Equal(t, EventComplete, final.Type)
	assert.Equal(t, 1, final.Summary.ChunksEmbedded)
	assert.Equal(t, 0, final.Summary.ChunksSkipped)
}

func TestJob_ChunkWithoutHashIsAlwaysEmbedded(t *testing.T) {
	f := setupJob(t)
	ctx := context.Background()

	_, err := f.repos.Chunks.AddChunks(ctx, &core.Chunk{SourceTextId: f.chunks[0].SourceTextId, ChunkIndex: 5, Content: "ohne Hash"})
	require.NoError(t, err)

	collect(t, f.job, ctx, Request{ModelID: f.model.Id, Scope: core.ScopeChunks})
	final := last(collect(t, f.job, ctx, Request{ModelID: f.model.Id, Scope: core.ScopeChunks}))
	assert.Equal(t, 1, final.Summary.ChunksEmbedded)
	assert.Equal(t, 5, final.Summary.ChunksSkipped)
}

func TestJob_FailedBatchIsReported(t *testing.T) {
	f := setupJob(t)
	ctx := context.Background()

	embedder := f.provider.GetMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, batch []string) ([][]float32, error) {
		for _, text := range batch {
			if strings.Contains(text, "Neuronale") {
				return nil, errors.New("backend timeout")
			}
		}
		out := make([][]float32, len(batch))
		for i, text := range batch {
			out[i] = mock.DeterministicVector(text, 8)
		}
		return out, nil
	}

	events := collect(t, f.job, ctx, Request{ModelID: f.model.Id, Scope: core.ScopeChunks})

	errs := ofType(events, EventError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "chunks 3-4 failed")

	final := last(events)
	require.Equal(t, EventComplete, final.Type)
	assert.Equal(t, 3, final.Summary.ChunksEmbedded)
	assert.Equal(t, 1, final.Summary.FailedBatches)

	hashes, err := f.repos.Embeddings.ChunkEmbeddingHashes(ctx, f.model.Id)
	require.NoError(t, err)
	assert.Len(t, hashes, 3)
	assert.NotContains(t, hashes, f.chunks[2].Id)
	assert.NotContains(t, hashes, f.chunks[3].Id)
}

func TestJob_CancelKeepsCompletedBatches(t *testing.T) {
	f := setupJob(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seq, err := f.job.Run(ctx, Request{ModelID: f.model.Id})
	require.NoError(t, err)

	var events []Event
	for ev := range seq {
		events = append(events, ev)
		if ev.Type == EventProgress && ev.Progress.Current == 2 {
			cancel()
		}
	}

	final := last(events)
	assert.Equal(t, EventError, final.Type)
	assert.Contains(t, final.Message, "cancelled")

	bg := context.Background()
	chunks, phrases, err := f.repos.Embeddings.CountEmbeddings(bg, f.model.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, chunks)
	assert.Equal(t, 0, phrases)

	summary, err := f.repos.Jobs.LoadJobSummary(bg, f.model.Id)
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 2, summary.ChunksEmbedded)
}

func TestJob_ConsumerStopKeepsCompletedBatches(t *testing.T) {
	f := setupJob(t)

	seq, err := f.job.Run(context.Background(), Request{ModelID: f.model.Id})
	require.NoError(t, err)
	for ev := range seq {
		if ev.Type == EventProgress && ev.Progress.Current == 4 {
			break
		}
	}

	chunks, _, err := f.repos.Embeddings.CountEmbeddings(context.Background(), f.model.Id)
	require.NoError(t, err)
	assert.Equal(t, 4, chunks)
}

func TestJob_ConfigurationErrors(t *testing.T) {
	f := setupJob(t)
	ctx := context.Background()

	_, err := f.job.Run(ctx, Request{ModelID: 999})
	assert.ErrorIs(t, err, core.ErrUnknownModel)

	_, err = f.job.Run(ctx, Request{ModelID: f.model.Id, Scope: "everything"})
	assert.ErrorIs(t, err, core.ErrInvalidScope)

	_, err = f.job.Run(ctx, Request{ModelID: f.model.Id, BatchSize: -1})
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	providerErr := errors.New("unsupported provider")
	f.provider.EmbedderErr = providerErr
	_, err = f.job.Run(ctx, Request{ModelID: f.model.Id})
	assert.ErrorIs(t, err, providerErr)
}

func TestJob_PhraseScope(t *testing.T) {
	f := setupJob(t)

	final := last(collect(t, f.job, context.Background(), Request{ModelID: f.model.Id, Scope: core.ScopePhrases}))
	require.Equal(t, EventComplete, final.Type)
	assert.Zero(t, final.Summary.ChunksEmbedded)
	assert.Zero(t, final.Summary.ChunksSkipped)
	assert.Equal(t, 2, final.Summary.PhrasesEmbedded)
}

func TestJob_EmbedEveryModel(t *testing.T) {
	f := setupJob(t)
	ctx := context.Background()

	_, err := f.repos.Models.AddEmbeddingModels(ctx, &core.EmbeddingModel{Name: "bge-m3", Provider: "lmstudio", Dimensions: 8})
	require.NoError(t, err)

	seq, err := f.job.EmbedEveryModel(ctx, core.ScopeAll, 0)
	require.NoError(t, err)

	var completed []string
	for ev := range seq {
		if ev.Type == EventComplete {
			completed = append(completed, ev.Summary.Model)
		}
	}
	assert.Equal(t, []string{"nomic-embed-text", "bge-m3"}, completed)
}

type recordingMonitor struct {
	mu       sync.Mutex
	embedded int
	failed   int
	finished []*Summary
}

func (m *recordingMonitor) BatchEmbedded(_, _ string, texts int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedded += texts
}

func (m *recordingMonitor) BatchFailed(_, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
}

func (m *recordingMonitor) JobFinished(s *Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, s)
}

func TestJob_Monitor(t *testing.T) {
	monitor := &recordingMonitor{}
	f := setupJob(t, WithMonitor(monitor))

	collect(t, f.job, context.Background(), Request{ModelID: f.model.Id})

	assert.Equal(t, 7, monitor.embedded)
	assert.Zero(t, monitor.failed)
	require.Len(t, monitor.finished, 1)
}

func TestEvent_MarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			"progress",
			progressEvent("", Progress{Current: 0, Total: 5, Phase: PhaseChunks, Message: "m", ElapsedMs: 3}),
			`{"type":"progress","current":0,"total":5,"phase":"chunks","message":"m","elapsedMs":3}`,
		},
		{
			"error",
			errorEvent("bge-m3", "boom"),
			`{"type":"error","model":"bge-m3","message":"boom"}`,
		},
		{
			"complete",
			completeEvent(&Summary{ModelID: 1, Model: "m", ChunksEmbedded: 2, ChunksSkipped: 1, PhrasesEmbedded: 3, TotalDurationMs: 9}),
			`{"type":"complete","data":{"modelId":1,"model":"m","chunksEmbedded":2,"chunksSkipped":1,"phrasesEmbedded":3,"failedBatches":0,"totalDurationMs":9}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}
