package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMonitor struct {
	mu       sync.Mutex
	loads    int
	hits     int
	searches int
}

func (m *countingMonitor) SnapshotLoaded(_ string, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
}

func (m *countingMonitor) SnapshotHit(_ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
}

func (m *countingMonitor) Searched(_ string, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches++
}

type fixture struct {
	repos  *badger.Repositories
	model  *core.EmbeddingModel
	chunks []*core.Chunk
}

// setup stores one source with a chunk per vector and embeds each chunk
// with its vector under a 4-dimensional model.
func setup(t *testing.T, vectors ...[]float32) *fixture {
	t.Helper()
	ctx := context.Background()

	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	models, err := repos.Models.AddEmbeddingModels(ctx, &core.EmbeddingModel{
		Name:                 "mxbai-embed-large",
		Provider:             "ollama",
		Dimensions:           4,
		MatryoshkaDimensions: []int{2},
	})
	require.NoError(t, err)

	sources, err := repos.Sources.AddSourceTexts(ctx, &core.SourceText{Title: "Grundlagen"})
	require.NoError(t, err)

	chunks := make([]*core.Chunk, len(vectors))
	for i := range vectors {
		content := string(rune('A' + i))
		chunks[i] = &core.Chunk{SourceTextId: sources[0].Id, ChunkIndex: i, Content: content, ContentHash: core.HashContent(content)}
	}
	chunks, err = repos.Chunks.AddChunks(ctx, chunks...)
	require.NoError(t, err)

	embs := make([]*core.ChunkEmbedding, len(vectors))
	for i, v := range vectors {
		embs[i] = &core.ChunkEmbedding{ChunkId: chunks[i].Id, Vector: v, ContentHash: chunks[i].ContentHash}
	}
	require.NoError(t, repos.Embeddings.ReplaceChunkEmbeddings(ctx, models[0].Id, embs...))

	return &fixture{repos: repos, model: models[0], chunks: chunks}
}

func (f *fixture) engine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(f.repos.Embeddings, f.repos.Chunks, f.repos.Sources, opts...)
	require.NoError(t, err)
	return e
}

func ids(hits []Hit) []core.ID {
	out := make([]core.ID, len(hits))
	for i, h := range hits {
		out[i] = h.ChunkId
	}
	return out
}

func TestNewEngine(t *testing.T) {
	f := setup(t)

	_, err := NewEngine(nil, f.repos.Chunks, f.repos.Sources)
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewEngine(f.repos.Embeddings, f.repos.Chunks, f.repos.Sources, WithCache(0, time.Minute))
	assert.Error(t, err)

	_, err = NewEngine(f.repos.Embeddings, f.repos.Chunks, f.repos.Sources, WithLogger(nil), WithMonitor(nil))
	assert.NoError(t, err)
}

func TestSearch_RanksByCosineSimilarity(t *testing.T) {
	f := setup(t,
		[]float32{0, 1, 0, 0},
		[]float32{1, 0, 0, 0},
		[]float32{1, 1, 0, 0},
		[]float32{-1, 0, 0, 0},
	)
	e := f.engine(t)

	hits, err := e.Search(context.Background(), []float32{1, 0, 0, 0}, f.model, 3, 0)
	require.NoError(t, err)

	assert.Equal(t, []core.ID{f.chunks[1].Id, f.chunks[2].Id, f.chunks[0].Id}, ids(hits))
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.InDelta(t, 0.7071, hits[1].Similarity, 1e-4)
	assert.InDelta(t, 0.0, hits[2].Similarity, 1e-9)

	assert.Equal(t, 1, hits[0].ChunkIndex)
	assert.Equal(t, "B", hits[0].Content)
	assert.Equal(t, "Grundlagen", hits[0].SourceTitle)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	f := setup(t,
		[]float32{0, 0, 1, 0},
		[]float32{1, 0, 0, 0},
		[]float32{2, 0, 0, 0},
		[]float32{3, 0, 0, 0},
	)
	e := f.engine(t)

	for range 3 {
		hits, err := e.Search(context.Background(), []float32{1, 0, 0, 0}, f.model, 3, 0)
		require.NoError(t, err)
		assert.Equal(t, []core.ID{f.chunks[1].Id, f.chunks[2].Id, f.chunks[3].Id}, ids(hits))
	}
}

func TestSearch_FewerChunksThanTopK(t *testing.T) {
	f := setup(t, []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0})
	e := f.engine(t)

	hits, err := e.Search(context.Background(), []float32{1, 0, 0, 0}, f.model, 5, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearch_Matryoshka(t *testing.T) {
	// Full vectors favor chunk 0; the first two components favor chunk 1.
	f := setup(t,
		[]float32{0.6, 0, 0.8, 0},
		[]float32{0.7, 0.7, -0.1, 0.1},
	)
	e := f.engine(t)
	query := []float32{1, 1, 1, 0}

	full, err := e.Search(context.Background(), query, f.model, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, f.chunks[0].Id, full[0].ChunkId)

	truncated, err := e.Search(context.Background(), query, f.model, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, f.chunks[1].Id, truncated[0].ChunkId)
	assert.InDelta(t, 1.0, truncated[0].Similarity, 1e-6)
}

func TestSearch_Errors(t *testing.T) {
	f := setup(t, []float32{1, 0, 0, 0})
	e := f.engine(t)
	ctx := context.Background()

	_, err := e.Search(ctx, []float32{1, 0, 0, 0}, f.model, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidTopK)

	_, err = e.Search(ctx, []float32{1, 0, 0, 0}, f.model, 5, 3)
	assert.ErrorIs(t, err, core.ErrUnsupportedDimension)

	_, err = e.Search(ctx, []float32{1, 0}, f.model, 5, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearch_SnapshotCache(t *testing.T) {
	f := setup(t, []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0})
	monitor := &countingMonitor{}
	e := f.engine(t, WithMonitor(monitor))
	ctx := context.Background()
	query := []float32{0, 1, 0, 0}

	_, err := e.Search(ctx, query, f.model, 1, 0)
	require.NoError(t, err)
	_, err = e.Search(ctx, query, f.model, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, monitor.loads)
	assert.Equal(t, 1, monitor.hits)
	assert.Equal(t, 2, monitor.searches)

	// New embeddings bump the generation and replace the snapshot.
	require.NoError(t, f.repos.Embeddings.ReplaceChunkEmbeddings(ctx, f.model.Id,
		&core.ChunkEmbedding{ChunkId: f.chunks[0].Id, Vector: []float32{0, 2, 0, 0}, ContentHash: f.chunks[0].ContentHash}))

	hits, err := e.Search(ctx, query, f.model, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, monitor.loads)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.InDelta(t, 1.0, hits[1].Similarity, 1e-9)
	assert.Equal(t, f.chunks[0].Id, hits[0].ChunkId, "tie keeps insertion order")

	e.Invalidate()
	_, err = e.Search(ctx, query, f.model, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, monitor.loads)
}
