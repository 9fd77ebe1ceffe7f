package reembed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/embedeval/ai"
	"github.com/poiesic/embedeval/ai/mock"
	"github.com/poiesic/embedeval/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel() *core.EmbeddingModel {
	return &core.EmbeddingModel{
		Id:             1,
		Name:           "nomic-embed-text",
		Provider:       "ollama",
		Dimensions:     8,
		QueryPrefix:    "search_query: ",
		DocumentPrefix: "search_document: ",
	}
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text %d", i)
	}
	return out
}

func TestEmbedAll_PreservesOrder(t *testing.T) {
	model := testModel()
	input := texts(23)

	for _, batchSize := range []int{1, 5, 23, 50} {
		t.Run(fmt.Sprintf("batch size %d", batchSize), func(t *testing.T) {
			embedder := mock.NewMockEmbedder()
			embedder.Dimensions = model.Dimensions
			b := NewBatcher(embedder, model, 1, time.Millisecond)

			var vectors [][]float32
			next := 0
			for res := range b.EmbedAll(context.Background(), input, core.RoleDocument, batchSize) {
				require.NoError(t, res.Err)
				assert.Equal(t, next, res.Start)
				next = res.End
				vectors = append(vectors, res.Vectors...)
			}

			require.Len(t, vectors, len(input))
			for i, text := range input {
				assert.Equal(t, mock.DeterministicVector(model.DocumentPrefix+text, model.Dimensions), vectors[i])
			}
			assert.Equal(t, (len(input)+batchSize-1)/batchSize, embedder.CallCount())
		})
	}
}

func TestEmbedAll_AppliesRolePrefix(t *testing.T) {
	model := testModel()
	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = model.Dimensions
	b := NewBatcher(embedder, model, 1, time.Millisecond)

	for range b.EmbedAll(context.Background(), []string{"Was ist KI?"}, core.RoleQuery, 10) {
	}
	assert.Equal(t, []string{"search_query: Was ist KI?"}, embedder.Texts())
}

func TestEmbedAll_FailedBatchDoesNotAbort(t *testing.T) {
	model := testModel()
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, batch []string) ([][]float32, error) {
		for _, text := range batch {
			if strings.HasSuffix(text, "text 3") {
				return nil, errors.New("backend rejected batch")
			}
		}
		out := make([][]float32, len(batch))
		for i, text := range batch {
			out[i] = mock.DeterministicVector(text, model.Dimensions)
		}
		return out, nil
	}
	b := NewBatcher(embedder, model, 2, time.Millisecond)

	var results []BatchResult
	for res := range b.EmbedAll(context.Background(), texts(6), core.RoleDocument, 2) {
		results = append(results, res)
	}

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Vectors)
	assert.Equal(t, 2, results[1].Start)
	assert.Equal(t, 4, results[1].End)
	assert.NoError(t, results[2].Err)
	assert.Len(t, results[2].Vectors, 2)
}

func TestEmbedAll_StopsOnCancel(t *testing.T) {
	model := testModel()
	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = model.Dimensions
	b := NewBatcher(embedder, model, 1, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := 0
	for range b.EmbedAll(ctx, texts(10), core.RoleDocument, 2) {
		batches++
		if batches == 2 {
			cancel()
		}
	}
	assert.Equal(t, 2, batches)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestEmbedAll_ValidatesBackendOutput(t *testing.T) {
	model := testModel()

	t.Run("count mismatch", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, batch []string) ([][]float32, error) {
			return [][]float32{make([]float32, model.Dimensions)}, nil
		}
		b := NewBatcher(embedder, model, 1, time.Millisecond)
		for res := range b.EmbedAll(context.Background(), texts(2), core.RoleDocument, 2) {
			assert.ErrorIs(t, res.Err, ai.ErrCountMismatch)
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.Dimensions = 3
		b := NewBatcher(embedder, model, 1, time.Millisecond)
		for res := range b.EmbedAll(context.Background(), texts(2), core.RoleDocument, 2) {
			assert.ErrorIs(t, res.Err, ErrDimensionMismatch)
		}
	})

	t.Run("invalid batch size", func(t *testing.T) {
		b := NewBatcher(mock.NewMockEmbedder(), model, 1, time.Millisecond)
		for res := range b.EmbedAll(context.Background(), texts(2), core.RoleDocument, 0) {
			assert.ErrorIs(t, res.Err, ErrInvalidBatchSize)
		}
	})
}
