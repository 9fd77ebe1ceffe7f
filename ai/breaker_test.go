package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingEmbedder struct {
	err   error
	calls int
}

func (f *failingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1}, nil
}

func (f *failingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type staticReranker struct {
	perm []int
}

func (s *staticReranker) Rerank(ctx context.Context, query string, documents []string) ([]int, error) {
	return s.perm, nil
}

func TestBreakerEmbedder(t *testing.T) {
	ctx := context.Background()
	cfg := NewConfig(WithBreaker(2, time.Minute))

	t.Run("passes results through", func(t *testing.T) {
		inner := &failingEmbedder{}
		b := NewBreakerEmbedder("test", inner, cfg)

		vectors, err := b.EmbedTexts(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{0}, {1}}, vectors)

		vector, err := b.EmbedText(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []float32{1}, vector)
	})

	t.Run("opens after consecutive failures", func(t *testing.T) {
		inner := &failingEmbedder{err: errors.New("backend down")}
		b := NewBreakerEmbedder("test", inner, cfg)

		for range 2 {
			_, err := b.EmbedTexts(ctx, []string{"a"})
			require.Error(t, err)
		}

		_, err := b.EmbedTexts(ctx, []string{"a"})
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("cancellation does not trip", func(t *testing.T) {
		inner := &failingEmbedder{err: context.Canceled}
		b := NewBreakerEmbedder("test", inner, cfg)

		for range 4 {
			_, err := b.EmbedTexts(ctx, []string{"a"})
			assert.ErrorIs(t, err, context.Canceled)
		}
		assert.Equal(t, 4, inner.calls)
	})
}

func TestBreakerReranker(t *testing.T) {
	b := NewBreakerReranker("test", &staticReranker{perm: []int{1, 0}}, DefaultConfig())
	perm, err := b.Rerank(context.Background(), "q", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, perm)
}
