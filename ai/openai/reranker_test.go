package openai

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel answers each scoring prompt with the reply mapped to the
// document it contains.
type scriptedModel struct {
	replies map[string]string
	fail    map[string]bool
	calls   atomic.Int32
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls.Add(1)
	prompt := messages[len(messages)-1].Parts[0].(llms.TextContent).Text
	for doc, reply := range m.replies {
		if strings.Contains(prompt, "Document: "+doc+"\n") {
			if m.fail[doc] {
				return nil, errors.New("backend error")
			}
			return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: reply}}}, nil
		}
	}
	return &llms.ContentResponse{}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func newTestReranker(t *testing.T, model llms.Model) *Reranker {
	t.Helper()
	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	t.Cleanup(pool.Release)
	return newReranker(model, pool, "test", time.Second)
}

func TestRerank(t *testing.T) {
	ctx := context.Background()

	t.Run("orders by descending score", func(t *testing.T) {
		model := &scriptedModel{replies: map[string]string{
			"alpha": "2",
			"beta":  "9",
			"gamma": "5.5",
		}}
		r := newTestReranker(t, model)

		perm, err := r.Rerank(ctx, "query", []string{"alpha", "beta", "gamma"})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 0}, perm)
		assert.Equal(t, int32(3), model.calls.Load())
	})

	t.Run("failed document scores zero", func(t *testing.T) {
		model := &scriptedModel{
			replies: map[string]string{"alpha": "3", "beta": "9", "gamma": "1"},
			fail:    map[string]bool{"beta": true},
		}
		r := newTestReranker(t, model)

		perm, err := r.Rerank(ctx, "query", []string{"alpha", "beta", "gamma"})
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2, 1}, perm)
	})

	t.Run("unparseable reply scores zero", func(t *testing.T) {
		model := &scriptedModel{replies: map[string]string{"alpha": "relevant", "beta": "1"}}
		r := newTestReranker(t, model)

		perm, err := r.Rerank(ctx, "query", []string{"alpha", "beta"})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 0}, perm)
	})

	t.Run("every document failing is an error", func(t *testing.T) {
		model := &scriptedModel{
			replies: map[string]string{"alpha": "3", "beta": "9"},
			fail:    map[string]bool{"alpha": true, "beta": true},
		}
		r := newTestReranker(t, model)

		_, err := r.Rerank(ctx, "query", []string{"alpha", "beta"})
		assert.ErrorIs(t, err, errAllScoresFailed)
	})

	t.Run("empty input", func(t *testing.T) {
		r := newTestReranker(t, &scriptedModel{})
		perm, err := r.Rerank(ctx, "query", nil)
		require.NoError(t, err)
		assert.Empty(t, perm)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		r := newTestReranker(t, &scriptedModel{replies: map[string]string{"alpha": "1"}})
		_, err := r.Rerank(cctx, "query", []string{"alpha"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
