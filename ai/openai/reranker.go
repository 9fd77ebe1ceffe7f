package openai

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/embedeval/ai"
	"github.com/tmc/langchaingo/llms"
)

// errAllScoresFailed is returned when no document could be scored, which
// means the backend itself is unreachable rather than one reply being odd.
var errAllScoresFailed = errors.New("reranker: every document failed to score")

// Reranker implements ai.Reranker by asking a chat model to score each
// (query, document) pair from 0 to 10.
type Reranker struct {
	client  llms.Model
	pool    *ants.Pool
	timeout time.Duration
	logger  *slog.Logger
}

var _ ai.Reranker = (*Reranker)(nil)

func newReranker(client llms.Model, pool *ants.Pool, model string, timeout time.Duration) *Reranker {
	return &Reranker{
		client:  client,
		pool:    pool,
		timeout: timeout,
		logger:  slog.Default().With("component", "reranker", "model", model),
	}
}

// Rerank scores every document in parallel and returns the indices ordered by
// descending score. A document whose scoring call fails scores zero.
func (r *Reranker) Rerank(ctx context.Context, query string, documents []string) ([]int, error) {
	if len(documents) == 0 {
		return []int{}, nil
	}

	scores := make([]float64, len(documents))
	errs := make([]error, len(documents))

	var wg sync.WaitGroup
	for i, doc := range documents {
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			scores[i], errs[i] = r.score(ctx, query, doc)
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			r.logger.Warn("failed to score document", "index", i, "err", err)
		}
	}
	if failed == len(documents) {
		return nil, errors.Join(errAllScoresFailed, errs[0])
	}

	return ai.Permutation(scores), nil
}

func (r *Reranker) score(ctx context.Context, query, document string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(rerankSystemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(buildRerankPrompt(query, document)),
			},
		},
	}

	response, err := r.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithMaxTokens(10))
	if err != nil {
		return 0, err
	}
	if len(response.Choices) < 1 {
		r.logger.Debug("no choices returned from model")
		return minScore, nil
	}
	return parseScore(response.Choices[0].Content), nil
}
