package reembed

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/poiesic/embedeval/ai"
	"github.com/poiesic/embedeval/core"
)

// BatchResult is the outcome of one backend call covering texts[Start:End].
// Exactly one of Vectors and Err is set. Vectors[i] belongs to texts[Start+i].
type BatchResult struct {
	Start   int
	End     int
	Vectors [][]float32
	Err     error
}

// Batcher embeds text lists for one model in fixed-size batches.
type Batcher struct {
	embedder       ai.Embedder
	model          *core.EmbeddingModel
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatcher creates a batcher for model.
// maxRetries: maximum number of attempts per batch
// retryBaseDelay: base delay for exponential backoff
func NewBatcher(embedder ai.Embedder, model *core.EmbeddingModel, maxRetries int, retryBaseDelay time.Duration) *Batcher {
	return &Batcher{
		embedder:       embedder,
		model:          model,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// EmbedAll embeds texts in input order, batchSize texts per backend call,
// prepending the model's prefix for role. Each batch is yielded as it
// finishes. A failed batch is yielded with its error and the next batch
// still runs. Cancellation is checked between batches: once ctx is done no
// further batch is started.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string, role core.Role, batchSize int) iter.Seq[BatchResult] {
	return func(yield func(BatchResult) bool) {
		if batchSize <= 0 {
			yield(BatchResult{End: len(texts), Err: ErrInvalidBatchSize})
			return
		}

		prefix := b.model.Prefix(role)
		for start := 0; start < len(texts); start += batchSize {
			if ctx.Err() != nil {
				return
			}
			end := min(start+batchSize, len(texts))

			batch := make([]string, end-start)
			for i, text := range texts[start:end] {
				batch[i] = prefix + text
			}

			vectors, err := b.embedBatch(ctx, batch)
			result := BatchResult{Start: start, End: end}
			if err != nil {
				result.Err = err
			} else {
				result.Vectors = vectors
			}
			if !yield(result) {
				return
			}
		}
	}
}

func (b *Batcher) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	vectors, err := RetryWithBackoff(ctx, func(ctx context.Context) ([][]float32, error) {
		return b.embedder.EmbedTexts(ctx, batch)
	}, b.maxRetries, b.retryBaseDelay)
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ai.ErrCountMismatch, len(batch), len(vectors))
	}
	if b.model.Dimensions > 0 {
		for _, v := range vectors {
			if len(v) != b.model.Dimensions {
				return nil, fmt.Errorf("%w: model %s declares %d, got %d",
					ErrDimensionMismatch, b.model.Name, b.model.Dimensions, len(v))
			}
		}
	}
	return vectors, nil
}
