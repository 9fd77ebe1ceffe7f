// Package rerank reorders similarity search hits with a cross-encoder.
//
// Reranking only permutes the candidates similarity search returned. It
// never adds or drops a chunk, so it can move the expected chunk up within
// the top K but cannot recover one that search missed.
package rerank

import (
	"context"
	"fmt"

	"github.com/poiesic/embedeval/ai"
	"github.com/poiesic/embedeval/search"
)

// Apply scores hits against query with reranker and returns them in the
// reranker's order. Similarities are carried over unchanged. The input slice
// is not modified.
func Apply(ctx context.Context, reranker ai.Reranker, query string, hits []search.Hit) ([]search.Hit, error) {
	if len(hits) == 0 {
		return hits, nil
	}

	documents := make([]string, len(hits))
	for i, h := range hits {
		documents[i] = h.Content
	}

	perm, err := reranker.Rerank(ctx, query, documents)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	return Project(hits, perm)
}

// Project returns hits reordered by perm after checking that perm is a
// permutation of their indices.
func Project[T any](items []T, perm []int) ([]T, error) {
	if err := ai.ValidatePermutation(perm, len(items)); err != nil {
		return nil, err
	}
	out := make([]T, len(items))
	for i, idx := range perm {
		out[i] = items[idx]
	}
	return out, nil
}
