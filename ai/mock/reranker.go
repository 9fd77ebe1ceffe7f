package mock

import (
	"context"
	"sync"

	"github.com/poiesic/embedeval/ai"
)

// MockReranker is a test double for ai.Reranker.
// By default it returns the identity permutation.
type MockReranker struct {
	// RerankFunc is called by Rerank if set.
	RerankFunc func(ctx context.Context, query string, documents []string) ([]int, error)

	mu        sync.Mutex
	callCount int
}

var _ ai.Reranker = (*MockReranker)(nil)

// NewMockReranker creates a mock reranker that keeps the input order.
func NewMockReranker() *MockReranker {
	return &MockReranker{}
}

// NewReversingReranker creates a mock reranker that reverses the input order.
func NewReversingReranker() *MockReranker {
	return &MockReranker{
		RerankFunc: func(ctx context.Context, query string, documents []string) ([]int, error) {
			perm := make([]int, len(documents))
			for i := range perm {
				perm[i] = len(documents) - 1 - i
			}
			return perm, nil
		},
	}
}

// Rerank implements ai.Reranker.
func (m *MockReranker) Rerank(ctx context.Context, query string, documents []string) ([]int, error) {
	m.mu.Lock()
	m.callCount++
	fn := m.RerankFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, query, documents)
	}

	perm := make([]int, len(documents))
	for i := range perm {
		perm[i] = i
	}
	return perm, nil
}

// CallCount returns the number of times Rerank was called.
func (m *MockReranker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
