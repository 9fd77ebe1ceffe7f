// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mock

import (
	"github.com/poiesic/embedeval/ai"
	"github.com/poiesic/embedeval/core"
)

// MockProvider is a test double for ai.Provider.
// It hands out the same mock embedder and reranker for every catalog entry.
type MockProvider struct {
	embedder *MockEmbedder
	reranker *MockReranker

	// EmbedderErr and RerankerErr, when set, are returned instead of a client.
	EmbedderErr error
	RerankerErr error
}

var _ ai.Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock provider with default mock services.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		embedder: NewMockEmbedder(),
		reranker: NewMockReranker(),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
func NewMockProviderWithServices(embedder *MockEmbedder, reranker *MockReranker) *MockProvider {
	return &MockProvider{
		embedder: embedder,
		reranker: reranker,
	}
}

// EmbedderFor returns the mock embedder, sized to the model's dimensions.
func (p *MockProvider) EmbedderFor(model *core.EmbeddingModel) (ai.Embedder, error) {
	if p.EmbedderErr != nil {
		return nil, p.EmbedderErr
	}
	if model.Dimensions > 0 {
		p.embedder.mu.Lock()
		p.embedder.Dimensions = model.Dimensions
		p.embedder.mu.Unlock()
	}
	return p.embedder, nil
}

// RerankerFor returns the mock reranker.
func (p *MockProvider) RerankerFor(model *core.RerankerModel) (ai.Reranker, error) {
	if p.RerankerErr != nil {
		return nil, p.RerankerErr
	}
	return p.reranker, nil
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockReranker returns the underlying mock reranker for test assertions.
func (p *MockProvider) GetMockReranker() *MockReranker {
	return p.reranker
}
