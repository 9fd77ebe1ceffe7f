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

package ai

import (
	"context"

	"github.com/poiesic/embedeval/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Reranker reorders candidate documents by relevance to a query using a
// cross-encoder style scorer. Implementations must be thread-safe.
type Reranker interface {
	// Rerank scores every document against query and returns a permutation
	// of indices into documents, most relevant first. The result has exactly
	// len(documents) entries and never references an index outside it.
	Rerank(ctx context.Context, query string, documents []string) ([]int, error)
}

// Provider builds backend clients for catalog entries.
// A provider may cache clients; callers must not Close the returned values.
type Provider interface {
	// EmbedderFor returns an Embedder for the given model.
	// Returns ErrUnsupportedProvider for unknown provider names.
	EmbedderFor(model *core.EmbeddingModel) (Embedder, error)

	// RerankerFor returns a Reranker for the given reranker model.
	// Returns ErrUnsupportedProvider for unknown provider names.
	RerankerFor(model *core.RerankerModel) (Reranker, error)

	// Close releases resources held by the provider and its clients.
	Close() error
}
