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

// Package ai provides abstractions for the model backends an evaluation talks to.
//
// Two capabilities are needed: turning text into vectors (Embedder) and
// reordering retrieved candidates by relevance (Reranker). A Provider builds
// both from catalog entries, so the evaluation code only sees the interfaces.
//
// # Implementation Packages
//
//   - ai/openai: Production clients for Ollama and OpenAI-compatible servers
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and inspect call counts.
//
// # Resilience
//
// NewBreakerEmbedder and NewBreakerReranker wrap any implementation in a
// circuit breaker so a dead backend fails fast instead of stalling every
// remaining batch of a job.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	embedder, err := provider.EmbedderFor(model)
//	vectors, err := embedder.EmbedTexts(ctx, []string{"search_document: hello"})
package ai
