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

// Package openai provides model backend clients built on langchaingo.
//
// Three provider names are understood: "ollama" talks to the Ollama API,
// while "lmstudio" and "openai" talk to OpenAI-compatible servers. Embedding
// uses the backend's embedding endpoint. Reranking asks a chat model for a
// 0-10 relevance score per document and orders documents by that score.
//
// # Usage
//
//	provider, err := openai.NewProvider(ai.NewConfig(
//	    ai.WithOllamaHost("http://localhost:11434"),
//	))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	embedder, err := provider.EmbedderFor(model)
//	reranker, err := provider.RerankerFor(rerankerModel)
package openai
