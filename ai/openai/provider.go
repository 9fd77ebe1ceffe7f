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

package openai

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/embedeval/ai"
	"github.com/poiesic/embedeval/core"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider names understood by this package.
const (
	ProviderOllama   = "ollama"
	ProviderLMStudio = "lmstudio"
	ProviderOpenAI   = "openai"
)

// Provider implements ai.Provider using Ollama and OpenAI-compatible services.
// Clients are built on first use and kept in a bounded LRU cache keyed by
// provider, URL and model name. Every client is wrapped in a circuit breaker.
type Provider struct {
	config    *ai.Config
	mu        sync.Mutex
	embedders *lru.Cache[string, ai.Embedder]
	rerankers *lru.Cache[string, ai.Reranker]
	pool      *ants.Pool
	logger    *slog.Logger
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a new AI provider.
// The config is validated and normalized before use.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	return newProvider(config)
}

func newProvider(config *ai.Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedders, err := lru.New[string, ai.Embedder](config.ClientCacheSize)
	if err != nil {
		return nil, err
	}
	rerankers, err := lru.New[string, ai.Reranker](config.ClientCacheSize)
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(config.RerankConcurrency)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:    config,
		embedders: embedders,
		rerankers: rerankers,
		pool:      pool,
		logger:    slog.Default().With("component", "ai-provider"),
	}, nil
}

// EmbedderFor returns a cached or newly built embedder for model.
func (p *Provider) EmbedderFor(model *core.EmbeddingModel) (ai.Embedder, error) {
	url, err := p.resolveURL(model.Provider, model.ProviderURL)
	if err != nil {
		return nil, err
	}
	key := cacheKey(model.Provider, url, model.Name)

	p.mu.Lock()
	defer p.mu.Unlock()

	if embedder, ok := p.embedders.Get(key); ok {
		return embedder, nil
	}

	var embedder *Embedder
	switch model.Provider {
	case ProviderOllama:
		client, err := ollama.New(ollama.WithServerURL(url), ollama.WithModel(model.Name))
		if err != nil {
			return nil, err
		}
		embedder, err = newEmbedder(client, model.Name, p.config.RequestTimeout)
		if err != nil {
			return nil, err
		}
	default:
		client, err := openai.New(
			openai.WithBaseURL(url),
			openai.WithToken(p.config.APIToken),
			openai.WithEmbeddingModel(model.Name),
		)
		if err != nil {
			return nil, err
		}
		embedder, err = newEmbedder(client, model.Name, p.config.RequestTimeout)
		if err != nil {
			return nil, err
		}
	}

	p.logger.Debug("created embedder", "provider", model.Provider, "url", url, "model", model.Name)
	wrapped := ai.NewBreakerEmbedder(key, embedder, p.config)
	p.embedders.Add(key, wrapped)
	return wrapped, nil
}

// RerankerFor returns a cached or newly built reranker for model.
func (p *Provider) RerankerFor(model *core.RerankerModel) (ai.Reranker, error) {
	url, err := p.resolveURL(model.Provider, model.ProviderURL)
	if err != nil {
		return nil, err
	}
	key := cacheKey(model.Provider, url, model.Name)

	p.mu.Lock()
	defer p.mu.Unlock()

	if reranker, ok := p.rerankers.Get(key); ok {
		return reranker, nil
	}

	var reranker *Reranker
	switch model.Provider {
	case ProviderOllama:
		client, err := ollama.New(ollama.WithServerURL(url), ollama.WithModel(model.Name))
		if err != nil {
			return nil, err
		}
		reranker = newReranker(client, p.pool, model.Name, p.config.RequestTimeout)
	default:
		client, err := openai.New(
			openai.WithBaseURL(url),
			openai.WithToken(p.config.APIToken),
			openai.WithModel(model.Name),
		)
		if err != nil {
			return nil, err
		}
		reranker = newReranker(client, p.pool, model.Name, p.config.RequestTimeout)
	}

	p.logger.Debug("created reranker", "provider", model.Provider, "url", url, "model", model.Name)
	wrapped := ai.NewBreakerReranker(key, reranker, p.config)
	p.rerankers.Add(key, wrapped)
	return wrapped, nil
}

// Close releases the scoring pool and drops cached clients.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	p.embedders.Purge()
	p.rerankers.Purge()
	p.pool.Release()
	return nil
}

// resolveURL returns the backend URL for a catalog entry, falling back to
// the configured host for its provider.
func (p *Provider) resolveURL(provider, url string) (string, error) {
	switch provider {
	case ProviderOllama:
		if url == "" {
			url = p.config.OllamaHost
		}
		return url, nil
	case ProviderLMStudio, ProviderOpenAI:
		if url == "" {
			url = p.config.OpenAIHost
		}
		return ai.NormalizeOpenAIHost(url), nil
	default:
		return "", fmt.Errorf("%w: %q", ai.ErrUnsupportedProvider, provider)
	}
}

func cacheKey(provider, url, model string) string {
	return provider + "|" + url + "|" + model
}
