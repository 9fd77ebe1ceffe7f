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
	"errors"
	"log/slog"

	"github.com/sony/gobreaker"
)

// BreakerEmbedder wraps an Embedder with circuit breaking logic.
type BreakerEmbedder struct {
	embedder Embedder
	cb       *gobreaker.CircuitBreaker
}

// BreakerReranker wraps a Reranker with circuit breaking logic.
type BreakerReranker struct {
	reranker Reranker
	cb       *gobreaker.CircuitBreaker
}

var (
	_ Embedder = (*BreakerEmbedder)(nil)
	_ Reranker = (*BreakerReranker)(nil)
)

func breakerSettings(name string, config *Config) gobreaker.Settings {
	logger := slog.Default().With("component", "breaker")
	failures := config.BreakerFailures
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Cancellation is the caller giving up, not the backend failing.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
}

// NewBreakerEmbedder wraps embedder in a circuit breaker named name.
func NewBreakerEmbedder(name string, embedder Embedder, config *Config) *BreakerEmbedder {
	return &BreakerEmbedder{
		embedder: embedder,
		cb:       gobreaker.NewCircuitBreaker(breakerSettings(name, config)),
	}
}

// EmbedText implements Embedder.
func (b *BreakerEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := b.cb.Execute(func() (interface{}, error) {
		return b.embedder.EmbedText(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return resp.([]float32), nil
}

// EmbedTexts implements Embedder.
func (b *BreakerEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := b.cb.Execute(func() (interface{}, error) {
		return b.embedder.EmbedTexts(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return resp.([][]float32), nil
}

// NewBreakerReranker wraps reranker in a circuit breaker named name.
func NewBreakerReranker(name string, reranker Reranker, config *Config) *BreakerReranker {
	return &BreakerReranker{
		reranker: reranker,
		cb:       gobreaker.NewCircuitBreaker(breakerSettings(name, config)),
	}
}

// Rerank implements Reranker.
func (b *BreakerReranker) Rerank(ctx context.Context, query string, documents []string) ([]int, error) {
	resp, err := b.cb.Execute(func() (interface{}, error) {
		return b.reranker.Rerank(ctx, query, documents)
	})
	if err != nil {
		return nil, err
	}
	return resp.([]int), nil
}
