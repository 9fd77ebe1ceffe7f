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
	"errors"
	"strings"
	"time"
)

// Config holds configuration for AI backend clients.
// Catalog entries carry their own provider URL; the hosts here are the
// fallback used when an entry leaves ProviderURL empty.
type Config struct {
	// OllamaHost is the base URL of the Ollama server.
	// Example: "http://localhost:11434"
	OllamaHost string

	// OpenAIHost is the base URL of the OpenAI-compatible server (LM Studio, vLLM).
	// Example: "http://localhost:1234/v1"
	OpenAIHost string

	// APIToken is sent to OpenAI-compatible servers. Local servers accept any value.
	APIToken string

	// RequestTimeout bounds a single backend call.
	// Default: 60s
	RequestTimeout time.Duration

	// RerankConcurrency is the number of documents scored in parallel per query.
	// Default: 4
	RerankConcurrency int

	// BreakerFailures is the number of consecutive failures that opens a
	// backend's circuit breaker.
	// Default: 5
	BreakerFailures uint32

	// BreakerTimeout is how long an open breaker rejects calls before probing.
	// Default: 30s
	BreakerTimeout time.Duration

	// ClientCacheSize bounds the number of backend clients kept alive.
	// Default: 16
	ClientCacheSize int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithOllamaHost sets the Ollama server URL.
func WithOllamaHost(host string) ConfigOption {
	return func(c *Config) {
		c.OllamaHost = host
	}
}

// WithOpenAIHost sets the OpenAI-compatible server URL.
func WithOpenAIHost(host string) ConfigOption {
	return func(c *Config) {
		c.OpenAIHost = host
	}
}

// WithAPIToken sets the token sent to OpenAI-compatible servers.
func WithAPIToken(token string) ConfigOption {
	return func(c *Config) {
		c.APIToken = token
	}
}

// WithRequestTimeout sets the per-call timeout.
func WithRequestTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = d
	}
}

// WithRerankConcurrency sets how many documents are scored in parallel.
func WithRerankConcurrency(n int) ConfigOption {
	return func(c *Config) {
		c.RerankConcurrency = n
	}
}

// WithBreaker sets the circuit breaker trip threshold and open timeout.
func WithBreaker(failures uint32, timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.BreakerFailures = failures
		c.BreakerTimeout = timeout
	}
}

// WithClientCacheSize sets how many backend clients are cached.
func WithClientCacheSize(n int) ConfigOption {
	return func(c *Config) {
		c.ClientCacheSize = n
	}
}

// DefaultConfig returns a Config with sensible defaults for local services.
func DefaultConfig() *Config {
	return &Config{
		OllamaHost:        "http://localhost:11434",
		OpenAIHost:        "http://localhost:1234/v1",
		APIToken:          "none",
		RequestTimeout:    60 * time.Second,
		RerankConcurrency: 4,
		BreakerFailures:   5,
		BreakerTimeout:    30 * time.Second,
		ClientCacheSize:   16,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithOllamaHost("http://gpu-box:11434"),
//	    WithRerankConcurrency(8),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// NormalizeOpenAIHost adds the /v1 suffix required by OpenAI-compatible APIs
// when it is missing.
func NormalizeOpenAIHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Normalize ensures the configuration is in a canonical form.
func (c *Config) Normalize() {
	c.OpenAIHost = NormalizeOpenAIHost(c.OpenAIHost)
	c.OllamaHost = strings.TrimSuffix(c.OllamaHost, "/")
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.OllamaHost == "" {
		return errors.New("ai config: OllamaHost is required")
	}
	if c.OpenAIHost == "" {
		return errors.New("ai config: OpenAIHost is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("ai config: RequestTimeout must be positive")
	}
	if c.RerankConcurrency < 1 {
		return errors.New("ai config: RerankConcurrency must be at least 1")
	}
	if c.BreakerFailures < 1 {
		return errors.New("ai config: BreakerFailures must be at least 1")
	}
	if c.ClientCacheSize < 1 {
		return errors.New("ai config: ClientCacheSize must be at least 1")
	}
	return nil
}
