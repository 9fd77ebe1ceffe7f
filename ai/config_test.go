package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaHost)
	assert.Equal(t, "http://localhost:1234/v1", cfg.OpenAIHost)
	assert.Equal(t, "none", cfg.APIToken)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.RerankConcurrency)
	assert.Equal(t, uint32(5), cfg.BreakerFailures)
	assert.Equal(t, 16, cfg.ClientCacheSize)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with custom hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithOllamaHost("http://gpu:11434"),
			WithOpenAIHost("http://studio:1234/v1"),
		)

		assert.Equal(t, "http://gpu:11434", cfg.OllamaHost)
		assert.Equal(t, "http://studio:1234/v1", cfg.OpenAIHost)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithAPIToken("secret"),
			WithRequestTimeout(5*time.Second),
			WithRerankConcurrency(8),
			WithBreaker(2, time.Second),
			WithClientCacheSize(3),
		)

		assert.Equal(t, "secret", cfg.APIToken)
		assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 8, cfg.RerankConcurrency)
		assert.Equal(t, uint32(2), cfg.BreakerFailures)
		assert.Equal(t, time.Second, cfg.BreakerTimeout)
		assert.Equal(t, 3, cfg.ClientCacheSize)
	})
}

func TestNormalizeOpenAIHost(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"already normalized", "http://localhost:1234/v1", "http://localhost:1234/v1"},
		{"missing suffix", "http://localhost:1234", "http://localhost:1234/v1"},
		{"trailing slash", "http://localhost:1234/", "http://localhost:1234/v1"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeOpenAIHost(tt.host))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	t.Run("validate normalizes hosts", func(t *testing.T) {
		cfg := NewConfig(WithOpenAIHost("http://studio:1234"), WithOllamaHost("http://gpu:11434/"))
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://studio:1234/v1", cfg.OpenAIHost)
		assert.Equal(t, "http://gpu:11434", cfg.OllamaHost)
	})

	tests := []struct {
		name string
		opt  ConfigOption
		msg  string
	}{
		{"missing ollama host", WithOllamaHost(""), "OllamaHost is required"},
		{"missing openai host", WithOpenAIHost(""), "OpenAIHost is required"},
		{"zero timeout", WithRequestTimeout(0), "RequestTimeout"},
		{"zero concurrency", WithRerankConcurrency(0), "RerankConcurrency"},
		{"zero breaker failures", WithBreaker(0, time.Second), "BreakerFailures"},
		{"zero cache size", WithClientCacheSize(0), "ClientCacheSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(tt.opt).Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
