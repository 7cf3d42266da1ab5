package embeddings

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/hybridq/internal/config"
)

func TestDimensionForModel(t *testing.T) {
	tests := map[string]int{
		"sentence-transformers/all-MiniLM-L6-v2": 384,
		"BAAI/bge-base-en-v1.5":                  768,
		"BAAI/bge-small-zh-v1.5":                 512,
		"intfloat/e5-large-v2":                   1024,
		"nomic-ai/nomic-embed-text-base":         768,
		"something-unknown":                      384,
	}
	for model, want := range tests {
		assert.Equal(t, want, dimensionForModel(model), model)
	}
}

func TestNewProvider_TEI(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Provider: "tei", BaseURL: "http://localhost:8080", Timeout: time.Second}, nil)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 384, p.Dimension())
	_, wrapped := p.(*timeoutProvider)
	assert.True(t, wrapped)
}

func TestNewProvider_Invalid(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "openai"}, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = NewProvider(ProviderConfig{Provider: "tei"}, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.Default().Embeddings)
	assert.Equal(t, "fastembed", cfg.Provider)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestWithTimeout_ZeroIsIdentity(t *testing.T) {
	p := &teiProvider{dimension: 3}
	assert.Same(t, Provider(p), WithTimeout(p, 0))
}
