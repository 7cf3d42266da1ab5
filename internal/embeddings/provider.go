package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hybridq/internal/config"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"

// Provider generates embeddings.
type Provider interface {
	// EmbedDocuments returns one vector per text, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is "fastembed" or "tei".
	Provider string
	Model    string
	// BaseURL is the TEI URL.
	BaseURL string
	// CacheDir is the FastEmbed model cache directory.
	CacheDir string
	// Timeout bounds each embedding call. Zero means no limit.
	Timeout time.Duration
}

// FromSettings converts the config file section.
func FromSettings(s config.EmbeddingsConfig) ProviderConfig {
	return ProviderConfig{
		Provider: s.Provider,
		Model:    s.Model,
		BaseURL:  s.BaseURL,
		CacheDir: s.CacheDir,
		Timeout:  s.Timeout.Duration(),
	}
}

// knownDimensions lists output widths of supported models.
var knownDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

// dimensionForModel returns the embedding width of model, guessing from its
// name when unknown.
func dimensionForModel(model string) int {
	if dim, ok := knownDimensions[model]; ok {
		return dim
	}
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "large"):
		return 1024
	case strings.Contains(m, "base"):
		return 768
	default:
		return 384
	}
}

// NewProvider creates the configured provider, wrapped with cfg.Timeout.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "fastembed", "":
		p, err = NewFastEmbedProvider(FastEmbedConfig{Model: cfg.Model, CacheDir: cfg.CacheDir})
	case "tei":
		var svc *Service
		svc, err = NewService(Config{BaseURL: cfg.BaseURL, Model: cfg.Model}, logger)
		if err == nil {
			p = &teiProvider{Service: svc, dimension: dimensionForModel(cfg.Model)}
		}
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimension", p.Dimension()))
	return WithTimeout(p, cfg.Timeout), nil
}

// teiProvider wraps Service to implement Provider.
type teiProvider struct {
	*Service
	dimension int
}

func (t *teiProvider) Dimension() int { return t.dimension }

// Close is a no-op; TEI is reached over HTTP.
func (t *teiProvider) Close() error { return nil }

// WithTimeout bounds every call to p by d. A non-positive d returns p.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &timeoutProvider{Provider: p, timeout: d}
}

type timeoutProvider struct {
	Provider
	timeout time.Duration
}

func (t *timeoutProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Provider.EmbedDocuments(ctx, texts)
}

func (t *timeoutProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Provider.EmbedQuery(ctx, text)
}
