package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hybridq/internal/config"
)

// NewStore creates the store selected by cfg.Provider:
//   - "chromem" (default): embedded, persisted under cfg.Chromem.Path
//   - "qdrant": remote Qdrant over gRPC
//   - "none": NopStore
//
// dimension is the embedder's output width, used to create Qdrant collections.
func NewStore(ctx context.Context, cfg config.VectorStoreConfig, dimension int, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.Chromem.Path,
			Compress:   cfg.Chromem.Compress,
			Collection: cfg.Chromem.Collection,
		}, embedder, logger)

	case "qdrant":
		return NewQdrantStore(ctx, QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			Collection: cfg.Qdrant.Collection,
			UseTLS:     cfg.Qdrant.UseTLS,
			VectorSize: uint64(dimension),
		}, embedder, logger)

	case "none":
		return NopStore{}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: chromem, qdrant, none)", ErrInvalidConfig, cfg.Provider)
	}
}

// NopStore discards writes and finds nothing. AddDocuments reports no ids.
type NopStore struct{}

func (NopStore) AddDocuments(context.Context, []Document) ([]string, error) {
	return []string{}, nil
}

func (NopStore) Search(context.Context, string, int) ([]SearchResult, error) {
	return []SearchResult{}, nil
}

func (NopStore) Count(context.Context) (int, error) { return 0, nil }

func (NopStore) Close() error { return nil }
