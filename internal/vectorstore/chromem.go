package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const chromemTracerName = "hybridq.vectorstore.chromem"

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the persistence directory. A leading ~ is expanded.
	Path string
	// Compress gzips the persisted files.
	Compress   bool
	Collection string
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "./chroma_db"
	}
	if c.Collection == "" {
		c.Collection = "documents"
	}
}

// ChromemStore is a Store persisted to a local directory.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
	config     ChromemConfig
	logger     *zap.Logger
}

// NewChromemStore opens or creates the database under cfg.Path.
func NewChromemStore(cfg ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := ValidateCollectionName(cfg.Collection); err != nil {
		return nil, err
	}

	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	s := &ChromemStore{db: db, embedder: embedder, config: cfg, logger: logger}

	// chromem falls back to OpenAI when no embedding func is given
	s.collection, err = db.GetOrCreateCollection(cfg.Collection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", cfg.Collection, err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", path),
		zap.String("collection", cfg.Collection),
		zap.Int("documents", s.collection.Count()))
	return s, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// AddDocuments upserts docs into the collection.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) (ids []string, err error) {
	ctx, span := otel.Tracer(chromemTracerName).Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()
	start := time.Now()
	defer func() {
		OperationDuration.WithLabelValues("chromem", "add", resultLabel(err)).Observe(time.Since(start).Seconds())
	}()

	span.SetAttributes(
		attribute.Int("document_count", len(docs)),
		attribute.String("collection", s.config.Collection))

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	vectors, err := embedMissing(ctx, s.embedder, docs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]chromem.Document, len(docs))
	ids = make([]string, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: document %d has no id", ErrInvalidConfig, i)
		}
		ids[i] = d.ID
		out[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  stringMetadata(d.Metadata),
			Embedding: vectors[i],
		}
	}

	// embeddings are precomputed, so one worker is enough
	if err := s.collection.AddDocuments(ctx, out, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	DocumentsAdded.WithLabelValues("chromem").Add(float64(len(ids)))
	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("added documents to chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(ids)))
	return ids, nil
}

// Search runs a similarity query against the collection.
func (s *ChromemStore) Search(ctx context.Context, query string, k int) (results []SearchResult, err error) {
	ctx, span := otel.Tracer(chromemTracerName).Start(ctx, "ChromemStore.Search")
	defer span.End()
	start := time.Now()
	defer func() {
		OperationDuration.WithLabelValues("chromem", "search", resultLabel(err)).Observe(time.Since(start).Seconds())
	}()

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	// chromem requires nResults <= document count
	n := s.collection.Count()
	if n == 0 {
		return []SearchResult{}, nil
	}
	if k > n {
		k = n
	}

	res, err := s.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	results = make([]SearchResult, len(res))
	for i, r := range res {
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		results[i] = SearchResult{ID: r.ID, Content: r.Content, Score: r.Similarity, Metadata: meta}
	}
	span.SetAttributes(attribute.Int("results_count", len(results)))
	return results, nil
}

// Count returns the number of stored documents.
func (s *ChromemStore) Count(context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed")
	return nil
}

func stringMetadata(metadata map[string]any) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

var _ Store = (*ChromemStore)(nil)
