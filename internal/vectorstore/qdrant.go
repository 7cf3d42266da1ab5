package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const qdrantTracerName = "hybridq.vectorstore.qdrant"

// pointNamespace derives stable point ids from chunk ids, so re-ingesting a
// file overwrites its earlier points.
var pointNamespace = uuid.MustParse("6f1d3c1e-6a59-4f5e-9d7a-2b1f3c0e9a41")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	Host string
	// Port is the gRPC port (6334), not the REST port.
	Port       int
	Collection string
	// VectorSize must match the embedder's output width.
	VectorSize uint64
	UseTLS     bool
	// MaxRetries applies to transient gRPC failures. Default 3.
	MaxRetries int
	// RetryBackoff doubles after each attempt. Default 500ms.
	RetryBackoff time.Duration
	// MaxMessageSize bounds gRPC messages. Default 50MB.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "documents"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	st, ok := status.FromError(err)
	if err == nil || !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore is a Store backed by a Qdrant server.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger
}

// NewQdrantStore connects, health-checks and creates the collection if missing.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if !cfg.UseTLS {
		logger.Warn("qdrant gRPC using plaintext", zap.String("host", cfg.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &QdrantStore{client: client, embedder: embedder, config: cfg, logger: logger}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(hctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}
	if err := s.ensureCollection(hctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant store initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("collection", cfg.Collection))
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	var exists bool
	err := s.retry(ctx, "collection_exists", func() error {
		info, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			exists = false
			return nil
		}
		if err != nil {
			return err
		}
		exists = info != nil
		return nil
	})
	if err != nil || exists {
		return err
	}

	return s.retry(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.config.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
}

// retry runs op with exponential backoff while it fails transiently.
func (s *QdrantStore) retry(ctx context.Context, name string, op func() error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s: %w", name, err)
		}
		if attempt >= s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, s.config.MaxRetries, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// PointID maps a document id to its Qdrant point id.
func PointID(docID string) string {
	if _, err := uuid.Parse(docID); err == nil {
		return docID
	}
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

// AddDocuments upserts docs. The original id is kept in the "id" payload field.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) (ids []string, err error) {
	ctx, span := otel.Tracer(qdrantTracerName).Start(ctx, "QdrantStore.AddDocuments")
	defer span.End()
	start := time.Now()
	defer func() {
		OperationDuration.WithLabelValues("qdrant", "add", resultLabel(err)).Observe(time.Since(start).Seconds())
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

	points := make([]*qdrant.PointStruct, len(docs))
	ids = make([]string, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: document %d has no id", ErrInvalidConfig, i)
		}
		ids[i] = d.ID
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(d.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload(d),
		}
	}

	err = s.retry(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	DocumentsAdded.WithLabelValues("qdrant").Add(float64(len(ids)))
	span.SetStatus(codes.Ok, "success")
	return ids, nil
}

func payload(d Document) map[string]*qdrant.Value {
	str := func(v string) *qdrant.Value {
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	}
	p := map[string]*qdrant.Value{"content": str(d.Content), "id": str(d.ID)}
	for k, v := range d.Metadata {
		switch val := v.(type) {
		case string:
			p[k] = str(val)
		case int:
			p[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			p[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
		case float64:
			p[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
		case bool:
			p[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
		default:
			p[k] = str(fmt.Sprint(val))
		}
	}
	return p
}

// Search embeds query and returns the k nearest points.
func (s *QdrantStore) Search(ctx context.Context, query string, k int) (results []SearchResult, err error) {
	ctx, span := otel.Tracer(qdrantTracerName).Start(ctx, "QdrantStore.Search")
	defer span.End()
	start := time.Now()
	defer func() {
		OperationDuration.WithLabelValues("qdrant", "search", resultLabel(err)).Observe(time.Since(start).Seconds())
	}()

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrEmbeddingFailed)
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	var points []*qdrant.ScoredPoint
	err = s.retry(ctx, "query", func() error {
		var err error
		points, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.Collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results = make([]SearchResult, len(points))
	for i, p := range points {
		results[i] = fromPayload(p.Payload)
		results[i].Score = p.Score
	}
	span.SetAttributes(attribute.Int("results_count", len(results)))
	return results, nil
}

func fromPayload(payload map[string]*qdrant.Value) SearchResult {
	r := SearchResult{Metadata: make(map[string]any, len(payload))}
	for k, v := range payload {
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			r.Metadata[k] = val.StringValue
			switch k {
			case "content":
				r.Content = val.StringValue
			case "id":
				r.ID = val.StringValue
			}
		case *qdrant.Value_IntegerValue:
			r.Metadata[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			r.Metadata[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			r.Metadata[k] = val.BoolValue
		}
	}
	return r
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	var n uint64
	err := s.retry(ctx, "count", func() error {
		var err error
		n, err = s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.config.Collection,
			Exact:          qdrant.PtrOf(true),
		})
		return err
	})
	return int(n), err
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ Store = (*QdrantStore)(nil)
