// Package index holds the in-process document index: chunking, embedding,
// an append-only vector index with a parallel metadata list, similarity
// search and best-effort structured extraction from chunk text.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hybridq/internal/logging"
)

var (
	// ErrEmbedding indicates the embedding service failed. Nothing was indexed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndexAppend indicates vectors could not be appended. Nothing was indexed.
	ErrIndexAppend = errors.New("index append failed")

	// ErrDimensionMismatch indicates a vector width differs from the index width.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Embedder turns text into vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Hit is one search result.
type Hit struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float32 `json:"distance"`
	Rank     int     `json:"rank"`
}

// AddResult describes what one AddDocuments call appended.
type AddResult struct {
	ChunkIDs []string        `json:"chunk_ids"`
	Chunks   []Chunk         `json:"-"`
	Vectors  [][]float32     `json:"-"`
	Rows     []StructuredRow `json:"structured_rows"`
}

// Indexer owns a vector index and the chunk metadata at the same positions.
// Vectors and metadata always change together under mu.
type Indexer struct {
	embedder Embedder
	logger   *logging.Logger

	mu     sync.RWMutex
	vecs   VectorIndex
	chunks []Chunk
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithVectorIndex replaces the default flat index.
func WithVectorIndex(v VectorIndex) Option {
	return func(ix *Indexer) { ix.vecs = v }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// New creates an empty Indexer.
func New(embedder Embedder, opts ...Option) *Indexer {
	ix := &Indexer{
		embedder: embedder,
		logger:   logging.NewNop(),
		vecs:     NewFlatL2(0),
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.logger = ix.logger.Named("index")
	return ix
}

// Len returns the number of indexed chunks.
func (ix *Indexer) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Dimension returns the vector width, or zero before the first append.
func (ix *Indexer) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.vecs.Dimension()
}

// Chunk returns the metadata at position i.
func (ix *Indexer) Chunk(i int) (Chunk, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if i < 0 || i >= len(ix.chunks) {
		return Chunk{}, false
	}
	return ix.chunks[i], true
}

// AddDocuments chunks, embeds and appends docs.
//
// All chunk texts are embedded in one batch. On any error nothing is appended.
func (ix *Indexer) AddDocuments(ctx context.Context, docs []Document) (*AddResult, error) {
	ctx, span := otel.Tracer("hybridq/index").Start(ctx, "index.AddDocuments")
	defer span.End()

	var chunks []Chunk
	for _, d := range docs {
		chunks = append(chunks, SplitChunks(d.Filename, d.Content)...)
	}
	span.SetAttributes(attribute.Int("index.documents", len(docs)), attribute.Int("index.chunks", len(chunks)))

	res := &AddResult{ChunkIDs: []string{}, Chunks: []Chunk{}, Rows: []StructuredRow{}}
	if len(chunks) == 0 {
		return res, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		err := fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedding, len(vectors), len(chunks))
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, err
	}

	if err := ix.append(vectors, chunks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return nil, err
	}

	for _, c := range chunks {
		res.ChunkIDs = append(res.ChunkIDs, c.ID)
		res.Rows = append(res.Rows, ExtractStructuredRows(c.Text)...)
	}
	res.Chunks = chunks
	res.Vectors = vectors

	ix.logger.Info(ctx, "documents indexed",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("structured_rows", len(res.Rows)))
	return res, nil
}

func (ix *Indexer) append(vectors [][]float32, chunks []Chunk) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.vecs.Add(vectors); err != nil {
		return fmt.Errorf("%w: %w", ErrIndexAppend, err)
	}
	ix.chunks = append(ix.chunks, chunks...)
	return nil
}

// Search returns the k chunks nearest to query. An empty index yields an
// empty result and no error.
func (ix *Indexer) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	ctx, span := otel.Tracer("hybridq/index").Start(ctx, "index.Search")
	defer span.End()

	if ix.Len() == 0 || k <= 0 {
		return []Hit{}, nil
	}

	qv, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if n := len(ix.chunks); k > n {
		k = n
	}
	neighbors, err := ix.vecs.Search(qv, k)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	hits := make([]Hit, 0, len(neighbors))
	for _, nb := range neighbors {
		if nb.Position < 0 || nb.Position >= len(ix.chunks) {
			continue
		}
		hits = append(hits, Hit{
			Chunk:    ix.chunks[nb.Position],
			Distance: nb.Distance,
			Rank:     len(hits) + 1,
		})
	}
	span.SetAttributes(attribute.Int("index.hits", len(hits)))
	return hits, nil
}
