// Package vectorstore mirrors indexed chunks into a persistent vector
// database so they survive process restarts.
//
// Two backends are supported: chromem-go, embedded and persisted to a local
// directory, and Qdrant over gRPC. Both are addressed by collection name.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is a persistent vector collection.
type Store interface {
	// AddDocuments upserts docs and returns their ids. Documents that already
	// carry an Embedding are stored as is; the rest are embedded in one batch.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns up to k documents most similar to query.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	Close() error
}

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName rejects names outside ^[a-z0-9_]{1,64}$.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// embedMissing fills in embeddings for documents that lack one.
func embedMissing(ctx context.Context, embedder Embedder, docs []Document) ([][]float32, error) {
	vectors := make([][]float32, len(docs))
	var (
		texts []string
		slots []int
	)
	for i, d := range docs {
		if len(d.Embedding) > 0 {
			vectors[i] = d.Embedding
			continue
		}
		texts = append(texts, d.Content)
		slots = append(slots, i)
	}
	if len(texts) == 0 {
		return vectors, nil
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", ErrEmbeddingFailed)
	}

	embs, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(embs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(embs), len(texts))
	}
	for j, i := range slots {
		vectors[i] = embs[j]
	}
	return vectors, nil
}
