package vectorstore

// Document is one chunk to store.
type Document struct {
	ID      string
	Content string
	// Metadata values are flattened to strings by chromem.
	Metadata map[string]any
	// Embedding is optional; when empty the store embeds Content.
	Embedding []float32
}

// SearchResult is one stored document returned by Search.
type SearchResult struct {
	ID      string
	Content string
	// Score is the similarity score (higher = more similar).
	Score    float32
	Metadata map[string]any
}
