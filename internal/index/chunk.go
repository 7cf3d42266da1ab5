package index

import (
	"strconv"
	"strings"
)

// Chunk is the unit of retrieval: a paragraph of one source document.
type Chunk struct {
	ID     string `json:"chunk_id"`
	Text   string `json:"text"`
	Source string `json:"source_file"`
}

// Document is raw text with the filename it came from.
type Document struct {
	Filename string
	Content  string
}

// ChunkID returns the deterministic id of the ordinal-th chunk of filename.
func ChunkID(filename string, ordinal int) string {
	return filename + "_" + strconv.Itoa(ordinal)
}

// SplitChunks splits content on blank lines into paragraph chunks.
//
// Whitespace-only paragraphs are dropped and ordinals stay contiguous over the
// chunks that remain. Content with text but no blank-line paragraphs becomes a
// single chunk.
func SplitChunks(filename, content string) []Chunk {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var chunks []Chunk
	for _, part := range strings.Split(content, "\n\n") {
		text := strings.TrimSpace(part)
		if text == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:     ChunkID(filename, len(chunks)),
			Text:   text,
			Source: filename,
		})
	}

	if len(chunks) == 0 {
		if text := strings.TrimSpace(content); text != "" {
			chunks = append(chunks, Chunk{ID: ChunkID(filename, 0), Text: text, Source: filename})
		}
	}
	return chunks
}
