package port

import "mindkb/internal/domain"

// Chunker splits a document into provenance-tagged chunks.
type Chunker interface {
	Chunk(text string) []string

	ChunkDocument(doc domain.Document) []domain.Chunk
}
