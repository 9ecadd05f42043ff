package domain

import (
	"errors"
	"fmt"
)

// Knowledge base errors. Callers branch on these with errors.Is.
var (
	// ErrIngestion marks a bad or empty document. The document is skipped,
	// the rest of the build continues.
	ErrIngestion = errors.New("ingestion error")

	// ErrEmbeddingFailure marks an unavailable model or a malformed vector.
	// It aborts the build it occurs in.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrIndexCorruption marks an index or metadata file that cannot be
	// trusted: undecodable, dimension mismatch, or index/metadata desync.
	ErrIndexCorruption = errors.New("index corruption")

	// ErrNotFound marks a knowledge base that was never built.
	ErrNotFound = errors.New("knowledge base not found")

	// ErrNotReady is returned when no knowledge base is loaded.
	ErrNotReady = errors.New("knowledge base not ready")

	// ErrInvalidVector marks a vector with the wrong length, a NaN/Inf
	// component, or zero norm.
	ErrInvalidVector = errors.New("invalid vector")

	// ErrRowOutOfRange marks a metadata lookup past the end of the store.
	ErrRowOutOfRange = errors.New("row out of range")
)

// DocumentError records why a document was skipped during a build,
// with enough context to retry just that document.
type DocumentError struct {
	Index  int
	Source string
	Err    error
}

func (e DocumentError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("document #%d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("document #%d (%s): %v", e.Index, e.Source, e.Err)
}

func (e DocumentError) Unwrap() error {
	return e.Err
}

// ChunkError ties an embedding failure to the chunk that caused it.
type ChunkError struct {
	ChunkID string
	Err     error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %s: %v", e.ChunkID, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}
