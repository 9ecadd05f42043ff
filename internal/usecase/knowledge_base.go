package usecase

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"mindkb/internal/adapter/metastore"
	"mindkb/internal/adapter/vectorindex"
	"mindkb/internal/domain"
)

// KnowledgeBase is a vector index and its metadata store, aligned row for
// row. It is immutable once constructed and safe for concurrent queries.
type KnowledgeBase struct {
	BuildID uuid.UUID

	index *vectorindex.Flat
	meta  *metastore.Store
}

// assemble is the only place vectors and chunks enter a knowledge base. Each
// vector is paired with exactly one chunk in the same step; if the index
// rejects any vector, nothing is appended to either store.
func assemble(id uuid.UUID, dim int, chunks []domain.Chunk, vectors [][]float32) (*KnowledgeBase, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks but %d vectors", domain.ErrEmbeddingFailure, len(chunks), len(vectors))
	}

	index, err := vectorindex.New(dim)
	if err != nil {
		return nil, err
	}
	if err := index.Add(vectors); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)
	}

	meta := metastore.New()
	for _, c := range chunks {
		meta.Append(c)
	}

	return &KnowledgeBase{BuildID: id, index: index, meta: meta}, nil
}

// Size returns the number of chunks.
func (kb *KnowledgeBase) Size() int {
	return kb.meta.Len()
}

// Dimension returns the embedding dimension the knowledge base was built with.
func (kb *KnowledgeBase) Dimension() int {
	return kb.index.Dimension()
}

// Chunk returns the chunk stored at row.
func (kb *KnowledgeBase) Chunk(row int) (domain.Chunk, error) {
	return kb.meta.Get(row)
}

// Chunks returns every chunk in row order. The slice must not be modified.
func (kb *KnowledgeBase) Chunks() []domain.Chunk {
	return kb.meta.All()
}

// Verify checks the structural invariants of a loaded knowledge base: equal
// index and metadata sizes, unit-length stored vectors and unique chunk ids.
// Every violation is reported, each wrapping domain.ErrIndexCorruption.
func (kb *KnowledgeBase) Verify() error {
	var problems []error

	if kb.index.Size() != kb.meta.Len() {
		problems = append(problems, fmt.Errorf("%w: index has %d rows, metadata has %d records",
			domain.ErrIndexCorruption, kb.index.Size(), kb.meta.Len()))
	}

	for row := 0; row < kb.index.Size(); row++ {
		v, err := kb.index.Vector(row)
		if err != nil {
			problems = append(problems, err)
			break
		}
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if math.Abs(math.Sqrt(sum)-1) > 1e-3 {
			problems = append(problems, fmt.Errorf("%w: row %d has norm %.4f",
				domain.ErrIndexCorruption, row, math.Sqrt(sum)))
		}
	}

	seen := make(map[string]int, kb.meta.Len())
	for row, c := range kb.meta.All() {
		if prev, dup := seen[c.Metadata.ChunkID]; dup {
			problems = append(problems, fmt.Errorf("%w: chunk id %q at rows %d and %d",
				domain.ErrIndexCorruption, c.Metadata.ChunkID, prev, row))
			continue
		}
		seen[c.Metadata.ChunkID] = row
	}

	return errors.Join(problems...)
}
