package port

import (
	"context"

	"mindkb/internal/domain"
)

// Retriever returns the top-k chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.Result, error)
}
