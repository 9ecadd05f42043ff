package port

import "mindkb/internal/domain"

// DocumentSource produces documents for a build. Per-item failures are
// returned alongside the documents that did load.
type DocumentSource interface {
	Load(root string) ([]domain.Document, []error, error)
}
