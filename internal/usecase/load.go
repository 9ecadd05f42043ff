package usecase

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"mindkb/internal/adapter/metastore"
	"mindkb/internal/adapter/vectorindex"
	"mindkb/internal/domain"
)

// Load opens a persisted knowledge base. If either file is missing the
// result is domain.ErrNotFound, whatever state the other file is in.
// Undecodable files, files from different builds, or an index and metadata
// of different sizes are domain.ErrIndexCorruption; no partial knowledge
// base is ever returned.
func Load(indexPath, metadataPath string) (*KnowledgeBase, error) {
	for _, p := range []string{indexPath, metadataPath} {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, p)
		}
	}

	index, indexID, err := vectorindex.Load(indexPath)
	if err != nil {
		return nil, err
	}
	meta, metaID, err := metastore.Load(metadataPath)
	if err != nil {
		return nil, err
	}

	if indexID != metaID {
		return nil, fmt.Errorf("%w: index belongs to build %s, metadata to build %s",
			domain.ErrIndexCorruption, indexID, metaID)
	}
	if index.Size() != meta.Len() {
		return nil, fmt.Errorf("%w: index has %d rows, metadata has %d records",
			domain.ErrIndexCorruption, index.Size(), meta.Len())
	}

	return &KnowledgeBase{BuildID: indexID, index: index, meta: meta}, nil
}
