// Package metastore holds the ordered chunk records that pair row-for-row
// with the vector index.
package metastore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"

	"mindkb/internal/domain"
)

const (
	formatName    = "mindkb-metadata"
	formatVersion = 1
)

// Store is an append-only ordered list of chunks. Record i describes vector
// row i. Like the vector index it is built single-threaded and then only read.
type Store struct {
	records []domain.Chunk
}

func New() *Store {
	return &Store{}
}

// Append adds a chunk and returns its row.
func (s *Store) Append(chunk domain.Chunk) int {
	s.records = append(s.records, chunk)
	return len(s.records) - 1
}

// Get returns the chunk at row.
func (s *Store) Get(row int) (domain.Chunk, error) {
	if row < 0 || row >= len(s.records) {
		return domain.Chunk{}, fmt.Errorf("%w: row %d of %d", domain.ErrRowOutOfRange, row, len(s.records))
	}
	return s.records[row], nil
}

func (s *Store) Len() int {
	return len(s.records)
}

// All returns the records in row order. The slice must not be modified.
func (s *Store) All() []domain.Chunk {
	return s.records
}

type envelope struct {
	Format  string         `json:"format"`
	Version int            `json:"version"`
	BuildID string         `json:"build_id"`
	Count   int            `json:"count"`
	Records []domain.Chunk `json:"records"`
}

// Save writes the store as one JSON document and fsyncs it.
func (s *Store) Save(path string, buildID uuid.UUID) (err error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close metadata file: %w", cerr)
		}
	}()

	records := s.records
	if records == nil {
		records = []domain.Chunk{}
	}

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(envelope{
		Format:  formatName,
		Version: formatVersion,
		BuildID: buildID.String(),
		Count:   len(records),
		Records: records,
	}); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync metadata file: %w", err)
	}
	return nil
}

// Load reads a store written by Save and returns it with its build id.
// A missing file is domain.ErrNotFound; anything unreadable is
// domain.ErrIndexCorruption.
func Load(path string) (*Store, uuid.UUID, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, uuid.Nil, fmt.Errorf("%w: metadata file %s", domain.ErrNotFound, path)
		}
		return nil, uuid.Nil, fmt.Errorf("read metadata file: %w", err)
	}

	s, id, err := decode(raw)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%w: %s: %v", domain.ErrIndexCorruption, path, err)
	}
	return s, id, nil
}

func decode(raw []byte) (*Store, uuid.UUID, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, uuid.Nil, err
	}
	if env.Format != formatName {
		return nil, uuid.Nil, fmt.Errorf("unexpected format %q", env.Format)
	}
	if env.Version != formatVersion {
		return nil, uuid.Nil, fmt.Errorf("unsupported version %d", env.Version)
	}
	if env.Count != len(env.Records) {
		return nil, uuid.Nil, fmt.Errorf("header declares %d records, found %d", env.Count, len(env.Records))
	}
	id, err := uuid.Parse(env.BuildID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("build id: %v", err)
	}

	seen := make(map[string]int, len(env.Records))
	for i, rec := range env.Records {
		if rec.Metadata.ChunkID == "" {
			return nil, uuid.Nil, fmt.Errorf("record %d has no chunk id", i)
		}
		if prev, dup := seen[rec.Metadata.ChunkID]; dup {
			return nil, uuid.Nil, fmt.Errorf("chunk id %q repeated at records %d and %d", rec.Metadata.ChunkID, prev, i)
		}
		seen[rec.Metadata.ChunkID] = i
	}

	return &Store{records: env.Records}, id, nil
}
