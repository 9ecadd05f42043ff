package port

import "time"

// Catalog records committed knowledge base builds.
type Catalog interface {
	RecordBuild(rec BuildRecord) error

	Latest() (*BuildRecord, error)

	History(limit int) ([]BuildRecord, error)

	// CheckConfig reports whether configHash differs from the hash of the
	// configuration the latest build was made with.
	CheckConfig(configHash string) (stale bool, reason string, err error)

	Close() error
}

// BuildRecord describes one committed build.
type BuildRecord struct {
	ID           string    `json:"id"`
	BuiltAt      time.Time `json:"built_at"`
	Documents    int       `json:"documents"`
	Skipped      int       `json:"skipped"`
	Chunks       int       `json:"chunks"`
	Dimension    int       `json:"dimension"`
	Model        string    `json:"model"`
	ConfigHash   string    `json:"config_hash"`
	IndexPath    string    `json:"index_path"`
	MetadataPath string    `json:"metadata_path"`
}
