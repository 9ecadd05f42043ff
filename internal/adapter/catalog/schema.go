package catalog

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the catalog schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

// SchemaInfo stores schema version and the hash of the configuration the
// latest build was made with.
type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
}

// GetSchemaInfo retrieves the current schema info from the catalog.
func (c *BoltCatalog) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if data := b.Get(keySchemaVersion); data != nil {
			if err := json.Unmarshal(data, &info.Version); err != nil {
				return fmt.Errorf("decode schema version: %w", err)
			}
		}
		if data := b.Get(keyConfigHash); data != nil {
			info.ConfigHash = string(data)
		}
		return nil
	})
	return &info, err
}

// migrate upgrades an older catalog in place. A catalog written by a newer
// schema is left untouched and reported by CheckConfig.
func (c *BoltCatalog) migrate() error {
	info, err := c.GetSchemaInfo()
	if err != nil {
		return err
	}
	if info.Version >= CurrentSchemaVersion {
		return nil
	}

	for v := info.Version; v < CurrentSchemaVersion; v++ {
		if err := c.runMigration(v, v+1); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(CurrentSchemaVersion)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keySchemaVersion, data)
	})
}

func (c *BoltCatalog) runMigration(from, to int) error {
	switch {
	case from == 0 && to == 1:
		// fresh catalog: buckets are created on open
		return nil
	default:
		return nil
	}
}

// CheckConfig reports whether a rebuild is recommended: the catalog was
// written by a newer schema, or configHash differs from the configuration
// of the latest recorded build. An empty catalog is never stale.
func (c *BoltCatalog) CheckConfig(configHash string) (bool, string, error) {
	info, err := c.GetSchemaInfo()
	if err != nil {
		return false, "", fmt.Errorf("failed to get schema info: %w", err)
	}

	if info.Version > CurrentSchemaVersion {
		return true, fmt.Sprintf("catalog created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion), nil
	}
	if info.ConfigHash != "" && info.ConfigHash != configHash {
		return true, "knowledge base configuration changed since the last build", nil
	}
	return false, "", nil
}
