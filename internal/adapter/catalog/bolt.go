// Package catalog keeps a bbolt-backed history of committed knowledge base
// builds.
package catalog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"mindkb/internal/domain"
	"mindkb/internal/port"
)

var (
	bucketBuilds = []byte("builds")
	bucketMeta   = []byte("meta")
)

type BoltCatalog struct {
	db *bbolt.DB
}

var _ port.Catalog = (*BoltCatalog)(nil)

// Open opens or creates the catalog at path and brings its schema up to date.
func Open(path string) (*BoltCatalog, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketBuilds, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &BoltCatalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *BoltCatalog) Close() error {
	return c.db.Close()
}

// RecordBuild appends rec to the history and makes it the latest build.
func (c *BoltCatalog) RecordBuild(rec port.BuildRecord) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBuilds)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyConfigHash, []byte(rec.ConfigHash))
	})
}

// Latest returns the most recent build, or domain.ErrNotFound when none
// has been recorded.
func (c *BoltCatalog) Latest() (*port.BuildRecord, error) {
	recs, err := c.History(1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no builds recorded", domain.ErrNotFound)
	}
	return &recs[0], nil
}

// History returns up to limit builds, newest first. limit <= 0 returns all.
func (c *BoltCatalog) History(limit int) ([]port.BuildRecord, error) {
	var recs []port.BuildRecord
	err := c.db.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(bucketBuilds).Cursor()
		for k, v := cur.Last(); k != nil; k, v = cur.Prev() {
			if limit > 0 && len(recs) >= limit {
				break
			}
			var rec port.BuildRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode build %d: %w", binary.BigEndian.Uint64(k), err)
			}
			recs = append(recs, rec)
		}
		return nil
	})
	return recs, err
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
