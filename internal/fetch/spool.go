package fetch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"

	"github.com/tributary-data/tributary/internal/errors"
)

// Spool is a local on-disk cache of fetched objects, snappy-compressed and
// keyed by object key. Re-running a backfill over the same hours skips the
// network entirely. Entries are never evicted; backfill working sets are
// bounded by the time window.
type Spool struct {
	dir string
}

// NewSpool creates a spool rooted at dir, creating it if needed.
func NewSpool(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewInternalError("failed to create spool dir", err)
	}
	return &Spool{dir: dir}, nil
}

// Get returns the cached object contents and whether the key was present.
func (s *Spool) Get(bucket, key string) ([]byte, bool, error) {
	compressed, err := os.ReadFile(s.path(bucket, key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewInternalError("failed to read spool entry", err)
	}

	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		// A corrupt entry is treated as a miss; the fetcher rewrites it.
		return nil, false, nil
	}
	return data, true, nil
}

// Put stores one object's contents in the spool.
func (s *Spool) Put(bucket, key string, data []byte) error {
	compressed := snappy.Encode(nil, data)
	if err := os.WriteFile(s.path(bucket, key), compressed, 0644); err != nil {
		return errors.NewInternalError("failed to write spool entry", err)
	}
	return nil
}

func (s *Spool) path(bucket, key string) string {
	name := bucket + "_" + strings.ReplaceAll(key, "/", "_") + ".snappy"
	return filepath.Join(s.dir, name)
}
