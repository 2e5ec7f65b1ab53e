// Package cache persists SampleResults keyed by a fingerprint of every
// input that can alter them, so repeated CRF probes at the same settings
// skip re-encoding and re-scoring entirely.
package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/finchav/crfscout/internal/xerrors"
)

const (
	bucketName   = "samples"
	schemaVersion = byte(1)
)

// Store is an embedded ordered key-value cache of SampleResults.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the cache database under dir. dir is
// typically $CACHE_DIR/<app>/.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.NewCacheError("could not create cache directory", err)
	}
	db, err := bbolt.Open(filepath.Join(dir, "cache.db"), 0o644, nil)
	if err != nil {
		return nil, xerrors.NewCacheError("could not open cache database", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, xerrors.NewCacheError("could not initialize cache bucket", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached Result for key, if present and of the current
// schema version. A corrupt or wrong-schema entry is treated as a miss
// rather than an error — the caller re-computes and overwrites it.
func (s *Store) Get(key Key) (Result, bool) {
	var result Result
	var found bool
	_ = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		raw := b.Get(key[:])
		if raw == nil {
			return nil
		}
		decoded, ok := decode(raw)
		if !ok {
			return nil
		}
		result, found = decoded, true
		return nil
	})
	if found {
		result.FromCache = true
	}
	return result, found
}

// Put persists result under key, overwriting any existing (including
// corrupt) entry.
func (s *Store) Put(key Key, result Result) error {
	raw := encode(result)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errors.New("cache bucket missing")
		}
		return b.Put(key[:], raw)
	})
	if err != nil {
		return xerrors.NewCacheError("could not persist sample result", err)
	}
	return nil
}

func encode(result Result) []byte {
	body, err := json.Marshal(result)
	if err != nil {
		// Result is always a plain value type; a marshal failure here would
		// be a programming error, not a runtime condition to recover from.
		panic(err)
	}
	return append([]byte{schemaVersion}, body...)
}

func decode(raw []byte) (Result, bool) {
	if len(raw) < 1 || raw[0] != schemaVersion {
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal(raw[1:], &result); err != nil {
		return Result{}, false
	}
	return result, true
}
