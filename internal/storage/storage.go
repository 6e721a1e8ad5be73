// Package storage provides persistent storage for the loan scorer.
// It uses BoltDB as the underlying storage engine to keep the trained artifact
// blobs and the history of evaluation runs.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DBFile is the database file name under the data path.
	DBFile = "artifacts.db"

	artifactsBucket   = "artifacts"
	evaluationsBucket = "evaluations"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("not found")

// Store provides persistent storage using BoltDB.
type Store struct {
	db *bbolt.DB
}

// Options controls how the database is opened.
type Options struct {
	ReadOnly bool
}

// New opens (creating if needed) the database under dataPath.
func New(dataPath string) (*Store, error) {
	return Open(dataPath, Options{})
}

// Open opens the database under dataPath with opts. A read-only store never
// creates the data path, the file or its buckets.
func Open(dataPath string, opts Options) (*Store, error) {
	if !opts.ReadOnly {
		if err := os.MkdirAll(dataPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data path: %w", err)
		}
	}
	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if !opts.ReadOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			if _, err := tx.CreateBucketIfNotExists([]byte(artifactsBucket)); err != nil {
				return fmt.Errorf("create artifacts bucket: %w", err)
			}
			if _, err := tx.CreateBucketIfNotExists([]byte(evaluationsBucket)); err != nil {
				return fmt.Errorf("create evaluations bucket: %w", err)
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores an artifact blob under key, replacing any previous value.
func (s *Store) Put(key string, value []byte) error {
	if key == "" {
		return errors.New("empty artifact key")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(artifactsBucket)).Put([]byte(key), value)
	})
}

// Get returns a copy of the artifact blob stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(artifactsBucket))
		if b == nil {
			return fmt.Errorf("artifact %q: %w", key, ErrNotFound)
		}
		v := b.Get([]byte(key))
		if v == nil {
			return fmt.Errorf("artifact %q: %w", key, ErrNotFound)
		}
		// values are only valid for the life of the transaction
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// Keys lists the stored artifact keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(artifactsBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	sort.Strings(keys)
	return keys, err
}

// ModTime returns the modification time of the database file.
func (s *Store) ModTime() (time.Time, error) {
	info, err := os.Stat(s.db.Path())
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
