// Package sqlite implements a persistence backend that keeps every bucket
// of a project as one row of an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"twincore/internal/persistence/core"
	"twincore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Store persists buckets to a single SQLite table as JSON blobs.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the SQLite file at path and ensures the state table exists.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "twincore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Driver returns the backend driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverSQLite }

// Load selects the payload row of bucket.
func (s *Store) Load(ctx context.Context, bucket domain.Bucket) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, string(bucket)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", bucket, core.ErrBucketNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", bucket, err)
	}
	return payload, nil
}

// Save upserts the payload row of bucket inside a transaction.
func (s *Store) Save(ctx context.Context, bucket domain.Bucket, payload []byte) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, string(bucket), payload); err != nil {
		retErr = fmt.Errorf("upsert %s: %w", bucket, err)
		return retErr
	}
	if err = tx.Commit(); err != nil {
		retErr = err
		return retErr
	}
	return nil
}

// Exists reports whether bucket has a row.
func (s *Store) Exists(ctx context.Context, bucket domain.Bucket) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM state WHERE bucket = ?`, string(bucket)).Scan(&n); err != nil {
		return false, fmt.Errorf("count %s: %w", bucket, err)
	}
	return n > 0, nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
