// Package postgres provides a persistence backend that stores every bucket of
// a project as a JSONB row, so several projects can share one database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"twincore/internal/persistence/core"
	"twincore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the backend interface.
var _ core.Backend = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with the config defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/twincore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists buckets to Postgres, one row per (project, bucket).
type Store struct {
	db      *sql.DB
	project string
	mu      sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN)
// and ensures the state table exists. project namespaces the rows.
func NewStore(ctx context.Context, dsn, project string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	if project == "" {
		return nil, fmt.Errorf("postgres backend requires a project name")
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db, project: project}, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS twincore_state (
		project TEXT NOT NULL,
		bucket TEXT NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (project, bucket)
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

// Driver returns the backend driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverPostgres }

// Project returns the project namespace.
func (s *Store) Project() string { return s.project }

// Load selects the payload of bucket for this project.
func (s *Store) Load(ctx context.Context, bucket domain.Bucket) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM twincore_state WHERE project = $1 AND bucket = $2`, s.project, string(bucket)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", s.project, bucket, core.ErrBucketNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", bucket, err)
	}
	return payload, nil
}

// Save upserts the payload of bucket inside a transaction.
func (s *Store) Save(ctx context.Context, bucket domain.Bucket, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO twincore_state(project,bucket,payload) VALUES($1,$2,$3) ON CONFLICT(project,bucket) DO UPDATE SET payload=EXCLUDED.payload`, s.project, string(bucket), payload); err != nil {
		return fmt.Errorf("upsert %s: %w", bucket, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Exists reports whether bucket has a row for this project.
func (s *Store) Exists(ctx context.Context, bucket domain.Bucket) (bool, error) {
	_, err := s.Load(ctx, bucket)
	if errors.Is(err, core.ErrBucketNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
