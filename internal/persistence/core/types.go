// Package core defines the backend abstraction that entity stores and the
// connection registry persist through.
package core

import (
	"context"
	"errors"
	"twincore/pkg/domain"
)

// Driver identifies a concrete persistence backend implementation.
type Driver string

const (
	// DriverFilesystem stores each bucket as <bucket>.json in a project directory.
	DriverFilesystem Driver = "fs" // local filesystem (default)
	// DriverMemory keeps buckets in process memory.
	DriverMemory Driver = "memory" // in-memory (tests)
	// DriverSQLite stores buckets as rows of an embedded sqlite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores buckets as JSONB rows keyed by project.
	DriverPostgres Driver = "postgres"
	// DriverS3 stores buckets as objects under a project prefix.
	DriverS3 Driver = "s3" // S3 / MinIO compatible
)

// Backend reads and writes whole buckets. A Save replaces the previous
// payload completely; there is no partial update.
type Backend interface {
	// Load returns the stored payload. Returns ErrBucketNotFound if the bucket was never saved.
	Load(ctx context.Context, bucket domain.Bucket) ([]byte, error)
	// Save replaces the payload of bucket.
	Save(ctx context.Context, bucket domain.Bucket, payload []byte) error
	// Exists reports whether bucket has been saved.
	Exists(ctx context.Context, bucket domain.Bucket) (bool, error)
	// Driver returns the configured backend driver.
	Driver() Driver
	// Close releases connections held by the backend.
	Close() error
}

// ErrBucketNotFound is returned by Load when a bucket has never been saved.
var ErrBucketNotFound = errors.New("persistence: bucket not found")
