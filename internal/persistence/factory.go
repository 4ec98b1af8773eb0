package persistence

import (
	"context"
	"fmt"
	"path/filepath"
	"twincore/internal/infra/persistence/fs"
	"twincore/internal/infra/persistence/memory"
	"twincore/internal/infra/persistence/postgres"
	"twincore/internal/infra/persistence/s3"
	"twincore/internal/infra/persistence/sqlite"
)

// S3Options configures the s3 driver.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// Options selects and configures a backend.
type Options struct {
	Driver Driver
	// Dir is the project directory for the fs driver and the default
	// location of the sqlite file.
	Dir string
	// Project namespaces postgres rows and, without an explicit prefix, s3 keys.
	Project     string
	SQLitePath  string
	PostgresDSN string
	S3          S3Options
}

// Open constructs the backend named by opts.Driver (default fs).
func Open(ctx context.Context, opts Options) (Backend, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(opts.Dir)
	case DriverMemory:
		return memory.New(), nil
	case DriverSQLite:
		return sqlite.NewStore(sqlitePath(opts))
	case DriverPostgres:
		return postgres.NewStore(ctx, opts.PostgresDSN, projectName(opts))
	case DriverS3:
		prefix := opts.S3.Prefix
		if prefix == "" {
			prefix = projectName(opts)
		}
		return s3.New(ctx, s3.Config{
			Bucket:          opts.S3.Bucket,
			Region:          opts.S3.Region,
			Endpoint:        opts.S3.Endpoint,
			Prefix:          prefix,
			AccessKeyID:     opts.S3.AccessKeyID,
			SecretAccessKey: opts.S3.SecretAccessKey,
			PathStyle:       opts.S3.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown persistence driver %s", driver)
	}
}

// NewMemory returns an in-memory backend, mostly for tests.
func NewMemory() *memory.Store { return memory.New() }

func sqlitePath(opts Options) string {
	if opts.SQLitePath != "" {
		return opts.SQLitePath
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "project.db")
}

func projectName(opts Options) string {
	if opts.Project != "" {
		return opts.Project
	}
	if opts.Dir != "" {
		return filepath.Base(filepath.Clean(opts.Dir))
	}
	return "default"
}
