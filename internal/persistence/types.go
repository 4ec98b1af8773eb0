// Package persistence re-exports the backend abstraction and wires the
// concrete drivers, so the rest of the module never imports infra packages.
package persistence

import (
	"twincore/internal/persistence/core"
)

type (
	// Driver identifies a persistence backend driver.
	Driver = core.Driver
	// Backend is the interface entity stores and registries persist through.
	Backend = core.Backend
)

const (
	// DriverFilesystem is the project-directory driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverMemory is the in-memory driver.
	DriverMemory = core.DriverMemory
	// DriverSQLite is the embedded sqlite driver.
	DriverSQLite = core.DriverSQLite
	// DriverPostgres is the Postgres driver.
	DriverPostgres = core.DriverPostgres
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
)

// ErrBucketNotFound is returned by Backend.Load for a bucket never saved.
var ErrBucketNotFound = core.ErrBucketNotFound

// Drivers lists the supported drivers.
func Drivers() []Driver {
	return []Driver{DriverFilesystem, DriverMemory, DriverSQLite, DriverPostgres, DriverS3}
}
