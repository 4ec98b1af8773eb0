// Package fs implements a persistence backend on a project directory: one
// <bucket>.json file per bucket.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"twincore/internal/persistence/core"
	"twincore/pkg/domain"
)

// Store implements core.Backend on the local filesystem. Each Save writes a
// temp file in the project directory, syncs it and renames it over the
// bucket file, so a crash never leaves a half-written bucket behind.
type Store struct {
	root string
}

// New returns a filesystem backend rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "./project"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create project dir: %w", err)
	}
	return &Store{root: dir}, nil
}

// Driver returns the backend driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the project directory.
func (s *Store) Root() string { return s.root }

// Close is a no-op; the filesystem backend holds no handles between calls.
func (s *Store) Close() error { return nil }

// sanitizeBucket forbids path separators and traversal in bucket names.
func sanitizeBucket(bucket domain.Bucket) (string, error) {
	name := string(bucket)
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty bucket")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid bucket %q", name)
	}
	return name, nil
}

func (s *Store) pathFor(bucket domain.Bucket) (string, error) {
	name, err := sanitizeBucket(bucket)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, name+".json"), nil
}

// Load reads <bucket>.json.
func (s *Store) Load(_ context.Context, bucket domain.Bucket) ([]byte, error) {
	path, err := s.pathFor(bucket)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, core.ErrBucketNotFound)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Save replaces <bucket>.json with payload, re-indented for readability.
func (s *Store) Save(_ context.Context, bucket domain.Bucket, payload []byte) error {
	path, err := s.pathFor(bucket)
	if err != nil {
		return err
	}
	data, err := indent(payload)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// atomically move into place
	return os.Rename(tmp.Name(), path)
}

// Exists reports whether <bucket>.json is present.
func (s *Store) Exists(_ context.Context, bucket domain.Bucket) (bool, error) {
	path, err := s.pathFor(bucket)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// isolate json usage to allow tests to force failures.
var jsonIndent = func(dst *bytes.Buffer, src []byte) error { return json.Indent(dst, src, "", "  ") }

func indent(payload []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := jsonIndent(&out, payload); err != nil {
		return nil, fmt.Errorf("indent payload: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
