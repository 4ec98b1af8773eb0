// Package memory implements an in-memory persistence backend for tests and
// ephemeral projects.
package memory

import (
	"context"
	"fmt"
	"sync"
	"twincore/internal/persistence/core"
	"twincore/pkg/domain"
)

// Store implements core.Backend backed by process memory.
type Store struct {
	mu      sync.RWMutex
	buckets map[domain.Bucket][]byte
	saves   map[domain.Bucket]int
	failOn  map[domain.Bucket]error
}

// New returns an empty in-memory backend.
func New() *Store {
	return &Store{
		buckets: make(map[domain.Bucket][]byte),
		saves:   make(map[domain.Bucket]int),
		failOn:  make(map[domain.Bucket]error),
	}
}

// Driver returns the backend driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Load returns a copy of the stored payload.
func (s *Store) Load(_ context.Context, bucket domain.Bucket) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("%s: %w", bucket, core.ErrBucketNotFound)
	}
	return append([]byte(nil), b...), nil
}

// Save stores a copy of payload, or returns the error injected with FailSaves.
func (s *Store) Save(_ context.Context, bucket domain.Bucket, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[bucket]; err != nil {
		return err
	}
	s.buckets[bucket] = append([]byte(nil), payload...)
	s.saves[bucket]++
	return nil
}

// Exists reports whether bucket has been saved.
func (s *Store) Exists(_ context.Context, bucket domain.Bucket) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[bucket]
	return ok, nil
}

// Saves returns how many successful saves bucket has received.
func (s *Store) Saves(bucket domain.Bucket) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves[bucket]
}

// FailSaves makes every following Save of bucket return err; nil clears it.
func (s *Store) FailSaves(bucket domain.Bucket, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, bucket)
		return
	}
	s.failOn[bucket] = err
}
