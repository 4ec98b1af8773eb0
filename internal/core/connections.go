package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"twincore/internal/persistence"
	"twincore/pkg/domain"

	"go.uber.org/zap"
)

// ConnectionRegistry holds the typed connections of a project in insertion
// order. Endpoints are weak references and are never validated against a
// store.
type ConnectionRegistry struct {
	mu          sync.Mutex
	backend     persistence.Backend
	opts        options
	log         *zap.Logger
	connections []domain.Connection
}

// ConnectionLoadReport summarizes a registry Load.
type ConnectionLoadReport struct {
	Connections int  `json:"connections"`
	Missing     bool `json:"missing"`
	// AssignedIDs counts records that had no uuid and received one.
	AssignedIDs int `json:"assigned_ids"`
	// Nonconforming lists ids whose type token or label would be rejected by
	// Add. They are kept as stored.
	Nonconforming []string `json:"nonconforming,omitempty"`
}

// NewConnectionRegistry returns an empty registry persisting to the
// connections bucket of backend.
func NewConnectionRegistry(backend persistence.Backend, opts ...Option) (*ConnectionRegistry, error) {
	if backend == nil {
		return nil, domain.ErrInvalidArgument
	}
	o := newOptions(opts)
	return &ConnectionRegistry{
		backend: backend,
		opts:    o,
		log:     o.logger.With(zap.String("bucket", string(domain.BucketConnections))),
	}, nil
}

func (r *ConnectionRegistry) mutate(ctx context.Context, op string, fn func(next []domain.Connection) ([]domain.Connection, bool, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.observe(ctx, string(domain.BucketConnections)+"."+op, func(ctx context.Context) error {
		next, changed, err := fn(append([]domain.Connection(nil), r.connections...))
		if err != nil || !changed {
			return err
		}
		if err := r.persist(ctx, next); err != nil {
			r.log.Error("persist failed", zap.String("op", op), zap.Error(err))
			return err
		}
		r.connections = next
		return nil
	})
}

func (r *ConnectionRegistry) persist(ctx context.Context, list []domain.Connection) error {
	if list == nil {
		list = []domain.Connection{}
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return &domain.PersistenceError{Bucket: string(domain.BucketConnections), Op: "encode", Err: err}
	}
	if err := r.backend.Save(ctx, domain.BucketConnections, payload); err != nil {
		return &domain.PersistenceError{Bucket: string(domain.BucketConnections), Op: "save", Err: err}
	}
	r.log.Debug("persisted", zap.Int("connections", len(list)))
	return nil
}

// Add validates and appends a connection. Type tokens are matched case
// insensitively; an empty label of a catalogue token is filled in.
func (r *ConnectionRegistry) Add(ctx context.Context, source, typeID, typeLabel, target, description string) (domain.Connection, error) {
	if err := domain.ValidateEndpoints(source, target); err != nil {
		return domain.Connection{}, err
	}
	typeID = strings.ToUpper(strings.TrimSpace(typeID))
	label, err := domain.ResolveConnectionLabel(typeID, typeLabel)
	if err != nil {
		return domain.Connection{}, err
	}
	conn := domain.Connection{
		ID:          r.opts.newID(),
		Source:      source,
		TypeID:      typeID,
		TypeLabel:   label,
		Target:      target,
		Description: description,
	}
	err = r.mutate(ctx, "add", func(next []domain.Connection) ([]domain.Connection, bool, error) {
		return append(next, conn), true, nil
	})
	if err != nil {
		return domain.Connection{}, err
	}
	r.log.Debug("connection added", zap.String("id", conn.ID), zap.String("source", source), zap.String("target", target), zap.String("type", typeID))
	return conn, nil
}

// ListByEndpoint returns the connections where code plays role, in
// insertion order.
func (r *ConnectionRegistry) ListByEndpoint(code string, role domain.Role) []domain.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Connection, 0)
	for _, c := range r.connections {
		if c.Matches(code, role) {
			out = append(out, c)
		}
	}
	return out
}

// Remove deletes the connection with id and reports whether it existed.
func (r *ConnectionRegistry) Remove(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := r.mutate(ctx, "remove", func(next []domain.Connection) ([]domain.Connection, bool, error) {
		kept := next[:0]
		for _, c := range next {
			if c.ID == id {
				removed = true
				continue
			}
			kept = append(kept, c)
		}
		return kept, removed, nil
	})
	return removed && err == nil, err
}

// RemoveWhere deletes every connection matching pred and returns them.
func (r *ConnectionRegistry) RemoveWhere(ctx context.Context, pred func(domain.Connection) bool) ([]domain.Connection, error) {
	var removed []domain.Connection
	err := r.mutate(ctx, "remove", func(next []domain.Connection) ([]domain.Connection, bool, error) {
		kept := next[:0]
		for _, c := range next {
			if pred(c) {
				removed = append(removed, c)
				continue
			}
			kept = append(kept, c)
		}
		return kept, len(removed) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Get returns the connection with id.
func (r *ConnectionRegistry) Get(id string) (domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.connections {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Connection{}, false
}

// List returns every connection in insertion order.
func (r *ConnectionRegistry) List() []domain.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Connection{}, r.connections...)
}

// Len returns the number of connections.
func (r *ConnectionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}

// Save persists the registry unchanged.
func (r *ConnectionRegistry) Save(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.observe(ctx, string(domain.BucketConnections)+".save", func(ctx context.Context) error {
		return r.persist(ctx, r.connections)
	})
}

// Load replaces the registry with the persisted bucket. A bucket that was
// never saved loads as empty.
func (r *ConnectionRegistry) Load(ctx context.Context) (ConnectionLoadReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var report ConnectionLoadReport
	err := r.opts.observe(ctx, string(domain.BucketConnections)+".load", func(ctx context.Context) error {
		payload, err := r.backend.Load(ctx, domain.BucketConnections)
		if errors.Is(err, persistence.ErrBucketNotFound) {
			r.connections = nil
			report = ConnectionLoadReport{Missing: true}
			return nil
		}
		if err != nil {
			return &domain.PersistenceError{Bucket: string(domain.BucketConnections), Op: "load", Err: err}
		}
		var list []domain.Connection
		if err := json.Unmarshal(payload, &list); err != nil {
			return &domain.PersistenceError{Bucket: string(domain.BucketConnections), Op: "decode", Err: err}
		}
		report = ConnectionLoadReport{Connections: len(list)}
		for i := range list {
			if list[i].ID == "" {
				list[i].ID = r.opts.newID()
				report.AssignedIDs++
			}
			if _, err := domain.ResolveConnectionLabel(list[i].TypeID, list[i].TypeLabel); err != nil {
				report.Nonconforming = append(report.Nonconforming, list[i].ID)
			}
		}
		r.connections = list
		return nil
	})
	if err != nil {
		return ConnectionLoadReport{}, err
	}
	for _, id := range report.Nonconforming {
		r.log.Warn("nonconforming connection type", zap.String("id", id))
	}
	return report, nil
}
