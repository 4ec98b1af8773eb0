package core

import (
	"context"
	"errors"
	"fmt"
	"twincore/internal/persistence"
	"twincore/pkg/domain"

	"go.uber.org/zap"
)

// Project groups the stores and the connection registry persisted in one
// backend namespace. Writes spanning two of them are not atomic.
type Project struct {
	backend            persistence.Backend
	opts               options
	log                *zap.Logger
	Systems            *EntityStore
	Technologies       *EntityStore
	ConnectionElements *EntityStore
	Connections        *ConnectionRegistry
	resolver           *Resolver
	behaviors          *BehaviorRegistry
}

// ProjectLoadReport collects the load reports of every resource.
type ProjectLoadReport struct {
	Systems            LoadReport           `json:"systems"`
	Technologies       LoadReport           `json:"technologies"`
	ConnectionElements LoadReport           `json:"connection_elements"`
	Connections        ConnectionLoadReport `json:"connections"`
}

// Repairs returns every entity repair across stores.
func (r ProjectLoadReport) Repairs() []Repair {
	var out []Repair
	out = append(out, r.Systems.Repairs...)
	out = append(out, r.Technologies.Repairs...)
	out = append(out, r.ConnectionElements.Repairs...)
	return out
}

// PruneReport lists what PruneDangling removed.
type PruneReport struct {
	TechnologyRefs map[string][]string `json:"technology_refs,omitempty"`
	Connections    []domain.Connection `json:"connections,omitempty"`
}

// OpenProject builds the stores on backend and loads whatever was saved.
func OpenProject(ctx context.Context, backend persistence.Backend, opts ...Option) (*Project, ProjectLoadReport, error) {
	if backend == nil {
		return nil, ProjectLoadReport{}, fmt.Errorf("%w: nil persistence backend", domain.ErrInvalidArgument)
	}
	o := newOptions(opts)
	p := &Project{backend: backend, opts: o, log: o.logger, behaviors: NewDefaultBehaviorRegistry()}
	var err error
	if p.Systems, err = NewEntityStore(domain.KindSystem, backend, opts...); err != nil {
		return nil, ProjectLoadReport{}, err
	}
	if p.Technologies, err = NewEntityStore(domain.KindTechnology, backend, opts...); err != nil {
		return nil, ProjectLoadReport{}, err
	}
	if p.ConnectionElements, err = NewEntityStore(domain.KindConnectionElement, backend, opts...); err != nil {
		return nil, ProjectLoadReport{}, err
	}
	if p.Connections, err = NewConnectionRegistry(backend, opts...); err != nil {
		return nil, ProjectLoadReport{}, err
	}
	p.resolver = NewResolver(p.Systems, p.Technologies, p.Connections)
	report, err := p.Reload(ctx)
	if err != nil {
		return nil, ProjectLoadReport{}, err
	}
	return p, report, nil
}

// Backend returns the persistence backend.
func (p *Project) Backend() persistence.Backend { return p.backend }

// Resolver returns the read-only façade over the project.
func (p *Project) Resolver() *Resolver { return p.resolver }

// Behaviors returns the behavior registry used by Describe.
func (p *Project) Behaviors() *BehaviorRegistry { return p.behaviors }

// Store returns the entity store of kind.
func (p *Project) Store(kind domain.Kind) (*EntityStore, error) {
	switch kind {
	case domain.KindSystem:
		return p.Systems, nil
	case domain.KindTechnology:
		return p.Technologies, nil
	case domain.KindConnectionElement:
		return p.ConnectionElements, nil
	}
	return nil, fmt.Errorf("%w: unknown entity kind %q", domain.ErrInvalidArgument, kind)
}

// Init writes an empty array to every required bucket that does not exist
// yet. Existing buckets are left alone.
func (p *Project) Init(ctx context.Context) error {
	for _, bucket := range domain.RequiredBuckets() {
		ok, err := p.backend.Exists(ctx, bucket)
		if err != nil {
			return &domain.PersistenceError{Bucket: string(bucket), Op: "exists", Err: err}
		}
		if ok {
			continue
		}
		if err := p.backend.Save(ctx, bucket, []byte("[]")); err != nil {
			return &domain.PersistenceError{Bucket: string(bucket), Op: "init", Err: err}
		}
		p.log.Info("bucket initialized", zap.String("bucket", string(bucket)))
	}
	return nil
}

// Reload re-reads every resource from the backend.
func (p *Project) Reload(ctx context.Context) (ProjectLoadReport, error) {
	var report ProjectLoadReport
	var err error
	if report.Systems, err = p.Systems.Load(ctx); err != nil {
		return ProjectLoadReport{}, err
	}
	if report.Technologies, err = p.Technologies.Load(ctx); err != nil {
		return ProjectLoadReport{}, err
	}
	if report.ConnectionElements, err = p.ConnectionElements.Load(ctx); err != nil {
		return ProjectLoadReport{}, err
	}
	if report.Connections, err = p.Connections.Load(ctx); err != nil {
		return ProjectLoadReport{}, err
	}
	return report, nil
}

// SaveAll persists every resource. Each is written independently; all
// failures are returned joined.
func (p *Project) SaveAll(ctx context.Context) error {
	return errors.Join(
		p.Systems.Save(ctx),
		p.Technologies.Save(ctx),
		p.ConnectionElements.Save(ctx),
		p.Connections.Save(ctx),
	)
}

// AssignTechnology links an existing technology to an existing system.
func (p *Project) AssignTechnology(ctx context.Context, systemCode, technologyCode string) error {
	if _, ok := p.Systems.Get(systemCode); !ok {
		return fmt.Errorf("%w: system %s does not exist", domain.ErrInvalidArgument, systemCode)
	}
	if _, ok := p.Technologies.Get(technologyCode); !ok {
		return fmt.Errorf("%w: technology %s does not exist", domain.ErrInvalidArgument, technologyCode)
	}
	return p.Systems.AssignTechnology(ctx, systemCode, technologyCode)
}

// UnassignTechnology removes a technology ref from a system.
func (p *Project) UnassignTechnology(ctx context.Context, systemCode, technologyCode string) (bool, error) {
	return p.Systems.UnassignTechnology(ctx, systemCode, technologyCode)
}

// Connect adds a connection. Endpoints are weak references and need not exist.
func (p *Project) Connect(ctx context.Context, source, typeID, typeLabel, target, description string) (domain.Connection, error) {
	return p.Connections.Add(ctx, source, typeID, typeLabel, target, description)
}

// Describe renders behavior for the entity with fullCode in the store of kind.
func (p *Project) Describe(ctx context.Context, kind domain.Kind, fullCode string, behavior domain.Behavior) (string, error) {
	store, err := p.Store(kind)
	if err != nil {
		return "", err
	}
	e, ok := store.Get(fullCode)
	if !ok {
		return "", fmt.Errorf("%w: no %s with full code %s", domain.ErrInvalidArgument, kind, fullCode)
	}
	return p.behaviors.Invoke(ctx, behavior, store, e)
}

// Check evaluates the integrity rules over every store and the connections.
func (p *Project) Check(ctx context.Context) (domain.Result, error) {
	view := newModelView()
	for _, store := range []*EntityStore{p.Systems, p.Technologies, p.ConnectionElements} {
		store.mu.Lock()
		view.addStore(store.kind, store.layout, store.state.sorted(nil))
		store.mu.Unlock()
	}
	view.connections = p.Connections.List()
	return p.opts.rules.Evaluate(ctx, view)
}

// PruneDangling removes technology refs naming missing technologies and
// connections with an endpoint that resolves in neither the system nor the
// technology store. Nothing else ever removes dangling references.
func (p *Project) PruneDangling(ctx context.Context) (PruneReport, error) {
	report := PruneReport{TechnologyRefs: make(map[string][]string)}
	for _, sys := range p.Systems.List() {
		for _, ref := range sys.TechnologyRefs {
			if _, ok := p.Technologies.Get(ref); ok {
				continue
			}
			if _, err := p.Systems.UnassignTechnology(ctx, sys.FullCode, ref); err != nil {
				return report, err
			}
			report.TechnologyRefs[sys.FullCode] = append(report.TechnologyRefs[sys.FullCode], ref)
		}
	}
	exists := func(code string) bool {
		if _, ok := p.Systems.Get(code); ok {
			return true
		}
		_, ok := p.Technologies.Get(code)
		return ok
	}
	removed, err := p.Connections.RemoveWhere(ctx, func(c domain.Connection) bool {
		return !exists(c.Source) || !exists(c.Target)
	})
	if err != nil {
		return report, err
	}
	report.Connections = removed
	if len(report.TechnologyRefs) == 0 {
		report.TechnologyRefs = nil
	}
	p.log.Info("pruned dangling references", zap.Int("technology_refs", countRefs(report.TechnologyRefs)), zap.Int("connections", len(removed)))
	return report, nil
}

func countRefs(m map[string][]string) int {
	n := 0
	for _, refs := range m {
		n += len(refs)
	}
	return n
}

// Close releases the backend.
func (p *Project) Close() error { return p.backend.Close() }
