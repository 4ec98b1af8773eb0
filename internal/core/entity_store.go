package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"twincore/internal/persistence"
	"twincore/pkg/domain"

	"go.uber.org/zap"
)

// EntityStore owns every entity of one kind, keyed by full code. Each
// mutation works on a copy of the state, persists the copy and only then
// swaps it in, so a failed persist leaves the store untouched.
type EntityStore struct {
	mu      sync.Mutex
	kind    domain.Kind
	bucket  domain.Bucket
	layout  domain.Layout
	backend persistence.Backend
	opts    options
	log     *zap.Logger
	state   *entityState
}

var _ domain.EntityLookup = (*EntityStore)(nil)

type entityState struct {
	entities map[string]*domain.Entity
}

func newEntityState() *entityState {
	return &entityState{entities: make(map[string]*domain.Entity)}
}

func (s *entityState) clone() *entityState {
	cp := &entityState{entities: make(map[string]*domain.Entity, len(s.entities))}
	for k, e := range s.entities {
		c := e.Clone()
		cp.entities[k] = &c
	}
	return cp
}

// sorted returns entities ordered by code, then full code.
func (s *entityState) sorted(filter func(*domain.Entity) bool) []*domain.Entity {
	out := make([]*domain.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		if filter == nil || filter(e) {
			out = append(out, e)
		}
	}
	sortEntities(out)
	return out
}

func sortEntities(list []*domain.Entity) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Code != list[j].Code {
			return list[i].Code < list[j].Code
		}
		return list[i].FullCode < list[j].FullCode
	})
}

// NewEntityStore returns an empty store for kind persisting through backend.
// Call Load to restore previously saved entities.
func NewEntityStore(kind domain.Kind, backend persistence.Backend, opts ...Option) (*EntityStore, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entity kind %q", domain.ErrInvalidArgument, kind)
	}
	if backend == nil {
		return nil, fmt.Errorf("%w: nil persistence backend", domain.ErrInvalidArgument)
	}
	o := newOptions(opts)
	layout := domain.DefaultLayoutFor(kind)
	if l, ok := o.layouts[kind]; ok {
		layout = l
	} else if o.layout != nil {
		layout = *o.layout
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	bucket := domain.BucketFor(kind)
	return &EntityStore{
		kind:    kind,
		bucket:  bucket,
		layout:  layout,
		backend: backend,
		opts:    o,
		log:     o.logger.With(zap.String("bucket", string(bucket))),
		state:   newEntityState(),
	}, nil
}

// Kind returns the entity kind held by the store.
func (s *EntityStore) Kind() domain.Kind { return s.kind }

// Bucket returns the persistence bucket.
func (s *EntityStore) Bucket() domain.Bucket { return s.bucket }

// Layout returns the code layout in force.
func (s *EntityStore) Layout() domain.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

// mutate applies fn to a copy of the state. When fn reports a change the copy
// is persisted and swapped in.
func (s *EntityStore) mutate(ctx context.Context, op string, fn func(st *entityState) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.observe(ctx, string(s.bucket)+"."+op, func(ctx context.Context) error {
		next := s.state.clone()
		changed, err := fn(next)
		if err != nil || !changed {
			return err
		}
		if err := s.persist(ctx, next); err != nil {
			s.log.Error("persist failed", zap.String("op", op), zap.Error(err))
			return err
		}
		s.state = next
		return nil
	})
}

func (s *EntityStore) persist(ctx context.Context, st *entityState) error {
	records := make([]domain.Entity, 0, len(st.entities))
	for _, e := range st.sorted(nil) {
		records = append(records, *e)
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return &domain.PersistenceError{Bucket: string(s.bucket), Op: "encode", Err: err}
	}
	if err := s.backend.Save(ctx, s.bucket, payload); err != nil {
		return &domain.PersistenceError{Bucket: string(s.bucket), Op: "save", Err: err}
	}
	s.log.Debug("persisted", zap.Int("entities", len(records)))
	return nil
}

// Create allocates the next code under parent and inserts a new entity. An
// empty parent or the root sentinel creates a root.
func (s *EntityStore) Create(ctx context.Context, name, description, parent string) (domain.Entity, error) {
	var created domain.Entity
	err := s.mutate(ctx, "create", func(st *entityState) (bool, error) {
		layout := s.layout
		level := 0
		parentCode := layout.RootSentinel()
		prefix := layout.RootCode()
		var p *domain.Entity
		if !layout.IsRoot(parent) {
			p = st.entities[parent]
			if p == nil {
				return false, fmt.Errorf("%w: %s", domain.ErrParentNotFound, parent)
			}
			level = p.Level + 1
			parentCode = p.FullCode
			prefix = p.Code
		}
		if level > layout.MaxLevel() {
			return false, fmt.Errorf("%w: level %d exceeds %d hierarchy digits", domain.ErrCodeSpaceExhausted, level, layout.HierarchyDigits)
		}
		idx := 1 + countChildren(st, parentCode, level)
		var code string
		for ; idx <= layout.MaxSiblingIndex(); idx++ {
			c, err := layout.Generate(level, idx)
			if err != nil {
				return false, err
			}
			if _, taken := st.entities[prefix+c]; !taken {
				code = c
				break
			}
		}
		if code == "" {
			return false, fmt.Errorf("%w: no sibling index left under %s at level %d", domain.ErrCodeSpaceExhausted, parentCode, level)
		}
		e := &domain.Entity{
			ID:              s.opts.newID(),
			Name:            name,
			Description:     description,
			HierarchyDigits: layout.HierarchyDigits,
			SiblingDigits:   layout.SiblingDigits,
			Level:           level,
			SiblingIndex:    idx,
			Code:            code,
			ParentCode:      parentCode,
			FullCode:        prefix + code,
			Attributes:      make(map[domain.AttributeType]string),
			ChildrenCodes:   []string{},
		}
		if s.kind == domain.KindSystem {
			e.TechnologyRefs = []string{}
		}
		st.entities[e.FullCode] = e
		if p != nil {
			p.AddChildCode(e.FullCode)
			sort.Strings(p.ChildrenCodes)
		}
		created = e.Clone()
		return true, nil
	})
	if err != nil {
		return domain.Entity{}, err
	}
	s.log.Debug("entity created", zap.String("full_code", created.FullCode), zap.String("name", created.Name))
	return created, nil
}

func countChildren(st *entityState, parentCode string, level int) int {
	n := 0
	for _, e := range st.entities {
		if e.ParentCode == parentCode && e.Level == level {
			n++
		}
	}
	return n
}

// Get returns a copy of the entity with fullCode. Absence is not an error.
func (s *EntityStore) Get(fullCode string) (domain.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.entities[fullCode]
	if !ok {
		return domain.Entity{}, false
	}
	return e.Clone(), true
}

// AddAttribute sets an attribute of the entity. The type is validated
// first; a missing entity is a no-op.
func (s *EntityStore) AddAttribute(ctx context.Context, fullCode, attrType, description string) error {
	if _, err := domain.ParseAttributeType(attrType); err != nil {
		return err
	}
	return s.mutate(ctx, "add_attribute", func(st *entityState) (bool, error) {
		e, ok := st.entities[fullCode]
		if !ok {
			s.log.Debug("add attribute on missing entity", zap.String("full_code", fullCode))
			return false, nil
		}
		return true, e.AddAttribute(attrType, description)
	})
}

// AssignTechnology records technologyCode on a system entity. Assigning the
// same code twice is a no-op; a missing system is ignored.
func (s *EntityStore) AssignTechnology(ctx context.Context, systemCode, technologyCode string) error {
	if s.kind != domain.KindSystem {
		return fmt.Errorf("%w: technologies can only be assigned in the system store", domain.ErrInvalidArgument)
	}
	if technologyCode == "" {
		return fmt.Errorf("%w: empty technology code", domain.ErrInvalidArgument)
	}
	return s.mutate(ctx, "assign_technology", func(st *entityState) (bool, error) {
		e, ok := st.entities[systemCode]
		if !ok || e.HasTechnology(technologyCode) {
			return false, nil
		}
		e.TechnologyRefs = append(e.TechnologyRefs, technologyCode)
		return true, nil
	})
}

// UnassignTechnology removes technologyCode from a system entity and reports
// whether it was present.
func (s *EntityStore) UnassignTechnology(ctx context.Context, systemCode, technologyCode string) (bool, error) {
	if s.kind != domain.KindSystem {
		return false, fmt.Errorf("%w: technologies can only be unassigned in the system store", domain.ErrInvalidArgument)
	}
	var removed bool
	err := s.mutate(ctx, "unassign_technology", func(st *entityState) (bool, error) {
		e, ok := st.entities[systemCode]
		if !ok || !e.HasTechnology(technologyCode) {
			return false, nil
		}
		refs := e.TechnologyRefs[:0]
		for _, ref := range e.TechnologyRefs {
			if ref != technologyCode {
				refs = append(refs, ref)
			}
		}
		e.TechnologyRefs = refs
		removed = true
		return true, nil
	})
	return removed && err == nil, err
}

// Update replaces the name and description of an entity. An empty name keeps
// the current one. Codes never change.
func (s *EntityStore) Update(ctx context.Context, fullCode, name, description string) (domain.Entity, bool, error) {
	var updated domain.Entity
	var found bool
	err := s.mutate(ctx, "update", func(st *entityState) (bool, error) {
		e, ok := st.entities[fullCode]
		if !ok {
			return false, nil
		}
		found = true
		if name != "" {
			e.Name = name
		}
		e.Description = description
		updated = e.Clone()
		return true, nil
	})
	if err != nil {
		return domain.Entity{}, false, err
	}
	return updated, found, nil
}

// Delete removes the entity and all of its descendants and unlinks it from
// its parent. It returns the removed full codes, deepest first. Technology
// refs and connections naming removed codes are left dangling; freed codes
// may be handed out again by later creates.
func (s *EntityStore) Delete(ctx context.Context, fullCode string) ([]string, error) {
	var removed []string
	err := s.mutate(ctx, "delete", func(st *entityState) (bool, error) {
		e, ok := st.entities[fullCode]
		if !ok {
			return false, nil
		}
		removed = collectSubtree(st, e.FullCode, make(map[string]bool))
		for _, code := range removed {
			delete(st.entities, code)
		}
		if p, ok := st.entities[e.ParentCode]; ok {
			kept := p.ChildrenCodes[:0]
			for _, c := range p.ChildrenCodes {
				if c != e.FullCode {
					kept = append(kept, c)
				}
			}
			p.ChildrenCodes = kept
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.log.Info("entities deleted", zap.String("full_code", fullCode), zap.Int("count", len(removed)))
	}
	return removed, nil
}

// collectSubtree returns code and its descendants in post-order.
func collectSubtree(st *entityState, code string, visited map[string]bool) []string {
	if visited[code] {
		return nil
	}
	visited[code] = true
	e, ok := st.entities[code]
	if !ok {
		return nil
	}
	var out []string
	for _, child := range e.ChildrenCodes {
		if c, ok := st.entities[child]; ok && c.ParentCode == code {
			out = append(out, collectSubtree(st, child, visited)...)
		}
	}
	return append(out, code)
}

// Roots returns root entities ordered by code.
func (s *EntityStore) Roots() []domain.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	layout := s.layout
	return cloneAll(s.state.sorted(func(e *domain.Entity) bool { return layout.IsRoot(e.ParentCode) }))
}

// Children returns the direct children of fullCode ordered by code. Stale
// entries of the parent's child list are skipped.
func (s *EntityStore) Children(fullCode string) []domain.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.entities[fullCode]
	if !ok {
		return nil
	}
	list := make([]*domain.Entity, 0, len(p.ChildrenCodes))
	for _, code := range p.ChildrenCodes {
		if c, ok := s.state.entities[code]; ok {
			list = append(list, c)
		}
	}
	sortEntities(list)
	return cloneAll(list)
}

// Walk visits every entity depth-first from the roots, children in code
// order. fn receives the depth; returning false stops the walk.
func (s *EntityStore) Walk(fn func(e domain.Entity, depth int) bool) {
	s.mu.Lock()
	st := s.state.clone()
	layout := s.layout
	s.mu.Unlock()

	visited := make(map[string]bool, len(st.entities))
	var visit func(e *domain.Entity, depth int) bool
	visit = func(e *domain.Entity, depth int) bool {
		if visited[e.FullCode] {
			return true
		}
		visited[e.FullCode] = true
		if !fn(e.Clone(), depth) {
			return false
		}
		children := st.sorted(func(c *domain.Entity) bool { return c.ParentCode == e.FullCode })
		for _, c := range children {
			if !visit(c, depth+1) {
				return false
			}
		}
		return true
	}
	for _, root := range st.sorted(func(e *domain.Entity) bool { return layout.IsRoot(e.ParentCode) }) {
		if !visit(root, 0) {
			return
		}
	}
}

// List returns every entity ordered by code, then full code.
func (s *EntityStore) List() []domain.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.state.sorted(nil))
}

// Len returns the number of entities.
func (s *EntityStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.entities)
}

func cloneAll(list []*domain.Entity) []domain.Entity {
	out := make([]domain.Entity, 0, len(list))
	for _, e := range list {
		out = append(out, e.Clone())
	}
	return out
}

// Save persists the current state unchanged.
func (s *EntityStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.observe(ctx, string(s.bucket)+".save", func(ctx context.Context) error {
		return s.persist(ctx, s.state)
	})
}

// Load replaces the in-memory state with the persisted bucket. A bucket that
// was never saved loads as empty. Structural damage is repaired and listed
// in the report; on error the current state is kept.
func (s *EntityStore) Load(ctx context.Context) (LoadReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var report LoadReport
	err := s.opts.observe(ctx, string(s.bucket)+".load", func(ctx context.Context) error {
		payload, err := s.backend.Load(ctx, s.bucket)
		if errors.Is(err, persistence.ErrBucketNotFound) {
			report = LoadReport{Bucket: s.bucket, Missing: true, Layout: s.layout}
			s.state = newEntityState()
			return nil
		}
		if err != nil {
			return &domain.PersistenceError{Bucket: string(s.bucket), Op: "load", Err: err}
		}
		var records []domain.EntityRecord
		if err := json.Unmarshal(payload, &records); err != nil {
			return &domain.PersistenceError{Bucket: string(s.bucket), Op: "decode", Err: err}
		}
		st, layout, rep, err := rebuildState(s.kind, s.layout, records)
		if err != nil {
			return err
		}
		rep.Bucket = s.bucket
		s.state, s.layout, report = st, layout, rep
		return nil
	})
	if err != nil {
		return LoadReport{}, err
	}
	for _, r := range report.Repairs {
		s.log.Warn("load repair", zap.String("repair", string(r.Kind)), zap.String("full_code", r.FullCode), zap.String("detail", r.Detail))
	}
	s.log.Debug("loaded", zap.Int("entities", report.Entities), zap.Bool("missing", report.Missing))
	return report, nil
}

// Check evaluates the integrity rules against the store alone.
func (s *EntityStore) Check(ctx context.Context) (domain.Result, error) {
	view := s.snapshot()
	return s.opts.rules.Evaluate(ctx, view)
}

// snapshot returns an immutable rule view of the store.
func (s *EntityStore) snapshot() *modelView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := newModelView()
	view.addStore(s.kind, s.layout, s.state.sorted(nil))
	return view
}
