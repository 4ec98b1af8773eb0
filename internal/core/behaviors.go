package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"twincore/pkg/domain"
)

// BehaviorHandler renders one behavior for an entity. lookup resolves other
// entities of the same store.
type BehaviorHandler func(ctx context.Context, lookup domain.EntityLookup, e domain.Entity) (string, error)

// BehaviorRegistry dispatches the closed set of domain behaviors to handlers.
type BehaviorRegistry struct {
	mu       sync.RWMutex
	handlers map[domain.Behavior]BehaviorHandler
}

// NewBehaviorRegistry returns an empty registry.
func NewBehaviorRegistry() *BehaviorRegistry {
	return &BehaviorRegistry{handlers: make(map[domain.Behavior]BehaviorHandler)}
}

// NewDefaultBehaviorRegistry installs the built-in handlers for every behavior.
func NewDefaultBehaviorRegistry() *BehaviorRegistry {
	r := NewBehaviorRegistry()
	_ = r.Register(domain.BehaviorSummary, summaryBehavior)
	_ = r.Register(domain.BehaviorLineage, lineageBehavior)
	_ = r.Register(domain.BehaviorAttributes, attributesBehavior)
	return r
}

// Register binds a handler. Undeclared behaviors, nil handlers and second
// registrations fail with ErrInvalidArgument.
func (r *BehaviorRegistry) Register(b domain.Behavior, h BehaviorHandler) error {
	if !b.Valid() {
		return fmt.Errorf("%w: undeclared behavior %q", domain.ErrInvalidArgument, b)
	}
	if h == nil {
		return fmt.Errorf("%w: nil handler for %s", domain.ErrInvalidArgument, b)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[b]; exists {
		return fmt.Errorf("%w: behavior %s already registered", domain.ErrInvalidArgument, b)
	}
	r.handlers[b] = h
	return nil
}

// Registered lists bound behaviors in name order.
func (r *BehaviorRegistry) Registered() []domain.Behavior {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Behavior, 0, len(r.handlers))
	for b := range r.handlers {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Invoke runs the handler bound to b.
func (r *BehaviorRegistry) Invoke(ctx context.Context, b domain.Behavior, lookup domain.EntityLookup, e domain.Entity) (string, error) {
	r.mu.RLock()
	h, ok := r.handlers[b]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownBehavior, b)
	}
	return h(ctx, lookup, e)
}

func summaryBehavior(_ context.Context, _ domain.EntityLookup, e domain.Entity) (string, error) {
	return fmt.Sprintf("%s | %s", e.Name, e.FullCode), nil
}

func lineageBehavior(_ context.Context, lookup domain.EntityLookup, e domain.Entity) (string, error) {
	names := []string{e.Name}
	seen := map[string]bool{e.FullCode: true}
	cur := e
	for !cur.IsRoot() {
		if seen[cur.ParentCode] || lookup == nil {
			names = append(names, MissingMarker)
			break
		}
		parent, ok := lookup.Get(cur.ParentCode)
		if !ok {
			names = append(names, MissingMarker)
			break
		}
		seen[parent.FullCode] = true
		names = append(names, parent.Name)
		cur = parent
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, " / "), nil
}

func attributesBehavior(_ context.Context, _ domain.EntityLookup, e domain.Entity) (string, error) {
	types := e.SortedAttributes()
	lines := make([]string, 0, len(types))
	for _, t := range types {
		lines = append(lines, fmt.Sprintf("%s: %s", t, e.Attributes[t]))
	}
	return strings.Join(lines, "\n"), nil
}
