package core

import (
	"context"
	"errors"
	"testing"
	"twincore/pkg/domain"
)

func TestDefaultBehaviorsRegistered(t *testing.T) {
	r := NewDefaultBehaviorRegistry()
	got := r.Registered()
	if len(got) != 3 || got[0] != domain.BehaviorAttributes || got[1] != domain.BehaviorLineage || got[2] != domain.BehaviorSummary {
		t.Fatalf("unexpected registered behaviors %v", got)
	}
}

func TestBehaviorRegisterRejections(t *testing.T) {
	r := NewBehaviorRegistry()
	noop := func(context.Context, domain.EntityLookup, domain.Entity) (string, error) { return "", nil }
	if err := r.Register("teleport", noop); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("undeclared behavior should be rejected, got %v", err)
	}
	if err := r.Register(domain.BehaviorSummary, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("nil handler should be rejected, got %v", err)
	}
	if err := r.Register(domain.BehaviorSummary, noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(domain.BehaviorSummary, noop); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("duplicate registration should be rejected, got %v", err)
	}
	if _, err := r.Invoke(context.Background(), domain.BehaviorLineage, nil, domain.Entity{}); !errors.Is(err, domain.ErrUnknownBehavior) {
		t.Fatalf("unbound behavior should fail, got %v", err)
	}
}

func TestBuiltinBehaviors(t *testing.T) {
	s, _ := newTestStore(t, domain.KindSystem)
	ctx := context.Background()
	root := mustCreate(t, s, "Plant", "")
	line := mustCreate(t, s, "Line", root.FullCode)
	cell := mustCreate(t, s, "Cell", line.FullCode)
	if err := s.AddAttribute(ctx, cell.FullCode, "state", "idle"); err != nil {
		t.Fatalf("attr: %v", err)
	}
	if err := s.AddAttribute(ctx, cell.FullCode, "mechanical", "bolted"); err != nil {
		t.Fatalf("attr: %v", err)
	}
	cell, _ = s.Get(cell.FullCode)
	r := NewDefaultBehaviorRegistry()

	out, err := r.Invoke(ctx, domain.BehaviorSummary, s, cell)
	if err != nil || out != "Cell | "+cell.FullCode {
		t.Fatalf("summary: %q %v", out, err)
	}
	out, err = r.Invoke(ctx, domain.BehaviorLineage, s, cell)
	if err != nil || out != "Plant / Line / Cell" {
		t.Fatalf("lineage: %q %v", out, err)
	}
	out, err = r.Invoke(ctx, domain.BehaviorAttributes, s, cell)
	if err != nil || out != "mechanical: bolted\nstate: idle" {
		t.Fatalf("attributes: %q %v", out, err)
	}

	if _, err := s.Delete(ctx, root.FullCode); err != nil {
		t.Fatalf("delete: %v", err)
	}
	out, _ = r.Invoke(ctx, domain.BehaviorLineage, s, cell)
	if out != MissingMarker+" / Cell" {
		t.Fatalf("lineage of a detached entity should mark the gap, got %q", out)
	}
}
