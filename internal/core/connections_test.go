package core

import (
	"context"
	"errors"
	"testing"
	"twincore/internal/persistence"
	"twincore/pkg/domain"
)

func newTestRegistry(t *testing.T) (*ConnectionRegistry, persistence.Backend) {
	t.Helper()
	backend := persistence.NewMemory()
	reg, err := NewConnectionRegistry(backend, WithIDGenerator(sequentialIDs()))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg, backend
}

func TestConnectionAddValidates(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	cases := []struct {
		name                         string
		source, typeID, label, target string
	}{
		{"empty source", "", "MECH", "", "b"},
		{"empty target", "a", "MECH", "", " "},
		{"self loop", "a", "MECH", "", "a"},
		{"unknown type", "a", "WARP", "", "b"},
		{"label mismatch", "a", "MECH", "Electrical", "b"},
		{"custom without label", "a", "CUST", "  ", "b"},
	}
	for _, tc := range cases {
		if _, err := reg.Add(ctx, tc.source, tc.typeID, tc.label, tc.target, ""); !errors.Is(err, domain.ErrInvalidConnection) {
			t.Fatalf("%s: expected ErrInvalidConnection, got %v", tc.name, err)
		}
	}
	if reg.Len() != 0 {
		t.Fatalf("rejected connections must not be stored")
	}
}

func TestConnectionAddNormalizesType(t *testing.T) {
	reg, backend := newTestRegistry(t)
	ctx := context.Background()

	c, err := reg.Add(ctx, "a", " elec ", "", "b", "power feed")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if c.ID != "id-001" || c.TypeID != "ELEC" || c.TypeLabel != "Electrical" || c.Description != "power feed" {
		t.Fatalf("unexpected connection %+v", c)
	}
	custom, err := reg.Add(ctx, "b", "cust", "Belt drive", "c", "")
	if err != nil || custom.TypeLabel != "Belt drive" {
		t.Fatalf("custom add: %+v %v", custom, err)
	}
	if ok, _ := backend.Exists(ctx, domain.BucketConnections); !ok {
		t.Fatalf("add should persist the registry")
	}
}

func TestConnectionQueriesAndRemoval(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	ab, _ := reg.Add(ctx, "a", "MECH", "", "b", "")
	ca, _ := reg.Add(ctx, "c", "DATA", "", "a", "")
	bc, _ := reg.Add(ctx, "b", "DATA", "", "c", "")

	if got := reg.ListByEndpoint("a", domain.RoleSource); len(got) != 1 || got[0].ID != ab.ID {
		t.Fatalf("unexpected source list %+v", got)
	}
	if got := reg.ListByEndpoint("a", domain.RoleTarget); len(got) != 1 || got[0].ID != ca.ID {
		t.Fatalf("unexpected target list %+v", got)
	}
	got := reg.ListByEndpoint("a", domain.RoleEither)
	if len(got) != 2 || got[0].ID != ab.ID || got[1].ID != ca.ID {
		t.Fatalf("either should keep insertion order: %+v", got)
	}
	if got := reg.ListByEndpoint("zzz", domain.RoleEither); got == nil || len(got) != 0 {
		t.Fatalf("unknown endpoint should yield an empty list, got %#v", got)
	}

	removed, err := reg.Remove(ctx, ca.ID)
	if err != nil || !removed {
		t.Fatalf("remove: %v %v", removed, err)
	}
	removed, err = reg.Remove(ctx, ca.ID)
	if err != nil || removed {
		t.Fatalf("second remove should report false: %v %v", removed, err)
	}
	if _, ok := reg.Get(ca.ID); ok {
		t.Fatalf("removed connection still present")
	}
	if c, ok := reg.Get(bc.ID); !ok || c.Source != "b" {
		t.Fatalf("get: %+v %v", c, ok)
	}

	gone, err := reg.RemoveWhere(ctx, func(c domain.Connection) bool { return c.TypeID == "DATA" })
	if err != nil || len(gone) != 1 || gone[0].ID != bc.ID {
		t.Fatalf("remove where: %+v %v", gone, err)
	}
	list := reg.List()
	if len(list) != 1 || list[0].ID != ab.ID {
		t.Fatalf("unexpected remaining list %+v", list)
	}
}

func TestConnectionPersistFailure(t *testing.T) {
	backend := persistence.NewMemory()
	reg, err := NewConnectionRegistry(backend)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	ctx := context.Background()
	c, err := reg.Add(ctx, "a", "MECH", "", "b", "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	backend.FailSaves(domain.BucketConnections, errors.New("offline"))
	if _, err := reg.Add(ctx, "b", "MECH", "", "c", ""); !errors.Is(err, domain.ErrPersistenceFailed) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	if removed, err := reg.Remove(ctx, c.ID); err == nil || removed {
		t.Fatalf("expected remove failure, got %v %v", removed, err)
	}
	if reg.Len() != 1 {
		t.Fatalf("failed mutations must not change the registry, have %d", reg.Len())
	}
}

func TestConnectionLoad(t *testing.T) {
	backend := persistence.NewMemory()
	ctx := context.Background()
	payload := `[
		{"uuid":"keep","source":"a","type_id":"MECH","type_label":"Mechanical","target":"b","description":""},
		{"source":"b","type_id":"ZZZZ","type_label":"Mystery","target":"c","description":"legacy"}
	]`
	if err := backend.Save(ctx, domain.BucketConnections, []byte(payload)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	reg, err := NewConnectionRegistry(backend, WithIDGenerator(func() string { return "fresh" }))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	report, err := reg.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if report.Connections != 2 || report.AssignedIDs != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Nonconforming) != 1 || report.Nonconforming[0] != "fresh" {
		t.Fatalf("nonconforming record not reported: %+v", report)
	}
	if c, ok := reg.Get("fresh"); !ok || c.TypeID != "ZZZZ" || c.Description != "legacy" {
		t.Fatalf("nonconforming record should be kept as stored: %+v", c)
	}

	empty, _ := NewConnectionRegistry(persistence.NewMemory())
	report, err = empty.Load(ctx)
	if err != nil || !report.Missing || empty.Len() != 0 {
		t.Fatalf("missing bucket should load empty: %+v %v", report, err)
	}
	if err := empty.Save(ctx); err != nil {
		t.Fatalf("save empty: %v", err)
	}
}

func TestConnectionRegistryRejectsNilBackend(t *testing.T) {
	if _, err := NewConnectionRegistry(nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
