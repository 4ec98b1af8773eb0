package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"twincore/internal/persistence/core"
	"twincore/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "project.db")
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if store.Driver() != core.DriverSQLite || store.Path() != path {
		t.Fatalf("unexpected accessors %q %q", store.Driver(), store.Path())
	}
	if _, err := store.Load(ctx, domain.BucketSystems); !errors.Is(err, core.ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound, got %v", err)
	}
	if err := store.Save(ctx, domain.BucketSystems, []byte(`[]`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, domain.BucketSystems, []byte(`[{"name":"A"}]`)); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	got, err := reloaded.Load(ctx, domain.BucketSystems)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `[{"name":"A"}]` {
		t.Fatalf("unexpected payload %s", got)
	}
	ok, err := reloaded.Exists(ctx, domain.BucketSystems)
	if err != nil || !ok {
		t.Fatalf("expected bucket to exist, got ok=%v err=%v", ok, err)
	}
	ok, err = reloaded.Exists(ctx, domain.BucketConnections)
	if err != nil || ok {
		t.Fatalf("expected connections missing, got ok=%v err=%v", ok, err)
	}
}

func TestSQLiteStoreCreatesStateTable(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.DB().Close() })
	var tableName string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name= ?", "state").Scan(&tableName); err != nil {
		t.Fatalf("lookup state table: %v", err)
	}
	if tableName != "state" {
		t.Fatalf("expected state table, got %s", tableName)
	}
}
