package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sqlite, err := NewSQLiteStore(filepath.Join(dir, "state", "guildmem.db"))
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	file, err := NewFileStore(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlite.Close()
		_ = file.Close()
	})
	return map[string]Store{"sqlite": sqlite, "file": file}
}

func TestStore_WriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := store.Read(ctx, "memories", "semantic_memory.json"); err != nil || ok {
				t.Fatalf("expected absent document, got ok=%v err=%v", ok, err)
			}

			payload := []byte(`{"g1":[{"id":"c1"}]}`)
			if err := store.Write(ctx, "memories", "semantic_memory.json", payload); err != nil {
				t.Fatalf("write: %v", err)
			}

			got, ok, err := store.Read(ctx, "memories", "semantic_memory.json")
			if err != nil || !ok {
				t.Fatalf("read back: ok=%v err=%v", ok, err)
			}
			if string(got) != string(payload) {
				t.Fatalf("unexpected payload: %s", got)
			}
		})
	}
}

func TestStore_WriteOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Write(ctx, "memories", "snap", []byte("v1")); err != nil {
				t.Fatalf("first write: %v", err)
			}
			if err := store.Write(ctx, "memories", "snap", []byte("v2")); err != nil {
				t.Fatalf("second write: %v", err)
			}
			got, ok, err := store.Read(ctx, "memories", "snap")
			if err != nil || !ok {
				t.Fatalf("read: ok=%v err=%v", ok, err)
			}
			if string(got) != "v2" {
				t.Fatalf("expected overwrite, got %s", got)
			}
		})
	}
}

func TestStore_SweepRemovesStaleDocuments(t *testing.T) {
	ctx := context.Background()
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Write(ctx, "memories", "stale", []byte("x")); err != nil {
				t.Fatalf("write: %v", err)
			}

			removed, err := store.Sweep(ctx, time.Now().Add(time.Minute))
			if err != nil {
				t.Fatalf("sweep: %v", err)
			}
			if removed != 1 {
				t.Fatalf("expected 1 removed, got %d", removed)
			}
			if _, ok, _ := store.Read(ctx, "memories", "stale"); ok {
				t.Fatalf("expected document removed by sweep")
			}
		})
	}
}

func TestStore_SweepKeepsFreshDocuments(t *testing.T) {
	ctx := context.Background()
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Write(ctx, "memories", "fresh", []byte("x")); err != nil {
				t.Fatalf("write: %v", err)
			}
			removed, err := store.Sweep(ctx, time.Now().Add(-time.Hour))
			if err != nil {
				t.Fatalf("sweep: %v", err)
			}
			if removed != 0 {
				t.Fatalf("expected nothing removed, got %d", removed)
			}
			if _, ok, _ := store.Read(ctx, "memories", "fresh"); !ok {
				t.Fatalf("expected fresh document to survive sweep")
			}
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "guildmem.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Write(ctx, "memories", "snap", []byte("persisted")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store2.Close()

	got, ok, err := store2.Read(ctx, "memories", "snap")
	if err != nil || !ok {
		t.Fatalf("read after reopen: ok=%v err=%v", ok, err)
	}
	if string(got) != "persisted" {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("bolt", t.TempDir()); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
