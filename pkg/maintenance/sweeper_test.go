package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/lowkeylabs/guildmem/pkg/config"
	"github.com/lowkeylabs/guildmem/pkg/storage"
)

func TestSweeper_StartStop(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	s := NewSweeper(config.MaintenanceConfig{Schedule: "0 30 3 * * *"}, store, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
	// Stopping twice is harmless.
	s.Stop()
}

func TestSweeper_RejectsBadSchedule(t *testing.T) {
	s := NewSweeper(config.MaintenanceConfig{Schedule: "not a cron spec"}, nil, nil)
	if err := s.Start(); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
}

func TestSweeper_SweepStorageRemovesStaleDocuments(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	if err := store.Write(ctx, "memories", "old", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewSweeper(config.MaintenanceConfig{}, store, nil)
	// Future cutoff makes every document stale.
	s.sweepStorageWithCutoff(time.Now().Add(time.Hour))

	if _, ok, _ := store.Read(ctx, "memories", "old"); ok {
		t.Fatalf("expected stale document removed")
	}
}
