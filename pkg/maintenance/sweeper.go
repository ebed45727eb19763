package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lowkeylabs/guildmem/pkg/config"
	"github.com/lowkeylabs/guildmem/pkg/logger"
	"github.com/lowkeylabs/guildmem/pkg/memory"
	"github.com/lowkeylabs/guildmem/pkg/storage"
)

// Sweeper runs the scheduled housekeeping that is too slow or too rare for
// the memory service's own cleanup ticker: pruning stale storage documents
// and logging tier stats snapshots.
type Sweeper struct {
	cfg    config.MaintenanceConfig
	store  storage.Store
	svc    *memory.Service
	cron   *cron.Cron
	stopFn func() context.Context
}

func NewSweeper(cfg config.MaintenanceConfig, store storage.Store, svc *memory.Service) *Sweeper {
	return &Sweeper{
		cfg:   cfg,
		store: store,
		svc:   svc,
	}
}

func (s *Sweeper) Start() error {
	c := cron.New(cron.WithSeconds())

	schedule := s.cfg.Schedule
	if schedule == "" {
		schedule = "0 30 3 * * *"
	}
	if _, err := c.AddFunc(schedule, s.sweepStorage); err != nil {
		return fmt.Errorf("schedule storage sweep: %w", err)
	}

	if s.cfg.StatsMinutes > 0 && s.svc != nil {
		spec := fmt.Sprintf("@every %dm", s.cfg.StatsMinutes)
		if _, err := c.AddFunc(spec, s.logStats); err != nil {
			return fmt.Errorf("schedule stats snapshot: %w", err)
		}
	}

	c.Start()
	s.cron = c
	s.stopFn = func() context.Context { return c.Stop() }
	logger.InfoCF("maintenance", "Sweeper started", map[string]any{
		"schedule": schedule,
	})
	return nil
}

// Stop cancels future runs and waits for an in-flight job to finish.
func (s *Sweeper) Stop() {
	if s.stopFn == nil {
		return
	}
	<-s.stopFn().Done()
	logger.InfoC("maintenance", "Sweeper stopped")
}

func (s *Sweeper) sweepStorage() {
	maxAge := time.Duration(s.cfg.MaxAgeDays) * 24 * time.Hour
	if maxAge <= 0 {
		maxAge = 180 * 24 * time.Hour
	}
	s.sweepStorageWithCutoff(time.Now().Add(-maxAge))
}

func (s *Sweeper) sweepStorageWithCutoff(cutoff time.Time) {
	if s.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := s.store.Sweep(ctx, cutoff)
	if err != nil {
		logger.ErrorCF("maintenance", "Storage sweep failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	logger.InfoCF("maintenance", "Storage sweep complete", map[string]any{
		"removed": removed,
		"cutoff":  cutoff.Format(time.RFC3339),
	})
}

func (s *Sweeper) logStats() {
	stats := s.svc.Stats()
	logger.InfoCF("maintenance", "Memory tier stats", map[string]any{
		"working_conversations": stats.Working.Conversations,
		"working_entries":       stats.Working.TotalEntries,
		"episodic_guilds":       stats.Episodic.Guilds,
		"episodes":              stats.Episodic.TotalEpisodes,
		"semantic_guilds":       stats.Semantic.Guilds,
		"concepts":              stats.Semantic.TotalConcepts,
	})
}
