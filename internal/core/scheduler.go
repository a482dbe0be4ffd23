package core

// scheduler.go prunes old comparison runs on a cron schedule.
//
// A prune deletes every run older than MaxAge. It runs once at Start so a
// restarted server catches up, then on each tick of Schedule. Failures are
// logged and the next tick tries again.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls run pruning.
type RetentionConfig struct {
	MaxAge   time.Duration // Runs older than this are deleted (default: 720h)
	Schedule string        // Standard 5-field cron expression (default: "@daily")
}

// Scheduler deletes expired runs from a RunStore.
type Scheduler struct {
	cron   *cron.Cron
	store  RunStore
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewScheduler validates the schedule and registers the prune job. It does
// not start running until Start.
func NewScheduler(store RunStore, cfg RetentionConfig, logger *slog.Logger) (*Scheduler, error) {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@daily"
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		cron:   cron.New(),
		store:  store,
		maxAge: cfg.MaxAge,
		logger: logger,
		now:    time.Now,
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, func() {
		s.prune(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start prunes once and then starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.prune(ctx)
	s.cron.Start()
	s.logger.Info("retention scheduler started", "max_age", s.maxAge)
}

// Stop stops scheduling and waits for a running prune to finish or ctx to
// be done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("retention scheduler stopped")
}

// Prune deletes runs older than the configured age.
func (s *Scheduler) Prune(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.maxAge)
	return s.store.DeleteRunsBefore(ctx, cutoff)
}

func (s *Scheduler) prune(ctx context.Context) {
	start := time.Now()
	n, err := s.Prune(ctx)
	if err != nil {
		s.logger.Error("run pruning failed", "error", err)
		return
	}
	s.logger.Info("pruned old runs",
		"runs_deleted", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
