// Package jobs schedules the background work: the wager expiry sweep, the
// server provisioning worker, and the live-score poller.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/duelpit/duelpit/internal/services/match"
	"github.com/duelpit/duelpit/internal/services/registry"
)

type Scheduler struct {
	cron     *cron.Cron
	registry *registry.Service
	matches  *match.Service
}

func NewScheduler(registrySvc *registry.Service, matchSvc *match.Service) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		registry: registrySvc,
		matches:  matchSvc,
	}
}

// Start registers and starts all jobs. Each job is idempotent, so
// overlapping or duplicated runs are safe.
func (s *Scheduler) Start(ctx context.Context) error {
	// Expiry sweep once a minute.
	_, err := s.cron.AddFunc("0 * * * * *", func() {
		if _, err := s.registry.SweepExpired(ctx, time.Now().UTC()); err != nil {
			slog.Error("expiry sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	// Provisioning worker every 5 seconds.
	_, err = s.cron.AddFunc("*/5 * * * * *", func() {
		if err := s.matches.ProvisionTick(ctx); err != nil {
			slog.Error("provisioning tick failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	// Live-score poller every 5 seconds.
	_, err = s.cron.AddFunc("*/5 * * * * *", func() {
		if err := s.matches.PollTick(ctx); err != nil {
			slog.Error("poll tick failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	slog.Info("background scheduler started")

	return nil
}

// Stop halts scheduling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("background scheduler stopped")
}
