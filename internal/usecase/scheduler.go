package usecase

import (
	"context"
	"log/slog"
	"time"

	"ResearchDigest/internal/ports"
)

// Scheduler wires the cron driver with the daily job.
type Scheduler struct {
	driver ports.Scheduler
	daily  *Daily
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, daily *Daily, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{driver: driver, daily: daily, logger: log}
}

// Start registers the daily job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.daily == nil {
		return nil
	}

	job := func(trigger time.Time) {
		report, err := s.daily.Run(ctx, trigger)
		if err != nil {
			s.logger.Error("daily job failed", "error", err)
			return
		}
		s.logger.Info("daily job done", "pulled", report.Pulled, "mailed", report.Mailed, "failed", report.Failed)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
