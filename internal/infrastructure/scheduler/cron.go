// Package scheduler drives recurring jobs from a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ResearchDigest/internal/ports"
)

// CronScheduler runs a job on a standard five-field cron expression in a fixed location.
type CronScheduler struct {
	expr     string
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler validates nothing until Start; a nil location means UTC.
func NewCronScheduler(expr string, loc *time.Location, log *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &CronScheduler{expr: expr, location: loc, logger: log}
}

// Start registers job and begins scheduling. It stops on its own when ctx ends.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	cr := cron.New(cron.WithLocation(c.location))
	if _, err := cr.AddFunc(c.expr, func() { job(time.Now().In(c.location)) }); err != nil {
		return fmt.Errorf("parse cron expression %q: %w", c.expr, err)
	}
	cr.Start()
	c.cron = cr
	c.logger.Info("scheduler started", "cron", c.expr, "location", c.location.String())

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts scheduling and waits for a running job until ctx ends.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()
	if cr == nil {
		return nil
	}

	select {
	case <-cr.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports the next activation after t, mostly for diagnostics.
func (c *CronScheduler) Next(t time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(c.expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", c.expr, err)
	}
	return sched.Next(t.In(c.location)), nil
}
