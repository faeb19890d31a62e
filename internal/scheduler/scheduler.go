package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"nmcweather/internal/logger"
)

// Scheduler runs a refresh job on a cron schedule. Runs never overlap; a tick
// that fires while the previous refresh is still going is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	spec      string
	job       func(ctx context.Context)
	ctx       context.Context
}

// New creates a scheduler for spec (standard cron or a descriptor such as
// "@every 30m"). job receives ctx on every run.
func New(ctx context.Context, spec string, job func(ctx context.Context)) *Scheduler {
	s := gocron.NewScheduler(time.Local)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		spec:      spec,
		job:       job,
		ctx:       ctx,
	}
}

// Start schedules the job and starts the underlying scheduler
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Cron(s.spec).Do(func() {
		if s.ctx.Err() != nil {
			return
		}
		logger.Debug("Scheduled refresh started")
		s.job(s.ctx)
		logger.Debug("Scheduled refresh finished")
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and waits for a running job to return
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
