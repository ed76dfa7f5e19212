// Package scheduler runs the coordinator's periodic jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one periodic unit of work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner with logging and a shared base context for
// all jobs.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	logger *zap.Logger
}

// New creates a Scheduler. Jobs receive ctx, so cancelling it interrupts
// in-flight work during shutdown.
func New(ctx context.Context, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		ctx:    ctx,
		logger: logger,
	}
}

// Add registers a named job on a standard 5-field cron spec.
func (s *Scheduler) Add(spec, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.logger.Debug("Scheduled job starting", zap.String("job", name))
		if err := job(s.ctx); err != nil {
			s.logger.Error("Scheduled job failed",
				zap.String("job", name),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("Scheduled job finished", zap.String("job", name))
	})
	if err != nil {
		return fmt.Errorf("scheduler: add %s (%q): %w", name, spec, err)
	}
	s.logger.Info("Scheduled job registered",
		zap.String("job", name),
		zap.String("schedule", spec),
	)
	return nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop halts scheduling and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}
