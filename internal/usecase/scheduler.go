package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

// Job binds a recurring task to the driver that triggers it.
type Job struct {
	Name   string
	Driver ports.Scheduler
	Run    func(ctx context.Context, trigger time.Time) error
}

// Scheduler wires cron-like drivers with use-case jobs.
type Scheduler struct {
	jobs   []Job
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{jobs: jobs, logger: logger}
}

// Start registers every job with its driver. Job errors are logged, never propagated.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		if job.Driver == nil || job.Run == nil {
			continue
		}
		logger := s.logger.With("job", job.Name)
		run := job.Run
		err := job.Driver.Start(ctx, func(trigger time.Time) {
			started := time.Now()
			err := run(ctx, trigger)
			switch {
			case err == nil:
				logger.Info("job finished", "elapsed", time.Since(started))
			case domain.IsNotFound(err):
				logger.Info("job had nothing to do", "reason", err)
			default:
				logger.Error("job failed", "error", err)
			}
		})
		if err != nil {
			return errors.Wrapf(err, "start job %s", job.Name)
		}
	}
	return nil
}

// Stop tears down every driver and reports all failures.
func (s *Scheduler) Stop(ctx context.Context) error {
	var result error
	for _, job := range s.jobs {
		if job.Driver == nil {
			continue
		}
		if err := job.Driver.Stop(ctx); err != nil {
			result = errors.CombineErrors(result, errors.Wrapf(err, "stop job %s", job.Name))
		}
	}
	return result
}
