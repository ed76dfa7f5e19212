package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/metrics"
	"github.com/blastxplorer/blastxplorer/internal/repository"
)

// RunSearchUsecase drives one search task from queued message to persisted
// outcome: load the run, hand it to its backend, store the result, notify,
// cool down.
type RunSearchUsecase struct {
	repo     repository.RunRepository
	backends map[domain.Backend]SearchBackend
	notifier Notifier
	cooldown time.Duration
	logger   *zap.Logger
}

// NewRunSearchUsecase creates a RunSearchUsecase. cooldown is the pause
// held after every search task, throttling submissions to the shared
// remote services.
func NewRunSearchUsecase(
	repo repository.RunRepository,
	backends map[domain.Backend]SearchBackend,
	notifier Notifier,
	cooldown time.Duration,
	logger *zap.Logger,
) *RunSearchUsecase {
	return &RunSearchUsecase{
		repo:     repo,
		backends: backends,
		notifier: notifier,
		cooldown: cooldown,
		logger:   logger,
	}
}

// Execute processes a single search task. Backend and input failures are
// absorbed into a terminal ERROR on the run; only persistence failures
// propagate, sending the message to the dead letter queue.
func (uc *RunSearchUsecase) Execute(ctx context.Context, task *domain.Task) error {
	run, err := uc.repo.GetByID(ctx, task.RunID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			uc.logger.Warn("Search task for unknown run, dropping",
				zap.String("run_id", task.RunID.String()))
			return nil
		}
		return err
	}
	if run.Deleted || run.Status.IsTerminal() {
		uc.logger.Info("Run already settled, dropping task",
			zap.String("run_id", run.ID.String()),
			zap.String("status", string(run.Status)))
		return nil
	}

	backend, ok := uc.backends[run.Backend]
	if !ok {
		return fmt.Errorf("usecase: no backend registered for %q", run.Backend)
	}

	if err := backend.Run(ctx, run, task.Query); err != nil {
		uc.logger.Error("Search failed",
			zap.Error(err),
			zap.String("run_id", run.ID.String()),
			zap.String("backend", string(run.Backend)))
		run.Status = domain.StatusError
		run.Message = err.Error()
		metrics.SearchesTotal.WithLabelValues(string(run.Backend), "error").Inc()
	} else {
		metrics.SearchesTotal.WithLabelValues(string(run.Backend), "ok").Inc()
	}

	if err := uc.repo.Update(ctx, run); err != nil {
		uc.logger.Error("Failed to persist run",
			zap.Error(err),
			zap.String("run_id", run.ID.String()))
		return err
	}

	notifyIfTerminal(ctx, uc.notifier, run, uc.logger)

	// The shared public service asks for a pause between submissions; the
	// cooldown holds this worker slot whatever the outcome.
	sleepWithContext(ctx, uc.cooldown)

	return nil
}

// sleepWithContext sleeps for duration d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
