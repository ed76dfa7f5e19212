package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/metrics"
	"github.com/blastxplorer/blastxplorer/internal/publisher"
	"github.com/blastxplorer/blastxplorer/internal/repository"
)

// ExpireRunsUsecase soft-deletes runs past the retention window and
// schedules best-effort purges of their remote execution contexts.
type ExpireRunsUsecase struct {
	repo          repository.RunRepository
	publisher     publisher.Publisher
	retentionDays int
	logger        *zap.Logger
}

// NewExpireRunsUsecase creates an ExpireRunsUsecase keeping runs for
// retentionDays after creation.
func NewExpireRunsUsecase(
	repo repository.RunRepository,
	pub publisher.Publisher,
	retentionDays int,
	logger *zap.Logger,
) *ExpireRunsUsecase {
	return &ExpireRunsUsecase{
		repo:          repo,
		publisher:     pub,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Sweep removes every run older than the retention window. Purge
// scheduling and per-run deletion failures are logged and the sweep moves
// on; only the initial listing can fail the sweep itself.
func (uc *ExpireRunsUsecase) Sweep(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -uc.retentionDays)
	runs, err := uc.repo.ListExpired(ctx, cutoff)
	if err != nil {
		return err
	}

	expired := 0
	for _, run := range runs {
		if run.HistoryID != "" {
			task := &domain.Task{Type: domain.TaskPurgeHistory, RunID: run.ID}
			if err := uc.publisher.Publish(ctx, task); err != nil {
				// Purge is best effort; the run is removed regardless.
				uc.logger.Warn("Failed to schedule remote purge",
					zap.Error(err),
					zap.String("run_id", run.ID.String()))
			}
		}
		if err := uc.repo.MarkDeleted(ctx, run.ID); err != nil {
			uc.logger.Error("Failed to soft-delete run",
				zap.Error(err),
				zap.String("run_id", run.ID.String()))
			continue
		}
		expired++
		metrics.RunsExpiredTotal.Inc()
	}

	if expired > 0 {
		uc.logger.Info("Expiry sweep finished",
			zap.Int("expired", expired),
			zap.Time("cutoff", cutoff))
	}
	return nil
}
