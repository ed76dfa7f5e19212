package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/repository"
)

// PurgeHistoryUsecase deletes a run's remote execution context. Purging is
// fire-and-forget: it never returns an error, so purge tasks are always
// acked and never retried.
type PurgeHistoryUsecase struct {
	repo   repository.RunRepository
	client ExecutionClient
	logger *zap.Logger
}

// NewPurgeHistoryUsecase creates a PurgeHistoryUsecase.
func NewPurgeHistoryUsecase(repo repository.RunRepository, client ExecutionClient, logger *zap.Logger) *PurgeHistoryUsecase {
	return &PurgeHistoryUsecase{repo: repo, client: client, logger: logger}
}

// Execute purges the remote context of one run, if it has any.
func (uc *PurgeHistoryUsecase) Execute(ctx context.Context, runID uuid.UUID) error {
	run, err := uc.repo.GetByID(ctx, runID)
	if err != nil {
		uc.logger.Warn("Purge task could not load run",
			zap.Error(err),
			zap.String("run_id", runID.String()))
		return nil
	}
	if run.HistoryID == "" {
		return nil
	}

	if err := uc.client.PurgeHistory(ctx, run.HistoryID); err != nil {
		uc.logger.Warn("Remote purge failed",
			zap.Error(err),
			zap.String("run_id", run.ID.String()),
			zap.String("history_id", run.HistoryID))
		return nil
	}

	uc.logger.Info("Remote history purged",
		zap.String("run_id", run.ID.String()),
		zap.String("history_id", run.HistoryID))
	return nil
}
