package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/domain"
)

// Dispatcher routes queue tasks to their usecases. It implements the worker
// pool's handler contract; a nil return acks the message, an error
// dead-letters it.
type Dispatcher struct {
	search  *RunSearchUsecase
	rebuild *RebuildTreeUsecase
	purge   *PurgeHistoryUsecase
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher over the task-handling usecases.
func NewDispatcher(
	search *RunSearchUsecase,
	rebuild *RebuildTreeUsecase,
	purge *PurgeHistoryUsecase,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		search:  search,
		rebuild: rebuild,
		purge:   purge,
		logger:  logger,
	}
}

// Handle processes one task by type. Unknown types are dropped with a
// warning rather than dead-lettered: requeueing cannot fix them.
func (d *Dispatcher) Handle(ctx context.Context, task *domain.Task) error {
	switch task.Type {
	case domain.TaskSearchDirect, domain.TaskSearchDelegated:
		return d.search.Execute(ctx, task)
	case domain.TaskRebuildTree:
		return d.rebuild.Execute(ctx, task.RunID)
	case domain.TaskPurgeHistory:
		return d.purge.Execute(ctx, task.RunID)
	default:
		d.logger.Warn("Unknown task type, dropping",
			zap.String("type", string(task.Type)),
			zap.String("run_id", task.RunID.String()))
		return nil
	}
}
