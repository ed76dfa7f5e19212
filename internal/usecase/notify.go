package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/metrics"
)

// notifyIfTerminal emails the run owner after a terminal transition.
// Best effort: failures are logged and never change the run's outcome.
func notifyIfTerminal(ctx context.Context, n Notifier, run *domain.BlastRun, logger *zap.Logger) {
	if n == nil || run.Email == "" || !run.Status.IsTerminal() {
		return
	}
	if err := n.RunFinished(ctx, run); err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		logger.Warn("Failed to send notification",
			zap.Error(err),
			zap.String("run_id", run.ID.String()),
		)
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}
