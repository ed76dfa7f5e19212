package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/galaxy"
	"github.com/blastxplorer/blastxplorer/internal/metrics"
	"github.com/blastxplorer/blastxplorer/internal/repository"
)

// pollLockKey guards the poll cycle across all worker processes.
// pollLockTTL is the lease after which a crashed poller stops blocking new
// cycles.
const (
	pollLockKey = "blast_monitor"
	pollLockTTL = 5 * time.Minute
)

// PollRunsUsecase advances delegated runs by querying the remote execution
// server for their artifact state. One cycle runs at a time, system-wide.
type PollRunsUsecase struct {
	repo      repository.RunRepository
	lock      repository.LeaseLock
	client    ExecutionClient
	finalizer *resultFinalizer
	notifier  Notifier
	logger    *zap.Logger
}

// NewPollRunsUsecase creates a PollRunsUsecase.
func NewPollRunsUsecase(
	repo repository.RunRepository,
	lock repository.LeaseLock,
	client ExecutionClient,
	notifier Notifier,
	logger *zap.Logger,
) *PollRunsUsecase {
	return &PollRunsUsecase{
		repo:      repo,
		lock:      lock,
		client:    client,
		finalizer: newResultFinalizer(repo, true, logger),
		notifier:  notifier,
		logger:    logger,
	}
}

// Poll runs one cycle over every active delegated run. skipped reports that
// another worker held the poll lock and nothing was done. An error aborts
// the remaining runs of the cycle; their state is untouched and the next
// cycle retries them.
func (uc *PollRunsUsecase) Poll(ctx context.Context) (skipped bool, err error) {
	defer func() {
		switch {
		case err != nil:
			metrics.PollCyclesTotal.WithLabelValues("error").Inc()
		case skipped:
			metrics.PollCyclesTotal.WithLabelValues("skipped").Inc()
		default:
			metrics.PollCyclesTotal.WithLabelValues("ok").Inc()
		}
	}()

	acquired, err := uc.lock.Acquire(ctx, pollLockKey, pollLockTTL)
	if err != nil {
		return false, err
	}
	if !acquired {
		uc.logger.Debug("Poll lock held elsewhere, skipping cycle")
		return true, nil
	}
	defer func() {
		if rerr := uc.lock.Release(ctx, pollLockKey); rerr != nil {
			uc.logger.Warn("Failed to release poll lock", zap.Error(rerr))
		}
	}()

	runs, err := uc.repo.ListActiveDelegated(ctx)
	if err != nil {
		return false, err
	}

	for _, run := range runs {
		if err := uc.checkRun(ctx, run); err != nil {
			return false, fmt.Errorf("usecase: check run %s: %w", run.ID, err)
		}
	}
	return false, nil
}

func (uc *PollRunsUsecase) checkRun(ctx context.Context, run *domain.BlastRun) error {
	ds, err := uc.client.ShowDataset(ctx, run.HistoryID, run.HistoryFileID)
	if err != nil {
		return err
	}

	// The server's informational text travels on the run every cycle,
	// transition or not.
	run.Message = ds.MiscInfo

	switch ds.State {
	case galaxy.StateOK:
		results, err := uc.client.DownloadDataset(ctx, run.HistoryID, run.HistoryFileID)
		if err != nil {
			return err
		}
		ferr := uc.finalizer.finalize(ctx, run, results)
		results.Close()
		if ferr != nil {
			return ferr
		}
		uc.logger.Info("Delegated run finished", zap.String("run_id", run.ID.String()))
	case galaxy.StateQueued, galaxy.StateNew:
		run.Status = domain.StatusPending
	case galaxy.StateRunning:
		run.Status = domain.StatusRunning
	default:
		run.Status = domain.StatusError
		if run.Message == "" {
			run.Message = fmt.Sprintf("remote job ended in state %q", ds.State)
		}
		uc.logger.Warn("Delegated run failed remotely",
			zap.String("run_id", run.ID.String()),
			zap.String("state", ds.State),
			zap.String("info", ds.MiscInfo))
	}

	if err := uc.repo.Update(ctx, run); err != nil {
		return err
	}
	notifyIfTerminal(ctx, uc.notifier, run, uc.logger)
	return nil
}
