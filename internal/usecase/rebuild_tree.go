package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/msa"
	"github.com/blastxplorer/blastxplorer/internal/repository"
)

// RebuildTreeUsecase recomputes a run's tree from its persisted subjects
// without re-running the search.
type RebuildTreeUsecase struct {
	repo     repository.RunRepository
	notifier Notifier
	logger   *zap.Logger
}

// NewRebuildTreeUsecase creates a RebuildTreeUsecase.
func NewRebuildTreeUsecase(repo repository.RunRepository, notifier Notifier, logger *zap.Logger) *RebuildTreeUsecase {
	return &RebuildTreeUsecase{repo: repo, notifier: notifier, logger: logger}
}

// Execute rebuilds one run's tree. Build failures end the run in ERROR with
// the failure message; only persistence failures propagate.
func (uc *RebuildTreeUsecase) Execute(ctx context.Context, runID uuid.UUID) error {
	run, err := uc.repo.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			uc.logger.Warn("Rebuild task for unknown run, dropping",
				zap.String("run_id", runID.String()))
			return nil
		}
		return err
	}
	if run.Deleted {
		uc.logger.Info("Run deleted, dropping rebuild",
			zap.String("run_id", run.ID.String()))
		return nil
	}

	run.Status = domain.StatusRunning
	run.Tree = ""
	if err := uc.repo.Update(ctx, run); err != nil {
		return err
	}

	if err := uc.rebuild(ctx, run); err != nil {
		uc.logger.Error("Tree rebuild failed",
			zap.Error(err),
			zap.String("run_id", run.ID.String()))
		run.Status = domain.StatusError
		run.Message = err.Error()
	}

	if err := uc.repo.Update(ctx, run); err != nil {
		return err
	}
	notifyIfTerminal(ctx, uc.notifier, run, uc.logger)
	return nil
}

func (uc *RebuildTreeUsecase) rebuild(ctx context.Context, run *domain.BlastRun) error {
	subjects, err := uc.repo.ListSubjects(ctx, run.ID)
	if err != nil {
		return err
	}

	seqs := make([]msa.Sequence, 0, len(subjects)+1)
	seqs = append(seqs, msa.Sequence{Name: run.QueryID, Seq: run.QuerySeq})
	for _, s := range subjects {
		seqs = append(seqs, msa.Sequence{Name: s.Name, Seq: s.Sequence})
	}

	tree, err := buildTree(seqs)
	if err != nil {
		return err
	}
	run.Tree = tree
	run.Status = domain.StatusFinished
	return nil
}
