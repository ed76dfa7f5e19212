package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/fasta"
	"github.com/blastxplorer/blastxplorer/internal/repository"
)

// DirectBackend completes a search inside the task itself: the call to the
// public service blocks until results are available. Its tasks must run on
// the single-concurrency lane.
type DirectBackend struct {
	repo      repository.RunRepository
	searcher  Searcher
	finalizer *resultFinalizer
	logger    *zap.Logger
}

// NewDirectBackend creates the blocking public-service backend.
// normalizeTitles selects whether subject names go through the label
// normalizer or stay raw first tokens of the hit title.
func NewDirectBackend(repo repository.RunRepository, searcher Searcher, normalizeTitles bool, logger *zap.Logger) *DirectBackend {
	return &DirectBackend{
		repo:      repo,
		searcher:  searcher,
		finalizer: newResultFinalizer(repo, normalizeTitles, logger),
		logger:    logger,
	}
}

var _ SearchBackend = (*DirectBackend)(nil)

func (b *DirectBackend) Run(ctx context.Context, run *domain.BlastRun, query string) error {
	queryID, querySeq, err := fasta.ParseSingle(strings.NewReader(query))
	if err != nil {
		return err
	}
	run.QueryID = queryID
	run.QuerySeq = querySeq

	run.Status = domain.StatusRunning
	if err := b.repo.Update(ctx, run); err != nil {
		return err
	}

	b.logger.Info("Submitting blocking search",
		zap.String("run_id", run.ID.String()),
		zap.String("program", run.Program),
		zap.String("database", run.DBName),
	)

	results, err := b.searcher.Search(ctx, run.Program, run.DBName, query)
	if err != nil {
		return err
	}
	defer results.Close()

	return b.finalizer.finalize(ctx, run, results)
}
