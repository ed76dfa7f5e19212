package usecase

import (
	"context"
	"io"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/galaxy"
)

// Searcher runs a blocking search against the public service and returns
// the raw result stream once it completes.
type Searcher interface {
	Search(ctx context.Context, program, database, query string) (io.ReadCloser, error)
}

// ExecutionClient is the slice of the remote execution service API the
// coordinator depends on.
type ExecutionClient interface {
	CreateHistory(ctx context.Context, name string) (string, error)
	UploadFile(ctx context.Context, historyID, path, name, fileType string) (string, error)
	RunTool(ctx context.Context, historyID, toolID string, inputs map[string]any) (string, error)
	ShowDataset(ctx context.Context, historyID, datasetID string) (*galaxy.Dataset, error)
	DownloadDataset(ctx context.Context, historyID, datasetID string) (io.ReadCloser, error)
	PurgeHistory(ctx context.Context, historyID string) error
}

// SearchBackend executes one run's search. The direct implementation blocks
// until results are finalized; the delegated one returns once the remote
// side has accepted the job, leaving completion to the poll cycle.
type SearchBackend interface {
	Run(ctx context.Context, run *domain.BlastRun, query string) error
}

// Notifier delivers terminal-state email to the run owner.
type Notifier interface {
	RunFinished(ctx context.Context, run *domain.BlastRun) error
}
