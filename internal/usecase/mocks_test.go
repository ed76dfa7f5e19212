package usecase_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/galaxy"
)

var errFakeNotConfigured = errors.New("fake: call not configured")

// fakeSearcher is a test double for the public search service.
type fakeSearcher struct {
	SearchFn func(ctx context.Context, program, database, query string) (io.ReadCloser, error)
	Calls    int
}

func (f *fakeSearcher) Search(ctx context.Context, program, database, query string) (io.ReadCloser, error) {
	f.Calls++
	if f.SearchFn == nil {
		return nil, errFakeNotConfigured
	}
	return f.SearchFn(ctx, program, database, query)
}

// fakeExecution is a test double for the remote execution service.
// Unconfigured calls fail loudly so a test never exercises a path it did
// not mean to.
type fakeExecution struct {
	CreateHistoryFn   func(ctx context.Context, name string) (string, error)
	UploadFileFn      func(ctx context.Context, historyID, path, name, fileType string) (string, error)
	RunToolFn         func(ctx context.Context, historyID, toolID string, inputs map[string]any) (string, error)
	ShowDatasetFn     func(ctx context.Context, historyID, datasetID string) (*galaxy.Dataset, error)
	DownloadDatasetFn func(ctx context.Context, historyID, datasetID string) (io.ReadCloser, error)
	PurgeHistoryFn    func(ctx context.Context, historyID string) error

	ShowCalls int
	Purged    []string
}

func (f *fakeExecution) CreateHistory(ctx context.Context, name string) (string, error) {
	if f.CreateHistoryFn == nil {
		return "", errFakeNotConfigured
	}
	return f.CreateHistoryFn(ctx, name)
}

func (f *fakeExecution) UploadFile(ctx context.Context, historyID, path, name, fileType string) (string, error) {
	if f.UploadFileFn == nil {
		return "", errFakeNotConfigured
	}
	return f.UploadFileFn(ctx, historyID, path, name, fileType)
}

func (f *fakeExecution) RunTool(ctx context.Context, historyID, toolID string, inputs map[string]any) (string, error) {
	if f.RunToolFn == nil {
		return "", errFakeNotConfigured
	}
	return f.RunToolFn(ctx, historyID, toolID, inputs)
}

func (f *fakeExecution) ShowDataset(ctx context.Context, historyID, datasetID string) (*galaxy.Dataset, error) {
	f.ShowCalls++
	if f.ShowDatasetFn == nil {
		return nil, errFakeNotConfigured
	}
	return f.ShowDatasetFn(ctx, historyID, datasetID)
}

func (f *fakeExecution) DownloadDataset(ctx context.Context, historyID, datasetID string) (io.ReadCloser, error) {
	if f.DownloadDatasetFn == nil {
		return nil, errFakeNotConfigured
	}
	return f.DownloadDatasetFn(ctx, historyID, datasetID)
}

func (f *fakeExecution) PurgeHistory(ctx context.Context, historyID string) error {
	f.Purged = append(f.Purged, historyID)
	if f.PurgeHistoryFn == nil {
		return nil
	}
	return f.PurgeHistoryFn(ctx, historyID)
}

// fakeNotifier records terminal-state notifications.
type fakeNotifier struct {
	mu       sync.Mutex
	Notified []domain.BlastRun

	RunFinishedFn func(ctx context.Context, run *domain.BlastRun) error
}

func (f *fakeNotifier) RunFinished(ctx context.Context, run *domain.BlastRun) error {
	if f.RunFinishedFn != nil {
		if err := f.RunFinishedFn(ctx, run); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notified = append(f.Notified, *run)
	return nil
}
