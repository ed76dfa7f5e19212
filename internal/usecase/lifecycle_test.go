package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	pubmock "github.com/blastxplorer/blastxplorer/internal/publisher/mock"
	"github.com/blastxplorer/blastxplorer/internal/repository/mock"
	"github.com/blastxplorer/blastxplorer/internal/usecase"
)

// ---- tree rebuild ----

// Test: rebuilding recomputes the tree from persisted subjects, clearing the
// old one while the work runs.
func TestRebuildTree_Success(t *testing.T) {
	run := newStoredRun(domain.BackendDirect)
	run.QueryID = "q1"
	run.QuerySeq = "ACGTACGT"
	run.Status = domain.StatusFinished
	run.Tree = "(stale);"

	repo := repoWithRun(run)
	repo.ListSubjectsFn = func(ctx context.Context, runID uuid.UUID) ([]domain.BlastSubject, error) {
		return []domain.BlastSubject{
			{RunID: run.ID, Name: "hit1_Homo_sapiens", Sequence: "ACGTACGA"},
		}, nil
	}
	notifier := &fakeNotifier{}

	uc := usecase.NewRebuildTreeUsecase(repo, notifier, zap.NewNop())
	if err := uc.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.Status != domain.StatusFinished {
		t.Fatalf("status = %s, want FINISHED (message: %q)", run.Status, run.Message)
	}
	if run.Tree == "" || run.Tree == "(stale);" {
		t.Errorf("tree = %q, want a fresh one", run.Tree)
	}
	if !strings.Contains(run.Tree, "hit1_Homo_sapiens") {
		t.Errorf("tree missing subject: %q", run.Tree)
	}

	if len(repo.Updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(repo.Updates))
	}
	if repo.Updates[0].Status != domain.StatusRunning || repo.Updates[0].Tree != "" {
		t.Errorf("first update = (status %s, tree %q), want RUNNING with cleared tree",
			repo.Updates[0].Status, repo.Updates[0].Tree)
	}
	if len(notifier.Notified) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifier.Notified))
	}
}

// Test: a run with no subjects cannot form a tree and ends in ERROR.
func TestRebuildTree_NoSubjects(t *testing.T) {
	run := newStoredRun(domain.BackendDirect)
	run.QueryID = "q1"
	run.QuerySeq = "ACGTACGT"
	run.Status = domain.StatusFinished
	repo := repoWithRun(run)

	uc := usecase.NewRebuildTreeUsecase(repo, nil, zap.NewNop())
	if err := uc.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.Status != domain.StatusError {
		t.Fatalf("status = %s, want ERROR", run.Status)
	}
	if !strings.Contains(run.Message, "not enough sequences") {
		t.Errorf("message = %q", run.Message)
	}
}

// Test: rebuild tasks for unknown or deleted runs are dropped quietly.
func TestRebuildTree_MissingOrDeleted(t *testing.T) {
	uc := usecase.NewRebuildTreeUsecase(&mock.RunRepository{}, nil, zap.NewNop())
	if err := uc.Execute(context.Background(), uuid.New()); err != nil {
		t.Fatalf("unknown run: %v", err)
	}

	run := newStoredRun(domain.BackendDirect)
	run.Deleted = true
	repo := repoWithRun(run)
	uc = usecase.NewRebuildTreeUsecase(repo, nil, zap.NewNop())
	if err := uc.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("deleted run: %v", err)
	}
	if len(repo.Updates) != 0 {
		t.Errorf("updates = %d, want 0 for deleted run", len(repo.Updates))
	}
}

// ---- retention sweep ----

// Test: the sweep soft-deletes expired runs and schedules a purge for each
// one that still has a remote context.
func TestExpireRuns_Sweep(t *testing.T) {
	withHistory := newStoredRun(domain.BackendDelegated)
	withHistory.HistoryID = "hist42"
	withoutHistory := newStoredRun(domain.BackendDirect)

	var cutoffSeen time.Time
	repo := &mock.RunRepository{
		ListExpiredFn: func(ctx context.Context, cutoff time.Time) ([]*domain.BlastRun, error) {
			cutoffSeen = cutoff
			return []*domain.BlastRun{withHistory, withoutHistory}, nil
		},
	}
	pub := &pubmock.Publisher{}

	uc := usecase.NewExpireRunsUsecase(repo, pub, 14, zap.NewNop())
	if err := uc.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	want := time.Now().AddDate(0, 0, -14)
	if cutoffSeen.Before(want.Add(-time.Minute)) || cutoffSeen.After(want.Add(time.Minute)) {
		t.Errorf("cutoff = %v, want about %v", cutoffSeen, want)
	}

	if len(pub.Published) != 1 {
		t.Fatalf("published = %d, want 1", len(pub.Published))
	}
	if pub.Published[0].Type != domain.TaskPurgeHistory || pub.Published[0].RunID != withHistory.ID {
		t.Errorf("published task = %+v", pub.Published[0])
	}

	if len(repo.DeletedIDs) != 2 {
		t.Errorf("deleted = %v, want both runs", repo.DeletedIDs)
	}
}

// Test: a failed purge publish never blocks the deletion.
func TestExpireRuns_PublishFailureStillDeletes(t *testing.T) {
	run := newStoredRun(domain.BackendDelegated)
	run.HistoryID = "hist42"
	repo := &mock.RunRepository{
		ListExpiredFn: func(ctx context.Context, cutoff time.Time) ([]*domain.BlastRun, error) {
			return []*domain.BlastRun{run}, nil
		},
	}
	pub := &pubmock.Publisher{
		PublishFn: func(ctx context.Context, task *domain.Task) error {
			return errors.New("broker unavailable")
		},
	}

	uc := usecase.NewExpireRunsUsecase(repo, pub, 14, zap.NewNop())
	if err := uc.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(repo.DeletedIDs) != 1 || repo.DeletedIDs[0] != run.ID {
		t.Errorf("deleted = %v", repo.DeletedIDs)
	}
}

// Test: one failed deletion does not stop the rest of the sweep.
func TestExpireRuns_DeleteFailureContinues(t *testing.T) {
	first := newStoredRun(domain.BackendDirect)
	second := newStoredRun(domain.BackendDirect)
	repo := &mock.RunRepository{
		ListExpiredFn: func(ctx context.Context, cutoff time.Time) ([]*domain.BlastRun, error) {
			return []*domain.BlastRun{first, second}, nil
		},
		MarkDeletedFn: func(ctx context.Context, id uuid.UUID) error {
			if id == first.ID {
				return errors.New("deadlock detected")
			}
			return nil
		},
	}

	uc := usecase.NewExpireRunsUsecase(repo, &pubmock.Publisher{}, 14, zap.NewNop())
	if err := uc.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(repo.DeletedIDs) != 2 {
		t.Errorf("deletion attempts = %d, want 2", len(repo.DeletedIDs))
	}
}

// Test: a listing failure fails the sweep.
func TestExpireRuns_ListFailure(t *testing.T) {
	repo := &mock.RunRepository{
		ListExpiredFn: func(ctx context.Context, cutoff time.Time) ([]*domain.BlastRun, error) {
			return nil, errors.New("connection refused")
		},
	}
	uc := usecase.NewExpireRunsUsecase(repo, &pubmock.Publisher{}, 14, zap.NewNop())
	if err := uc.Sweep(context.Background()); err == nil {
		t.Fatal("want error from listing failure")
	}
}

// ---- remote purge ----

// Test: the purge task deletes the run's remote context.
func TestPurgeHistory_Purges(t *testing.T) {
	run := newStoredRun(domain.BackendDelegated)
	run.HistoryID = "hist42"
	repo := repoWithRun(run)
	exec := &fakeExecution{}

	uc := usecase.NewPurgeHistoryUsecase(repo, exec, zap.NewNop())
	if err := uc.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(exec.Purged) != 1 || exec.Purged[0] != "hist42" {
		t.Errorf("purged = %v", exec.Purged)
	}
}

// Test: purging is fire-and-forget — missing runs, runs without a context
// and remote failures all ack the task.
func TestPurgeHistory_AlwaysAcks(t *testing.T) {
	exec := &fakeExecution{}
	uc := usecase.NewPurgeHistoryUsecase(&mock.RunRepository{}, exec, zap.NewNop())
	if err := uc.Execute(context.Background(), uuid.New()); err != nil {
		t.Fatalf("missing run: %v", err)
	}
	if len(exec.Purged) != 0 {
		t.Errorf("purged = %v, want none for missing run", exec.Purged)
	}

	direct := newStoredRun(domain.BackendDirect)
	uc = usecase.NewPurgeHistoryUsecase(repoWithRun(direct), exec, zap.NewNop())
	if err := uc.Execute(context.Background(), direct.ID); err != nil {
		t.Fatalf("run without context: %v", err)
	}
	if len(exec.Purged) != 0 {
		t.Errorf("purged = %v, want none without a context", exec.Purged)
	}

	remote := newStoredRun(domain.BackendDelegated)
	remote.HistoryID = "hist42"
	failing := &fakeExecution{
		PurgeHistoryFn: func(ctx context.Context, historyID string) error {
			return errors.New("service unavailable")
		},
	}
	uc = usecase.NewPurgeHistoryUsecase(repoWithRun(remote), failing, zap.NewNop())
	if err := uc.Execute(context.Background(), remote.ID); err != nil {
		t.Fatalf("remote failure: %v", err)
	}
}

// ---- dispatch ----

// Test: tasks reach the usecase matching their type; unknown types are
// dropped without error.
func TestDispatcher_Routing(t *testing.T) {
	run := newStoredRun(domain.BackendDelegated)
	run.HistoryID = "hist42"
	repo := repoWithRun(run)
	exec := &fakeExecution{}

	search := usecase.NewRunSearchUsecase(repo, nil, nil, 0, zap.NewNop())
	rebuild := usecase.NewRebuildTreeUsecase(repo, nil, zap.NewNop())
	purge := usecase.NewPurgeHistoryUsecase(repo, exec, zap.NewNop())
	d := usecase.NewDispatcher(search, rebuild, purge, zap.NewNop())

	if err := d.Handle(context.Background(), &domain.Task{Type: domain.TaskPurgeHistory, RunID: run.ID}); err != nil {
		t.Fatalf("purge task: %v", err)
	}
	if len(exec.Purged) != 1 {
		t.Errorf("purged = %v, want the purge usecase invoked", exec.Purged)
	}

	if err := d.Handle(context.Background(), &domain.Task{Type: "compact.database", RunID: run.ID}); err != nil {
		t.Fatalf("unknown task type: %v", err)
	}
}
