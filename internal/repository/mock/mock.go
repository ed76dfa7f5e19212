package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/repository"
)

// ---- RunRepository mock ----

var _ repository.RunRepository = (*RunRepository)(nil)

// RunRepository is a test double for repository.RunRepository. Calls are
// recorded for assertions; run snapshots are stored by value because the
// usecases keep mutating the same struct.
type RunRepository struct {
	mu sync.Mutex

	GetByIDFn             func(ctx context.Context, id uuid.UUID) (*domain.BlastRun, error)
	CreateFn              func(ctx context.Context, run *domain.BlastRun) error
	UpdateFn              func(ctx context.Context, run *domain.BlastRun) error
	ListActiveDelegatedFn func(ctx context.Context) ([]*domain.BlastRun, error)
	ListExpiredFn         func(ctx context.Context, cutoff time.Time) ([]*domain.BlastRun, error)
	MarkDeletedFn         func(ctx context.Context, id uuid.UUID) error
	AddSubjectsFn         func(ctx context.Context, runID uuid.UUID, subjects []domain.BlastSubject) error
	ListSubjectsFn        func(ctx context.Context, runID uuid.UUID) ([]domain.BlastSubject, error)

	// Recorded calls for assertions.
	Created     []domain.BlastRun
	Updates     []domain.BlastRun
	SubjectAdds []SubjectAdd
	DeletedIDs  []uuid.UUID
}

type SubjectAdd struct {
	RunID    uuid.UUID
	Subjects []domain.BlastSubject
}

func (m *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BlastRun, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, domain.ErrRunNotFound
}

func (m *RunRepository) Create(ctx context.Context, run *domain.BlastRun) error {
	m.mu.Lock()
	m.Created = append(m.Created, *run)
	m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, run)
	}
	return nil
}

func (m *RunRepository) Update(ctx context.Context, run *domain.BlastRun) error {
	m.mu.Lock()
	m.Updates = append(m.Updates, *run)
	m.mu.Unlock()
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, run)
	}
	return nil
}

func (m *RunRepository) ListActiveDelegated(ctx context.Context) ([]*domain.BlastRun, error) {
	if m.ListActiveDelegatedFn != nil {
		return m.ListActiveDelegatedFn(ctx)
	}
	return nil, nil
}

func (m *RunRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]*domain.BlastRun, error) {
	if m.ListExpiredFn != nil {
		return m.ListExpiredFn(ctx, cutoff)
	}
	return nil, nil
}

func (m *RunRepository) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.DeletedIDs = append(m.DeletedIDs, id)
	m.mu.Unlock()
	if m.MarkDeletedFn != nil {
		return m.MarkDeletedFn(ctx, id)
	}
	return nil
}

func (m *RunRepository) AddSubjects(ctx context.Context, runID uuid.UUID, subjects []domain.BlastSubject) error {
	m.mu.Lock()
	m.SubjectAdds = append(m.SubjectAdds, SubjectAdd{RunID: runID, Subjects: subjects})
	m.mu.Unlock()
	if m.AddSubjectsFn != nil {
		return m.AddSubjectsFn(ctx, runID, subjects)
	}
	return nil
}

func (m *RunRepository) ListSubjects(ctx context.Context, runID uuid.UUID) ([]domain.BlastSubject, error) {
	if m.ListSubjectsFn != nil {
		return m.ListSubjectsFn(ctx, runID)
	}
	return nil, nil
}

// ---- LeaseLock mock ----

var _ repository.LeaseLock = (*LeaseLock)(nil)

// LeaseLock is a test double for repository.LeaseLock.
type LeaseLock struct {
	mu sync.Mutex

	AcquireFn func(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseFn func(ctx context.Context, key string) error

	AcquireCalls []string
	ReleaseCalls []string
}

func (m *LeaseLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, key)
	m.mu.Unlock()
	if m.AcquireFn != nil {
		return m.AcquireFn(ctx, key, ttl)
	}
	return true, nil // default: lock acquired
}

func (m *LeaseLock) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, key)
	m.mu.Unlock()
	if m.ReleaseFn != nil {
		return m.ReleaseFn(ctx, key)
	}
	return nil
}
