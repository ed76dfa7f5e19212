package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/blastxplorer/blastxplorer/internal/domain"
)

// RunRepository persists blast runs and their subjects.
type RunRepository interface {
	// GetByID loads a run regardless of its deletion flag.
	// Returns domain.ErrRunNotFound when no row exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BlastRun, error)

	// Create inserts a new run row.
	Create(ctx context.Context, run *domain.BlastRun) error

	// Update persists every mutable field of the run.
	Update(ctx context.Context, run *domain.BlastRun) error

	// ListActiveDelegated returns all non-deleted delegated-backend runs
	// still awaiting a remote result (status PENDING or RUNNING).
	ListActiveDelegated(ctx context.Context) ([]*domain.BlastRun, error)

	// ListExpired returns all non-deleted runs created at or before cutoff.
	ListExpired(ctx context.Context, cutoff time.Time) ([]*domain.BlastRun, error)

	// MarkDeleted soft-deletes a run.
	MarkDeleted(ctx context.Context, id uuid.UUID) error

	// AddSubjects bulk-inserts the retained hits of a finished run.
	AddSubjects(ctx context.Context, runID uuid.UUID, subjects []domain.BlastSubject) error

	// ListSubjects returns a run's subjects in insertion order.
	ListSubjects(ctx context.Context, runID uuid.UUID) ([]domain.BlastSubject, error)
}

// LeaseLock is a mutual-exclusion flag with automatic expiry, shared across
// worker processes. A crashed holder never blocks later acquisitions past
// the lease duration.
type LeaseLock interface {
	// Acquire attempts to take the lock. Returns false without error when
	// another holder currently owns it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release frees the lock before its lease expires.
	Release(ctx context.Context, key string) error
}
