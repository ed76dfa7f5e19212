package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/repository"
)

var _ repository.RunRepository = (*pgRunRepo)(nil)

const runColumns = `id, query_id, query_seq, program, db_name, evalue, coverage,
	backend, email, history_id, history_file_id, status, message, tree,
	deleted, created_at, updated_at`

type pgRunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a PostgreSQL-backed run repository.
func NewRunRepository(pool *pgxpool.Pool) repository.RunRepository {
	return &pgRunRepo{pool: pool}
}

func (r *pgRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BlastRun, error) {
	query := `SELECT ` + runColumns + ` FROM blast_runs WHERE id = $1`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("postgres: get run: %w", err)
	}
	return run, nil
}

func (r *pgRunRepo) Create(ctx context.Context, run *domain.BlastRun) error {
	query := `
		INSERT INTO blast_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.QueryID, run.QuerySeq, run.Program, run.DBName,
		run.EValue, run.Coverage, run.Backend, run.Email,
		run.HistoryID, run.HistoryFileID, run.Status, run.Message, run.Tree,
		run.Deleted, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create run: %w", err)
	}
	return nil
}

func (r *pgRunRepo) Update(ctx context.Context, run *domain.BlastRun) error {
	query := `
		UPDATE blast_runs
		SET query_id = $1, query_seq = $2, history_id = $3, history_file_id = $4,
		    status = $5, message = $6, tree = $7, deleted = $8, updated_at = $9
		WHERE id = $10`

	run.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx, query,
		run.QueryID, run.QuerySeq, run.HistoryID, run.HistoryFileID,
		run.Status, run.Message, run.Tree, run.Deleted, run.UpdatedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: run not found: %s", run.ID)
	}
	return nil
}

func (r *pgRunRepo) ListActiveDelegated(ctx context.Context) ([]*domain.BlastRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM blast_runs
		WHERE deleted = false AND backend = $1 AND status = ANY($2)
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, domain.BackendDelegated,
		[]string{string(domain.StatusPending), string(domain.StatusRunning)})
	if err != nil {
		return nil, fmt.Errorf("postgres: list active runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

func (r *pgRunRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]*domain.BlastRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM blast_runs
		WHERE deleted = false AND created_at <= $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expired runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

func (r *pgRunRepo) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE blast_runs SET deleted = true, updated_at = $1 WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: mark run deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: run not found: %s", id)
	}
	return nil
}

func (r *pgRunRepo) AddSubjects(ctx context.Context, runID uuid.UUID, subjects []domain.BlastSubject) error {
	if len(subjects) == 0 {
		return nil
	}

	query := `INSERT INTO blast_subjects (run_id, name, sequence, created_at) VALUES ($1, $2, $3, $4)`
	now := time.Now().UTC()

	batch := &pgx.Batch{}
	for _, s := range subjects {
		batch.Queue(query, runID, s.Name, s.Sequence, now)
	}

	results := r.pool.SendBatch(ctx, batch)
	for range subjects {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("postgres: insert subject: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("postgres: close subject batch: %w", err)
	}
	return nil
}

func (r *pgRunRepo) ListSubjects(ctx context.Context, runID uuid.UUID) ([]domain.BlastSubject, error) {
	query := `
		SELECT id, run_id, name, sequence, created_at
		FROM blast_subjects
		WHERE run_id = $1
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []domain.BlastSubject
	for rows.Next() {
		var s domain.BlastSubject
		if err := rows.Scan(&s.ID, &s.RunID, &s.Name, &s.Sequence, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate subjects: %w", err)
	}
	return subjects, nil
}

func scanRun(row pgx.Row) (*domain.BlastRun, error) {
	var run domain.BlastRun
	err := row.Scan(
		&run.ID, &run.QueryID, &run.QuerySeq, &run.Program, &run.DBName,
		&run.EValue, &run.Coverage, &run.Backend, &run.Email,
		&run.HistoryID, &run.HistoryFileID, &run.Status, &run.Message, &run.Tree,
		&run.Deleted, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func collectRuns(rows pgx.Rows) ([]*domain.BlastRun, error) {
	var runs []*domain.BlastRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate runs: %w", err)
	}
	return runs, nil
}
