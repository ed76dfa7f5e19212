package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a BLAST run.
type RunStatus string

const (
	StatusPending  RunStatus = "PENDING"
	StatusRunning  RunStatus = "RUNNING"
	StatusFinished RunStatus = "FINISHED"
	StatusError    RunStatus = "ERROR"
)

// IsTerminal returns true if the status represents a final state.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusError:
		return true
	}
	return false
}

// Backend selects how a run's search is executed.
type Backend string

const (
	// BackendDirect blocks on the public search service inside one task.
	BackendDirect Backend = "direct"
	// BackendDelegated submits to the remote execution service and is
	// completed later by the poll cycle.
	BackendDelegated Backend = "delegated"
)

// BlastRun is the persistent state of one submitted search.
type BlastRun struct {
	ID       uuid.UUID `json:"id"`
	QueryID  string    `json:"query_id"`
	QuerySeq string    `json:"query_seq"`
	Program  string    `json:"program"`
	DBName   string    `json:"db_name"`
	EValue   float64   `json:"evalue"`
	Coverage float64   `json:"coverage"`
	Backend  Backend   `json:"backend"`
	Email    string    `json:"email"`

	// Remote handles, set by the delegated backend only.
	HistoryID     string `json:"history_id"`
	HistoryFileID string `json:"history_file_id"`

	Status  RunStatus `json:"status"`
	Message string    `json:"message"`
	Tree    string    `json:"tree"`
	Deleted bool      `json:"deleted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BlastSubject is one retained hit belonging to a run. Subjects are written
// in bulk when a run finishes and never mutated afterwards.
type BlastSubject struct {
	ID        int64     `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	Name      string    `json:"name"`
	Sequence  string    `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}
