package domain

import "github.com/google/uuid"

// TaskType identifies the unit of work carried by a queue message.
type TaskType string

const (
	// TaskSearchDirect runs a blocking search against the public service.
	// It is consumed from its own queue by a single-concurrency lane.
	TaskSearchDirect TaskType = "search.direct"
	// TaskSearchDelegated submits a search to the remote execution service
	// and returns once submission is acknowledged.
	TaskSearchDelegated TaskType = "search.delegated"
	// TaskRebuildTree recomputes the tree of a finished run from its
	// persisted subjects.
	TaskRebuildTree TaskType = "tree.rebuild"
	// TaskPurgeHistory deletes a run's remote execution context.
	// Best-effort: failures are logged and never retried.
	TaskPurgeHistory TaskType = "history.purge"
)

// Task is the payload of one queue message.
type Task struct {
	Type  TaskType  `json:"type"`
	RunID uuid.UUID `json:"run_id"`

	// Query carries the raw FASTA text for the two search task types.
	Query string `json:"query,omitempty"`
}

// TaskMessage wraps a Task with the broker acknowledgement callbacks the
// worker pool calls after handling completes.
type TaskMessage struct {
	Task *Task
	Ack  func() error
	Nack func(requeue bool) error
}
