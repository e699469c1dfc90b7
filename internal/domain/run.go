package domain

import "time"

// RunStatus is the run-level state machine status.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// RunID uniquely identifies a run.
type RunID string

// Run is one attempt to complete a thread's task.
type Run struct {
	ID            RunID
	ThreadID      ThreadID
	Status        RunStatus
	MaxIterations int
	Iterations    int
	TaskOverride  string
	SourceRunID   RunID
	Error         string
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// IsTerminal reports whether the run can no longer transition.
func (r *Run) IsTerminal() bool {
	switch r.Status {
	case RunCompleted, RunFailed, RunCancelled:
		return true
	default:
		return false
	}
}
