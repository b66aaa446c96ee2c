// Package job runs registered data pipelines as tracked jobs. A job moves
// through pending, running, and exactly one terminal state (completed or
// failed); the manager owns the bookkeeping and the engine owns the
// execution.
package job

import (
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// CancelReason is the sentinel error recorded on a job that was cancelled
// rather than failing on its own.
const CancelReason = "cancelled before completion"

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is the tracked state of one job execution. The manager hands out
// copies; callers never share the live struct with the worker goroutine.
type Record struct {
	ID          string                 `json:"id"`
	Plugin      string                 `json:"plugin"`
	Config      map[string]interface{} `json:"config,omitempty"`
	Status      Status                 `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Result      *Result                `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	ScheduledID string                 `json:"scheduled_id,omitempty"`
}

// Result is the outcome of one pipeline run. The engine always populates it,
// including on failure and panic, so callers can inspect partial progress.
type Result struct {
	Success          bool                   `json:"success"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	DurationSeconds  float64                `json:"duration_seconds"`
	RecordsProcessed int                    `json:"records_processed"`
	Error            string                 `json:"error,omitempty"`
	Extra            map[string]interface{} `json:"extra,omitempty"`
}
