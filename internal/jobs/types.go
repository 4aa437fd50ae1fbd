// Package jobs describes background classification runs: the run record,
// what a run emits, and where run records are kept.
package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeClassifyUnassigned suggests categories for every unassigned
	// transaction.
	JobTypeClassifyUnassigned JobType = "classify_unassigned"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job went through all its input.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusCancelled indicates the job was stopped before the end.
	JobStatusCancelled JobStatus = "cancelled"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
)

// Finished reports whether the status is terminal.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusFailed
}

// ClassifyJob is the record of one batch classification run.
type ClassifyJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Type is always JobTypeClassifyUnassigned for now.
	Type JobType `json:"type"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job finished, whatever the outcome.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Total is the number of transactions snapshotted at start.
	Total int `json:"total"`

	// Processed is the number of transactions looked at so far.
	Processed int `json:"processed"`

	// Suggested is the number of suggestions emitted.
	Suggested int `json:"suggested"`

	// DroppedLogs counts narration lines lost because nobody was reading.
	DroppedLogs int `json:"dropped_logs"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`
}

// Suggestion is one classification result emitted by a run, in input
// order.
type Suggestion struct {
	JobID         string  `json:"job_id"`
	Seq           int     `json:"seq"`
	TransactionID string  `json:"transaction_id"`
	Category      string  `json:"category"`
	Confidence    float64 `json:"confidence"`
}

// LogEntry is one line of run narration.
type LogEntry struct {
	JobID   string    `json:"job_id"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Sink receives everything a running job produces.
type Sink interface {
	// Log records narration. It never blocks; lines may be dropped.
	Log(message string)

	// Suggest delivers a result. It blocks until the result is taken or
	// ctx is done.
	Suggest(ctx context.Context, s Suggestion) error

	// Progress reports how many of total inputs have been handled.
	Progress(processed, total int)
}

// Work is the body of a run. It should check ctx between units of work and
// return promptly once ctx is done.
type Work func(ctx context.Context, sink Sink) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ClassifyJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ClassifyJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ClassifyJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
