// Package batch runs a template over every record of a dataset as a tracked
// background job.
package batch

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status is final
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Progress represents job progress information
type Progress struct {
	Current int `json:"current"` // Processed records
	Total   int `json:"total"`   // Total records, fixed at job creation
}

// Percentage calculates progress as a percentage (0-100)
func (p Progress) Percentage() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100
}

// RecordResult is the outcome for one record of a batch run
type RecordResult struct {
	Index          int    `json:"index"`
	InputRecord    any    `json:"input_record"`
	RawResponse    string `json:"raw_response,omitempty"`
	ParsedResponse any    `json:"parsed_response,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Job tracks one batch run. Jobs start running; a job never leaves a
// terminal status once it reaches one.
type Job struct {
	ID          string         `json:"id"`
	Status      JobStatus      `json:"status"`
	Progress    Progress       `json:"progress"`
	Results     []RecordResult `json:"results,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewJob creates a running job with a fresh id
func NewJob() *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		Status:    JobStatusRunning,
		CreatedAt: now,
		StartedAt: &now,
		UpdatedAt: now,
	}
}

// SetTotal fixes the record count once it is known
func (j *Job) SetTotal(total int) {
	j.Progress.Total = total
	j.UpdatedAt = time.Now()
}

// UpdateProgress updates the processed-record counter
func (j *Job) UpdateProgress(current int) {
	j.Progress.Current = current
	j.UpdatedAt = time.Now()
}

// AppendResult records the outcome for the next record
func (j *Job) AppendResult(result RecordResult) {
	j.Results = append(j.Results, result)
	j.UpdatedAt = time.Now()
}

// Complete marks the job as completed
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail marks the job as failed with an error message
func (j *Job) Fail(err error) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = err.Error()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Cancel marks the job as cancelled with a reason
func (j *Job) Cancel(reason string) {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.Error = reason
	j.CompletedAt = &now
	j.UpdatedAt = now
}
