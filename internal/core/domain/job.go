package domain

import (
	"fmt"
	"time"
)

// JobState is the lifecycle state of a job.
type JobState string

// Job lifecycle states.
const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobRetrying  JobState = "retrying"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// IsTerminal returns true for completed, failed and cancelled.
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Phase labels the step a job is in.
type Phase string

// Run phases, in order, plus the job-level waiting phases.
const (
	PhaseQueued       Phase = "queued"
	PhaseValidating   Phase = "validating"
	PhaseDiscovering  Phase = "discovering"
	PhaseCategorizing Phase = "categorizing"
	PhaseDryRunReport Phase = "dry_run_report"
	PhaseApplying     Phase = "applying"
	PhaseAggregating  Phase = "aggregating"
	PhaseDone         Phase = "done"
	PhaseWaitingRetry Phase = "waiting_retry"
)

// SubmitRequest is what a caller hands to the job controller.
type SubmitRequest struct {
	// Config selects which categories are acted on.
	Config RunConfig

	// Roots are the directories or files to scan.
	Roots []string

	// Priority orders queued jobs; higher runs first.
	Priority int

	// Timeout bounds a single attempt. Zero means no timeout.
	Timeout time.Duration
}

// RunRequest returns the run input carried by the submission.
func (r SubmitRequest) RunRequest() RunRequest {
	roots := make([]string, len(r.Roots))
	copy(roots, r.Roots)
	return RunRequest{Config: r.Config, Roots: roots}
}

// Validate checks the submission before it is enqueued.
func (r SubmitRequest) Validate() error {
	if err := r.RunRequest().Validate(); err != nil {
		return err
	}
	if r.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrConfig)
	}
	return nil
}

// Job wraps a submission with scheduling metadata.
type Job struct {
	// ID is the unique identifier for the job.
	ID string

	// Request is the validated submission.
	Request SubmitRequest

	// SubmittedAt is when the job entered the queue.
	SubmittedAt time.Time

	// Priority is copied from the request for queue ordering.
	Priority int

	// Seq is the submission sequence number used to break priority ties.
	Seq uint64

	// State is the current lifecycle state.
	State JobState

	// Attempts counts started attempts.
	Attempts int

	// LastError is the most recent attempt error.
	LastError error

	// Stats holds the latest attempt's statistics.
	Stats *RunStats

	// FinishedAt is set when the job reaches a terminal state.
	FinishedAt time.Time
}

// JobStatus is a point-in-time snapshot of a job, safe to hand to callers.
type JobStatus struct {
	ID    string
	State JobState
	Phase Phase

	// Progress is 0-100.
	Progress float64

	// Attempts counts started attempts; RetryCount is Attempts-1 once running.
	Attempts   int
	RetryCount int

	// LastError is the text of the most recent error, if any.
	LastError string

	SubmittedAt time.Time
	StartedAt   time.Time
	UpdatedAt   time.Time
	FinishedAt  time.Time

	// ETA is the estimated completion time; nil when unknown.
	ETA *time.Time

	// Stats are the latest statistics; partial for cancelled jobs.
	Stats *RunStats
}

// AggregateStats summarises the controller's jobs.
type AggregateStats struct {
	Queued    int
	Running   int
	Retrying  int
	Completed int
	Failed    int
	Cancelled int

	// Totals sums the statistics of jobs in history.
	Totals RunStats
}
