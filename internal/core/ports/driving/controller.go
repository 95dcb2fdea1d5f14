package driving

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// JobController submits, monitors and cancels sync jobs.
type JobController interface {
	// Start begins dispatching queued jobs. It returns immediately.
	Start(ctx context.Context) error

	// Stop cancels outstanding jobs and waits for running ones to finish.
	Stop() error

	// Submit validates the request and enqueues it, returning the job ID.
	// Invalid configuration fails with domain.ErrConfig and never enqueues.
	Submit(ctx context.Context, req domain.SubmitRequest) (string, error)

	// Status returns a snapshot of the job.
	Status(ctx context.Context, jobID string) (*domain.JobStatus, error)

	// Cancel stops a queued, waiting or running job.
	// Returns false if the job had already finished.
	Cancel(ctx context.Context, jobID string) (bool, error)

	// Wait blocks until the job reaches a terminal state or ctx is done.
	Wait(ctx context.Context, jobID string) (*domain.JobStatus, error)

	// Stats returns aggregate counters across live jobs and history.
	Stats(ctx context.Context) (domain.AggregateStats, error)

	// History returns finished jobs, most recent first.
	History(ctx context.Context, limit int) ([]domain.JobStatus, error)
}
