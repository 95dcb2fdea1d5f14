package driven

import (
	"context"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// JobHistoryStore persists finished jobs so history survives restarts.
type JobHistoryStore interface {
	// RecordJob logs a finished job.
	RecordJob(ctx context.Context, status *domain.JobStatus) error

	// ListJobs returns recent finished jobs, most recent first.
	ListJobs(ctx context.Context, limit int) ([]domain.JobStatus, error)

	// PruneHistory keeps only the most recent 'keep' jobs.
	PruneHistory(ctx context.Context, keep int) error
}
