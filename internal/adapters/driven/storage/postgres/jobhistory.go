package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// jobHistoryStore implements driven.JobHistoryStore.
type jobHistoryStore struct {
	store *Store
}

var _ driven.JobHistoryStore = (*jobHistoryStore)(nil)

// jobStats is the JSONB form of domain.RunStats without per-file errors.
type jobStats struct {
	Skipped        int   `json:"skipped"`
	Added          int   `json:"added"`
	Updated        int   `json:"updated"`
	Deleted        int   `json:"deleted"`
	Failed         int   `json:"failed"`
	ChunksInserted int   `json:"chunks_inserted"`
	ChunksDeleted  int   `json:"chunks_deleted"`
	DryRun         bool  `json:"dry_run"`
	DurationMS     int64 `json:"duration_ms"`
}

// RecordJob logs a finished job, replacing any previous record with its ID.
func (s *jobHistoryStore) RecordJob(ctx context.Context, status *domain.JobStatus) error {
	if status == nil || status.ID == "" {
		return domain.ErrInvalidInput
	}

	var stats any
	if status.Stats != nil {
		data, err := json.Marshal(jobStats{
			Skipped:        status.Stats.Skipped,
			Added:          status.Stats.Added,
			Updated:        status.Stats.Updated,
			Deleted:        status.Stats.Deleted,
			Failed:         status.Stats.Failed,
			ChunksInserted: status.Stats.ChunksInserted,
			ChunksDeleted:  status.Stats.ChunksDeleted,
			DryRun:         status.Stats.DryRun,
			DurationMS:     status.Stats.Duration.Milliseconds(),
		})
		if err != nil {
			return fmt.Errorf("marshalling job stats: %w", err)
		}
		stats = string(data)
	}

	finishedAt := status.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}
	var startedAt any
	if !status.StartedAt.IsZero() {
		startedAt = status.StartedAt
	}
	var lastError any
	if status.LastError != "" {
		lastError = status.LastError
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO job_results (id, state, attempts, last_error, submitted_at, started_at, finished_at, stats)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			stats = EXCLUDED.stats`,
		status.ID, string(status.State), status.Attempts, lastError,
		status.SubmittedAt, startedAt, finishedAt, stats)
	if err != nil {
		return classify("record job", err)
	}
	return nil
}

// ListJobs returns recent finished jobs, most recent first.
// A non-positive limit returns every recorded job.
func (s *jobHistoryStore) ListJobs(ctx context.Context, limit int) ([]domain.JobStatus, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, state, attempts, last_error, submitted_at, started_at, finished_at, stats
		FROM job_results
		ORDER BY finished_at DESC
		LIMIT $1`, limitArg)
	if err != nil {
		return nil, classify("query job history", err)
	}
	defer rows.Close()

	var jobs []domain.JobStatus
	for rows.Next() {
		var (
			job       domain.JobStatus
			state     string
			lastError sql.NullString
			startedAt sql.NullTime
			stats     []byte
		)
		if err := rows.Scan(&job.ID, &state, &job.Attempts, &lastError,
			&job.SubmittedAt, &startedAt, &job.FinishedAt, &stats); err != nil {
			return nil, classify("scan job", err)
		}
		job.State = domain.JobState(state)
		job.LastError = lastError.String
		job.StartedAt = startedAt.Time
		job.UpdatedAt = job.FinishedAt
		if job.Attempts > 0 {
			job.RetryCount = job.Attempts - 1
		}
		if job.State == domain.JobCompleted {
			job.Phase = domain.PhaseDone
			job.Progress = 100
		}
		if len(stats) > 0 {
			var stored jobStats
			if err := json.Unmarshal(stats, &stored); err != nil {
				return nil, fmt.Errorf("unmarshaling job stats: %w", err)
			}
			job.Stats = &domain.RunStats{
				Skipped:        stored.Skipped,
				Added:          stored.Added,
				Updated:        stored.Updated,
				Deleted:        stored.Deleted,
				Failed:         stored.Failed,
				ChunksInserted: stored.ChunksInserted,
				ChunksDeleted:  stored.ChunksDeleted,
				DryRun:         stored.DryRun,
				Duration:       time.Duration(stored.DurationMS) * time.Millisecond,
			}
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate job history", err)
	}
	return jobs, nil
}

// PruneHistory keeps only the most recent 'keep' jobs.
func (s *jobHistoryStore) PruneHistory(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM job_results
		WHERE id NOT IN (
			SELECT id FROM job_results
			ORDER BY finished_at DESC
			LIMIT $1
		)`, keep)
	if err != nil {
		return classify("prune job history", err)
	}
	return nil
}
