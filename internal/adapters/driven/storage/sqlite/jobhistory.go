package sqlite

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

// storedStats is the persisted form of domain.RunStats.
// Per-file errors are reduced to a count.
type storedStats struct {
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

// RecordJob logs a finished job. Recording the same ID again replaces it.
func (s *jobHistoryStore) RecordJob(ctx context.Context, status *domain.JobStatus) error {
	if status == nil || status.ID == "" {
		return domain.ErrInvalidInput
	}

	var statsJSON sql.NullString
	if status.Stats != nil {
		data, err := json.Marshal(toStoredStats(status.Stats))
		if err != nil {
			return fmt.Errorf("marshalling job stats: %w", err)
		}
		statsJSON = sql.NullString{String: string(data), Valid: true}
	}

	finishedAt := status.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO job_results (id, state, attempts, last_error, submitted_at, started_at, finished_at, stats)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			stats = excluded.stats
	`, status.ID, string(status.State), status.Attempts,
		nullString(status.LastError),
		formatTime(status.SubmittedAt),
		formatNullableTime(status.StartedAt),
		formatTime(finishedAt),
		statsJSON)

	if err != nil {
		return classify("record job", err)
	}
	return nil
}

// ListJobs returns recent finished jobs, most recent first.
// A non-positive limit returns every recorded job.
func (s *jobHistoryStore) ListJobs(ctx context.Context, limit int) ([]domain.JobStatus, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, state, attempts, last_error, submitted_at, started_at, finished_at, stats
		FROM job_results
		ORDER BY finished_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, classify("query job history", err)
	}
	defer rows.Close()

	var jobs []domain.JobStatus //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJobStatus(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
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
			ORDER BY finished_at DESC, rowid DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return classify("prune job history", err)
	}
	return nil
}

func scanJobStatus(rows *sql.Rows) (*domain.JobStatus, error) {
	var (
		job                     domain.JobStatus
		state                   string
		lastError, startedAt    sql.NullString
		submittedAt, finishedAt string
		statsJSON               sql.NullString
	)

	if err := rows.Scan(&job.ID, &state, &job.Attempts, &lastError,
		&submittedAt, &startedAt, &finishedAt, &statsJSON); err != nil {
		return nil, classify("scan job", err)
	}

	job.State = domain.JobState(state)
	job.LastError = lastError.String
	if job.Attempts > 0 {
		job.RetryCount = job.Attempts - 1
	}

	var err error
	if job.SubmittedAt, err = parseTime(submittedAt); err != nil {
		return nil, fmt.Errorf("parsing submitted_at: %w", err)
	}
	if job.StartedAt, err = parseTime(startedAt.String); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if job.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, fmt.Errorf("parsing finished_at: %w", err)
	}
	job.UpdatedAt = job.FinishedAt

	if job.State == domain.JobCompleted {
		job.Phase = domain.PhaseDone
		job.Progress = 100
	}

	if statsJSON.Valid && statsJSON.String != "" {
		var stored storedStats
		if err := json.Unmarshal([]byte(statsJSON.String), &stored); err != nil {
			return nil, fmt.Errorf("unmarshaling job stats: %w", err)
		}
		job.Stats = stored.toRunStats()
	}

	return &job, nil
}

func toStoredStats(stats *domain.RunStats) storedStats {
	return storedStats{
		Skipped:        stats.Skipped,
		Added:          stats.Added,
		Updated:        stats.Updated,
		Deleted:        stats.Deleted,
		Failed:         stats.Failed,
		ChunksInserted: stats.ChunksInserted,
		ChunksDeleted:  stats.ChunksDeleted,
		DryRun:         stats.DryRun,
		DurationMS:     stats.Duration.Milliseconds(),
	}
}

func (s storedStats) toRunStats() *domain.RunStats {
	return &domain.RunStats{
		Skipped:        s.Skipped,
		Added:          s.Added,
		Updated:        s.Updated,
		Deleted:        s.Deleted,
		Failed:         s.Failed,
		ChunksInserted: s.ChunksInserted,
		ChunksDeleted:  s.ChunksDeleted,
		DryRun:         s.DryRun,
		Duration:       time.Duration(s.DurationMS) * time.Millisecond,
	}
}
