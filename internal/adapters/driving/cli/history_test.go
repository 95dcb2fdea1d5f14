package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

func sampleHistory() []domain.JobStatus {
	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []domain.JobStatus{
		{
			ID:         "job-b",
			State:      domain.JobFailed,
			Attempts:   4,
			LastError:  "timeout",
			FinishedAt: finished.Add(time.Hour),
			Stats:      &domain.RunStats{Failed: 2},
		},
		{
			ID:         "job-a",
			State:      domain.JobCompleted,
			Attempts:   1,
			FinishedAt: finished,
			Stats:      &domain.RunStats{Added: 3, Updated: 1, ChunksInserted: 9},
		},
	}
}

func TestHistoryCmd_Lists(t *testing.T) {
	f := newCLIFixture(t)
	f.controller.history = sampleHistory()

	out, err := execute(context.Background(), "history")

	require.NoError(t, err)
	assert.Contains(t, out, "job-b")
	assert.Contains(t, out, "job-a")
	assert.Contains(t, out, "+3 ~1 -0 =0 !0")
	assert.Equal(t, 1, f.closed)
}

func TestHistoryCmd_Limit(t *testing.T) {
	f := newCLIFixture(t)
	f.controller.history = sampleHistory()

	out, err := execute(context.Background(), "history", "--limit", "1")

	require.NoError(t, err)
	assert.Contains(t, out, "job-b")
	assert.NotContains(t, out, "job-a")
}

func TestHistoryCmd_Empty(t *testing.T) {
	newCLIFixture(t)

	out, err := execute(context.Background(), "history")

	require.NoError(t, err)
	assert.Contains(t, out, "No jobs recorded.")
}

func TestStatusCmd_Summary(t *testing.T) {
	f := newCLIFixture(t)
	f.controller.history = sampleHistory()

	out, err := execute(context.Background(), "status")

	require.NoError(t, err)
	assert.Contains(t, out, "Completed: 1  Failed: 1  Cancelled: 0")
	assert.Contains(t, out, "Added: 3  Updated: 1  Deleted: 0  Failed files: 2")
	assert.Contains(t, out, "Last job:")
	assert.Contains(t, out, "job-b")
	assert.Contains(t, out, "timeout")
}

func TestStatusCmd_Job(t *testing.T) {
	f := newCLIFixture(t)
	f.controller.history = sampleHistory()

	out, err := execute(context.Background(), "status", "job-a")

	require.NoError(t, err)
	assert.Contains(t, out, "job-a")
	assert.Contains(t, out, "completed")
	assert.NotContains(t, out, "job-b")
}

func TestStatusCmd_UnknownJob(t *testing.T) {
	newCLIFixture(t)

	_, err := execute(context.Background(), "status", "missing")

	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestChangeSummary(t *testing.T) {
	assert.Equal(t, "-", changeSummary(nil))
	assert.Equal(t, "+1 ~2 -3 =4 !5", changeSummary(&domain.RunStats{
		Added: 1, Updated: 2, Deleted: 3, Skipped: 4, Failed: 5,
	}))
	assert.Equal(t, "+0 ~0 -0 =0 !0 (dry run)", changeSummary(&domain.RunStats{DryRun: true}))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))
	assert.NotEqual(t, "-", formatTime(time.Now()))
}
