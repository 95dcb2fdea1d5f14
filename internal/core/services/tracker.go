package services

import (
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// JobTracker holds the live status of every known job.
// Writers replace whole records under the lock; readers receive copies, so a
// caller never observes a partially updated status.
type JobTracker struct {
	mu       sync.RWMutex
	statuses map[string]*domain.JobStatus
	now      func() time.Time
}

// NewJobTracker creates an empty tracker using the wall clock.
func NewJobTracker() *JobTracker {
	return &JobTracker{
		statuses: make(map[string]*domain.JobStatus),
		now:      time.Now,
	}
}

// WithClock replaces the clock. Used in tests.
func (t *JobTracker) WithClock(now func() time.Time) *JobTracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	return t
}

// Track registers a newly queued job.
func (t *JobTracker) Track(job *domain.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.statuses[job.ID] = &domain.JobStatus{
		ID:          job.ID,
		State:       domain.JobQueued,
		Phase:       domain.PhaseQueued,
		SubmittedAt: job.SubmittedAt,
		UpdatedAt:   now,
	}
}

// Started records the start of an attempt and resets progress.
func (t *JobTracker) Started(id string, attempt int) {
	t.update(id, func(s *domain.JobStatus, now time.Time) {
		s.State = domain.JobRunning
		s.Phase = domain.PhaseValidating
		s.Progress = 0
		s.Attempts = attempt
		s.RetryCount = attempt - 1
		s.StartedAt = now
		s.ETA = nil
	})
}

// Progress records the phase and percentage of the running attempt.
func (t *JobTracker) Progress(id string, phase domain.Phase, progress float64) {
	t.update(id, func(s *domain.JobStatus, now time.Time) {
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
		s.Phase = phase
		s.Progress = progress
		s.ETA = EstimateCompletion(s.StartedAt, now, progress)
	})
}

// Retrying records a failed attempt that will run again.
func (t *JobTracker) Retrying(id string, err error) {
	t.update(id, func(s *domain.JobStatus, now time.Time) {
		s.State = domain.JobRetrying
		s.Phase = domain.PhaseWaitingRetry
		s.LastError = errorText(err)
		s.ETA = nil
	})
}

// Requeued records a job that finished its backoff and waits for a slot.
// The last error is kept until the next attempt starts.
func (t *JobTracker) Requeued(id string) {
	t.update(id, func(s *domain.JobStatus, _ time.Time) {
		s.State = domain.JobQueued
		s.Phase = domain.PhaseQueued
		s.ETA = nil
	})
}

// Finished records a terminal state.
func (t *JobTracker) Finished(id string, state domain.JobState, stats *domain.RunStats, err error) {
	t.update(id, func(s *domain.JobStatus, now time.Time) {
		s.State = state
		if state == domain.JobCompleted {
			s.Phase = domain.PhaseDone
			s.Progress = 100
		}
		if err != nil {
			s.LastError = errorText(err)
		}
		s.Stats = copyStats(stats)
		s.FinishedAt = now
		s.ETA = nil
	})
}

// Get returns a copy of the job's status.
func (t *JobTracker) Get(id string) (domain.JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.statuses[id]
	if !ok {
		return domain.JobStatus{}, false
	}
	return copyStatus(s), true
}

// List returns copies of every status ordered by submission time.
func (t *JobTracker) List() []domain.JobStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.JobStatus, 0, len(t.statuses))
	for _, s := range t.statuses {
		out = append(out, copyStatus(s))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// Forget drops a job's status.
func (t *JobTracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.statuses, id)
}

// update applies fn to a fresh copy and swaps it in.
func (t *JobTracker) update(id string, fn func(*domain.JobStatus, time.Time)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.statuses[id]
	if !ok {
		return
	}
	now := t.now()
	next := copyStatus(cur)
	fn(&next, now)
	next.UpdatedAt = now
	t.statuses[id] = &next
}

// EstimateCompletion extrapolates linearly from elapsed time and progress.
// It returns nil when progress is zero (no basis) or complete.
func EstimateCompletion(start, now time.Time, progress float64) *time.Time {
	if start.IsZero() || progress <= 0 || progress >= 100 {
		return nil
	}
	elapsed := now.Sub(start)
	total := time.Duration(float64(elapsed) * 100 / progress)
	eta := start.Add(total)
	return &eta
}

func copyStatus(s *domain.JobStatus) domain.JobStatus {
	cp := *s
	if s.ETA != nil {
		eta := *s.ETA
		cp.ETA = &eta
	}
	cp.Stats = copyStats(s.Stats)
	return cp
}

func copyStats(stats *domain.RunStats) *domain.RunStats {
	if stats == nil {
		return nil
	}
	cp := *stats
	if stats.Errors != nil {
		cp.Errors = make([]domain.FileError, len(stats.Errors))
		copy(cp.Errors, stats.Errors)
	}
	return &cp
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
