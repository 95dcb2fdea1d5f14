package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

// Ensure JobHistoryStore implements the interface.
var _ driven.JobHistoryStore = (*JobHistoryStore)(nil)

// JobHistoryStore is an in-memory implementation of driven.JobHistoryStore.
type JobHistoryStore struct {
	mu   sync.RWMutex
	jobs []domain.JobStatus
}

// NewJobHistoryStore creates a new in-memory job history store.
func NewJobHistoryStore() *JobHistoryStore {
	return &JobHistoryStore{}
}

// RecordJob stores a finished job. Recording the same ID again replaces it.
func (s *JobHistoryStore) RecordJob(_ context.Context, status *domain.JobStatus) error {
	if status == nil || status.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].ID == status.ID {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			break
		}
	}
	s.jobs = append(s.jobs, *status)
	return nil
}

// ListJobs returns recorded jobs, most recent first.
func (s *JobHistoryStore) ListJobs(_ context.Context, limit int) ([]domain.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.jobs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.JobStatus, 0, n)
	for i := len(s.jobs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.jobs[i])
	}
	return out, nil
}

// PruneHistory keeps only the most recent keep jobs.
func (s *JobHistoryStore) PruneHistory(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep < 0 {
		keep = 0
	}
	if over := len(s.jobs) - keep; over > 0 {
		s.jobs = append([]domain.JobStatus(nil), s.jobs[over:]...)
	}
	return nil
}
