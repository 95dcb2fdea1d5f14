package services

import (
	"container/heap"
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// JobScheduler holds the bounded priority queue of pending jobs, the
// concurrency limiter and the history of finished jobs.
//
// Jobs are dequeued by descending priority, ties broken by submission order.
// Next is meant for a single dispatcher goroutine.
type JobScheduler struct {
	mu       sync.Mutex
	queue    jobQueue
	index    map[string]*queueItem
	capacity int
	seq      uint64

	history     []domain.Job
	historySize int

	slots  *semaphore.Weighted
	notify chan struct{}
}

// NewJobScheduler creates a scheduler from settings.
func NewJobScheduler(settings domain.SchedulerSettings) *JobScheduler {
	defaults := domain.DefaultAppSettings().Scheduler
	if settings.QueueCapacity <= 0 {
		settings.QueueCapacity = defaults.QueueCapacity
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = defaults.Concurrency
	}
	if settings.HistorySize <= 0 {
		settings.HistorySize = defaults.HistorySize
	}
	return &JobScheduler{
		index:       make(map[string]*queueItem),
		capacity:    settings.QueueCapacity,
		historySize: settings.HistorySize,
		slots:       semaphore.NewWeighted(int64(settings.Concurrency)),
		notify:      make(chan struct{}, 1),
	}
}

// Enqueue adds a new job, assigning its submission sequence.
// It fails fast with domain.ErrQueueFull when the queue is at capacity.
func (s *JobScheduler) Enqueue(job *domain.Job) error {
	s.mu.Lock()
	if s.queue.Len() >= s.capacity {
		s.mu.Unlock()
		return domain.ErrQueueFull
	}
	s.seq++
	job.Seq = s.seq
	s.push(job)
	s.mu.Unlock()

	s.wake()
	return nil
}

// Requeue puts a job that is being retried back in the queue.
// It keeps the job's original sequence and ignores capacity, since the job
// was admitted when first submitted.
func (s *JobScheduler) Requeue(job *domain.Job) {
	s.mu.Lock()
	s.push(job)
	s.mu.Unlock()

	s.wake()
}

// Remove takes a queued job out of the queue.
// It returns false when the job is not queued.
func (s *JobScheduler) Remove(id string) (*domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.index[id]
	if !ok {
		return nil, false
	}
	heap.Remove(&s.queue, item.index)
	delete(s.index, id)
	return item.job, true
}

// Len returns the number of queued jobs.
func (s *JobScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Next blocks until a concurrency slot is free and a job is queued, then
// returns the highest-priority job. The caller must call Release when the
// attempt ends.
func (s *JobScheduler) Next(ctx context.Context) (*domain.Job, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	for {
		s.mu.Lock()
		if s.queue.Len() > 0 {
			item := heap.Pop(&s.queue).(*queueItem)
			delete(s.index, item.job.ID)
			s.mu.Unlock()
			return item.job, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			s.slots.Release(1)
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}

// Release frees the slot taken by Next.
func (s *JobScheduler) Release() {
	s.slots.Release(1)
}

// Record adds a finished job to the history ring, evicting the oldest
// entry beyond the bound.
func (s *JobScheduler) Record(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *job)
	if over := len(s.history) - s.historySize; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
}

// History returns finished jobs, newest first.
func (s *JobScheduler) History() []domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Job, len(s.history))
	for i, job := range s.history {
		out[len(s.history)-1-i] = job
	}
	return out
}

// push adds job to the heap (caller must hold lock).
func (s *JobScheduler) push(job *domain.Job) {
	item := &queueItem{job: job}
	heap.Push(&s.queue, item)
	s.index[job.ID] = item
}

func (s *JobScheduler) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

type queueItem struct {
	job   *domain.Job
	index int
}

// jobQueue implements heap.Interface.
type jobQueue []*queueItem

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].job.Priority != q[j].job.Priority {
		return q[i].job.Priority > q[j].job.Priority
	}
	return q[i].job.Seq < q[j].job.Seq
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}
