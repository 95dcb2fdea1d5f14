package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// Ensure Controller implements the interface.
var _ driving.JobController = (*Controller)(nil)

// historyWriteTimeout bounds a single job history write.
const historyWriteTimeout = 5 * time.Second

// Controller composes the scheduler, retry policy, tracker and loader into
// submit, monitor and cancel operations.
//
// Every job resolves to exactly one of completed, failed or cancelled.
type Controller struct {
	loader    driving.Loader
	scheduler *JobScheduler
	tracker   *JobTracker
	policy    *RetryPolicy
	history   driven.JobHistoryStore

	jobTimeout time.Duration

	// base parents every job context; cancelled by Stop.
	base       context.Context
	cancelBase context.CancelFunc

	mu           sync.RWMutex
	jobs         map[string]*jobEntry
	finished     []string
	started      bool
	stopped      bool
	stopDispatch context.CancelFunc
	wg           sync.WaitGroup
}

// jobEntry is the controller's private record of one job.
type jobEntry struct {
	job      *domain.Job
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	finished bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithJobTimeout sets the attempt timeout used when a submission sets none.
func WithJobTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.jobTimeout = d
	}
}

// NewController creates a controller.
// The history store is optional - if nil, finished jobs are kept in memory only.
func NewController(
	loader driving.Loader,
	scheduler *JobScheduler,
	tracker *JobTracker,
	policy *RetryPolicy,
	history driven.JobHistoryStore,
	opts ...ControllerOption,
) *Controller {
	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		loader:     loader,
		scheduler:  scheduler,
		tracker:    tracker,
		policy:     policy,
		history:    history,
		base:       base,
		cancelBase: cancel,
		jobs:       make(map[string]*jobEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins dispatching queued jobs in the background.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return domain.ErrControllerStopped
	}
	if c.started {
		return nil // Already running
	}
	c.started = true

	dispatchCtx, cancel := context.WithCancel(ctx)
	c.stopDispatch = cancel
	c.wg.Add(1)
	go c.dispatch(dispatchCtx)
	return nil
}

// Stop cancels every outstanding job and waits for running attempts to end.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	if c.stopDispatch != nil {
		c.stopDispatch()
	}
	c.mu.Unlock()

	c.cancelBase()
	c.wg.Wait()

	// Jobs still queued never started.
	c.mu.RLock()
	var pending []*jobEntry
	for _, entry := range c.jobs {
		if !entry.finished {
			pending = append(pending, entry)
		}
	}
	c.mu.RUnlock()
	for _, entry := range pending {
		c.scheduler.Remove(entry.job.ID)
		c.finish(entry, domain.JobCancelled, nil, nil)
	}
	return nil
}

// Submit validates the request and enqueues it.
func (c *Controller) Submit(_ context.Context, req domain.SubmitRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if req.Timeout == 0 {
		req.Timeout = c.jobTimeout
	}
	req.Roots = append([]string(nil), req.Roots...)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return "", domain.ErrControllerStopped
	}
	job := &domain.Job{
		ID:          uuid.New().String(),
		Request:     req,
		SubmittedAt: time.Now(),
		Priority:    req.Priority,
		State:       domain.JobQueued,
	}
	ctx, cancel := context.WithCancel(c.base)
	entry := &jobEntry{job: job, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	c.jobs[job.ID] = entry
	c.mu.Unlock()

	c.tracker.Track(job)
	if err := c.scheduler.Enqueue(job); err != nil {
		c.mu.Lock()
		delete(c.jobs, job.ID)
		c.mu.Unlock()
		cancel()
		c.tracker.Forget(job.ID)
		return "", err
	}

	logger.Debug("Queued job %s (%s, priority %d)", job.ID, req.Config, req.Priority)
	return job.ID, nil
}

// Status returns a snapshot of the job.
func (c *Controller) Status(_ context.Context, jobID string) (*domain.JobStatus, error) {
	status, ok := c.tracker.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	return &status, nil
}

// Cancel stops a queued, waiting or running job.
// A queued job is removed from the queue; a running job observes the
// cancellation before its next file.
func (c *Controller) Cancel(_ context.Context, jobID string) (bool, error) {
	entry := c.entry(jobID)
	if entry == nil {
		return false, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}

	c.mu.RLock()
	finished := entry.finished
	stats := entry.job.Stats
	c.mu.RUnlock()
	if finished {
		return false, nil
	}

	entry.cancel()
	if _, ok := c.scheduler.Remove(jobID); ok {
		c.finish(entry, domain.JobCancelled, stats, nil)
	}
	logger.Info("Cancelled job %s", jobID)
	return true, nil
}

// Wait blocks until the job reaches a terminal state.
func (c *Controller) Wait(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	entry := c.entry(jobID)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	select {
	case <-entry.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.Status(ctx, jobID)
}

// Stats counts live jobs by state and sums the statistics of finished jobs.
func (c *Controller) Stats(_ context.Context) (domain.AggregateStats, error) {
	var agg domain.AggregateStats
	for _, status := range c.tracker.List() {
		switch status.State {
		case domain.JobQueued:
			agg.Queued++
		case domain.JobRunning:
			agg.Running++
		case domain.JobRetrying:
			agg.Retrying++
		case domain.JobCompleted:
			agg.Completed++
		case domain.JobFailed:
			agg.Failed++
		case domain.JobCancelled:
			agg.Cancelled++
		}
	}
	for _, job := range c.scheduler.History() {
		if job.Stats != nil {
			agg.Totals.Merge(*job.Stats)
		}
	}
	return agg, nil
}

// History returns finished jobs, most recent first.
// With a history store the persisted history is returned, which survives
// restarts.
func (c *Controller) History(ctx context.Context, limit int) ([]domain.JobStatus, error) {
	if c.history != nil {
		return c.history.ListJobs(ctx, limit)
	}
	jobs := c.scheduler.History()
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	out := make([]domain.JobStatus, 0, len(jobs))
	for i := range jobs {
		if status, ok := c.tracker.Get(jobs[i].ID); ok {
			out = append(out, status)
			continue
		}
		out = append(out, statusFromJob(&jobs[i]))
	}
	return out, nil
}

// dispatch hands queued jobs to attempt goroutines as slots free up.
func (c *Controller) dispatch(ctx context.Context) {
	defer c.wg.Done()
	for {
		job, err := c.scheduler.Next(ctx)
		if err != nil {
			return
		}
		entry := c.entry(job.ID)
		if entry == nil {
			c.scheduler.Release()
			continue
		}
		if entry.ctx.Err() != nil {
			// Cancelled between dequeue and start.
			c.scheduler.Release()
			c.mu.RLock()
			stats := job.Stats
			c.mu.RUnlock()
			c.finish(entry, domain.JobCancelled, stats, nil)
			continue
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.runAttempt(entry)
		}()
	}
}

// runAttempt executes one attempt and decides what happens next.
// The concurrency slot is released before any backoff wait.
func (c *Controller) runAttempt(entry *jobEntry) {
	job := entry.job

	c.mu.Lock()
	job.Attempts++
	job.State = domain.JobRunning
	attempt := job.Attempts
	timeout := job.Request.Timeout
	req := job.Request.RunRequest()
	c.mu.Unlock()

	c.tracker.Started(job.ID, attempt)
	logger.Info("Starting job %s attempt %d", job.ID, attempt)

	attemptCtx, cancel := entry.ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(entry.ctx, timeout)
	}
	stats, err := c.loader.Run(attemptCtx, req, c.progressFor(job.ID))
	timedOut := entry.ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
	cancel()
	c.scheduler.Release()

	switch {
	case err == nil:
		c.finish(entry, domain.JobCompleted, stats, nil)
		return
	case entry.ctx.Err() != nil:
		c.finish(entry, domain.JobCancelled, stats, nil)
		return
	case timedOut:
		err = fmt.Errorf("%w after %s: %w", domain.ErrTimeout, timeout, err)
	}

	class := Classify(err)
	decision := c.policy.Decide(attempt, class)
	if !decision.Retry {
		logger.Error("Job %s failed after %d attempt(s): %v", job.ID, attempt, err)
		c.finish(entry, domain.JobFailed, stats, err)
		return
	}

	c.mu.Lock()
	job.State = domain.JobRetrying
	job.LastError = err
	job.Stats = stats
	c.mu.Unlock()
	c.tracker.Retrying(job.ID, err)
	logger.Warn("Job %s attempt %d failed (%s), retrying in %s: %v", job.ID, attempt, class, decision.Delay, err)

	timer := time.NewTimer(decision.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		c.mu.Lock()
		job.State = domain.JobQueued
		c.mu.Unlock()
		c.tracker.Requeued(job.ID)
		c.scheduler.Requeue(job)
	case <-entry.ctx.Done():
		c.finish(entry, domain.JobCancelled, stats, nil)
	}
}

// progressFor maps loader phases onto the 0-100 scale.
func (c *Controller) progressFor(jobID string) driving.ProgressFunc {
	return func(phase domain.Phase, done, total int) {
		c.tracker.Progress(jobID, phase, PhaseProgress(phase, done, total))
	}
}

// PhaseProgress returns the percentage reported for a phase.
// Applying spans 10 to 95 in proportion to files processed.
func PhaseProgress(phase domain.Phase, done, total int) float64 {
	switch phase {
	case domain.PhaseValidating:
		return 0
	case domain.PhaseDiscovering:
		return 5
	case domain.PhaseCategorizing:
		return 10
	case domain.PhaseApplying:
		if total <= 0 {
			return 95
		}
		return 10 + 85*float64(done)/float64(total)
	case domain.PhaseDryRunReport:
		return 95
	case domain.PhaseAggregating:
		return 98
	case domain.PhaseDone:
		return 100
	default:
		return 0
	}
}

// finish moves a job to a terminal state exactly once.
func (c *Controller) finish(entry *jobEntry, state domain.JobState, stats *domain.RunStats, err error) {
	c.mu.Lock()
	if entry.finished {
		c.mu.Unlock()
		return
	}
	entry.finished = true
	job := entry.job
	job.State = state
	job.FinishedAt = time.Now()
	job.Stats = stats
	if err != nil {
		job.LastError = err
	}
	snapshot := *job
	c.finished = append(c.finished, job.ID)
	evicted := c.evictLocked()
	c.mu.Unlock()

	entry.cancel()
	c.tracker.Finished(job.ID, state, stats, err)
	c.scheduler.Record(&snapshot)
	for _, id := range evicted {
		c.tracker.Forget(id)
	}
	close(entry.done)

	logger.Info("Job %s %s after %d attempt(s)", job.ID, state, snapshot.Attempts)
	c.persist(job.ID)
}

// evictLocked forgets finished jobs beyond the history bound
// (caller must hold lock).
func (c *Controller) evictLocked() []string {
	over := len(c.finished) - c.scheduler.historySize
	if over <= 0 {
		return nil
	}
	evicted := append([]string(nil), c.finished[:over]...)
	c.finished = c.finished[over:]
	for _, id := range evicted {
		delete(c.jobs, id)
	}
	return evicted
}

// persist writes the finished job to the history store, if any.
func (c *Controller) persist(jobID string) {
	if c.history == nil {
		return
	}
	status, ok := c.tracker.Get(jobID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()
	if err := c.history.RecordJob(ctx, &status); err != nil {
		logger.Warn("Failed to record job %s: %v", jobID, err)
		return
	}
	if err := c.history.PruneHistory(ctx, c.scheduler.historySize); err != nil {
		logger.Warn("Failed to prune job history: %v", err)
	}
}

func (c *Controller) entry(jobID string) *jobEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jobs[jobID]
}

// statusFromJob builds a status for a job the tracker no longer holds.
func statusFromJob(job *domain.Job) domain.JobStatus {
	status := domain.JobStatus{
		ID:          job.ID,
		State:       job.State,
		Attempts:    job.Attempts,
		SubmittedAt: job.SubmittedAt,
		FinishedAt:  job.FinishedAt,
		UpdatedAt:   job.FinishedAt,
		Stats:       copyStats(job.Stats),
	}
	if job.Attempts > 0 {
		status.RetryCount = job.Attempts - 1
	}
	if job.LastError != nil {
		status.LastError = job.LastError.Error()
	}
	if job.State == domain.JobCompleted {
		status.Phase = domain.PhaseDone
		status.Progress = 100
	}
	return status
}
