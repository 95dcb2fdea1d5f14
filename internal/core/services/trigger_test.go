package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
)

// recordingController records submissions; job states are set by the test.
type recordingController struct {
	mu       sync.Mutex
	requests []domain.SubmitRequest
	states   map[string]domain.JobState
}

var _ driving.JobController = (*recordingController)(nil)

func newRecordingController() *recordingController {
	return &recordingController{states: make(map[string]domain.JobState)}
}

func (c *recordingController) Start(context.Context) error { return nil }
func (c *recordingController) Stop() error { return nil }

func (c *recordingController) Submit(_ context.Context, req domain.SubmitRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	id := fmt.Sprintf("job-%d", len(c.requests))
	c.states[id] = domain.JobQueued
	return id, nil
}

func (c *recordingController) Status(_ context.Context, id string) (*domain.JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.states[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &domain.JobStatus{ID: id, State: state}, nil
}

func (c *recordingController) Cancel(context.Context, string) (bool, error) { return false, nil }

func (c *recordingController) Wait(ctx context.Context, id string) (*domain.JobStatus, error) {
	for {
		status, err := c.Status(ctx, id)
		if err != nil || status.State.IsTerminal() {
			return status, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (c *recordingController) Stats(context.Context) (domain.AggregateStats, error) {
	return domain.AggregateStats{}, nil
}

func (c *recordingController) History(context.Context, int) ([]domain.JobStatus, error) {
	return nil, nil
}

func (c *recordingController) setState(id string, state domain.JobState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[id] = state
}

func (c *recordingController) submitted() []domain.SubmitRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.SubmitRequest(nil), c.requests...)
}

// chanWatcher forwards batches pushed by the test.
type chanWatcher struct {
	batches chan []string
	roots   chan []string
}

func newChanWatcher() *chanWatcher {
	return &chanWatcher{batches: make(chan []string), roots: make(chan []string, 1)}
}

func (w *chanWatcher) Watch(ctx context.Context, roots []string, changes chan<- []string) error {
	w.roots <- roots
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-w.batches:
			select {
			case changes <- batch:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func watchRequest() domain.SubmitRequest {
	return domain.SubmitRequest{
		Roots:  []string{"/data"},
		Config: domain.RunConfig{Update: true, Cleanup: true},
	}
}

// startWatch runs trigger until the test ends.
func startWatch(t *testing.T, trigger *WatchTrigger, watcher *chanWatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- trigger.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	assert.Equal(t, []string{"/data"}, <-watcher.roots)
}

func TestPeriodicTrigger_SkipsWhileJobPending(t *testing.T) {
	controller := newRecordingController()
	req := domain.SubmitRequest{Roots: []string{"/data"}, Config: domain.RunConfig{Update: true}}
	trigger := NewPeriodicTrigger(NewJobGate(controller, req), 5*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- trigger.Start(context.Background()) }()

	require.Eventually(t, func() bool { return len(controller.submitted()) == 1 }, 5*time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, controller.submitted(), 1, "ticks are skipped while the job is queued")

	controller.setState(trigger.LastJob(), domain.JobRunning)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, controller.submitted(), 1, "ticks are skipped while the job is running")

	controller.setState(trigger.LastJob(), domain.JobCompleted)
	require.Eventually(t, func() bool { return len(controller.submitted()) >= 2 }, 5*time.Second, time.Millisecond)

	require.NoError(t, trigger.Stop())
	assert.NoError(t, <-done)
	assert.Equal(t, req, controller.submitted()[0])
}

func TestPeriodicTrigger_ContextCancel(t *testing.T) {
	gate := NewJobGate(newRecordingController(), domain.SubmitRequest{Roots: []string{"/data"}})
	trigger := NewPeriodicTrigger(gate, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- trigger.Start(ctx) }()
	require.Eventually(t, func() bool { return trigger.LastJob() != "" }, 5*time.Second, time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPeriodicTrigger_RequiresInterval(t *testing.T) {
	gate := NewJobGate(newRecordingController(), domain.SubmitRequest{Roots: []string{"/data"}})
	trigger := NewPeriodicTrigger(gate, 0)

	assert.ErrorIs(t, trigger.Start(context.Background()), domain.ErrConfig)
	assert.NoError(t, trigger.Stop())
}

func TestWatchTrigger_FoldsBurstsIntoQueuedJob(t *testing.T) {
	controller := newRecordingController()
	watcher := newChanWatcher()
	trigger := NewWatchTrigger(NewJobGate(controller, watchRequest()), watcher)
	startWatch(t, trigger, watcher)

	assert.Empty(t, controller.submitted(), "no initial sync unless asked")

	watcher.batches <- []string{"/data/a.txt"}
	require.Eventually(t, func() bool { return len(controller.submitted()) == 1 }, 5*time.Second, time.Millisecond)

	watcher.batches <- []string{"/data/b.txt"}
	watcher.batches <- []string{"/data/c.txt"}
	time.Sleep(20 * time.Millisecond)

	submitted := controller.submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, watchRequest(), submitted[0])
}

func TestWatchTrigger_DefersFollowUpUntilRunFinishes(t *testing.T) {
	controller := newRecordingController()
	watcher := newChanWatcher()
	trigger := NewWatchTrigger(NewJobGate(controller, watchRequest()), watcher)
	startWatch(t, trigger, watcher)

	watcher.batches <- []string{"/data/a.txt"}
	require.Eventually(t, func() bool { return len(controller.submitted()) == 1 }, 5*time.Second, time.Millisecond)
	controller.setState("job-1", domain.JobRunning)

	watcher.batches <- []string{"/data/d.txt"}
	watcher.batches <- []string{"/data/e.txt"}
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, controller.submitted(), 1, "no second run while the first is running")

	controller.setState("job-1", domain.JobRetrying)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, controller.submitted(), 1, "no second run while the first waits to retry")

	controller.setState("job-1", domain.JobCompleted)
	require.Eventually(t, func() bool { return len(controller.submitted()) == 2 }, 5*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, controller.submitted(), 2, "exactly one follow-up for any number of bursts")
	assert.Equal(t, "job-2", trigger.LastJob())
}

func TestWatchTrigger_InitialSyncGoesThroughGate(t *testing.T) {
	controller := newRecordingController()
	watcher := newChanWatcher()
	trigger := NewWatchTrigger(NewJobGate(controller, watchRequest()), watcher, WithInitialSync())
	startWatch(t, trigger, watcher)

	require.Eventually(t, func() bool { return len(controller.submitted()) == 1 }, 5*time.Second, time.Millisecond)
	controller.setState("job-1", domain.JobRunning)

	watcher.batches <- []string{"/data/a.txt"}
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, controller.submitted(), 1, "a burst during the initial sync waits for it")

	controller.setState("job-1", domain.JobFailed)
	require.Eventually(t, func() bool { return len(controller.submitted()) == 2 }, 5*time.Second, time.Millisecond)
}

func TestJobGate_SharedByWatchAndPeriodic(t *testing.T) {
	controller := newRecordingController()
	watcher := newChanWatcher()
	gate := NewJobGate(controller, watchRequest())
	periodic := NewPeriodicTrigger(gate, 5*time.Millisecond)
	watch := NewWatchTrigger(gate, watcher)

	periodicDone := make(chan error, 1)
	go func() { periodicDone <- periodic.Start(context.Background()) }()
	startWatch(t, watch, watcher)

	require.Eventually(t, func() bool { return len(controller.submitted()) == 1 }, 5*time.Second, time.Millisecond)
	controller.setState("job-1", domain.JobRunning)

	watcher.batches <- []string{"/data/a.txt"}
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, controller.submitted(), 1)

	controller.setState("job-1", domain.JobCompleted)
	require.Eventually(t, func() bool { return len(controller.submitted()) == 2 }, 5*time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, controller.submitted(), 2, "the follow-up and the next tick do not both submit")

	require.NoError(t, periodic.Stop())
	assert.NoError(t, <-periodicDone)
}

func TestWatchTrigger_NeverRunsTwoSyncsAtOnce(t *testing.T) {
	var active, peak atomic.Int32
	release := make(chan struct{})
	run := func(ctx context.Context, _ int) (*domain.RunStats, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return &domain.RunStats{}, nil
	}
	settings := domain.SchedulerSettings{QueueCapacity: 8, Concurrency: 4, HistorySize: 10}
	f := newControllerFixture(t, run, fastRetry(0), nil, settings)
	require.NoError(t, f.controller.Start(context.Background()))

	watcher := newChanWatcher()
	trigger := NewWatchTrigger(NewJobGate(f.controller, watchRequest()), watcher, WithInitialSync())
	startWatch(t, trigger, watcher)

	require.Eventually(t, func() bool { return f.loader.callCount() == 1 }, 5*time.Second, time.Millisecond)
	watcher.batches <- []string{"/data/a.txt"}
	watcher.batches <- []string{"/data/b.txt"}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.loader.callCount())

	close(release)
	require.Eventually(t, func() bool { return f.loader.callCount() == 2 }, 5*time.Second, time.Millisecond)
	status := waitFor(t, f.controller, trigger.LastJob())
	assert.Equal(t, domain.JobCompleted, status.State)

	assert.Equal(t, 2, f.loader.callCount())
	assert.Equal(t, int32(1), peak.Load())
}

func TestWatchTrigger_Stop(t *testing.T) {
	controller := newRecordingController()
	watcher := newChanWatcher()
	trigger := NewWatchTrigger(NewJobGate(controller, domain.SubmitRequest{Roots: []string{"/data"}}), watcher)

	done := make(chan error, 1)
	go func() { done <- trigger.Start(context.Background()) }()
	<-watcher.roots

	require.NoError(t, trigger.Stop())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("trigger did not stop")
	}
	assert.Empty(t, trigger.LastJob())
}
