package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// Ensure the triggers implement the interface.
var (
	_ driving.Scheduler = (*PeriodicTrigger)(nil)
	_ driving.Scheduler = (*WatchTrigger)(nil)
)

// JobGate submits one request on behalf of the triggers sharing it, so
// that at most one of its jobs is unfinished at any time.
type JobGate struct {
	controller driving.JobController
	request    domain.SubmitRequest

	mu      sync.Mutex
	lastJob string
	pending bool // a follow-up is owed once lastJob finishes
	waiting bool // a goroutine is waiting on lastJob
}

// NewJobGate creates a gate for request.
func NewJobGate(controller driving.JobController, request domain.SubmitRequest) *JobGate {
	return &JobGate{controller: controller, request: request}
}

// LastJob returns the ID of the most recently submitted job.
func (g *JobGate) LastJob() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastJob
}

// Submit asks for a run that sees every change made so far.
//
// A queued job already will, so nothing is submitted. A running or
// retrying job may not, so exactly one follow-up job is submitted after it
// finishes. Otherwise a job is submitted now.
func (g *JobGate) Submit(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, live := g.lastStateLocked(ctx)
	switch {
	case live && state == domain.JobQueued:
		return
	case live:
		g.pending = true
		if !g.waiting {
			g.waiting = true
			go g.follow(ctx, g.lastJob)
		}
		return
	}
	g.submitLocked(ctx)
}

// TrySubmit submits a job only when the previous one has finished.
// It reports whether a job was submitted.
func (g *JobGate) TrySubmit(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, live := g.lastStateLocked(ctx); live {
		logger.Debug("job %s still pending, not submitting", g.lastJob)
		return false
	}
	return g.submitLocked(ctx)
}

// follow submits the owed follow-up once id finishes. It gives up when ctx
// is done or another submission replaced id in the meantime.
func (g *JobGate) follow(ctx context.Context, id string) {
	_, err := g.controller.Wait(ctx, id)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.waiting = false
	if ctx.Err() != nil || g.lastJob != id || !g.pending {
		return
	}
	if err != nil {
		logger.Debug("waiting for job %s: %v", id, err)
	}
	g.submitLocked(ctx)
}

// lastStateLocked reports the state of lastJob and whether it is unfinished.
// An unknown job counts as finished.
func (g *JobGate) lastStateLocked(ctx context.Context) (domain.JobState, bool) {
	if g.lastJob == "" {
		return "", false
	}
	status, err := g.controller.Status(ctx, g.lastJob)
	if err != nil {
		return "", false
	}
	return status.State, !status.State.IsTerminal()
}

func (g *JobGate) submitLocked(ctx context.Context) bool {
	id, err := g.controller.Submit(ctx, g.request)
	if err != nil {
		logger.Warn("failed to submit sync: %v", err)
		return false
	}
	g.lastJob = id
	g.pending = false
	return true
}

// PeriodicTrigger submits through a gate on a fixed interval.
// A tick is skipped while the gate's previous job is unfinished.
type PeriodicTrigger struct {
	gate     *JobGate
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewPeriodicTrigger creates a periodic trigger.
func NewPeriodicTrigger(gate *JobGate, interval time.Duration) *PeriodicTrigger {
	return &PeriodicTrigger{gate: gate, interval: interval}
}

// Start submits a job immediately, then on every interval.
// This method blocks until Stop is called or ctx is done.
func (t *PeriodicTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil // Already running
	}
	if t.interval <= 0 {
		t.mu.Unlock()
		return domain.ErrConfig
	}
	t.running = true
	t.stopCh = make(chan struct{})
	stopCh := t.stopCh
	t.mu.Unlock()

	t.gate.TrySubmit(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			t.gate.TrySubmit(ctx)
		}
	}
}

// Stop ends the trigger loop. Submitted jobs are not cancelled.
func (t *PeriodicTrigger) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return nil
	}
	t.running = false
	close(t.stopCh)
	return nil
}

// LastJob returns the ID of the gate's most recent job.
func (t *PeriodicTrigger) LastJob() string {
	return t.gate.LastJob()
}

// WatchOption configures a WatchTrigger.
type WatchOption func(*WatchTrigger)

// WithInitialSync submits a job through the gate as soon as Start runs.
func WithInitialSync() WatchOption {
	return func(t *WatchTrigger) { t.initial = true }
}

// WatchTrigger submits through a gate after every burst of filesystem
// changes under the gate's roots.
type WatchTrigger struct {
	gate    *JobGate
	watcher driven.ChangeWatcher
	initial bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewWatchTrigger creates a watch trigger.
func NewWatchTrigger(gate *JobGate, watcher driven.ChangeWatcher, opts ...WatchOption) *WatchTrigger {
	t := &WatchTrigger{gate: gate, watcher: watcher}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start watches the roots until Stop is called or ctx is done.
func (t *WatchTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return nil // Already running
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()
	defer cancel()

	changes := make(chan []string)
	errCh := make(chan error, 1)
	go func() {
		errCh <- t.watcher.Watch(ctx, t.gate.request.Roots, changes)
	}()

	if t.initial {
		t.gate.Submit(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return <-errCh
		case err := <-errCh:
			return err
		case paths := <-changes:
			logger.Debug("watch trigger: %d path(s) changed", len(paths))
			t.gate.Submit(ctx)
		}
	}
}

// Stop ends the watch. Submitted jobs are not cancelled.
func (t *WatchTrigger) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// LastJob returns the ID of the gate's most recent job.
func (t *WatchTrigger) LastJob() string {
	return t.gate.LastJob()
}
