// Package heartbeat keeps a process's presence record fresh.
//
// The task refreshes the record every interval with a full registry
// rewrite, which also evicts records of peers that died without
// deregistering. On cancellation it performs exactly one final rewrite
// that removes the process's own record and channel, so every graceful
// exit leaves the registry clean.
package heartbeat

import (
	"context"
	"time"

	"github.com/Iron-Ham/notifio/internal/logging"
	"github.com/Iron-Ham/notifio/internal/registry"
)

// Task is the periodic presence-refresh activity.
type Task struct {
	store    *registry.Store
	pid      int
	identity string
	interval time.Duration
	logger   *logging.Logger
	stopped  chan struct{}
}

// New creates a heartbeat task for the given process. The store must stay
// open until Wait returns.
func New(store *registry.Store, pid int, identity string, interval time.Duration, logger *logging.Logger) *Task {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Task{
		store:    store,
		pid:      pid,
		identity: identity,
		interval: interval,
		logger:   logger.WithComponent("heartbeat"),
		stopped:  make(chan struct{}),
	}
}

// Start launches the refresh loop in its own goroutine. Cancel ctx to stop
// it; the final deregistering rewrite always runs before Wait returns,
// even when cancellation lands mid-interval.
func (t *Task) Start(ctx context.Context) {
	go t.loop(ctx)
}

// Wait blocks until the task has fully stopped, including its final
// deregistering rewrite. Callers must cancel the context passed to Start
// first.
func (t *Task) Wait() {
	<-t.stopped
}

func (t *Task) loop(ctx context.Context) {
	defer close(t.stopped)
	defer t.deregister()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := t.store.Rewrite(t.pid, t.identity, true); err != nil {
				// Non-fatal: the record goes stale only after two
				// missed intervals, and the next tick retries.
				t.logger.Error("presence refresh failed", "error", err)
				continue
			}
			t.logger.Debug("presence refreshed", "pid", t.pid)
		}
	}
}

func (t *Task) deregister() {
	if _, err := t.store.Rewrite(t.pid, t.identity, false); err != nil {
		t.logger.Error("deregistration failed", "error", err)
		return
	}
	t.logger.Info("deregistered", "pid", t.pid)
}
