// ABOUTME: Sync orchestrator: runs push-then-pull cycles and owns lifecycle.
// ABOUTME: Cycles are single-flight; triggers arriving mid-cycle are dropped.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
)

// ErrSyncInFlight is returned by SyncOnce when a cycle is already running.
// Callers treat it as a no-op; the dropped trigger is covered by the timer.
var ErrSyncInFlight = errors.New("sync cycle already in flight")

// Engine owns the local store handle and the backend client and drives
// push-then-pull sync cycles.
type Engine struct {
	store  storage.Repository
	client remote.Client
	reach  *Reachability
	logger *log.Logger

	interval time.Duration
	ceiling  int

	inFlight atomic.Bool
	triggers chan string
}

// New creates a sync engine. If logger is nil the package default is used.
func New(cfg *Config, store storage.Repository, client remote.Client, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:    store,
		client:   client,
		reach:    NewReachability(),
		logger:   logger,
		interval: cfg.Interval(),
		ceiling:  cfg.Ceiling(),
		triggers: make(chan string, 4),
	}
}

// Reachability exposes the monitor for UI subscriptions.
func (e *Engine) Reachability() *Reachability {
	return e.reach
}

// SyncOnce runs one full cycle: connectivity probe, push, pull templates,
// pull sessions. Any failure flips reachability to false and aborts the
// remainder; partial progress from completed steps is retained. A clean run
// flips reachability to true.
func (e *Engine) SyncOnce(ctx context.Context) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrSyncInFlight
	}
	defer e.inFlight.Store(false)

	if err := e.client.Ping(ctx); err != nil {
		e.reach.Set(false)
		return fmt.Errorf("connectivity probe: %w", err)
	}

	if err := e.PushDirty(ctx); err != nil {
		e.reach.Set(false)
		return fmt.Errorf("push: %w", err)
	}
	if err := e.pullTemplates(ctx); err != nil {
		e.reach.Set(false)
		return fmt.Errorf("pull templates: %w", err)
	}
	if err := e.pullSessions(ctx); err != nil {
		e.reach.Set(false)
		return fmt.Errorf("pull sessions: %w", err)
	}

	e.reach.Set(true)
	return nil
}

// Trigger requests a sync cycle from an external event (network regained,
// app foregrounded). Non-blocking; drops the request if the trigger buffer
// is full.
func (e *Engine) Trigger(reason string) {
	select {
	case e.triggers <- reason:
	default:
	}
}

// Start launches the background sync loop: an immediate cycle, the fixed
// interval timer, and external triggers. The returned stop function tears
// down the timer and goroutine.
func (e *Engine) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		e.runCycle(ctx, "startup")

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.runCycle(ctx, "interval")
			case reason := <-e.triggers:
				e.runCycle(ctx, reason)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (e *Engine) runCycle(ctx context.Context, reason string) {
	err := e.SyncOnce(ctx)
	switch {
	case err == nil:
		e.logger.Debug("sync cycle complete", "reason", reason)
	case errors.Is(err, ErrSyncInFlight):
		e.logger.Debug("sync cycle skipped", "reason", reason)
	case ctx.Err() != nil:
		// Shutting down.
	default:
		e.logger.Warn("sync cycle failed", "reason", reason, "err", err)
	}
}
