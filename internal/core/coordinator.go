// Package core coordinates the medtracker dataset: it owns the repository,
// persists every accepted mutation through a gateway, recomputes dose state
// and publishes snapshots to subscribers.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"medtracker/internal/repository"
	"medtracker/internal/scheduler"
	"medtracker/pkg/domain"
)

// ErrNotReady is returned by operations invoked before Setup completed or
// after Shutdown.
var ErrNotReady = errors.New("medtracker: coordinator not ready")

// Coordinator serialises mutate, persist, recompute and publish. It is safe
// for concurrent use.
type Coordinator struct {
	gw   domain.Gateway
	repo *repository.Repository
	opts coordinatorOptions

	mu     sync.Mutex
	ready  atomic.Bool
	closed bool
	latest atomic.Pointer[Snapshot]

	subMu   sync.Mutex
	subs    map[uint64]chan Snapshot
	nextSub uint64
}

// NewCoordinator returns a coordinator over gw. Setup must be called before use.
func NewCoordinator(gw domain.Gateway, opts ...Option) *Coordinator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Coordinator{
		gw:   gw,
		opts: o,
		repo: repository.New(
			repository.WithClock(o.clock.Now),
			repository.WithLogger(o.logger),
		),
		subs: make(map[uint64]chan Snapshot),
	}
}

// Setup loads the dataset, seeds it when empty and publishes the first
// snapshot. A load failure is returned as a *domain.PersistenceError and the
// coordinator stays unusable. Calling Setup again after success is a no-op.
func (c *Coordinator) Setup(ctx context.Context) (err error) {
	ctx, done := c.begin(ctx, "setup")
	defer func() { done(err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotReady
	}
	if c.ready.Load() {
		return nil
	}
	doc, err := c.gw.Load(ctx)
	if err != nil {
		c.opts.logger.Error("load dataset failed", "error", err)
		return domain.WrapPersistence("load", err)
	}
	if err := c.repo.Load(doc); err != nil {
		return domain.WrapPersistence("load", err)
	}
	if c.opts.seed != nil && c.repo.Empty() {
		if err := applySeed(c.repo, *c.opts.seed, c.opts.logger); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		if err := c.saveLocked(ctx); err != nil {
			return err
		}
	}
	snap := c.refreshLocked()
	c.ready.Store(true)
	c.opts.logger.Info("coordinator ready",
		"patients", len(snap.Patients),
		"medications", len(snap.Medications))
	return nil
}

// Refresh recomputes derived state from the repository and publishes it.
func (c *Coordinator) Refresh(ctx context.Context) (snap Snapshot, err error) {
	_, done := c.begin(ctx, "refresh")
	defer func() { done(err) }()
	if !c.ready.Load() {
		return Snapshot{}, ErrNotReady
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(), nil
}

// Latest returns the most recently published snapshot.
func (c *Coordinator) Latest() (Snapshot, bool) {
	p := c.latest.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

// Subscribe returns a channel receiving published snapshots. The channel
// holds one snapshot; a slow reader only ever sees the newest one. The
// current snapshot, if any, is delivered immediately. The returned function
// unsubscribes and closes the channel.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	if p := c.latest.Load(); p != nil {
		ch <- *p
	}
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Poll refreshes every interval until ctx ends. Refresh failures are logged.
func (c *Coordinator) Poll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.Refresh(ctx); err != nil {
				c.opts.logger.Warn("scheduled refresh failed", "error", err)
			}
		}
	}
}

// Shutdown performs a final save and releases subscribers. It is idempotent.
// A failed save leaves the coordinator running so the caller may retry.
func (c *Coordinator) Shutdown(ctx context.Context) (err error) {
	ctx, done := c.begin(ctx, "shutdown")
	defer func() { done(err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.ready.Load() {
		if err := c.saveLocked(ctx); err != nil {
			return err
		}
	}
	c.closed = true
	c.ready.Store(false)

	c.subMu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.subMu.Unlock()
	c.opts.logger.Info("coordinator stopped")
	return nil
}

// mutate runs fn under the coordinator lock. When fn reports a change the
// dataset is saved, then refreshed and published regardless of the save
// outcome so in-memory state and snapshots stay consistent.
func (c *Coordinator) mutate(ctx context.Context, op string, fn func() (bool, error)) (changed bool, err error) {
	ctx, done := c.begin(ctx, op)
	defer func() { done(err) }()
	if !c.ready.Load() {
		return false, ErrNotReady
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready.Load() {
		return false, ErrNotReady
	}
	changed, err = fn()
	if err != nil || !changed {
		if err != nil {
			c.opts.logger.Debug("mutation rejected", "operation", op, "error", err)
		}
		return changed, err
	}
	saveErr := c.saveLocked(ctx)
	c.refreshLocked()
	return true, saveErr
}

func (c *Coordinator) saveLocked(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.saveTimeout)
	defer cancel()
	if err := c.gw.Save(sctx, c.repo.Export()); err != nil {
		c.opts.logger.Error("save dataset failed; changes are held in memory", "error", err)
		return domain.WrapPersistence("save", err)
	}
	return nil
}

func (c *Coordinator) refreshLocked() Snapshot {
	snap := buildSnapshot(c.repo.Export(), c.opts.clock.Now(),
		scheduler.WithLocation(c.opts.location),
		scheduler.WithLogger(c.opts.logger))
	c.latest.Store(&snap)
	c.opts.metrics.RecordSnapshot(snap)
	c.publish(snap)
	return snap
}

func (c *Coordinator) publish(snap Snapshot) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (c *Coordinator) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := c.opts.tracer.Start(ctx, op)
	return ctx, func(err error) {
		span.End(err)
		c.opts.metrics.Observe(ctx, op, err == nil, time.Since(start))
	}
}
