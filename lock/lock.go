package lock

import (
	"container/heap"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/types"
)

// Table is the in-process implementation of Manager.
type Table struct {
	mu     sync.Mutex
	locks  map[string]*lockState
	seq    uint64
	closed bool

	config  Config
	clock   clock.Clock
	logger  logger.Logger
	metrics Metrics
}

// NewTable creates an empty lock table.
func NewTable(opts ...Option) *Table {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewStandardClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewNoOpMetrics()
	}

	return &Table{
		locks:   make(map[string]*lockState),
		config:  cfg,
		clock:   cfg.Clock,
		logger:  cfg.Logger.WithComponent("lock"),
		metrics: cfg.Metrics,
	}
}

// Acquire implements Manager.
func (t *Table) Acquire(ctx context.Context, path string, mode types.LockMode, owner Owner, timeout time.Duration) (bool, error) {
	if mode != types.LockExclusive && mode != types.LockShared {
		return false, ErrInvalidMode
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	start := t.clock.Now()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false, ErrTableClosed
	}

	state := t.stateLocked(path)
	if state.holds(owner) || state.queuedLocked(owner) {
		t.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrLockHeld, path)
	}

	if state.queue.Len() == 0 && state.compatible(mode) {
		state.grant(owner, mode, start)
		t.updateGaugesLocked()
		t.mu.Unlock()

		t.metrics.IncrAcquireRequest(mode, true, false)
		t.metrics.ObserveAcquireLatency(mode, t.clock.Since(start), false)
		t.logger.Debugw("lock granted", "path", path, "mode", mode, "owner", owner)
		return true, nil
	}

	if timeout <= 0 {
		t.dropIfIdleLocked(state)
		t.mu.Unlock()
		t.metrics.IncrAcquireRequest(mode, false, false)
		return false, nil
	}

	if state.queue.Len() >= t.config.MaxWaiters {
		t.mu.Unlock()
		t.metrics.IncrAcquireRequest(mode, false, false)
		return false, fmt.Errorf("%w: %s", ErrWaitQueueFull, path)
	}

	t.seq++
	w := &waiter{
		owner:    owner,
		mode:     mode,
		seq:      t.seq,
		enqueued: start,
		notifyCh: make(chan struct{}),
	}
	heap.Push(&state.queue, w)
	t.updateGaugesLocked()
	t.mu.Unlock()

	t.logger.Debugw("lock request queued", "path", path, "mode", mode, "owner", owner, "timeout", timeout)

	timer := t.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.notifyCh:
		if w.err != nil {
			t.metrics.IncrAcquireRequest(mode, false, true)
			return false, w.err
		}
		t.metrics.IncrAcquireRequest(mode, true, true)
		t.metrics.ObserveAcquireLatency(mode, t.clock.Since(start), true)
		return true, nil

	case <-timer.Chan():
		if t.abandon(state, w) {
			t.metrics.IncrAcquireRequest(mode, true, true)
			return true, nil
		}
		t.metrics.IncrTimeoutWaiter(mode)
		t.metrics.IncrAcquireRequest(mode, false, true)
		t.logger.Debugw("lock wait timed out", "path", path, "mode", mode, "owner", owner)
		return false, nil

	case <-ctx.Done():
		if t.abandon(state, w) {
			// Granted concurrently; hand it back so the caller sees a clean failure.
			_ = t.Release(path, mode, owner)
		}
		t.metrics.IncrAcquireRequest(mode, false, true)
		return false, ctx.Err()
	}
}

// abandon removes w from the queue. It reports true if w had already been
// granted, in which case the caller now holds the lock.
func (t *Table) abandon(state *lockState, w *waiter) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w.granted {
		return true
	}
	if w.index >= 0 && w.index < state.queue.Len() && state.queue[w.index] == w {
		heap.Remove(&state.queue, w.index)
	}
	// The departed waiter may have been blocking compatible requests behind it.
	t.promoteLocked(state)
	t.dropIfIdleLocked(state)
	t.updateGaugesLocked()
	return false
}

// Release implements Manager.
func (t *Table) Release(path string, mode types.LockMode, owner Owner) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.locks[path]
	if !ok || !state.held() {
		t.metrics.IncrReleaseRequest(mode, false)
		return fmt.Errorf("%w: %s", ErrLockNotHeld, path)
	}

	switch mode {
	case types.LockExclusive:
		if state.writer == "" {
			t.metrics.IncrReleaseRequest(mode, false)
			return fmt.Errorf("%w: %s", ErrLockNotHeld, path)
		}
		if state.writer != owner {
			t.metrics.IncrReleaseRequest(mode, false)
			return fmt.Errorf("%w: %s", ErrNotLockOwner, path)
		}
		state.writer = ""
	case types.LockShared:
		if len(state.readers) == 0 {
			t.metrics.IncrReleaseRequest(mode, false)
			return fmt.Errorf("%w: %s", ErrLockNotHeld, path)
		}
		if _, ok := state.readers[owner]; !ok {
			t.metrics.IncrReleaseRequest(mode, false)
			return fmt.Errorf("%w: %s", ErrNotLockOwner, path)
		}
		delete(state.readers, owner)
	default:
		return ErrInvalidMode
	}

	t.promoteLocked(state)
	t.dropIfIdleLocked(state)
	t.updateGaugesLocked()
	t.metrics.IncrReleaseRequest(mode, true)
	t.logger.Debugw("lock released", "path", path, "mode", mode, "owner", owner)
	return nil
}

// Info implements Manager.
func (t *Table) Info(path string) (*Info, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.locks[path]
	if !ok || state.idle() {
		return nil, fmt.Errorf("%w: %s", ErrLockNotFound, path)
	}

	info := &Info{
		Path:    path,
		Writer:  state.writer,
		Readers: make([]Owner, 0, len(state.readers)),
		Waiters: state.queue.Len(),
	}
	for r := range state.readers {
		info.Readers = append(info.Readers, r)
	}
	slices.Sort(info.Readers)
	return info, nil
}

// Close implements Manager.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	failed := 0
	for _, state := range t.locks {
		for state.queue.Len() > 0 {
			w := heap.Pop(&state.queue).(*waiter)
			w.err = ErrTableClosed
			close(w.notifyCh)
			failed++
		}
	}
	t.updateGaugesLocked()
	if failed > 0 {
		t.logger.Infow("lock table closed with pending waiters", "failed", failed)
	}
	return nil
}

// promoteLocked grants queued requests in arrival order until one cannot be granted.
func (t *Table) promoteLocked(state *lockState) {
	now := t.clock.Now()
	for state.queue.Len() > 0 {
		head := state.queue[0]
		if !state.compatible(head.mode) {
			return
		}
		heap.Pop(&state.queue)
		state.grant(head.owner, head.mode, now)
		head.granted = true
		close(head.notifyCh)
		t.logger.Debugw("queued lock request granted",
			"path", state.path, "mode", head.mode, "owner", head.owner, "waited", now.Sub(head.enqueued))
	}
}

func (t *Table) stateLocked(path string) *lockState {
	state, ok := t.locks[path]
	if !ok {
		state = newLockState(path)
		t.locks[path] = state
	}
	return state
}

func (t *Table) dropIfIdleLocked(state *lockState) {
	if state.idle() {
		delete(t.locks, state.path)
	}
}

func (t *Table) updateGaugesLocked() {
	active, waiters := 0, 0
	for _, s := range t.locks {
		if s.held() {
			active++
		}
		waiters += s.queue.Len()
	}
	t.metrics.SetActiveLocks(active)
	t.metrics.SetTotalWaiters(waiters)
}

// queuedLocked reports whether owner already has a pending request on this path.
func (s *lockState) queuedLocked(owner Owner) bool {
	for _, w := range s.queue {
		if w.owner == owner {
			return true
		}
	}
	return false
}
