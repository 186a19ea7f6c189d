package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jathurchan/casecoord/types"
)

const (
	shortWait = 50 * time.Millisecond
	longWait  = 2 * time.Second
)

type acquireResult struct {
	ok  bool
	err error
}

// acquireAsync starts an Acquire in a goroutine and returns its result channel.
func acquireAsync(t *testing.T, tb *Table, ctx context.Context, path string, mode types.LockMode, owner Owner, timeout time.Duration) <-chan acquireResult {
	t.Helper()
	ch := make(chan acquireResult, 1)
	go func() {
		ok, err := tb.Acquire(ctx, path, mode, owner, timeout)
		ch <- acquireResult{ok: ok, err: err}
	}()
	return ch
}

// waitForWaiters blocks until path has n queued requests.
func waitForWaiters(t *testing.T, tb *Table, path string, n int) {
	t.Helper()
	deadline := time.Now().Add(longWait)
	for time.Now().Before(deadline) {
		if info, err := tb.Info(path); err == nil && info.Waiters == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d waiters on %s", n, path)
}

func expectPending(t *testing.T, ch <-chan acquireResult) {
	t.Helper()
	select {
	case res := <-ch:
		t.Fatalf("expected acquisition to be pending, got ok=%v err=%v", res.ok, res.err)
	case <-time.After(shortWait):
	}
}

func expectResult(t *testing.T, ch <-chan acquireResult) acquireResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(longWait):
		t.Fatal("acquisition did not complete")
		return acquireResult{}
	}
}

type countingMetrics struct {
	NoOpMetrics
	mu        sync.Mutex
	acquired  map[types.LockMode]int
	failed    int
	released  int
	timeouts  int
	active    int
	waiters   int
	contested int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{acquired: make(map[types.LockMode]int)}
}

func (m *countingMetrics) IncrAcquireRequest(mode types.LockMode, success bool, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.acquired[mode]++
	} else {
		m.failed++
	}
}

func (m *countingMetrics) IncrReleaseRequest(_ types.LockMode, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.released++
	}
}

func (m *countingMetrics) IncrTimeoutWaiter(types.LockMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts++
}

func (m *countingMetrics) ObserveAcquireLatency(_ types.LockMode, _ time.Duration, contested bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if contested {
		m.contested++
	}
}

func (m *countingMetrics) SetActiveLocks(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = count
}

func (m *countingMetrics) SetTotalWaiters(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waiters = count
}
