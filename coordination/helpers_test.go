package coordination

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/store/memory"
	"github.com/jathurchan/casecoord/testutil"
	"github.com/jathurchan/casecoord/types"
)

const (
	shortWait = 50 * time.Millisecond
	longWait  = 5 * time.Second
)

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc, err := New(context.Background(), st, opts...)
	testutil.RequireNoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, st
}

// faultyStore wraps a store and fails selected operations.
type faultyStore struct {
	store.Store

	mu         sync.Mutex
	createErr  error
	getErr     error
	setErr     error
	deleteErr  error
	listErr    error
	lockErr    error
	releaseErr error
}

func (f *faultyStore) CreateNode(ctx context.Context, path string, data []byte) error {
	f.mu.Lock()
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.CreateNode(ctx, path, data)
}

func (f *faultyStore) GetData(ctx context.Context, path string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Store.GetData(ctx, path)
}

func (f *faultyStore) SetData(ctx context.Context, path string, data []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.SetData(ctx, path, data)
}

func (f *faultyStore) DeleteNode(ctx context.Context, path string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.DeleteNode(ctx, path)
}

func (f *faultyStore) Children(ctx context.Context, path string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.Children(ctx, path)
}

func (f *faultyStore) ReadWriteLock(path string) store.ReadWriteLock {
	return &faultyRWLock{inner: f.Store.ReadWriteLock(path), store: f}
}

type faultyRWLock struct {
	inner store.ReadWriteLock
	store *faultyStore
}

func (l *faultyRWLock) ReadLock() store.Mutex  { return &faultyMutex{inner: l.inner.ReadLock(), store: l.store} }
func (l *faultyRWLock) WriteLock() store.Mutex { return &faultyMutex{inner: l.inner.WriteLock(), store: l.store} }

type faultyMutex struct {
	inner store.Mutex
	store *faultyStore
}

func (m *faultyMutex) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	if m.store.lockErr != nil {
		return false, m.store.lockErr
	}
	return m.inner.Acquire(ctx, timeout)
}

func (m *faultyMutex) Release(ctx context.Context) error {
	if m.store.releaseErr != nil {
		return m.store.releaseErr
	}
	return m.inner.Release(ctx)
}

type acquireResult struct {
	lock *DistributedLock
	err  error
}

func acquireAsync(svc *Service, mode types.LockMode, path string, timeout time.Duration) <-chan acquireResult {
	ch := make(chan acquireResult, 1)
	go func() {
		var (
			l   *DistributedLock
			err error
		)
		if mode == types.LockShared {
			l, err = svc.TryAcquireShared(context.Background(), types.CategoryCases, path, timeout)
		} else {
			l, err = svc.TryAcquireExclusive(context.Background(), types.CategoryCases, path, timeout)
		}
		ch <- acquireResult{lock: l, err: err}
	}()
	return ch
}

func waitForWaiters(t *testing.T, st *memory.Store, fqp string, n int) {
	t.Helper()
	testutil.Eventually(t, func() bool {
		info, err := st.Locks().Info(fqp)
		return err == nil && info.Waiters == n
	}, longWait, 5*time.Millisecond, "expected %d waiters on %s", n, fqp)
}

func expectPending(t *testing.T, ch <-chan acquireResult) {
	t.Helper()
	select {
	case res := <-ch:
		t.Fatalf("expected acquisition to be pending, got lock=%v err=%v", res.lock, res.err)
	case <-time.After(shortWait):
	}
}

func expectResult(t *testing.T, ch <-chan acquireResult) acquireResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(longWait):
		t.Fatal("timed out waiting for acquisition result")
		return acquireResult{}
	}
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	held     int
	nodeOps  map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{nodeOps: make(map[string]int)}
}

func (m *recordingMetrics) ObserveLockAcquire(_ types.Category, _ types.LockMode, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) IncLocksHeld(types.LockMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held++
}

func (m *recordingMetrics) DecLocksHeld(types.LockMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held--
}

func (m *recordingMetrics) ObserveNodeOperation(op string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.nodeOps[op]++
	}
}
