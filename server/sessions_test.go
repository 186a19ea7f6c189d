package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/store/memory"
	"github.com/jathurchan/casecoord/testutil"
	"github.com/jathurchan/casecoord/types"
)

const testTTL = 10 * time.Second

func newTestSessionManager(t *testing.T) (*sessionManager, *clock.MockClock, *recordingServerMetrics) {
	t.Helper()
	clk := clock.NewMockClock(testEpoch)
	metrics := newRecordingServerMetrics()
	sm := NewSessionManager(testTTL, 0, time.Second, metrics, logger.NewNoOpLogger(), clk).(*sessionManager)
	t.Cleanup(func() { _ = sm.Close() })
	return sm, clk, metrics
}

func acquireMutex(t *testing.T, st store.Store, path string, mode types.LockMode) store.Mutex {
	t.Helper()
	rw := st.ReadWriteLock(path)
	m := rw.WriteLock()
	if mode == types.LockShared {
		m = rw.ReadLock()
	}
	ok, err := m.Acquire(context.Background(), 0)
	testutil.RequireNoError(t, err)
	testutil.RequireTrue(t, ok, "expected to acquire %s lock on %s", mode, path)
	return m
}

func tryWriteLock(t *testing.T, st store.Store, path string) bool {
	t.Helper()
	m := st.ReadWriteLock(path).WriteLock()
	ok, err := m.Acquire(context.Background(), 0)
	testutil.RequireNoError(t, err)
	if ok {
		testutil.RequireNoError(t, m.Release(context.Background()))
	}
	return ok
}

func TestSessionManager_OpenKeepAlive(t *testing.T) {
	sm, clk, metrics := newTestSessionManager(t)

	id, ttl, err := sm.Open()
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, testTTL, ttl)
	testutil.AssertEqual(t, 1, sm.Count())
	testutil.AssertEqual(t, 1, metrics.snapshot().activeSessions)

	clk.Advance(testTTL - time.Second)
	testutil.AssertNoError(t, sm.KeepAlive(id))

	clk.Advance(testTTL - time.Second)
	testutil.AssertNoError(t, sm.KeepAlive(id), "keepalive should have extended the session")

	testutil.AssertErrorIs(t, sm.KeepAlive("unknown"), ErrSessionNotFound)
}

func TestSessionManager_KeepAliveAfterTTL(t *testing.T) {
	sm, clk, _ := newTestSessionManager(t)

	id, _, err := sm.Open()
	testutil.RequireNoError(t, err)

	clk.Advance(testTTL + time.Second)
	testutil.AssertErrorIs(t, sm.KeepAlive(id), ErrSessionNotFound,
		"an expired session cannot be revived before the reaper runs")
}

func TestSessionManager_CloseSessionReleasesLocks(t *testing.T) {
	sm, _, metrics := newTestSessionManager(t)
	st := memory.New()
	defer st.Close()

	id, _, err := sm.Open()
	testutil.RequireNoError(t, err)

	_, err = sm.AddLock(id, "/a", types.LockExclusive, acquireMutex(t, st, "/a", types.LockExclusive))
	testutil.RequireNoError(t, err)
	_, err = sm.AddLock(id, "/b", types.LockShared, acquireMutex(t, st, "/b", types.LockShared))
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, 2, sm.LocksHeld())
	testutil.AssertEqual(t, 2, metrics.snapshot().locksHeld)

	testutil.AssertFalse(t, tryWriteLock(t, st, "/a"))

	testutil.RequireNoError(t, sm.CloseSession(context.Background(), id))
	testutil.AssertEqual(t, 0, sm.Count())
	testutil.AssertEqual(t, 0, sm.LocksHeld())
	testutil.AssertTrue(t, tryWriteLock(t, st, "/a"))
	testutil.AssertTrue(t, tryWriteLock(t, st, "/b"))

	testutil.AssertErrorIs(t, sm.CloseSession(context.Background(), id), ErrSessionNotFound)
}

func TestSessionManager_RemoveLock(t *testing.T) {
	sm, _, _ := newTestSessionManager(t)
	st := memory.New()
	defer st.Close()

	id, _, err := sm.Open()
	testutil.RequireNoError(t, err)
	other, _, err := sm.Open()
	testutil.RequireNoError(t, err)

	token, err := sm.AddLock(id, "/a", types.LockExclusive, acquireMutex(t, st, "/a", types.LockExclusive))
	testutil.RequireNoError(t, err)

	testutil.AssertErrorIs(t, sm.RemoveLock(context.Background(), other, token), ErrLockTokenNotFound,
		"a token only works with the session that acquired it")
	testutil.AssertErrorIs(t, sm.RemoveLock(context.Background(), "unknown", token), ErrSessionNotFound)

	testutil.RequireNoError(t, sm.RemoveLock(context.Background(), id, token))
	testutil.AssertTrue(t, tryWriteLock(t, st, "/a"))
	testutil.AssertErrorIs(t, sm.RemoveLock(context.Background(), id, token), ErrLockTokenNotFound)
}

func TestSessionManager_AddLockToEndedSession(t *testing.T) {
	sm, clk, _ := newTestSessionManager(t)
	st := memory.New()
	defer st.Close()

	id, _, err := sm.Open()
	testutil.RequireNoError(t, err)
	clk.Advance(testTTL + time.Second)

	m := acquireMutex(t, st, "/a", types.LockExclusive)
	_, err = sm.AddLock(id, "/a", types.LockExclusive, m)
	testutil.AssertErrorIs(t, err, ErrSessionNotFound)
	testutil.AssertEqual(t, 0, sm.LocksHeld())
	testutil.AssertNoError(t, m.Release(context.Background()), "caller still owns the mutex")

	_, err = sm.AddLock(id, "/a", types.LockExclusive, nil)
	testutil.AssertError(t, err)
}

func TestSessionManager_CleanupExpiresIdleSessions(t *testing.T) {
	sm, clk, metrics := newTestSessionManager(t)
	st := memory.New()
	defer st.Close()

	idle, _, err := sm.Open()
	testutil.RequireNoError(t, err)
	_, err = sm.AddLock(idle, "/case", types.LockExclusive, acquireMutex(t, st, "/case", types.LockExclusive))
	testutil.RequireNoError(t, err)

	clk.Advance(testTTL / 2)
	active, _, err := sm.Open()
	testutil.RequireNoError(t, err)

	testutil.AssertEqual(t, 0, sm.Cleanup(), "nothing has expired yet")

	clk.Advance(testTTL/2 + time.Second)
	testutil.AssertEqual(t, 1, sm.Cleanup())
	testutil.AssertEqual(t, 1, sm.Count())
	testutil.AssertNoError(t, sm.KeepAlive(active))
	testutil.AssertErrorIs(t, sm.KeepAlive(idle), ErrSessionNotFound)
	testutil.AssertTrue(t, tryWriteLock(t, st, "/case"), "expired session's lock must be released")

	snap := metrics.snapshot()
	testutil.AssertEqual(t, 1, snap.expired)
	testutil.AssertEqual(t, 1, snap.activeSessions)
	testutil.AssertEqual(t, 0, snap.locksHeld)
}

func TestSessionManager_Reaper(t *testing.T) {
	clk := clock.NewMockClock(testEpoch)
	st := memory.New()
	defer st.Close()

	sm := NewSessionManager(testTTL, time.Second, time.Second, nil, nil, clk)
	defer sm.Close()

	id, _, err := sm.Open()
	testutil.RequireNoError(t, err)
	_, err = sm.AddLock(id, "/case", types.LockExclusive, acquireMutex(t, st, "/case", types.LockExclusive))
	testutil.RequireNoError(t, err)

	testutil.Eventually(t, func() bool { return clk.Waiters() > 0 }, time.Second, time.Millisecond,
		"reaper ticker should be registered")
	clk.Advance(testTTL + time.Second)

	testutil.Eventually(t, func() bool { return sm.Count() == 0 }, time.Second, 5*time.Millisecond,
		"reaper should expire the idle session")
	testutil.Eventually(t, func() bool { return tryWriteLock(t, st, "/case") }, time.Second, 5*time.Millisecond)
}

// failingMutex fails every release.
type failingMutex struct{}

func (failingMutex) Acquire(context.Context, time.Duration) (bool, error) { return true, nil }
func (failingMutex) Release(context.Context) error                       { return errors.New("boom") }

func TestSessionManager_CloseReportsReleaseFailures(t *testing.T) {
	sm, _, _ := newTestSessionManager(t)

	id, _, err := sm.Open()
	testutil.RequireNoError(t, err)
	_, err = sm.AddLock(id, "/a", types.LockExclusive, failingMutex{})
	testutil.RequireNoError(t, err)

	err = sm.CloseSession(context.Background(), id)
	testutil.AssertError(t, err)
	testutil.AssertContains(t, err.Error(), "boom")
	testutil.AssertEqual(t, 0, sm.Count(), "the session is gone even when a release fails")
}

func TestSessionManager_Close(t *testing.T) {
	clk := clock.NewMockClock(testEpoch)
	st := memory.New()
	defer st.Close()
	sm := NewSessionManager(testTTL, time.Second, time.Second, nil, nil, clk)

	id, _, err := sm.Open()
	testutil.RequireNoError(t, err)
	_, err = sm.AddLock(id, "/a", types.LockShared, acquireMutex(t, st, "/a", types.LockShared))
	testutil.RequireNoError(t, err)

	testutil.RequireNoError(t, sm.Close())
	testutil.AssertTrue(t, tryWriteLock(t, st, "/a"))
	testutil.AssertEqual(t, 0, sm.Count())
	testutil.AssertNoError(t, sm.Close(), "second close is a no-op")

	_, _, err = sm.Open()
	testutil.AssertErrorIs(t, err, ErrServerStopped)
}
