package lock

import (
	"context"
	"testing"
	"time"

	"github.com/jathurchan/casecoord/testutil"
	"github.com/jathurchan/casecoord/types"
)

const testPath = "/autopsy/cases/CASE1"

func TestTable_ExclusiveIsMutuallyExclusive(t *testing.T) {
	tb := NewTable()
	ctx := context.Background()

	ok, err := tb.Acquire(ctx, testPath, types.LockExclusive, "a", 0)
	testutil.RequireNoError(t, err)
	testutil.RequireTrue(t, ok)

	ok, err = tb.Acquire(ctx, testPath, types.LockExclusive, "b", 0)
	testutil.AssertNoError(t, err)
	testutil.AssertFalse(t, ok, "second exclusive acquisition must fail immediately")

	pending := acquireAsync(t, tb, ctx, testPath, types.LockExclusive, "b", longWait)
	waitForWaiters(t, tb, testPath, 1)
	expectPending(t, pending)

	testutil.RequireNoError(t, tb.Release(testPath, types.LockExclusive, "a"))

	res := expectResult(t, pending)
	testutil.AssertNoError(t, res.err)
	testutil.AssertTrue(t, res.ok)

	info, err := tb.Info(testPath)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, Owner("b"), info.Writer)
}

func TestTable_SharedCompatibility(t *testing.T) {
	tb := NewTable()
	ctx := context.Background()

	for _, owner := range []Owner{"r1", "r2"} {
		ok, err := tb.Acquire(ctx, testPath, types.LockShared, owner, 0)
		testutil.RequireNoError(t, err)
		testutil.RequireTrue(t, ok, "shared acquisition by %s", owner)
	}

	writer := acquireAsync(t, tb, ctx, testPath, types.LockExclusive, "w", longWait)
	waitForWaiters(t, tb, testPath, 1)

	testutil.RequireNoError(t, tb.Release(testPath, types.LockShared, "r1"))
	expectPending(t, writer)

	testutil.RequireNoError(t, tb.Release(testPath, types.LockShared, "r2"))
	res := expectResult(t, writer)
	testutil.AssertTrue(t, res.ok)
}

func TestTable_ReaderQueuesBehindWaitingWriter(t *testing.T) {
	tb := NewTable()
	ctx := context.Background()

	ok, _ := tb.Acquire(ctx, testPath, types.LockShared, "r1", 0)
	testutil.RequireTrue(t, ok)

	writer := acquireAsync(t, tb, ctx, testPath, types.LockExclusive, "w", longWait)
	waitForWaiters(t, tb, testPath, 1)

	ok, err := tb.Acquire(ctx, testPath, types.LockShared, "r2", 0)
	testutil.AssertNoError(t, err)
	testutil.AssertFalse(t, ok, "reader must not overtake a queued writer")

	reader := acquireAsync(t, tb, ctx, testPath, types.LockShared, "r2", longWait)
	waitForWaiters(t, tb, testPath, 2)

	testutil.RequireNoError(t, tb.Release(testPath, types.LockShared, "r1"))
	testutil.AssertTrue(t, expectResult(t, writer).ok)
	expectPending(t, reader)

	testutil.RequireNoError(t, tb.Release(testPath, types.LockExclusive, "w"))
	testutil.AssertTrue(t, expectResult(t, reader).ok)
}

func TestTable_ConsecutiveReadersPromotedTogether(t *testing.T) {
	tb := NewTable()
	ctx := context.Background()

	ok, _ := tb.Acquire(ctx, testPath, types.LockExclusive, "w", 0)
	testutil.RequireTrue(t, ok)

	r1 := acquireAsync(t, tb, ctx, testPath, types.LockShared, "r1", longWait)
	waitForWaiters(t, tb, testPath, 1)
	r2 := acquireAsync(t, tb, ctx, testPath, types.LockShared, "r2", longWait)
	waitForWaiters(t, tb, testPath, 2)

	testutil.RequireNoError(t, tb.Release(testPath, types.LockExclusive, "w"))
	testutil.AssertTrue(t, expectResult(t, r1).ok)
	testutil.AssertTrue(t, expectResult(t, r2).ok)

	info, err := tb.Info(testPath)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, []Owner{"r1", "r2"}, info.Readers)
	testutil.AssertEqual(t, 0, info.Waiters)
}

func TestTable_TimeoutReturnsFalse(t *testing.T) {
	metrics := newCountingMetrics()
	tb := NewTable(WithMetrics(metrics))
	ctx := context.Background()

	ok, _ := tb.Acquire(ctx, testPath, types.LockExclusive, "a", 0)
	testutil.RequireTrue(t, ok)

	start := time.Now()
	ok, err := tb.Acquire(ctx, testPath, types.LockShared, "b", shortWait)
	testutil.AssertNoError(t, err)
	testutil.AssertFalse(t, ok)
	testutil.AssertTrue(t, time.Since(start) >= shortWait, "returned before the timeout")

	info, err := tb.Info(testPath)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, 0, info.Waiters, "timed out waiter must leave the queue")
	testutil.AssertEqual(t, 1, metrics.timeouts)
}

func TestTable_ContextCancelled(t *testing.T) {
	tb := NewTable()

	ok, _ := tb.Acquire(context.Background(), testPath, types.LockExclusive, "a", 0)
	testutil.RequireTrue(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	pending := acquireAsync(t, tb, ctx, testPath, types.LockExclusive, "b", longWait)
	waitForWaiters(t, tb, testPath, 1)
	cancel()

	res := expectResult(t, pending)
	testutil.AssertFalse(t, res.ok)
	testutil.AssertErrorIs(t, res.err, context.Canceled)

	info, err := tb.Info(testPath)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, 0, info.Waiters)
}

func TestTable_CancelledContextBeforeAcquire(t *testing.T) {
	tb := NewTable()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := tb.Acquire(ctx, testPath, types.LockShared, "a", time.Second)
	testutil.AssertFalse(t, ok)
	testutil.AssertErrorIs(t, err, context.Canceled)
}

func TestTable_AbandonedWriterUnblocksReaders(t *testing.T) {
	tb := NewTable()
	ctx := context.Background()

	ok, _ := tb.Acquire(ctx, testPath, types.LockShared, "r1", 0)
	testutil.RequireTrue(t, ok)

	wctx, cancel := context.WithCancel(ctx)
	writer := acquireAsync(t, tb, wctx, testPath, types.LockExclusive, "w", longWait)
	waitForWaiters(t, tb, testPath, 1)

	reader := acquireAsync(t, tb, ctx, testPath, types.LockShared, "r2", longWait)
	waitForWaiters(t, tb, testPath, 2)

	cancel()
	testutil.AssertErrorIs(t, expectResult(t, writer).err, context.Canceled)
	testutil.AssertTrue(t, expectResult(t, reader).ok)
}

func TestTable_ReleaseErrors(t *testing.T) {
	tb := NewTable()
	ctx := context.Background()

	testutil.AssertErrorIs(t, tb.Release(testPath, types.LockExclusive, "a"), ErrLockNotHeld)

	ok, _ := tb.Acquire(ctx, testPath, types.LockExclusive, "a", 0)
	testutil.RequireTrue(t, ok)

	testutil.AssertErrorIs(t, tb.Release(testPath, types.LockExclusive, "b"), ErrNotLockOwner)
	testutil.AssertErrorIs(t, tb.Release(testPath, types.LockShared, "a"), ErrLockNotHeld)
	testutil.AssertErrorIs(t, tb.Release(testPath, types.LockMode(9), "a"), ErrInvalidMode)

	testutil.RequireNoError(t, tb.Release(testPath, types.LockExclusive, "a"))
	testutil.AssertErrorIs(t, tb.Release(testPath, types.LockExclusive, "a"), ErrLockNotHeld)

	_, err := tb.Info(testPath)
	testutil.AssertErrorIs(t, err, ErrLockNotFound, "idle paths are dropped")
}

func TestTable_NoReentrancy(t *testing.T) {
	tb := NewTable()
	ctx := context.Background()

	ok, _ := tb.Acquire(ctx, testPath, types.LockShared, "a", 0)
	testutil.RequireTrue(t, ok)

	_, err := tb.Acquire(ctx, testPath, types.LockShared, "a", 0)
	testutil.AssertErrorIs(t, err, ErrLockHeld)
	_, err = tb.Acquire(ctx, testPath, types.LockExclusive, "a", 0)
	testutil.AssertErrorIs(t, err, ErrLockHeld)
}

func TestTable_InvalidMode(t *testing.T) {
	_, err := NewTable().Acquire(context.Background(), testPath, types.LockMode(5), "a", 0)
	testutil.AssertErrorIs(t, err, ErrInvalidMode)
}

func TestTable_WaitQueueFull(t *testing.T) {
	tb := NewTable(WithMaxWaiters(1))
	ctx := context.Background()

	ok, _ := tb.Acquire(ctx, testPath, types.LockExclusive, "a", 0)
	testutil.RequireTrue(t, ok)

	pending := acquireAsync(t, tb, ctx, testPath, types.LockExclusive, "b", longWait)
	waitForWaiters(t, tb, testPath, 1)

	_, err := tb.Acquire(ctx, testPath, types.LockExclusive, "c", longWait)
	testutil.AssertErrorIs(t, err, ErrWaitQueueFull)

	testutil.RequireNoError(t, tb.Release(testPath, types.LockExclusive, "a"))
	testutil.AssertTrue(t, expectResult(t, pending).ok)
}

func TestTable_CloseFailsWaiters(t *testing.T) {
	tb := NewTable()
	ctx := context.Background()

	ok, _ := tb.Acquire(ctx, testPath, types.LockExclusive, "a", 0)
	testutil.RequireTrue(t, ok)

	pending := acquireAsync(t, tb, ctx, testPath, types.LockExclusive, "b", longWait)
	waitForWaiters(t, tb, testPath, 1)

	testutil.RequireNoError(t, tb.Close())
	testutil.AssertErrorIs(t, expectResult(t, pending).err, ErrTableClosed)

	_, err := tb.Acquire(ctx, "/other", types.LockShared, "c", 0)
	testutil.AssertErrorIs(t, err, ErrTableClosed)
	testutil.AssertNoError(t, tb.Close(), "Close is idempotent")
}

func TestTable_IndependentPaths(t *testing.T) {
	tb := NewTable()
	ctx := context.Background()

	ok, _ := tb.Acquire(ctx, "/a", types.LockExclusive, "x", 0)
	testutil.RequireTrue(t, ok)
	ok, _ = tb.Acquire(ctx, "/b", types.LockExclusive, "y", 0)
	testutil.AssertTrue(t, ok)
}

func TestTable_Metrics(t *testing.T) {
	metrics := newCountingMetrics()
	tb := NewTable(WithMetrics(metrics))
	ctx := context.Background()

	tb.Acquire(ctx, testPath, types.LockShared, "r1", 0)
	tb.Acquire(ctx, testPath, types.LockShared, "r2", 0)
	tb.Acquire(ctx, testPath, types.LockExclusive, "w", 0)

	testutil.AssertEqual(t, 2, metrics.acquired[types.LockShared])
	testutil.AssertEqual(t, 1, metrics.failed)
	testutil.AssertEqual(t, 1, metrics.active)

	tb.Release(testPath, types.LockShared, "r1")
	tb.Release(testPath, types.LockShared, "r2")
	testutil.AssertEqual(t, 2, metrics.released)
	testutil.AssertEqual(t, 0, metrics.active)
	testutil.AssertEqual(t, 0, metrics.waiters)
}

func TestWaitQueue_ArrivalOrder(t *testing.T) {
	wq := waitQueue{}
	for _, seq := range []uint64{3, 1, 2} {
		w := &waiter{seq: seq}
		wq.Push(w)
	}
	testutil.AssertTrue(t, wq.Less(1, 2))
	testutil.AssertFalse(t, wq.Less(0, 1))

	popped := wq.Pop().(*waiter)
	testutil.AssertEqual(t, uint64(2), popped.seq)
	testutil.AssertEqual(t, -1, popped.index)
	testutil.AssertEqual(t, 2, wq.Len())
}

