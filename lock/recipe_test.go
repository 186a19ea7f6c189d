package lock

import (
	"context"
	"testing"

	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/testutil"
)

func TestReadWriteLock_Recipe(t *testing.T) {
	tb := NewTable()
	ctx := context.Background()

	first := NewReadWriteLock(tb, testPath)
	second := NewReadWriteLock(tb, testPath)

	ok, err := first.WriteLock().Acquire(ctx, 0)
	testutil.RequireNoError(t, err)
	testutil.RequireTrue(t, ok)

	ok, err = second.ReadLock().Acquire(ctx, shortWait)
	testutil.AssertNoError(t, err)
	testutil.AssertFalse(t, ok)

	testutil.AssertErrorIs(t, second.WriteLock().Release(ctx), store.ErrNotHeld,
		"release must come from the acquiring instance")

	testutil.RequireNoError(t, first.WriteLock().Release(ctx))
	testutil.AssertErrorIs(t, first.WriteLock().Release(ctx), store.ErrNotHeld, "double release")

	ok, err = second.ReadLock().Acquire(ctx, 0)
	testutil.RequireNoError(t, err)
	testutil.AssertTrue(t, ok)
}

func TestReadWriteLock_DistinctOwners(t *testing.T) {
	l := NewReadWriteLock(NewTable(), testPath)
	r := l.ReadLock().(*Mutex)
	w := l.WriteLock().(*Mutex)

	testutil.AssertNotEqual(t, r.Owner(), w.Owner())
	testutil.AssertNotEqual(t, Owner(""), r.Owner())
}

func TestReadWriteLock_ClosedTable(t *testing.T) {
	tb := NewTable()
	testutil.RequireNoError(t, tb.Close())

	_, err := NewReadWriteLock(tb, testPath).WriteLock().Acquire(context.Background(), 0)
	testutil.AssertErrorIs(t, err, store.ErrClosed)
	testutil.AssertErrorIs(t, err, ErrTableClosed)
}
