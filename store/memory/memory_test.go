package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jathurchan/casecoord/lock"
	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	suite := &storetest.Suite{
		NewStore: func(t *testing.T) store.Store { return New() },
	}
	suite.Run(t)
}

func TestMemoryStore_RootCannotBeDeleted(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.DeleteNode(context.Background(), "/"), store.ErrInvalidPath)
}

func TestMemoryStore_SharedLockTable(t *testing.T) {
	table := lock.NewTable()
	a := New(WithLockTable(table))
	b := New(WithLockTable(table))
	ctx := context.Background()

	ok, err := a.ReadWriteLock("/x").WriteLock().Acquire(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.ReadWriteLock("/x").ReadLock().Acquire(ctx, 0)
	require.NoError(t, err)
	assert.False(t, ok, "stores sharing a table share locks")
	assert.Same(t, table, b.Locks())
}

func TestMemoryStore_ContextCancelled(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.CreateNode(ctx, "/a", nil), context.Canceled)
	_, err := s.GetData(ctx, "/")
	assert.ErrorIs(t, err, context.Canceled)
}
