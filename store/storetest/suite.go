// Package storetest is a conformance suite for store.Store implementations.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storetest.Suite{
//	        NewStore: func(t *testing.T) store.Store { return mystore.New() },
//	    }
//	    suite.Run(t)
//	}
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jathurchan/casecoord/store"
)

// Suite tests the store.Store contract, not implementation details.
type Suite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) store.Store
}

// Run executes all tests in the suite.
func (s *Suite) Run(t *testing.T) {
	t.Run("Nodes", s.RunNodeTests)
	t.Run("Locks", s.RunLockTests)
	t.Run("Close", s.testClose)
}

// RunNodeTests covers node creation, data access and listing.
func (s *Suite) RunNodeTests(t *testing.T) {
	t.Run("CreateWithParents", s.testCreateWithParents)
	t.Run("CreateExisting", s.testCreateExisting)
	t.Run("GetSetData", s.testGetSetData)
	t.Run("MissingNode", s.testMissingNode)
	t.Run("Delete", s.testDelete)
	t.Run("Children", s.testChildren)
	t.Run("InvalidPath", s.testInvalidPath)
}

// RunLockTests covers the read/write lock recipe.
func (s *Suite) RunLockTests(t *testing.T) {
	t.Run("ExclusiveExcludes", s.testExclusiveExcludes)
	t.Run("SharedCompatible", s.testSharedCompatible)
	t.Run("Timeout", s.testLockTimeout)
	t.Run("Cancel", s.testLockCancel)
	t.Run("ReleaseNotHeld", s.testReleaseNotHeld)
}

func (s *Suite) newStore(t *testing.T) store.Store {
	t.Helper()
	st := s.NewStore(t)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func (s *Suite) testCreateWithParents(t *testing.T) {
	ctx := context.Background()
	st := s.newStore(t)

	require.NoError(t, st.CreateNode(ctx, "/a/b/c", []byte("leaf")))

	data, err := st.GetData(ctx, "/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, []byte("leaf"), data)

	parent, err := st.GetData(ctx, "/a/b")
	require.NoError(t, err)
	assert.Empty(t, parent)
}

func (s *Suite) testCreateExisting(t *testing.T) {
	ctx := context.Background()
	st := s.newStore(t)

	require.NoError(t, st.CreateNode(ctx, "/a", nil))
	assert.ErrorIs(t, st.CreateNode(ctx, "/a", []byte("x")), store.ErrNodeExists)

	require.NoError(t, st.CreateNode(ctx, "/a/b", nil))
	assert.ErrorIs(t, st.CreateNode(ctx, "/a", nil), store.ErrNodeExists)
}

func (s *Suite) testGetSetData(t *testing.T) {
	ctx := context.Background()
	st := s.newStore(t)

	require.NoError(t, st.CreateNode(ctx, "/n", []byte{1, 2, 3}))
	require.NoError(t, st.SetData(ctx, "/n", []byte{4, 5}))

	data, err := st.GetData(ctx, "/n")
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, data)

	data[0] = 9
	again, err := st.GetData(ctx, "/n")
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, again, "returned data must be a copy")

	require.NoError(t, st.SetData(ctx, "/n", nil))
	empty, err := st.GetData(ctx, "/n")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func (s *Suite) testMissingNode(t *testing.T) {
	ctx := context.Background()
	st := s.newStore(t)

	_, err := st.GetData(ctx, "/missing")
	assert.ErrorIs(t, err, store.ErrNoNode)
	assert.ErrorIs(t, st.SetData(ctx, "/missing", []byte("x")), store.ErrNoNode)
	assert.ErrorIs(t, st.DeleteNode(ctx, "/missing"), store.ErrNoNode)
	_, err = st.Children(ctx, "/missing")
	assert.ErrorIs(t, err, store.ErrNoNode)
}

func (s *Suite) testDelete(t *testing.T) {
	ctx := context.Background()
	st := s.newStore(t)

	require.NoError(t, st.CreateNode(ctx, "/p/c", nil))
	assert.ErrorIs(t, st.DeleteNode(ctx, "/p"), store.ErrNotEmpty)

	require.NoError(t, st.DeleteNode(ctx, "/p/c"))
	require.NoError(t, st.DeleteNode(ctx, "/p"))

	_, err := st.GetData(ctx, "/p")
	assert.ErrorIs(t, err, store.ErrNoNode)
}

func (s *Suite) testChildren(t *testing.T) {
	ctx := context.Background()
	st := s.newStore(t)

	require.NoError(t, st.CreateNode(ctx, "/root/b", nil))
	require.NoError(t, st.CreateNode(ctx, "/root/a", nil))
	require.NoError(t, st.CreateNode(ctx, "/root/c/deep", nil))
	require.NoError(t, st.CreateNode(ctx, "/rootx", nil))

	children, err := st.Children(ctx, "/root")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, children)

	leaf, err := st.Children(ctx, "/root/a")
	require.NoError(t, err)
	assert.Empty(t, leaf)

	top, err := st.Children(ctx, "/")
	require.NoError(t, err)
	assert.Contains(t, top, "root")
	assert.Contains(t, top, "rootx")
}

func (s *Suite) testInvalidPath(t *testing.T) {
	ctx := context.Background()
	st := s.newStore(t)

	assert.ErrorIs(t, st.CreateNode(ctx, "relative", nil), store.ErrInvalidPath)
	assert.ErrorIs(t, st.CreateNode(ctx, "/trailing/", nil), store.ErrInvalidPath)
	_, err := st.GetData(ctx, "")
	assert.ErrorIs(t, err, store.ErrInvalidPath)
}

func (s *Suite) testExclusiveExcludes(t *testing.T) {
	ctx := context.Background()
	st := s.newStore(t)

	first := st.ReadWriteLock("/locks/x").WriteLock()
	second := st.ReadWriteLock("/locks/x").WriteLock()

	ok, err := first.Acquire(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	done := make(chan bool, 1)
	go func() {
		ok, _ := second.Acquire(ctx, 5*time.Second)
		done <- ok
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, first.Release(ctx))

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not granted after release")
	}
	require.NoError(t, second.Release(ctx))
}

func (s *Suite) testSharedCompatible(t *testing.T) {
	ctx := context.Background()
	st := s.newStore(t)

	r1 := st.ReadWriteLock("/locks/y").ReadLock()
	r2 := st.ReadWriteLock("/locks/y").ReadLock()
	w := st.ReadWriteLock("/locks/y").WriteLock()

	ok, err := r1.Acquire(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = r2.Acquire(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)

	var wg sync.WaitGroup
	var writerOK bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		writerOK, _ = w.Acquire(ctx, 5*time.Second)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, r1.Release(ctx))
	require.NoError(t, r2.Release(ctx))

	wg.Wait()
	assert.True(t, writerOK)
	require.NoError(t, w.Release(ctx))
}

func (s *Suite) testLockTimeout(t *testing.T) {
	ctx := context.Background()
	st := s.newStore(t)

	holder := st.ReadWriteLock("/locks/z").WriteLock()
	ok, err := holder.Acquire(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)

	start := time.Now()
	ok, err = st.ReadWriteLock("/locks/z").ReadLock().Acquire(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	require.NoError(t, holder.Release(ctx))
}

func (s *Suite) testLockCancel(t *testing.T) {
	st := s.newStore(t)

	holder := st.ReadWriteLock("/locks/c").WriteLock()
	ok, err := holder.Acquire(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ok, err = st.ReadWriteLock("/locks/c").WriteLock().Acquire(ctx, 10*time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, holder.Release(context.Background()))
}

func (s *Suite) testReleaseNotHeld(t *testing.T) {
	ctx := context.Background()
	st := s.newStore(t)

	m := st.ReadWriteLock("/locks/r").WriteLock()
	assert.ErrorIs(t, m.Release(ctx), store.ErrNotHeld)

	ok, err := m.Acquire(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, m.Release(ctx))
	assert.ErrorIs(t, m.Release(ctx), store.ErrNotHeld)
}

func (s *Suite) testClose(t *testing.T) {
	ctx := context.Background()
	st := s.NewStore(t)

	require.NoError(t, st.CreateNode(ctx, "/a", nil))
	require.NoError(t, st.Close())

	_, err := st.GetData(ctx, "/a")
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.ErrorIs(t, st.CreateNode(ctx, "/b", nil), store.ErrClosed)
}
