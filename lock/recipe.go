package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/types"
)

// ReadWriteLock is a store.ReadWriteLock recipe backed by a Manager.
// Its two sides use distinct owners generated when the recipe is created.
type ReadWriteLock struct {
	read  *Mutex
	write *Mutex
}

// NewReadWriteLock returns a recipe for path on m.
func NewReadWriteLock(m Manager, path string) *ReadWriteLock {
	return &ReadWriteLock{
		read:  newMutex(m, path, types.LockShared),
		write: newMutex(m, path, types.LockExclusive),
	}
}

func (l *ReadWriteLock) ReadLock() store.Mutex  { return l.read }
func (l *ReadWriteLock) WriteLock() store.Mutex { return l.write }

// Mutex is one side of a ReadWriteLock.
type Mutex struct {
	manager Manager
	path    string
	mode    types.LockMode
	owner   Owner

	mu   sync.Mutex
	held bool
}

func newMutex(m Manager, path string, mode types.LockMode) *Mutex {
	return &Mutex{
		manager: m,
		path:    path,
		mode:    mode,
		owner:   Owner(uuid.NewString()),
	}
}

// Owner returns the identity this mutex uses in the lock table.
func (m *Mutex) Owner() Owner { return m.owner }

// Acquire implements store.Mutex.
func (m *Mutex) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	ok, err := m.manager.Acquire(ctx, m.path, m.mode, m.owner, timeout)
	if err != nil {
		return false, mapError(err)
	}
	if ok {
		m.mu.Lock()
		m.held = true
		m.mu.Unlock()
	}
	return ok, nil
}

// Release implements store.Mutex.
func (m *Mutex) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.held {
		return fmt.Errorf("%w: %s", store.ErrNotHeld, m.path)
	}
	if err := m.manager.Release(m.path, m.mode, m.owner); err != nil {
		return mapError(err)
	}
	m.held = false
	return nil
}

// mapError translates lock table errors into store sentinels.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrLockNotHeld), errors.Is(err, ErrNotLockOwner):
		return fmt.Errorf("%w: %w", store.ErrNotHeld, err)
	case errors.Is(err, ErrTableClosed):
		return fmt.Errorf("%w: %w", store.ErrClosed, err)
	default:
		return err
	}
}
