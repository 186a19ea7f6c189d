// Package lock implements an in-process table of shared/exclusive locks keyed
// by node path. Waiters are served in arrival order: a shared request queued
// behind an exclusive request waits for it, so writers are not starved.
//
// The table backs the lock recipes of the memory and badger stores and the
// locks handed out by the coordination server.
package lock

import (
	"context"
	"time"

	"github.com/jathurchan/casecoord/types"
)

// Owner identifies the holder of a lock. Each lock recipe instance uses a
// distinct owner so that release must come from the instance that acquired.
type Owner string

// Manager is the lock table API.
type Manager interface {
	// Acquire requests path in the given mode for owner, waiting up to timeout.
	// A timeout <= 0 makes a single attempt.
	//
	// Returns:
	//   - true, nil when the lock was granted.
	//   - false, nil when timeout elapsed first.
	//   - false, ctx.Err() when ctx was done first.
	//   - ErrLockHeld if owner already holds or waits for path.
	//   - ErrWaitQueueFull or ErrTableClosed.
	Acquire(ctx context.Context, path string, mode types.LockMode, owner Owner, timeout time.Duration) (bool, error)

	// Release gives up owner's hold on path.
	//
	// Returns ErrLockNotHeld if nothing is held on path in that mode, and
	// ErrNotLockOwner if the lock is held by someone else.
	Release(path string, mode types.LockMode, owner Owner) error

	// Info returns a snapshot of the lock on path. ErrLockNotFound if the
	// path has no holders and no waiters.
	Info(path string) (*Info, error)

	// Close fails every pending waiter with ErrTableClosed and rejects new requests.
	Close() error
}

// Info is a point-in-time view of one lock.
type Info struct {
	Path    string
	Writer  Owner   // empty when no exclusive holder
	Readers []Owner // sorted
	Waiters int
}
