package lock

import "errors"

var (
	// ErrLockHeld indicates the owner already holds or waits for the lock.
	ErrLockHeld = errors.New("lock: already held by owner")

	// ErrLockNotHeld indicates a release of a lock that is not held in the requested mode.
	ErrLockNotHeld = errors.New("lock: lock is not currently held")

	// ErrNotLockOwner indicates a release by an owner that does not hold the lock.
	ErrNotLockOwner = errors.New("lock: owner does not hold the lock")

	// ErrLockNotFound indicates that no state exists for the requested path.
	ErrLockNotFound = errors.New("lock: lock not found")

	// ErrWaitQueueFull indicates that the wait queue for a lock is full.
	ErrWaitQueueFull = errors.New("lock: wait queue is full")

	// ErrTableClosed indicates the lock table has been closed.
	ErrTableClosed = errors.New("lock: table closed")

	// ErrInvalidMode indicates an unknown lock mode.
	ErrInvalidMode = errors.New("lock: invalid lock mode")
)
