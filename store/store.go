// Package store defines the coordination store used by the case coordination
// service: a hierarchical namespace of persistent nodes with read/write lock
// recipes. Implementations live in the subpackages.
package store

import (
	"context"
	"time"
)

// Store is a hierarchical node store. All methods are safe for concurrent use.
// Paths are absolute and "/"-separated.
type Store interface {
	// CreateNode creates a persistent node holding data, creating any missing
	// parents with empty data. Returns ErrNodeExists if the node already exists.
	CreateNode(ctx context.Context, path string, data []byte) error

	// GetData returns the data held by the node, or ErrNoNode.
	GetData(ctx context.Context, path string) ([]byte, error)

	// SetData replaces the data held by the node, or returns ErrNoNode.
	SetData(ctx context.Context, path string, data []byte) error

	// DeleteNode removes a node without children. Returns ErrNoNode or ErrNotEmpty.
	DeleteNode(ctx context.Context, path string) error

	// Children returns the names of the node's immediate children, sorted.
	Children(ctx context.Context, path string) ([]string, error)

	// ReadWriteLock returns a lock recipe for path. Every call returns a new
	// recipe instance; a lock must be released through the instance that acquired it.
	ReadWriteLock(path string) ReadWriteLock

	// Close releases the store's resources. Further calls return ErrClosed.
	Close() error
}

// ReadWriteLock is a shared/exclusive lock recipe bound to one path.
type ReadWriteLock interface {
	// ReadLock returns the shared side of the lock.
	ReadLock() Mutex

	// WriteLock returns the exclusive side of the lock.
	WriteLock() Mutex
}

// Mutex is one side of a ReadWriteLock.
type Mutex interface {
	// Acquire waits up to timeout for the lock. A timeout <= 0 makes a single
	// attempt. It returns false with a nil error when the lock was not obtained
	// in time, and ctx.Err() when ctx is done first.
	Acquire(ctx context.Context, timeout time.Duration) (bool, error)

	// Release gives the lock up. Returns ErrNotHeld if it is not held by this instance.
	Release(ctx context.Context) error
}
