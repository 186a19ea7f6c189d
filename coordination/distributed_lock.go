package coordination

import (
	"context"
	"errors"
	"sync"

	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/types"
)

// DistributedLock is an exclusive or shared lock held on a namespace path.
// It is only obtained from the Service acquire methods and must be released
// exactly once, by Release or Close. All methods are safe for concurrent use.
type DistributedLock struct {
	svc      *Service
	mutex    store.Mutex
	category types.Category
	path     string
	mode     types.LockMode

	mu       sync.Mutex
	released bool
}

// Path returns the relative path the lock was requested for.
func (l *DistributedLock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Category returns the namespace category of the lock, or the invalid zero
// Category for a nil handle.
func (l *DistributedLock) Category() types.Category {
	if l == nil {
		return 0
	}
	return l.category
}

// Mode returns whether the lock is exclusive or shared. A nil handle reports
// the zero LockMode.
func (l *DistributedLock) Mode() types.LockMode {
	if l == nil {
		return 0
	}
	return l.mode
}

// Released reports whether the lock has been given up.
func (l *DistributedLock) Released() bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}

// Release gives the lock up. The handle is spent after the first call whatever
// its outcome; later calls return ErrLockReleased.
func (l *DistributedLock) Release(ctx context.Context) error {
	if l == nil || l.svc == nil || l.mutex == nil {
		return ErrInvalidLock
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return ErrLockReleased
	}
	l.released = true
	l.svc.metrics.DecLocksHeld(l.mode)

	if err := l.mutex.Release(ctx); err != nil {
		l.svc.logger.WithCategory(l.category).WithPath(l.path).Warnw("Lock release failed", "mode", l.mode.String(), "error", err)
		return fail("release "+l.mode.String(), l.path, err)
	}
	l.svc.logger.WithCategory(l.category).WithPath(l.path).Debugw("Lock released", "mode", l.mode.String())
	return nil
}

// Close releases the lock within the service's release timeout. It is a no-op
// on a lock that was already released, so it can be deferred after an
// explicit Release.
func (l *DistributedLock) Close() error {
	if l == nil || l.svc == nil || l.mutex == nil {
		return ErrInvalidLock
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.svc.releaseTimeout)
	defer cancel()

	if err := l.Release(ctx); err != nil && !errors.Is(err, ErrLockReleased) {
		return err
	}
	return nil
}
