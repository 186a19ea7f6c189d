package coordination

import (
	"context"
	"errors"
	"time"

	"github.com/jathurchan/casecoord/types"
)

// TryAcquireExclusive waits up to timeout for an exclusive lock on the path.
// It returns a nil lock and a nil error if the timeout elapses first, and an
// *InterruptedError if ctx ends while waiting.
func (s *Service) TryAcquireExclusive(ctx context.Context, category types.Category, path string, timeout time.Duration) (*DistributedLock, error) {
	return s.acquire(ctx, category, path, types.LockExclusive, timeout)
}

// TryAcquireExclusiveNow makes a single attempt at an exclusive lock and
// returns a nil lock if it is unavailable.
func (s *Service) TryAcquireExclusiveNow(ctx context.Context, category types.Category, path string) (*DistributedLock, error) {
	return s.acquire(ctx, category, path, types.LockExclusive, 0)
}

// TryAcquireShared waits up to timeout for a shared lock on the path.
// Timeout and interruption are reported as for TryAcquireExclusive.
func (s *Service) TryAcquireShared(ctx context.Context, category types.Category, path string, timeout time.Duration) (*DistributedLock, error) {
	return s.acquire(ctx, category, path, types.LockShared, timeout)
}

// TryAcquireSharedNow makes a single attempt at a shared lock and returns a
// nil lock if it is unavailable.
func (s *Service) TryAcquireSharedNow(ctx context.Context, category types.Category, path string) (*DistributedLock, error) {
	return s.acquire(ctx, category, path, types.LockShared, 0)
}

func (s *Service) acquire(ctx context.Context, category types.Category, path string, mode types.LockMode, timeout time.Duration) (*DistributedLock, error) {
	start := s.clock.Now()
	log := s.logger.WithCategory(category).WithPath(path).With("mode", mode.String())

	fqp, err := s.UpsertNodePath(ctx, category, path)
	if err != nil {
		s.metrics.ObserveLockAcquire(category, mode, outcomeOf(err), s.clock.Since(start))
		return nil, err
	}

	rw := s.store.ReadWriteLock(fqp)
	m := rw.WriteLock()
	if mode == types.LockShared {
		m = rw.ReadLock()
	}

	ok, err := m.Acquire(ctx, timeout)
	if err != nil {
		err = fail("acquire "+mode.String(), fqp, err)
		s.metrics.ObserveLockAcquire(category, mode, outcomeOf(err), s.clock.Since(start))
		log.Warnw("Lock acquisition failed", "error", err)
		return nil, err
	}
	if !ok {
		s.metrics.ObserveLockAcquire(category, mode, OutcomeTimeout, s.clock.Since(start))
		log.Debugw("Lock not acquired before timeout", "timeout", timeout)
		return nil, nil
	}

	s.metrics.ObserveLockAcquire(category, mode, OutcomeAcquired, s.clock.Since(start))
	s.metrics.IncLocksHeld(mode)
	log.Debugw("Lock acquired")

	return &DistributedLock{
		svc:      s,
		mutex:    m,
		category: category,
		path:     path,
		mode:     mode,
	}, nil
}

// WithExclusiveLock runs fn while holding an exclusive lock on the path and
// releases the lock afterwards. It returns ErrLockTimeout if the lock is not
// obtained within timeout. A release failure is returned when fn succeeds.
func (s *Service) WithExclusiveLock(ctx context.Context, category types.Category, path string, timeout time.Duration, fn func(ctx context.Context) error) error {
	l, err := s.TryAcquireExclusive(ctx, category, path, timeout)
	return runLocked(ctx, l, err, fn)
}

// WithSharedLock is WithExclusiveLock for a shared lock.
func (s *Service) WithSharedLock(ctx context.Context, category types.Category, path string, timeout time.Duration, fn func(ctx context.Context) error) error {
	l, err := s.TryAcquireShared(ctx, category, path, timeout)
	return runLocked(ctx, l, err, fn)
}

func runLocked(ctx context.Context, l *DistributedLock, err error, fn func(ctx context.Context) error) (retErr error) {
	if err != nil {
		return err
	}
	if l == nil {
		return ErrLockTimeout
	}

	defer func() {
		if relErr := l.Close(); relErr != nil && retErr == nil {
			retErr = relErr
		}
	}()

	return fn(ctx)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeAcquired
	case errors.Is(err, ErrInterrupted):
		return OutcomeInterrupted
	default:
		return OutcomeError
	}
}
