package coordination

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrServiceUnavailable is matched by every *ServiceUnavailableError.
	ErrServiceUnavailable = errors.New("coordination: service unavailable")

	// ErrService is matched by every *ServiceError.
	ErrService = errors.New("coordination: service error")

	// ErrInterrupted is matched by every *InterruptedError.
	ErrInterrupted = errors.New("coordination: interrupted")

	// ErrLockTimeout is returned by WithExclusiveLock and WithSharedLock when
	// the lock could not be obtained in time.
	ErrLockTimeout = errors.New("coordination: timed out waiting for lock")

	// ErrLockReleased is returned when releasing a lock handle a second time.
	ErrLockReleased = errors.New("coordination: lock already released")

	// ErrInvalidLock is returned by methods called on a nil or zero-value lock handle.
	ErrInvalidLock = errors.New("coordination: invalid lock handle")
)

// ServiceUnavailableError reports that the coordination store could not be
// reached or the namespace could not be provisioned.
type ServiceUnavailableError struct {
	Err error
}

func (e *ServiceUnavailableError) Error() string {
	if e.Err == nil {
		return ErrServiceUnavailable.Error()
	}
	return fmt.Sprintf("%v: %v", ErrServiceUnavailable, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

func (e *ServiceUnavailableError) Is(target error) bool { return target == ErrServiceUnavailable }

// ServiceError reports a failed store operation on a path.
type ServiceError struct {
	Op   string // operation name, e.g. "get", "acquire exclusive"
	Path string // fully-qualified path, or the relative path for releases
	Err  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("coordination: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool { return target == ErrService }

// InterruptedError reports that the caller's context ended while an operation
// was blocked. It unwraps to the context error, so errors.Is(err,
// context.Canceled) holds for a cancelled context.
type InterruptedError struct {
	Path string
	Err  error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("coordination: interrupted on %s: %v", e.Path, e.Err)
}

func (e *InterruptedError) Unwrap() error { return e.Err }

func (e *InterruptedError) Is(target error) bool { return target == ErrInterrupted }

// fail classifies err: context errors become *InterruptedError, everything
// else a *ServiceError.
func fail(op, path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &InterruptedError{Path: path, Err: err}
	}
	return &ServiceError{Op: op, Path: path, Err: err}
}
