package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jathurchan/casecoord/store"
)

// Common client errors
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = fmt.Errorf("client is closed: %w", store.ErrClosed)

	// ErrNoEndpoints is returned when the configuration names no server.
	ErrNoEndpoints = errors.New("at least one endpoint must be provided")

	// ErrSessionExpired is returned when the server no longer knows the client's session.
	// Locks acquired through it have been released by the server.
	ErrSessionExpired = errors.New("session expired")

	// ErrUnavailable is returned when no server could serve the request.
	ErrUnavailable = errors.New("service unavailable")

	// ErrRateLimit is returned when the request is rate limited.
	ErrRateLimit = errors.New("request rate limited")

	// ErrInvalidArgument is returned when the server rejects request parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrorFromCode converts a gRPC code to the error the store contract promises.
func ErrorFromCode(code codes.Code) error {
	switch code {
	case codes.OK:
		return nil
	case codes.NotFound:
		return store.ErrNoNode
	case codes.AlreadyExists:
		return store.ErrNodeExists
	case codes.FailedPrecondition:
		return store.ErrNotEmpty
	case codes.PermissionDenied:
		return store.ErrNotHeld
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.Unauthenticated:
		return ErrSessionExpired
	case codes.ResourceExhausted:
		return ErrRateLimit
	case codes.Unavailable:
		return ErrUnavailable
	default:
		return fmt.Errorf("unexpected status code: %v", code)
	}
}

// ClientError wraps an error with additional client context.
type ClientError struct {
	Op      string     // Operation that failed
	Err     error      // Underlying error
	Code    codes.Code // Status code from server
	Message string     // Server-provided message
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("client %s failed: %v (code: %v, message: %s)", e.Op, e.Err, e.Code, e.Message)
	}
	return fmt.Sprintf("client %s failed: %v (code: %v)", e.Op, e.Err, e.Code)
}

// Unwrap returns the underlying error.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// NewClientError creates a new ClientError.
func NewClientError(op string, err error, code codes.Code, message string) *ClientError {
	return &ClientError{
		Op:      op,
		Err:     err,
		Code:    code,
		Message: message,
	}
}

// fromStatus converts a gRPC error into a ClientError carrying a store sentinel.
// Invalid arguments are reported as store.ErrInvalidPath since paths are the
// only free-form input the store contract accepts.
func fromStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var mapped error
	if st.Code() == codes.InvalidArgument {
		mapped = fmt.Errorf("%w: %w", store.ErrInvalidPath, ErrInvalidArgument)
	} else {
		mapped = ErrorFromCode(st.Code())
	}
	return NewClientError(op, mapped, st.Code(), st.Message())
}
