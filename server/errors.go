package server

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jathurchan/casecoord/store"
)

var (
	// ErrServerNotStarted indicates the server has not been started or is not yet ready.
	ErrServerNotStarted = errors.New("server: server not started or not ready")

	// ErrServerAlreadyStarted indicates an attempt to start an already running server.
	ErrServerAlreadyStarted = errors.New("server: server already started")

	// ErrServerStopped indicates the server has been stopped and cannot process requests.
	ErrServerStopped = errors.New("server: server stopped")

	// ErrRateLimited indicates the request was rejected due to rate limiting policies.
	ErrRateLimited = errors.New("server: request rate limited")

	// ErrShutdownTimeout indicates the server's graceful shutdown process timed out.
	ErrShutdownTimeout = errors.New("server: shutdown timed out")

	// ErrSessionNotFound indicates the session is unknown, closed or expired.
	ErrSessionNotFound = errors.New("server: session not found or expired")

	// ErrLockTokenNotFound indicates the lock token does not belong to the session.
	ErrLockTokenNotFound = errors.New("server: lock token not held by session")
)

// ValidationError represents a request validation error with details about the specific field.
type ValidationError struct {
	Field   string // The name of the field that failed validation.
	Value   any    // The value of the field that caused the error.
	Message string // A descriptive message explaining the validation failure.
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Error implements the error interface, providing a structured validation error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("server: validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// ServerError represents a generic internal server error, potentially wrapping an underlying cause.
type ServerError struct {
	Operation string // The operation being performed when the error occurred.
	Cause     error  // The underlying error, if any.
	Message   string // A high-level message describing the server error.
}

// NewServerError creates a new ServerError.
func NewServerError(operation string, cause error, message string) *ServerError {
	return &ServerError{
		Operation: operation,
		Cause:     cause,
		Message:   message,
	}
}

// Error implements the error interface, providing context about the operation and cause.
func (e *ServerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("server: error during %s: %s (cause: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("server: error during %s: %s", e.Operation, e.Message)
}

// Unwrap provides compatibility with Go's errors.Is and errors.As by returning the cause.
func (e *ServerError) Unwrap() error {
	return e.Cause
}

// ErrorToStatus converts Go errors to gRPC status errors. Store sentinels get
// distinct codes so the client can map them back.
func ErrorToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return status.Error(codes.InvalidArgument, validationErr.Error())
	}

	return status.Error(CodeOf(err), err.Error())
}

// CodeOf returns the gRPC code used for err.
func CodeOf(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, store.ErrNoNode):
		return codes.NotFound
	case errors.Is(err, store.ErrNodeExists):
		return codes.AlreadyExists
	case errors.Is(err, store.ErrNotEmpty):
		return codes.FailedPrecondition
	case errors.Is(err, store.ErrNotHeld), errors.Is(err, ErrLockTokenNotFound):
		return codes.PermissionDenied
	case errors.Is(err, store.ErrInvalidPath):
		return codes.InvalidArgument
	case errors.Is(err, store.ErrClosed):
		return codes.Unavailable
	case errors.Is(err, ErrSessionNotFound):
		return codes.Unauthenticated
	case errors.Is(err, ErrRateLimited):
		return codes.ResourceExhausted
	case errors.Is(err, ErrServerNotStarted), errors.Is(err, ErrServerStopped):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
