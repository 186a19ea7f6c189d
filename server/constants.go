package server

import "time"

const (
	// --- Default server configuration values ---

	// DefaultListenAddress is the default address for the server's client-facing gRPC endpoint.
	DefaultListenAddress = "0.0.0.0:7070"

	// DefaultRequestTimeout is the default timeout for processing individual node requests.
	// Lock acquisitions are bounded by their own wait timeout instead.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful server shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultMaxConcurrentRequests is the default maximum number of requests processed in parallel.
	DefaultMaxConcurrentRequests = 1000

	// --- Rate limiting defaults ---

	// DefaultRateLimit is the default number of requests per window.
	DefaultRateLimit = 100

	// DefaultRateLimitBurst is the default burst size for rate limiting.
	DefaultRateLimitBurst = 200

	// DefaultRateLimitWindow is the default time window for rate limiting calculations.
	DefaultRateLimitWindow = time.Second

	// --- Session defaults ---

	// DefaultSessionTTL is how long a session survives without a keepalive.
	DefaultSessionTTL = 30 * time.Second

	// DefaultSessionReapInterval is how often expired sessions are looked for.
	DefaultSessionReapInterval = 5 * time.Second

	// DefaultLockReleaseTimeout bounds the release of each lock held by an expired or closed session.
	DefaultLockReleaseTimeout = 5 * time.Second

	// --- gRPC server configuration ---

	// DefaultGRPCMaxRecvMsgSize is the default maximum size for incoming gRPC messages (4MB).
	DefaultGRPCMaxRecvMsgSize = 4 * 1024 * 1024

	// DefaultGRPCMaxSendMsgSize is the default maximum size for outgoing gRPC messages (4MB).
	DefaultGRPCMaxSendMsgSize = 4 * 1024 * 1024

	// DefaultGRPCKeepaliveTime is the default interval for pinging idle client connections.
	DefaultGRPCKeepaliveTime = 30 * time.Second

	// DefaultGRPCKeepaliveTimeout is the default timeout for a keepalive acknowledgment.
	DefaultGRPCKeepaliveTimeout = 5 * time.Second

	// --- Validation limits for client-provided data ---

	// MaxPathLength is the maximum allowed length for node paths.
	MaxPathLength = 1024

	// MaxNodeDataSize is the maximum payload stored on a node (1MB, ZooKeeper's default jute.maxbuffer).
	MaxNodeDataSize = 1024 * 1024

	// MaxLockWaitTimeout is the maximum time a lock request may wait.
	MaxLockWaitTimeout = 10 * time.Minute

	// --- Error message templates for validation ---

	// ErrMsgInvalidPath is the error message template for invalid paths.
	ErrMsgInvalidPath = "path must be an absolute, slash-separated path with length <= %d characters"
	// ErrMsgInvalidSessionID is the error message for malformed session identifiers.
	ErrMsgInvalidSessionID = "session_id must be a UUID returned by OpenSession"
	// ErrMsgInvalidTimeout is the error message template for invalid timeout values.
	ErrMsgInvalidTimeout = "timeout must be between 0 and %v"
	// ErrMsgDataTooLarge is the error message template for oversized payloads.
	ErrMsgDataTooLarge = "data cannot exceed %d bytes"
)

// ServerOperationalState defines the possible operational states of the server.
type ServerOperationalState string

const (
	// ServerStateStarting indicates the server is in the process of starting up.
	ServerStateStarting ServerOperationalState = "starting"
	// ServerStateRunning indicates the server is running and accepting requests.
	ServerStateRunning ServerOperationalState = "running"
	// ServerStateStopping indicates the server is in the process of shutting down.
	ServerStateStopping ServerOperationalState = "stopping"
	// ServerStateStopped indicates the server has been stopped.
	ServerStateStopped ServerOperationalState = "stopped"
)

// gRPC method names for metrics collection and logging
const (
	MethodOpenSession  = "OpenSession"
	MethodKeepAlive    = "KeepAlive"
	MethodCloseSession = "CloseSession"
	MethodCreateNode   = "CreateNode"
	MethodGetData      = "GetData"
	MethodSetData      = "SetData"
	MethodDeleteNode   = "DeleteNode"
	MethodChildren     = "Children"
	MethodAcquireLock  = "AcquireLock"
	MethodReleaseLock  = "ReleaseLock"
)

// Error types for metrics and logging (used with ServerMetrics.IncrValidationError/IncrServerError)
const (
	ErrorTypeMissingField   = "missing_field"
	ErrorTypeInvalidFormat  = "invalid_format"
	ErrorTypeOutOfRange     = "out_of_range"
	ErrorTypeTooLong        = "too_long"
	ErrorTypeInternalError  = "internal_error"
	ErrorTypeStoreError     = "store_error"
	ErrorTypeTimeout        = "timeout"
	ErrorTypeRateLimit      = "rate_limit_exceeded"
	ErrorTypeSessionExpired = "session_expired"
)
