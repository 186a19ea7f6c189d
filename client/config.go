package client

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
)

const (
	// Default gRPC dial timeout.
	defaultDialTimeout = 5 * time.Second

	// Default timeout for individual gRPC requests.
	defaultRequestTimeout = 30 * time.Second

	// Default interval for sending keepalive pings.
	defaultKeepAliveTime = 30 * time.Second

	// Default timeout for waiting on keepalive ack.
	defaultKeepAliveTimeout = 5 * time.Second

	// Whether to allow keepalives when no streams are active.
	defaultPermitWithoutStream = true

	// Default maximum gRPC message size (4MB, matching the server).
	defaultMaxMessageSize = 4 * 1024 * 1024

	// Default number of retry attempts for failed operations.
	defaultMaxRetries = 3

	// Default initial backoff duration between retries.
	defaultInitialBackoff = 100 * time.Millisecond

	// Default maximum backoff duration.
	defaultMaxBackoff = 5 * time.Second

	// Default multiplier for exponential backoff.
	defaultBackoffMultiplier = 2.0

	// Default jitter factor to randomize backoff durations.
	defaultJitterFactor = 0.1

	// Default timeout for closing the session on Close.
	defaultCloseTimeout = 5 * time.Second
)

// Config holds configuration options for the remote store client.
type Config struct {
	// Endpoints is a list of coordination server addresses. The client sticks
	// to the first endpoint that answers and fails over to the others.
	// At least one endpoint is required.
	Endpoints []string

	// DialTimeout is the maximum time the client will wait to establish a
	// connection to a server endpoint. Defaults to 5 seconds.
	DialTimeout time.Duration

	// RequestTimeout is the default timeout for individual gRPC requests.
	// Lock acquisitions get their wait timeout on top of it. Defaults to 30 seconds.
	RequestTimeout time.Duration

	// KeepAlive settings control gRPC's keepalive mechanism.
	KeepAlive KeepAliveConfig

	// RetryPolicy defines the behavior for retrying failed operations.
	RetryPolicy RetryPolicy

	// SessionKeepAliveInterval is how often the session is renewed.
	// Zero uses a third of the TTL announced by the server.
	SessionKeepAliveInterval time.Duration

	// CloseTimeout bounds closing the session when the client is closed.
	CloseTimeout time.Duration

	// MaxMessageSize specifies the maximum size of a gRPC message (in bytes)
	// that the client can send or receive. Defaults to 4MB.
	MaxMessageSize int

	// DialOptions are appended to the options the client builds itself.
	DialOptions []grpc.DialOption

	Logger  logger.Logger
	Metrics Metrics
	Clock   clock.Clock
	Rand    clock.Rand
}

// KeepAliveConfig defines gRPC keepalive settings for the client.
type KeepAliveConfig struct {
	// Time is the interval at which the client sends keepalive pings to the server
	// when no other messages are being sent.
	Time time.Duration

	// Timeout is the duration the client waits for a keepalive ack from the server
	// before considering the connection to be dead.
	Timeout time.Duration

	// PermitWithoutStream allows keepalive pings to be sent even when there are
	// no active streams.
	PermitWithoutStream bool
}

// RetryPolicy defines how the client should retry failed operations.
type RetryPolicy struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries)
	MaxRetries int

	// InitialBackoff is the initial delay before the first retry
	InitialBackoff time.Duration

	// MaxBackoff is the maximum delay between retries
	MaxBackoff time.Duration

	// BackoffMultiplier determines how backoff increases between retries
	BackoffMultiplier float64

	// JitterFactor adds randomness to backoff timing (0.0 to 1.0)
	JitterFactor float64

	// RetryableCodes lists the gRPC codes that trigger a retry of idempotent operations.
	// Operations that change state are only retried on Unavailable and ResourceExhausted.
	RetryableCodes []codes.Code
}

// DefaultClientConfig returns a Config with sensible default values.
func DefaultClientConfig() Config {
	return Config{
		DialTimeout:    defaultDialTimeout,
		RequestTimeout: defaultRequestTimeout,
		KeepAlive: KeepAliveConfig{
			Time:                defaultKeepAliveTime,
			Timeout:             defaultKeepAliveTimeout,
			PermitWithoutStream: defaultPermitWithoutStream,
		},
		RetryPolicy:    DefaultRetryPolicy(),
		CloseTimeout:   defaultCloseTimeout,
		MaxMessageSize: defaultMaxMessageSize,
	}
}

// DefaultRetryPolicy returns a default retry policy that handles common
// transient errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        defaultMaxRetries,
		InitialBackoff:    defaultInitialBackoff,
		MaxBackoff:        defaultMaxBackoff,
		BackoffMultiplier: defaultBackoffMultiplier,
		JitterFactor:      defaultJitterFactor,
		RetryableCodes: []codes.Code{
			codes.Unavailable,
			codes.DeadlineExceeded,
			codes.ResourceExhausted,
		},
	}
}
