package client

import (
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
)

// Builder provides a fluent API for constructing a RemoteStore.
//
// Example:
//
//	st, err := client.NewBuilder([]string{"localhost:7070"}).
//	    WithTimeouts(2*time.Second, 5*time.Second).
//	    Build()
type Builder struct {
	config      Config
	hasEndpoint bool
}

// NewBuilder returns a Builder initialized with the given endpoints and the
// default configuration. At least one endpoint is required to build a client.
func NewBuilder(endpoints []string) *Builder {
	b := &Builder{
		config: DefaultClientConfig(),
	}
	if len(endpoints) > 0 {
		b.config.Endpoints = endpoints
		b.hasEndpoint = true
	}
	return b
}

// WithEndpoints sets the server endpoints, replacing any set before.
func (b *Builder) WithEndpoints(endpoints []string) *Builder {
	b.config.Endpoints = endpoints
	b.hasEndpoint = len(endpoints) > 0
	return b
}

// WithTimeouts sets the dial and request timeouts. Non-positive values are ignored.
func (b *Builder) WithTimeouts(dialTimeout, requestTimeout time.Duration) *Builder {
	if dialTimeout > 0 {
		b.config.DialTimeout = dialTimeout
	}
	if requestTimeout > 0 {
		b.config.RequestTimeout = requestTimeout
	}
	return b
}

// WithKeepAlive sets gRPC keepalive parameters.
func (b *Builder) WithKeepAlive(time, timeout time.Duration, permitWithoutStream bool) *Builder {
	b.config.KeepAlive = KeepAliveConfig{
		Time:                time,
		Timeout:             timeout,
		PermitWithoutStream: permitWithoutStream,
	}
	return b
}

// WithRetryPolicy sets a custom retry policy.
func (b *Builder) WithRetryPolicy(policy RetryPolicy) *Builder {
	b.config.RetryPolicy = policy
	return b
}

// WithRetryOptions updates the default retry policy parameters.
func (b *Builder) WithRetryOptions(maxRetries int, initialBackoff, maxBackoff time.Duration, multiplier float64) *Builder {
	if maxRetries >= 0 {
		b.config.RetryPolicy.MaxRetries = maxRetries
	}
	if initialBackoff > 0 {
		b.config.RetryPolicy.InitialBackoff = initialBackoff
	}
	if maxBackoff > 0 {
		b.config.RetryPolicy.MaxBackoff = maxBackoff
	}
	if multiplier > 0 {
		b.config.RetryPolicy.BackoffMultiplier = multiplier
	}
	return b
}

// WithRetryableCodes sets the status codes that trigger retries.
// No codes disables retries.
func (b *Builder) WithRetryableCodes(retryable ...codes.Code) *Builder {
	if len(retryable) > 0 {
		b.config.RetryPolicy.RetryableCodes = retryable
	} else {
		b.config.RetryPolicy.RetryableCodes = []codes.Code{}
	}
	return b
}

// WithSessionKeepAlive sets how often the lock session is renewed.
func (b *Builder) WithSessionKeepAlive(interval time.Duration) *Builder {
	if interval > 0 {
		b.config.SessionKeepAliveInterval = interval
	}
	return b
}

// WithCloseTimeout bounds closing the session on Close.
func (b *Builder) WithCloseTimeout(timeout time.Duration) *Builder {
	if timeout > 0 {
		b.config.CloseTimeout = timeout
	}
	return b
}

// WithMaxMessageSize sets the max gRPC message size (bytes).
func (b *Builder) WithMaxMessageSize(size int) *Builder {
	if size > 0 {
		b.config.MaxMessageSize = size
	}
	return b
}

// WithDialOptions appends extra gRPC dial options.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.config.DialOptions = append(b.config.DialOptions, opts...)
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(log logger.Logger) *Builder {
	b.config.Logger = log
	return b
}

// WithMetrics sets the metrics recorder.
func (b *Builder) WithMetrics(metrics Metrics) *Builder {
	b.config.Metrics = metrics
	return b
}

// WithClock sets the clock used for backoff and session renewal.
func (b *Builder) WithClock(clk clock.Clock) *Builder {
	b.config.Clock = clk
	return b
}

// validate checks if the builder has valid configuration.
func (b *Builder) validate() error {
	if !b.hasEndpoint || len(b.config.Endpoints) == 0 {
		return errors.New("builder: at least one endpoint must be set")
	}
	return nil
}

// Config returns a copy of the configuration built so far.
func (b *Builder) Config() Config {
	return b.config
}

// Build returns a configured RemoteStore.
func (b *Builder) Build() (*RemoteStore, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	return New(b.config)
}
