package server

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/store"
)

// CoordinationServerBuilder helps construct a CoordinationServer with validated
// configuration and sane defaults.
type CoordinationServerBuilder struct {
	config CoordinationServerConfig

	hasStore bool // True if Store was set.
}

// NewCoordinationServerBuilder returns a builder preloaded with default configuration values.
func NewCoordinationServerBuilder() *CoordinationServerBuilder {
	return &CoordinationServerBuilder{
		config: DefaultCoordinationServerConfig(),
	}
}

// WithStore sets the store exposed by the server. This must be set explicitly.
func (b *CoordinationServerBuilder) WithStore(st store.Store) *CoordinationServerBuilder {
	b.config.Store = st
	b.hasStore = st != nil
	return b
}

// WithListenAddress sets the gRPC server's listening address.
// If not set, a default address is used.
func (b *CoordinationServerBuilder) WithListenAddress(address string) *CoordinationServerBuilder {
	b.config.ListenAddress = address
	return b
}

// WithListener serves on an existing listener instead of ListenAddress.
func (b *CoordinationServerBuilder) WithListener(l net.Listener) *CoordinationServerBuilder {
	b.config.Listener = l
	return b
}

// WithTimeouts sets timeouts for request handling and shutdown.
// Values <= 0 leave the defaults unchanged.
func (b *CoordinationServerBuilder) WithTimeouts(requestTimeout, shutdownTimeout time.Duration) *CoordinationServerBuilder {
	if requestTimeout > 0 {
		b.config.RequestTimeout = requestTimeout
	}
	if shutdownTimeout > 0 {
		b.config.ShutdownTimeout = shutdownTimeout
	}
	return b
}

// WithSessions sets the session TTL, the expiry sweep interval and the bound
// on releasing each lock of an ended session. Values <= 0 leave the defaults unchanged.
func (b *CoordinationServerBuilder) WithSessions(ttl, reapInterval, releaseTimeout time.Duration) *CoordinationServerBuilder {
	if ttl > 0 {
		b.config.SessionTTL = ttl
	}
	if reapInterval > 0 {
		b.config.SessionReapInterval = reapInterval
	}
	if releaseTimeout > 0 {
		b.config.LockReleaseTimeout = releaseTimeout
	}
	return b
}

// WithMaxConcurrentRequests caps the number of requests processed in parallel.
// Values <= 0 leave the default unchanged.
func (b *CoordinationServerBuilder) WithMaxConcurrentRequests(n int) *CoordinationServerBuilder {
	if n > 0 {
		b.config.MaxConcurrentReqs = n
	}
	return b
}

// WithRateLimit configures per-client rate limiting.
// Values <= 0 use the default if rate limiting is enabled.
func (b *CoordinationServerBuilder) WithRateLimit(enabled bool, rateLimit, burst int, window time.Duration) *CoordinationServerBuilder {
	b.config.EnableRateLimit = enabled
	if enabled {
		if rateLimit > 0 {
			b.config.RateLimit = rateLimit
		}
		if burst > 0 {
			b.config.RateLimitBurst = burst
		}
		if window > 0 {
			b.config.RateLimitWindow = window
		}
	}
	return b
}

// WithLogger sets the server logger.
// If nil, a no-op logger is used.
func (b *CoordinationServerBuilder) WithLogger(logger logger.Logger) *CoordinationServerBuilder {
	b.config.Logger = logger
	return b
}

// WithMetrics sets the metrics collector.
// If nil, a no-op implementation is used.
func (b *CoordinationServerBuilder) WithMetrics(metrics ServerMetrics) *CoordinationServerBuilder {
	b.config.Metrics = metrics
	return b
}

// WithClock sets the clock used for session expiry.
func (b *CoordinationServerBuilder) WithClock(clk clock.Clock) *CoordinationServerBuilder {
	b.config.Clock = clk
	return b
}

// Build constructs a CoordinationServer using the current builder state.
// Returns an error if required fields are missing or configuration is invalid.
func (b *CoordinationServerBuilder) Build() (CoordinationServer, error) {
	if !b.hasStore {
		return nil, errors.New("server builder: Store must be set using WithStore")
	}

	if b.config.Logger == nil {
		b.config.Logger = logger.NewNoOpLogger()
	}
	if b.config.Metrics == nil {
		b.config.Metrics = NewNoOpServerMetrics()
	}
	if b.config.Clock == nil {
		b.config.Clock = clock.NewStandardClock()
	}

	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("server builder: configuration validation failed: %w", err)
	}

	return NewCoordinationServer(b.config)
}
