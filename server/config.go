package server

import (
	"fmt"
	"net"
	"time"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/store"
)

// CoordinationServerConfig holds the configuration settings for a coordination server instance.
type CoordinationServerConfig struct {
	// Store is the coordination store exposed to remote clients.
	Store store.Store

	// ListenAddress is the gRPC server's bind address (e.g., "0.0.0.0:7070").
	ListenAddress string

	// Listener, when set, is served instead of listening on ListenAddress.
	Listener net.Listener

	RequestTimeout    time.Duration // Max time to handle a node request
	ShutdownTimeout   time.Duration // Max time allowed for graceful shutdown
	MaxConcurrentReqs int           // Max number of requests processed in parallel

	SessionTTL          time.Duration // Lifetime of a session without keepalive
	SessionReapInterval time.Duration // Frequency of expired session checks
	LockReleaseTimeout  time.Duration // Bound on releasing each lock of a closed session

	EnableRateLimit bool          // Whether rate limiting is enforced
	RateLimit       int           // Requests allowed per window
	RateLimitBurst  int           // Burst capacity
	RateLimitWindow time.Duration // Time window used for rate calculation

	Logger  logger.Logger
	Metrics ServerMetrics
	Clock   clock.Clock
}

// DefaultCoordinationServerConfig returns a config pre-populated with safe defaults.
// Callers must set Store.
func DefaultCoordinationServerConfig() CoordinationServerConfig {
	return CoordinationServerConfig{
		ListenAddress:       DefaultListenAddress,
		RequestTimeout:      DefaultRequestTimeout,
		ShutdownTimeout:     DefaultShutdownTimeout,
		MaxConcurrentReqs:   DefaultMaxConcurrentRequests,
		SessionTTL:          DefaultSessionTTL,
		SessionReapInterval: DefaultSessionReapInterval,
		LockReleaseTimeout:  DefaultLockReleaseTimeout,
		EnableRateLimit:     false,
		RateLimit:           DefaultRateLimit,
		RateLimitBurst:      DefaultRateLimitBurst,
		RateLimitWindow:     DefaultRateLimitWindow,
		Logger:              logger.NewNoOpLogger(),
		Metrics:             NewNoOpServerMetrics(),
		Clock:               clock.NewStandardClock(),
	}
}

// Validate checks if the server configuration is valid.
func (c *CoordinationServerConfig) Validate() error {
	if c.Store == nil {
		return NewCoordinationServerConfigError("Store cannot be nil")
	}
	if c.ListenAddress == "" && c.Listener == nil {
		return NewCoordinationServerConfigError("ListenAddress cannot be empty")
	}

	checkPositiveDuration := func(val time.Duration, name string) error {
		if val <= 0 {
			return NewCoordinationServerConfigError(fmt.Sprintf("%s must be positive", name))
		}
		return nil
	}

	checkPositiveInt := func(val int, name string) error {
		if val <= 0 {
			return NewCoordinationServerConfigError(fmt.Sprintf("%s must be positive", name))
		}
		return nil
	}

	if err := checkPositiveDuration(c.RequestTimeout, "RequestTimeout"); err != nil {
		return err
	}
	if err := checkPositiveDuration(c.ShutdownTimeout, "ShutdownTimeout"); err != nil {
		return err
	}
	if err := checkPositiveInt(c.MaxConcurrentReqs, "MaxConcurrentReqs"); err != nil {
		return err
	}
	if err := checkPositiveDuration(c.SessionTTL, "SessionTTL"); err != nil {
		return err
	}
	if err := checkPositiveDuration(c.SessionReapInterval, "SessionReapInterval"); err != nil {
		return err
	}
	if c.SessionReapInterval > c.SessionTTL {
		return NewCoordinationServerConfigError(fmt.Sprintf(
			"SessionReapInterval (%v) cannot exceed SessionTTL (%v)", c.SessionReapInterval, c.SessionTTL))
	}
	if err := checkPositiveDuration(c.LockReleaseTimeout, "LockReleaseTimeout"); err != nil {
		return err
	}

	if c.EnableRateLimit {
		if err := checkPositiveInt(c.RateLimit, "RateLimit"); err != nil {
			return err
		}
		if err := checkPositiveInt(c.RateLimitBurst, "RateLimitBurst"); err != nil {
			return err
		}
		if err := checkPositiveDuration(c.RateLimitWindow, "RateLimitWindow"); err != nil {
			return err
		}
	}

	return nil
}

// CoordinationServerConfigError represents a validation error in CoordinationServerConfig.
type CoordinationServerConfigError struct {
	Message string
}

// NewCoordinationServerConfigError returns a new config error.
func NewCoordinationServerConfigError(msg string) *CoordinationServerConfigError {
	return &CoordinationServerConfigError{Message: msg}
}

// Error implements the error interface.
func (e *CoordinationServerConfigError) Error() string {
	return "server config error: " + e.Message
}
