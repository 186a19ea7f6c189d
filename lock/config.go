package lock

import (
	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
)

// Option defines a function that applies a configuration setting to a Table.
type Option func(*Config)

// Config holds configuration parameters for a Table.
type Config struct {
	// MaxWaiters limits the number of requests queued on a single path.
	MaxWaiters int

	Clock   clock.Clock
	Logger  logger.Logger
	Metrics Metrics
}

// DefaultConfig returns a Config with the package defaults.
func DefaultConfig() Config {
	return Config{
		MaxWaiters: DefaultMaxWaiters,
	}
}

// WithMaxWaiters sets the maximum number of waiters per path.
func WithMaxWaiters(max int) Option {
	return func(cfg *Config) {
		if max > 0 {
			cfg.MaxWaiters = max
		}
	}
}

// WithClock sets the clock used for wait timeouts and latency measurements.
func WithClock(c clock.Clock) Option {
	return func(cfg *Config) {
		if c != nil {
			cfg.Clock = c
		}
	}
}

// WithLogger sets the logger for internal events.
func WithLogger(l logger.Logger) Option {
	return func(cfg *Config) {
		if l != nil {
			cfg.Logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m Metrics) Option {
	return func(cfg *Config) {
		if m != nil {
			cfg.Metrics = m
		}
	}
}
