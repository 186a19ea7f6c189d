package coordination

import (
	"time"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
)

const (
	// DefaultRootNamespace is the root node under which every category lives.
	DefaultRootNamespace = "/autopsy"

	// DefaultReleaseTimeout bounds the release performed by DistributedLock.Close.
	DefaultReleaseTimeout = 5 * time.Second
)

type options struct {
	root           string
	releaseTimeout time.Duration
	logger         logger.Logger
	metrics        Metrics
	clock          clock.Clock
}

func defaultOptions() options {
	return options{
		root:           DefaultRootNamespace,
		releaseTimeout: DefaultReleaseTimeout,
		logger:         logger.NewNoOpLogger(),
		metrics:        NewNoOpMetrics(),
		clock:          clock.NewStandardClock(),
	}
}

// Option configures a Service.
type Option func(*options)

// WithRootNamespace overrides the root node. A trailing slash is ignored;
// empty values are ignored.
func WithRootNamespace(root string) Option {
	return func(o *options) {
		for len(root) > 1 && root[len(root)-1] == '/' {
			root = root[:len(root)-1]
		}
		if root != "" && root != "/" {
			o.root = root
		}
	}
}

// WithReleaseTimeout sets the timeout used by DistributedLock.Close.
func WithReleaseTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.releaseTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock sets the clock used to measure lock latency.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}
