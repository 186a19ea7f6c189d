// Package metrics provides Prometheus implementations of the metrics
// interfaces declared by the coordination, lock, server and client packages.
//
// All metrics are optional. Until InitRegistry is called the constructors
// return the no-op implementations of the owning packages.
//
// Usage:
//
//	metrics.InitRegistry()
//	svc, err := coordination.New(ctx, st, coordination.WithMetrics(metrics.NewCoordinationMetrics()))
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "casecoord"

var (
	// registry is written once by InitRegistry and read afterwards.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry with the Go runtime
// and process collectors. Subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// latencyBuckets covers store round trips up to lock waits of a minute, in seconds.
var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60}

func successLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
