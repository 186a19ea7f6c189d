package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jathurchan/casecoord/client"
)

// clientMetrics is the Prometheus implementation of client.Metrics.
type clientMetrics struct {
	operationsTotal   *prometheus.CounterVec
	retriesTotal      *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	sessionsLost      prometheus.Counter
}

// NewClientMetrics returns remote store client metrics registered in the
// global registry, or a no-op implementation when metrics are disabled.
// Every call returns the same instance.
func NewClientMetrics() client.Metrics {
	if !IsEnabled() {
		return client.NewNoOpMetrics()
	}
	clientOnce.Do(func() { clientShared = newClientMetrics(GetRegistry()) })
	return clientShared
}

var (
	clientOnce   sync.Once
	clientShared *clientMetrics
)

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	return &clientMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "operations_total",
				Help:      "Remote store operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		retriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "retries_total",
				Help:      "Retried remote store operations",
			},
			[]string{"operation"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "operation_duration_seconds",
				Help:      "Remote store operation latency including retries",
				Buckets:   latencyBuckets,
			},
			[]string{"operation"},
		),
		sessionsLost: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "sessions_lost_total",
				Help:      "Sessions the server expired while the client held them",
			},
		),
	}
}

func (m *clientMetrics) IncrSuccess(operation string) {
	m.operationsTotal.WithLabelValues(operation, "success").Inc()
}

func (m *clientMetrics) IncrFailure(operation string) {
	m.operationsTotal.WithLabelValues(operation, "failure").Inc()
}

func (m *clientMetrics) IncrRetry(operation string) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

func (m *clientMetrics) ObserveLatency(operation string, latency time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(latency.Seconds())
}

func (m *clientMetrics) IncrSessionLost() { m.sessionsLost.Inc() }
