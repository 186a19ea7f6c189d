package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jathurchan/casecoord/server"
)

// serverMetrics is the Prometheus implementation of server.ServerMetrics.
type serverMetrics struct {
	requestsTotal     *prometheus.CounterVec
	validationErrors  *prometheus.CounterVec
	serverErrors      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	requestsInFlight  *prometheus.GaugeVec
	activeConnections prometheus.Gauge
	activeSessions    prometheus.Gauge
	sessionsExpired   prometheus.Counter
	locksHeld         prometheus.Gauge
}

// NewServerMetrics returns coordination server metrics registered in the
// global registry, or a no-op implementation when metrics are disabled.
// Every call returns the same instance.
func NewServerMetrics() server.ServerMetrics {
	if !IsEnabled() {
		return server.NewNoOpServerMetrics()
	}
	serverOnce.Do(func() { serverShared = newServerMetrics(GetRegistry()) })
	return serverShared
}

var (
	serverOnce   sync.Once
	serverShared *serverMetrics
)

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	return &serverMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "requests_total",
				Help:      "RPCs by method and status",
			},
			[]string{"method", "status"},
		),
		validationErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "validation_errors_total",
				Help:      "Rejected requests by method and error type",
			},
			[]string{"method", "error_type"},
		),
		serverErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "errors_total",
				Help:      "Failed requests not caused by invalid input, by method and error type",
			},
			[]string{"method", "error_type"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "request_duration_seconds",
				Help:      "RPC latency by method",
				Buckets:   latencyBuckets,
			},
			[]string{"method"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "requests_in_flight",
				Help:      "RPCs currently being processed",
			},
			[]string{"method"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "active_connections",
				Help:      "Open client connections",
			},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "active_sessions",
				Help:      "Open client sessions",
			},
		),
		sessionsExpired: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "sessions_expired_total",
				Help:      "Sessions closed because they missed their keepalives",
			},
		),
		locksHeld: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "session_locks_held",
				Help:      "Locks held on behalf of sessions",
			},
		),
	}
}

func (m *serverMetrics) IncrGRPCRequest(method string, success bool) {
	m.requestsTotal.WithLabelValues(method, successLabel(success)).Inc()
}

func (m *serverMetrics) IncrValidationError(method string, errorType string) {
	m.validationErrors.WithLabelValues(method, errorType).Inc()
}

func (m *serverMetrics) IncrServerError(method string, errorType string) {
	m.serverErrors.WithLabelValues(method, errorType).Inc()
}

func (m *serverMetrics) ObserveRequestLatency(method string, latency time.Duration) {
	m.requestDuration.WithLabelValues(method).Observe(latency.Seconds())
}

func (m *serverMetrics) IncrConcurrentRequests(method string, delta int) {
	m.requestsInFlight.WithLabelValues(method).Add(float64(delta))
}

func (m *serverMetrics) SetActiveConnections(count int) { m.activeConnections.Set(float64(count)) }
func (m *serverMetrics) SetActiveSessions(count int)    { m.activeSessions.Set(float64(count)) }
func (m *serverMetrics) IncrSessionExpired()            { m.sessionsExpired.Inc() }
func (m *serverMetrics) SetLocksHeld(count int)         { m.locksHeld.Set(float64(count)) }
