package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jathurchan/casecoord/lock"
	"github.com/jathurchan/casecoord/types"
)

// lockMetrics is the Prometheus implementation of lock.Metrics.
type lockMetrics struct {
	acquireTotal    *prometheus.CounterVec
	releaseTotal    *prometheus.CounterVec
	waiterTimeouts  *prometheus.CounterVec
	acquireDuration *prometheus.HistogramVec
	activeLocks     prometheus.Gauge
	waiters         prometheus.Gauge
}

// NewLockMetrics returns lock table metrics registered in the global
// registry, or a no-op implementation when metrics are disabled.
// Every call returns the same instance.
func NewLockMetrics() lock.Metrics {
	if !IsEnabled() {
		return lock.NewNoOpMetrics()
	}
	lockOnce.Do(func() { lockShared = newLockMetrics(GetRegistry()) })
	return lockShared
}

var (
	lockOnce   sync.Once
	lockShared *lockMetrics
)

func newLockMetrics(reg prometheus.Registerer) *lockMetrics {
	return &lockMetrics{
		acquireTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lock_table",
				Name:      "acquire_total",
				Help:      "Acquisitions by mode, status and whether the request queued",
			},
			[]string{"mode", "status", "queued"},
		),
		releaseTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lock_table",
				Name:      "release_total",
				Help:      "Releases by mode and status",
			},
			[]string{"mode", "status"},
		),
		waiterTimeouts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lock_table",
				Name:      "waiter_timeouts_total",
				Help:      "Queued requests removed because their wait timed out",
			},
			[]string{"mode"},
		),
		acquireDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "lock_table",
				Name:      "acquire_duration_seconds",
				Help:      "Time to grant a lock",
				Buckets:   latencyBuckets,
			},
			[]string{"mode", "contested"},
		),
		activeLocks: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "lock_table",
				Name:      "active_locks",
				Help:      "Paths with at least one holder",
			},
		),
		waiters: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "lock_table",
				Name:      "waiters",
				Help:      "Queued requests across all paths",
			},
		),
	}
}

func (m *lockMetrics) IncrAcquireRequest(mode types.LockMode, success bool, waitQueued bool) {
	m.acquireTotal.WithLabelValues(mode.String(), successLabel(success), strconv.FormatBool(waitQueued)).Inc()
}

func (m *lockMetrics) IncrReleaseRequest(mode types.LockMode, success bool) {
	m.releaseTotal.WithLabelValues(mode.String(), successLabel(success)).Inc()
}

func (m *lockMetrics) IncrTimeoutWaiter(mode types.LockMode) {
	m.waiterTimeouts.WithLabelValues(mode.String()).Inc()
}

func (m *lockMetrics) ObserveAcquireLatency(mode types.LockMode, latency time.Duration, contested bool) {
	m.acquireDuration.WithLabelValues(mode.String(), strconv.FormatBool(contested)).Observe(latency.Seconds())
}

func (m *lockMetrics) SetActiveLocks(count int) { m.activeLocks.Set(float64(count)) }
func (m *lockMetrics) SetTotalWaiters(count int) { m.waiters.Set(float64(count)) }
