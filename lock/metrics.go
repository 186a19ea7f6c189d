package lock

import (
	"time"

	"github.com/jathurchan/casecoord/types"
)

// Metrics records lock table activity. All methods must be safe for concurrent use.
type Metrics interface {
	// IncrAcquireRequest counts an acquisition outcome. waitQueued is true if
	// the request had to wait.
	IncrAcquireRequest(mode types.LockMode, success bool, waitQueued bool)

	// IncrReleaseRequest counts a release outcome.
	IncrReleaseRequest(mode types.LockMode, success bool)

	// IncrTimeoutWaiter counts waiters removed because their timeout elapsed.
	IncrTimeoutWaiter(mode types.LockMode)

	// ObserveAcquireLatency records time taken to acquire a lock.
	ObserveAcquireLatency(mode types.LockMode, latency time.Duration, contested bool)

	// SetActiveLocks sets the current number of paths with at least one holder.
	SetActiveLocks(count int)

	// SetTotalWaiters sets the current number of queued requests across all paths.
	SetTotalWaiters(count int)
}

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

// NewNoOpMetrics returns a Metrics that records nothing.
func NewNoOpMetrics() Metrics { return &NoOpMetrics{} }

func (*NoOpMetrics) IncrAcquireRequest(types.LockMode, bool, bool)                  {}
func (*NoOpMetrics) IncrReleaseRequest(types.LockMode, bool)                        {}
func (*NoOpMetrics) IncrTimeoutWaiter(types.LockMode)                               {}
func (*NoOpMetrics) ObserveAcquireLatency(types.LockMode, time.Duration, bool)      {}
func (*NoOpMetrics) SetActiveLocks(int)                                             {}
func (*NoOpMetrics) SetTotalWaiters(int)                                            {}
