package client

import "time"

// Metrics records client-side request outcomes. All methods must be safe for concurrent use.
type Metrics interface {
	// IncrSuccess counts an operation that completed.
	IncrSuccess(operation string)

	// IncrFailure counts an operation that failed after all retries.
	IncrFailure(operation string)

	// IncrRetry counts a retry of an operation.
	IncrRetry(operation string)

	// ObserveLatency records the end-to-end latency of an operation, retries included.
	ObserveLatency(operation string, latency time.Duration)

	// IncrSessionLost counts sessions the server expired.
	IncrSessionLost()
}

// noOpMetrics discards everything.
type noOpMetrics struct{}

// NewNoOpMetrics returns a Metrics implementation that records nothing.
func NewNoOpMetrics() Metrics { return &noOpMetrics{} }

func (*noOpMetrics) IncrSuccess(string)                   {}
func (*noOpMetrics) IncrFailure(string)                   {}
func (*noOpMetrics) IncrRetry(string)                     {}
func (*noOpMetrics) ObserveLatency(string, time.Duration) {}
func (*noOpMetrics) IncrSessionLost()                     {}
