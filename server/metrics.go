package server

import "time"

// ServerMetrics defines observability hooks for coordination server operations.
// All methods must be safe for concurrent use.
type ServerMetrics interface {
	// IncrGRPCRequest increments the count for an RPC method invocation.
	// 'method' should match a Coordination RPC (e.g., "GetData", "AcquireLock").
	IncrGRPCRequest(method string, success bool)

	// IncrValidationError increments validation failure counters.
	// 'errorType' is a string like "missing_field" or "invalid_format".
	IncrValidationError(method string, errorType string)

	// IncrServerError increments counts for errors that were not caused by the request itself.
	// 'errorType' might include values like "store_error", "rate_limit_exceeded", "timeout".
	IncrServerError(method string, errorType string)

	// ObserveRequestLatency records end-to-end latency for a gRPC method call.
	ObserveRequestLatency(method string, latency time.Duration)

	// IncrConcurrentRequests adjusts the count of concurrently active requests.
	// Use delta +1 at request start, -1 when completed.
	IncrConcurrentRequests(method string, delta int)

	// SetActiveConnections sets the number of live gRPC connections to this server.
	SetActiveConnections(count int)

	// SetActiveSessions sets the number of open client sessions.
	SetActiveSessions(count int)

	// IncrSessionExpired counts sessions closed because they missed their keepalives.
	IncrSessionExpired()

	// SetLocksHeld sets the number of locks held on behalf of sessions.
	SetLocksHeld(count int)
}

// NoOpServerMetrics provides a no-operation implementation of ServerMetrics.
type NoOpServerMetrics struct{}

// NewNoOpServerMetrics creates a new no-operation metrics implementation.
func NewNoOpServerMetrics() ServerMetrics {
	return &NoOpServerMetrics{}
}

func (n *NoOpServerMetrics) IncrGRPCRequest(method string, success bool)                {}
func (n *NoOpServerMetrics) IncrValidationError(method string, errorType string)        {}
func (n *NoOpServerMetrics) IncrServerError(method string, errorType string)            {}
func (n *NoOpServerMetrics) ObserveRequestLatency(method string, latency time.Duration) {}
func (n *NoOpServerMetrics) IncrConcurrentRequests(method string, delta int)            {}
func (n *NoOpServerMetrics) SetActiveConnections(count int)                             {}
func (n *NoOpServerMetrics) SetActiveSessions(count int)                                {}
func (n *NoOpServerMetrics) IncrSessionExpired()                                        {}
func (n *NoOpServerMetrics) SetLocksHeld(count int)                                     {}
