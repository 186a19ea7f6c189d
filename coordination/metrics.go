package coordination

import (
	"time"

	"github.com/jathurchan/casecoord/types"
)

// Lock acquisition outcomes reported to Metrics.
const (
	OutcomeAcquired    = "acquired"
	OutcomeTimeout     = "timeout"
	OutcomeInterrupted = "interrupted"
	OutcomeError       = "error"
)

// Metrics records coordination activity. All methods must be safe for concurrent use.
type Metrics interface {
	// ObserveLockAcquire records the outcome and latency of a lock request.
	ObserveLockAcquire(category types.Category, mode types.LockMode, outcome string, latency time.Duration)

	// IncLocksHeld and DecLocksHeld track lock handles currently held by this process.
	IncLocksHeld(mode types.LockMode)
	DecLocksHeld(mode types.LockMode)

	// ObserveNodeOperation records a node data operation ("get", "set", "delete", "list", "upsert").
	ObserveNodeOperation(op string, success bool)
}

type noOpMetrics struct{}

// NewNoOpMetrics returns a Metrics that records nothing.
func NewNoOpMetrics() Metrics { return noOpMetrics{} }

func (noOpMetrics) ObserveLockAcquire(types.Category, types.LockMode, string, time.Duration) {}
func (noOpMetrics) IncLocksHeld(types.LockMode)                                             {}
func (noOpMetrics) DecLocksHeld(types.LockMode)                                             {}
func (noOpMetrics) ObserveNodeOperation(string, bool)                                       {}
