package lock

import (
	"time"

	"github.com/jathurchan/casecoord/types"
)

// waiter represents an owner waiting to acquire a lock.
type waiter struct {
	owner    Owner
	mode     types.LockMode
	seq      uint64        // Arrival order; lower is served first.
	enqueued time.Time     // Timestamp when the request was queued.
	index    int           // Position in the heap (used by heap.Interface).
	granted  bool          // Set under the table mutex when the lock is handed over.
	err      error         // Set when the table is closed while waiting.
	notifyCh chan struct{} // Closed when the waiter is granted or failed.
}

// waitQueue orders waiters by arrival.
type waitQueue []*waiter

func (wq waitQueue) Len() int { return len(wq) }

func (wq waitQueue) Less(i, j int) bool { return wq[i].seq < wq[j].seq }

func (wq waitQueue) Swap(i, j int) {
	wq[i], wq[j] = wq[j], wq[i]
	wq[i].index = i
	wq[j].index = j
}

func (wq *waitQueue) Push(x any) {
	item := x.(*waiter)
	item.index = len(*wq)
	*wq = append(*wq, item)
}

func (wq *waitQueue) Pop() any {
	old := *wq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*wq = old[0 : n-1]
	return item
}
