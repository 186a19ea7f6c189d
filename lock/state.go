package lock

import (
	"time"

	"github.com/jathurchan/casecoord/types"
)

// lockState holds the holders and the wait queue of one path.
type lockState struct {
	path string

	// writer is the exclusive holder; empty if none.
	writer Owner

	// readers are the shared holders.
	readers map[Owner]struct{}

	// acquiredAt is when the current holders first obtained the lock.
	acquiredAt time.Time

	queue waitQueue
}

func newLockState(path string) *lockState {
	return &lockState{
		path:    path,
		readers: make(map[Owner]struct{}),
	}
}

func (s *lockState) held() bool {
	return s.writer != "" || len(s.readers) > 0
}

func (s *lockState) idle() bool {
	return !s.held() && s.queue.Len() == 0
}

func (s *lockState) holds(owner Owner) bool {
	if s.writer == owner {
		return true
	}
	_, ok := s.readers[owner]
	return ok
}

// compatible reports whether a request in mode could be granted right now,
// ignoring the queue.
func (s *lockState) compatible(mode types.LockMode) bool {
	if mode == types.LockExclusive {
		return !s.held()
	}
	return s.writer == ""
}

func (s *lockState) grant(owner Owner, mode types.LockMode, now time.Time) {
	if !s.held() {
		s.acquiredAt = now
	}
	if mode == types.LockExclusive {
		s.writer = owner
		return
	}
	s.readers[owner] = struct{}{}
}
