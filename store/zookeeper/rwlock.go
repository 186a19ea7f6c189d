package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/jathurchan/casecoord/store"
)

const (
	readPrefix  = "read-"
	writePrefix = "write-"
	seqDigits   = 10
)

// readWriteLock is the standard ZooKeeper shared/exclusive lock recipe.
// Each contender creates an ephemeral sequential child of the lock node and
// waits for the relevant predecessor to disappear:
//   - a writer waits for the child immediately before its own;
//   - a reader waits for the closest preceding writer.
type readWriteLock struct {
	read  *mutex
	write *mutex
}

func newReadWriteLock(s *Store, path string) *readWriteLock {
	return &readWriteLock{
		read:  &mutex{store: s, path: path, prefix: readPrefix},
		write: &mutex{store: s, path: path, prefix: writePrefix},
	}
}

func (l *readWriteLock) ReadLock() store.Mutex  { return l.read }
func (l *readWriteLock) WriteLock() store.Mutex { return l.write }

type mutex struct {
	store  *Store
	path   string
	prefix string

	mu   sync.Mutex
	node string // full path of our sequential child while held
}

// Acquire implements store.Mutex.
func (m *mutex) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	if err := check(ctx, m.path); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.node != "" {
		return false, fmt.Errorf("zookeeper lock %s: already held by this instance", m.path)
	}

	conn := m.store.conn
	if err := m.store.createNode(m.path, []byte{}); err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return false, mapError(err, m.path)
	}

	node, err := conn.Create(store.Join(m.path, m.prefix), []byte{}, zk.FlagEphemeral|zk.FlagSequence, m.store.acl)
	if err != nil {
		return false, mapError(err, m.path)
	}
	ours := store.Base(node)

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		children, _, err := conn.Children(m.path)
		if err != nil {
			m.abandon(node)
			return false, mapError(err, m.path)
		}

		blocker, err := predecessor(children, ours, m.prefix == writePrefix)
		if err != nil {
			m.abandon(node)
			return false, err
		}
		if blocker == "" {
			m.node = node
			return true, nil
		}
		if timeout <= 0 {
			m.abandon(node)
			return false, nil
		}

		exists, _, watch, err := conn.ExistsW(store.Join(m.path, blocker))
		if err != nil {
			m.abandon(node)
			return false, mapError(err, m.path)
		}
		if !exists {
			continue
		}

		select {
		case <-watch:
		case <-deadline:
			m.abandon(node)
			return false, nil
		case <-ctx.Done():
			m.abandon(node)
			return false, ctx.Err()
		}
	}
}

// abandon removes our contender node after a failed attempt.
func (m *mutex) abandon(node string) {
	if err := m.store.conn.Delete(node, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
		m.store.logger.Warnw("failed to remove lock contender node", "node", node, "error", err)
	}
}

// Release implements store.Mutex.
func (m *mutex) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.node == "" {
		return fmt.Errorf("%w: %s", store.ErrNotHeld, m.path)
	}
	node := m.node
	m.node = ""

	err := m.store.conn.Delete(node, -1)
	if errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("%w: %s: lock node vanished (session expired?)", store.ErrNotHeld, m.path)
	}
	return mapError(err, m.path)
}

// lockChild is a parsed contender node name.
type lockChild struct {
	name  string
	write bool
	seq   int64
}

// parseLockChild parses "read-0000000007" style names. Names that do not
// belong to the recipe are reported as not ok and ignored by the caller.
func parseLockChild(name string) (lockChild, bool) {
	var write bool
	switch {
	case strings.HasPrefix(name, writePrefix):
		write = true
	case strings.HasPrefix(name, readPrefix):
	default:
		return lockChild{}, false
	}
	if len(name) < seqDigits {
		return lockChild{}, false
	}
	seq, err := strconv.ParseInt(name[len(name)-seqDigits:], 10, 64)
	if err != nil {
		return lockChild{}, false
	}
	return lockChild{name: name, write: write, seq: seq}, true
}

// predecessor returns the child that ours must wait for, or "" if ours holds
// the lock. Returns an error if ours is not among children.
func predecessor(children []string, ours string, write bool) (string, error) {
	parsed := make([]lockChild, 0, len(children))
	for _, c := range children {
		if lc, ok := parseLockChild(c); ok {
			parsed = append(parsed, lc)
		}
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].seq < parsed[j].seq })

	idx := -1
	for i, c := range parsed {
		if c.name == ours {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", fmt.Errorf("%w: contender node %s disappeared", store.ErrNotHeld, ours)
	}

	if write {
		if idx == 0 {
			return "", nil
		}
		return parsed[idx-1].name, nil
	}
	for i := idx - 1; i >= 0; i-- {
		if parsed[i].write {
			return parsed[i].name, nil
		}
	}
	return "", nil
}
