// Package memory provides an in-process store.Store. Nodes live in a map
// guarded by a read-write mutex; locks come from a lock.Table.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jathurchan/casecoord/lock"
	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/store"
)

type node struct {
	data     []byte
	children map[string]struct{}
}

func newNode(data []byte) *node {
	return &node{data: slices.Clone(data), children: make(map[string]struct{})}
}

// Store is an in-memory znode tree.
type Store struct {
	mu     sync.RWMutex
	nodes  map[string]*node
	closed bool

	locks  *lock.Table
	logger logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLockTable shares an existing lock table instead of creating one.
func WithLockTable(t *lock.Table) Option {
	return func(s *Store) {
		if t != nil {
			s.locks = t
		}
	}
}

// New returns an empty store containing only the root node.
func New(opts ...Option) *Store {
	s := &Store{
		nodes:  map[string]*node{"/": newNode(nil)},
		logger: logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = lock.NewTable(lock.WithLogger(s.logger))
	}
	s.logger = s.logger.WithComponent("memory-store")
	return s
}

func (s *Store) check(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return store.ErrClosed
	}
	return store.ValidatePath(path)
}

// CreateNode implements store.Store.
func (s *Store) CreateNode(ctx context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx, path); err != nil {
		return err
	}
	if _, ok := s.nodes[path]; ok {
		return fmt.Errorf("%w: %s", store.ErrNodeExists, path)
	}

	for _, ancestor := range store.Ancestors(path) {
		if _, ok := s.nodes[ancestor]; !ok {
			s.insertLocked(ancestor, nil)
		}
	}
	s.insertLocked(path, data)
	s.logger.Debugw("node created", "path", path, "size", len(data))
	return nil
}

func (s *Store) insertLocked(path string, data []byte) {
	s.nodes[path] = newNode(data)
	s.nodes[store.Parent(path)].children[store.Base(path)] = struct{}{}
}

// GetData implements store.Store.
func (s *Store) GetData(ctx context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(ctx, path); err != nil {
		return nil, err
	}
	n, ok := s.nodes[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNoNode, path)
	}
	if n.data == nil {
		return []byte{}, nil
	}
	return slices.Clone(n.data), nil
}

// SetData implements store.Store.
func (s *Store) SetData(ctx context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx, path); err != nil {
		return err
	}
	n, ok := s.nodes[path]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrNoNode, path)
	}
	n.data = slices.Clone(data)
	return nil
}

// DeleteNode implements store.Store.
func (s *Store) DeleteNode(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx, path); err != nil {
		return err
	}
	if path == "/" {
		return fmt.Errorf("%w: cannot delete root", store.ErrInvalidPath)
	}
	n, ok := s.nodes[path]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrNoNode, path)
	}
	if len(n.children) > 0 {
		return fmt.Errorf("%w: %s", store.ErrNotEmpty, path)
	}
	delete(s.nodes, path)
	delete(s.nodes[store.Parent(path)].children, store.Base(path))
	return nil
}

// Children implements store.Store.
func (s *Store) Children(ctx context.Context, path string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(ctx, path); err != nil {
		return nil, err
	}
	n, ok := s.nodes[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNoNode, path)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// ReadWriteLock implements store.Store.
func (s *Store) ReadWriteLock(path string) store.ReadWriteLock {
	return lock.NewReadWriteLock(s.locks, path)
}

// Locks exposes the lock table, mainly for inspection in tests and tools.
func (s *Store) Locks() *lock.Table {
	return s.locks
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.locks.Close()
}
