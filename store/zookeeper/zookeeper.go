// Package zookeeper implements store.Store on an Apache ZooKeeper ensemble.
// Locks use the sequential-ephemeral read/write recipe, so a lock held by a
// process that loses its session is released by the ensemble.
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/store"
)

// Store implements store.Store over a *zk.Conn.
type Store struct {
	conn   *zk.Conn
	acl    []zk.ACL
	logger logger.Logger
	done   chan struct{}
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

// zkLogger routes the client library's Printf logging into logger.Logger.
type zkLogger struct {
	l logger.Logger
}

func (z zkLogger) Printf(format string, args ...any) {
	z.l.Debugw(fmt.Sprintf(format, args...))
}

// New connects to the ensemble and waits until a session is established or
// cfg.ConnectTimeout elapses.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Store{
		acl:    zk.WorldACL(zk.PermAll),
		logger: logger.NewNoOpLogger(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("zookeeper-store")

	conn, events, err := zk.Connect(cfg.Servers, cfg.SessionTimeout, zk.WithLogger(zkLogger{l: s.logger}))
	if err != nil {
		return nil, fmt.Errorf("zookeeper store: connect %v: %w", cfg.Servers, err)
	}
	s.conn = conn

	if err := s.awaitSession(ctx, events, cfg.ConnectTimeout); err != nil {
		conn.Close()
		return nil, err
	}

	go s.watchEvents(events)
	s.logger.Infow("connected to zookeeper", "servers", cfg.Servers, "session_timeout", cfg.SessionTimeout)
	return s, nil
}

func (s *Store) awaitSession(ctx context.Context, events <-chan zk.Event, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("%w: event channel closed", store.ErrClosed)
			}
			if ev.State == zk.StateHasSession {
				return nil
			}
			if ev.State == zk.StateAuthFailed {
				return fmt.Errorf("zookeeper store: authentication failed")
			}
		case <-timer.C:
			return ErrConnectTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Store) watchEvents(events <-chan zk.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.State {
			case zk.StateExpired:
				s.logger.Warnw("zookeeper session expired; held locks are lost")
			case zk.StateDisconnected:
				s.logger.Warnw("zookeeper disconnected", "server", ev.Server)
			case zk.StateHasSession:
				s.logger.Infow("zookeeper session established", "server", ev.Server)
			}
		case <-s.done:
			return
		}
	}
}

func check(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return store.ValidatePath(path)
}

// CreateNode implements store.Store.
func (s *Store) CreateNode(ctx context.Context, path string, data []byte) error {
	if err := check(ctx, path); err != nil {
		return err
	}
	return mapError(s.createNode(path, data), path)
}

// createNode creates path, creating missing parents first.
func (s *Store) createNode(path string, data []byte) error {
	_, err := s.conn.Create(path, data, 0, s.acl)
	if !errors.Is(err, zk.ErrNoNode) {
		return err
	}

	parent := store.Parent(path)
	if perr := s.createNode(parent, []byte{}); perr != nil && !errors.Is(perr, zk.ErrNodeExists) {
		return perr
	}
	_, err = s.conn.Create(path, data, 0, s.acl)
	return err
}

// GetData implements store.Store.
func (s *Store) GetData(ctx context.Context, path string) ([]byte, error) {
	if err := check(ctx, path); err != nil {
		return nil, err
	}
	data, _, err := s.conn.Get(path)
	if err != nil {
		return nil, mapError(err, path)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// SetData implements store.Store.
func (s *Store) SetData(ctx context.Context, path string, data []byte) error {
	if err := check(ctx, path); err != nil {
		return err
	}
	_, err := s.conn.Set(path, data, -1)
	return mapError(err, path)
}

// DeleteNode implements store.Store.
func (s *Store) DeleteNode(ctx context.Context, path string) error {
	if err := check(ctx, path); err != nil {
		return err
	}
	return mapError(s.conn.Delete(path, -1), path)
}

// Children implements store.Store.
func (s *Store) Children(ctx context.Context, path string) ([]string, error) {
	if err := check(ctx, path); err != nil {
		return nil, err
	}
	children, _, err := s.conn.Children(path)
	if err != nil {
		return nil, mapError(err, path)
	}
	sort.Strings(children)
	return children, nil
}

// ReadWriteLock implements store.Store.
func (s *Store) ReadWriteLock(path string) store.ReadWriteLock {
	return newReadWriteLock(s, path)
}

// Close implements store.Store. Ephemeral lock nodes are removed by the ensemble.
func (s *Store) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	s.conn.Close()
	return nil
}
