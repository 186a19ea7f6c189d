package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/types"
	pb "github.com/jathurchan/casecoord/proto"
)

// remoteRWLock is the store.ReadWriteLock of a RemoteStore.
type remoteRWLock struct {
	read  *remoteMutex
	write *remoteMutex
}

func (l *remoteRWLock) ReadLock() store.Mutex  { return l.read }
func (l *remoteRWLock) WriteLock() store.Mutex { return l.write }

// remoteMutex is one side of a remote lock. While held it carries the session
// and token the server issued for it.
type remoteMutex struct {
	store *RemoteStore
	path  string
	mode  types.LockMode

	mu      sync.Mutex
	session types.SessionID
	token   types.LockToken
}

func newRemoteMutex(s *RemoteStore, path string, mode types.LockMode) *remoteMutex {
	return &remoteMutex{store: s, path: path, mode: mode}
}

// Acquire implements store.Mutex. If the session expired since it was opened,
// a new session is opened and the acquisition is attempted once more.
func (m *remoteMutex) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	if err := m.store.check(m.path); err != nil {
		return false, err
	}
	if timeout < 0 {
		timeout = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" {
		return false, fmt.Errorf("%s lock on %s is already held by this mutex", m.mode, m.path)
	}

	var lastErr error
	for range 2 {
		id, err := m.store.ensureSession(ctx)
		if err != nil {
			return false, err
		}

		acquired, token, err := m.acquire(ctx, id, timeout)
		if errors.Is(err, ErrSessionExpired) {
			m.store.invalidateSession(id)
			lastErr = err
			continue
		}
		if err != nil {
			return false, err
		}
		if !acquired {
			return false, nil
		}
		m.session, m.token = id, token
		return true, nil
	}
	return false, lastErr
}

func (m *remoteMutex) acquire(ctx context.Context, id types.SessionID, timeout time.Duration) (bool, types.LockToken, error) {
	var acquired bool
	var token types.LockToken

	opts := callOptions{timeout: m.store.base.config.RequestTimeout + timeout}
	err := m.store.base.executeWithRetry(ctx, opAcquireLock, opts, func(ctx context.Context, c pb.CoordinationClient) error {
		resp, err := c.AcquireLock(ctx, pb.NewAcquireRequest(string(id), m.path, m.mode.String(), timeout))
		if err != nil {
			return err
		}
		acquired = pb.Bool(resp, pb.FieldAcquired)
		token = types.LockToken(pb.String(resp, pb.FieldToken))
		return nil
	})
	return acquired, token, err
}

// Release implements store.Mutex. A lock whose session expired has already
// been released by the server and reports store.ErrNotHeld.
func (m *remoteMutex) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == "" {
		return fmt.Errorf("%w: %s", store.ErrNotHeld, m.path)
	}
	if m.store.base.isClosed() {
		m.session, m.token = "", ""
		return ErrClientClosed
	}

	session, token := m.session, m.token
	err := m.store.base.executeWithRetry(ctx, opReleaseLock, callOptions{}, func(ctx context.Context, c pb.CoordinationClient) error {
		_, err := c.ReleaseLock(ctx, pb.NewReleaseRequest(string(session), string(token)))
		return err
	})

	switch {
	case err == nil:
		m.session, m.token = "", ""
		return nil
	case errors.Is(err, ErrSessionExpired):
		m.session, m.token = "", ""
		return fmt.Errorf("%w: %s: %w", store.ErrNotHeld, m.path, err)
	case errors.Is(err, store.ErrNotHeld):
		m.session, m.token = "", ""
		return err
	default:
		return err
	}
}
