package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/types"
)

// SessionManager tracks remote client sessions and the locks held through them.
// A session that misses its keepalives for longer than the session TTL is expired
// and every lock it holds is released.
type SessionManager interface {
	// Open creates a new session and returns its identifier and TTL.
	Open() (types.SessionID, time.Duration, error)

	// KeepAlive extends the session's lifetime. Returns ErrSessionNotFound for
	// unknown or expired sessions.
	KeepAlive(id types.SessionID) error

	// CloseSession ends the session and releases all of its locks.
	CloseSession(ctx context.Context, id types.SessionID) error

	// AddLock records a mutex acquired on behalf of the session and returns its token.
	// Returns ErrSessionNotFound if the session ended while the lock was being acquired;
	// the caller then owns the mutex and must release it.
	AddLock(id types.SessionID, path string, mode types.LockMode, mutex store.Mutex) (types.LockToken, error)

	// RemoveLock releases a lock held by the session.
	// Returns ErrSessionNotFound or ErrLockTokenNotFound.
	RemoveLock(ctx context.Context, id types.SessionID, token types.LockToken) error

	// Count returns the number of open sessions.
	Count() int

	// LocksHeld returns the number of locks held across all sessions.
	LocksHeld() int

	// Cleanup expires sessions past their TTL. Returns the number expired.
	Cleanup() int

	// Close stops the reaper and closes every session, releasing their locks.
	Close() error
}

// heldLock is a lock acquired through a session.
type heldLock struct {
	path  string
	mode  types.LockMode
	mutex store.Mutex
}

// sessionEntry is a live session.
type sessionEntry struct {
	id       types.SessionID
	openedAt time.Time
	lastSeen time.Time
	locks    map[types.LockToken]*heldLock
}

// sessionManager is the default implementation of SessionManager.
type sessionManager struct {
	mu sync.Mutex

	sessions  map[types.SessionID]*sessionEntry
	lockCount int

	ttl            time.Duration // Lifetime without a keepalive
	reapInterval   time.Duration // Interval between expiry sweeps
	releaseTimeout time.Duration // Bound on releasing each lock of a closed session

	stopReaper chan struct{}
	reaperWg   sync.WaitGroup
	closed     atomic.Bool

	metrics ServerMetrics
	logger  logger.Logger
	clock   clock.Clock
}

// NewSessionManager creates a session manager and starts its reaper.
// A non-positive reapInterval disables the reaper; Cleanup can still be called directly.
func NewSessionManager(ttl, reapInterval, releaseTimeout time.Duration, metrics ServerMetrics, log logger.Logger, clk clock.Clock) SessionManager {
	if clk == nil {
		clk = clock.NewStandardClock()
	}
	if metrics == nil {
		metrics = NewNoOpServerMetrics()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if releaseTimeout <= 0 {
		releaseTimeout = DefaultLockReleaseTimeout
	}

	sm := &sessionManager{
		sessions:       make(map[types.SessionID]*sessionEntry),
		ttl:            ttl,
		reapInterval:   reapInterval,
		releaseTimeout: releaseTimeout,
		stopReaper:     make(chan struct{}),
		metrics:        metrics,
		logger:         log.WithComponent("sessions"),
		clock:          clk,
	}
	sm.startReaper()
	sm.logger.Infow("Session manager initialized", "ttl", ttl, "reapInterval", reapInterval)
	return sm
}

func (sm *sessionManager) startReaper() {
	if sm.reapInterval <= 0 {
		sm.logger.Infow("Session reaper disabled (interval <= 0)")
		return
	}

	ticker := sm.clock.NewTicker(sm.reapInterval)
	sm.reaperWg.Add(1)
	go func() {
		defer sm.reaperWg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.Chan():
				if sm.closed.Load() {
					return
				}
				sm.Cleanup()
			case <-sm.stopReaper:
				return
			}
		}
	}()
}

func (sm *sessionManager) Open() (types.SessionID, time.Duration, error) {
	if sm.closed.Load() {
		return "", 0, ErrServerStopped
	}

	id := types.SessionID(uuid.NewString())
	now := sm.clock.Now()

	sm.mu.Lock()
	sm.sessions[id] = &sessionEntry{
		id:       id,
		openedAt: now,
		lastSeen: now,
		locks:    make(map[types.LockToken]*heldLock),
	}
	count := len(sm.sessions)
	sm.mu.Unlock()

	sm.metrics.SetActiveSessions(count)
	sm.logger.WithSession(id).Debugw("Session opened", "active_sessions", count)
	return id, sm.ttl, nil
}

// liveLocked returns the session if it exists and has not outlived its TTL.
func (sm *sessionManager) liveLocked(id types.SessionID, now time.Time) (*sessionEntry, bool) {
	entry, ok := sm.sessions[id]
	if !ok || now.Sub(entry.lastSeen) > sm.ttl {
		return nil, false
	}
	return entry, true
}

func (sm *sessionManager) KeepAlive(id types.SessionID) error {
	now := sm.clock.Now()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	entry, ok := sm.liveLocked(id, now)
	if !ok {
		return ErrSessionNotFound
	}
	entry.lastSeen = now
	return nil
}

func (sm *sessionManager) CloseSession(ctx context.Context, id types.SessionID) error {
	sm.mu.Lock()
	entry, ok := sm.sessions[id]
	if ok {
		sm.removeLocked(entry)
	}
	count := len(sm.sessions)
	sm.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	sm.metrics.SetActiveSessions(count)
	err := sm.releaseAll(ctx, entry)
	sm.logger.WithSession(id).Debugw("Session closed", "locks_released", len(entry.locks), "active_sessions", count)
	return err
}

func (sm *sessionManager) AddLock(id types.SessionID, path string, mode types.LockMode, mutex store.Mutex) (types.LockToken, error) {
	if mutex == nil {
		return "", errors.New("server: nil mutex")
	}
	now := sm.clock.Now()

	sm.mu.Lock()
	entry, ok := sm.liveLocked(id, now)
	if !ok {
		sm.mu.Unlock()
		return "", ErrSessionNotFound
	}
	token := types.LockToken(uuid.NewString())
	entry.locks[token] = &heldLock{path: path, mode: mode, mutex: mutex}
	entry.lastSeen = now
	sm.lockCount++
	held := sm.lockCount
	sm.mu.Unlock()

	sm.metrics.SetLocksHeld(held)
	return token, nil
}

func (sm *sessionManager) RemoveLock(ctx context.Context, id types.SessionID, token types.LockToken) error {
	now := sm.clock.Now()

	sm.mu.Lock()
	entry, ok := sm.liveLocked(id, now)
	if !ok {
		sm.mu.Unlock()
		return ErrSessionNotFound
	}
	lock, ok := entry.locks[token]
	if !ok {
		sm.mu.Unlock()
		return ErrLockTokenNotFound
	}
	delete(entry.locks, token)
	entry.lastSeen = now
	sm.lockCount--
	held := sm.lockCount
	sm.mu.Unlock()

	sm.metrics.SetLocksHeld(held)
	if err := lock.mutex.Release(ctx); err != nil {
		return fmt.Errorf("release %s lock on %s: %w", lock.mode, lock.path, err)
	}
	return nil
}

func (sm *sessionManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

func (sm *sessionManager) LocksHeld() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.lockCount
}

func (sm *sessionManager) Cleanup() int {
	now := sm.clock.Now()

	sm.mu.Lock()
	var expired []*sessionEntry
	for _, entry := range sm.sessions {
		if now.Sub(entry.lastSeen) > sm.ttl {
			sm.removeLocked(entry)
			expired = append(expired, entry)
		}
	}
	count := len(sm.sessions)
	sm.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}

	sm.metrics.SetActiveSessions(count)
	for _, entry := range expired {
		sm.metrics.IncrSessionExpired()
		sm.logger.WithSession(entry.id).Warnw("Session expired",
			"idle", now.Sub(entry.lastSeen), "ttl", sm.ttl, "locks", len(entry.locks))
		if err := sm.releaseAll(context.Background(), entry); err != nil {
			sm.logger.WithSession(entry.id).Errorw("Failed to release locks of expired session", "error", err)
		}
	}
	return len(expired)
}

// removeLocked drops the session from the registry. The caller releases its locks.
func (sm *sessionManager) removeLocked(entry *sessionEntry) {
	delete(sm.sessions, entry.id)
	sm.lockCount -= len(entry.locks)
	sm.metrics.SetLocksHeld(sm.lockCount)
}

// releaseAll releases every lock of a removed session, each bounded by the release timeout.
func (sm *sessionManager) releaseAll(ctx context.Context, entry *sessionEntry) error {
	var errs []error
	for token, lock := range entry.locks {
		releaseCtx, cancel := context.WithTimeout(ctx, sm.releaseTimeout)
		err := lock.mutex.Release(releaseCtx)
		cancel()
		if err != nil && !errors.Is(err, store.ErrNotHeld) {
			sm.logger.WithSession(entry.id).Warnw("Failed to release session lock",
				"token", token, "path", lock.path, "mode", lock.mode.String(), "error", err)
			errs = append(errs, fmt.Errorf("release %s: %w", lock.path, err))
		}
	}
	return errors.Join(errs...)
}

func (sm *sessionManager) Close() error {
	if !sm.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(sm.stopReaper)
	sm.reaperWg.Wait()

	sm.mu.Lock()
	entries := make([]*sessionEntry, 0, len(sm.sessions))
	for _, entry := range sm.sessions {
		entries = append(entries, entry)
	}
	sm.sessions = make(map[types.SessionID]*sessionEntry)
	sm.lockCount = 0
	sm.mu.Unlock()

	sm.metrics.SetActiveSessions(0)
	sm.metrics.SetLocksHeld(0)

	var errs []error
	for _, entry := range entries {
		if err := sm.releaseAll(context.Background(), entry); err != nil {
			errs = append(errs, err)
		}
	}
	sm.logger.Infow("Session manager closed", "sessionsClosed", len(entries))
	return errors.Join(errs...)
}
