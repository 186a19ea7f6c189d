package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/types"
)

// SessionKeeper renews a server session in the background so that locks
// acquired through it stay held. It stops when the server reports the session
// as expired, or when stopped.
type SessionKeeper interface {
	// Start begins the keepalive loop in a background goroutine.
	// The provided context is used to control the lifecycle of the loop.
	Start(ctx context.Context)

	// Stop stops the keepalive loop and waits for it to exit.
	// Returns any terminal error from the loop or shutdown.
	Stop(ctx context.Context) error

	// Done returns a channel that's closed when the keeper has stopped.
	Done() <-chan struct{}

	// Err returns the error that caused the keeper to stop, if any.
	Err() error
}

// keepAliveFunc renews one session.
type keepAliveFunc func(ctx context.Context, id types.SessionID) error

// sessionKeeper implements SessionKeeper.
type sessionKeeper struct {
	id        types.SessionID
	interval  time.Duration
	keepAlive keepAliveFunc
	onLost    func(types.SessionID) // Called once when the server expires the session.

	clock clock.Clock

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	err error
}

// newSessionKeeper creates a keeper renewing id every interval.
func newSessionKeeper(id types.SessionID, interval time.Duration, keepAlive keepAliveFunc, onLost func(types.SessionID), clk clock.Clock) (*sessionKeeper, error) {
	if id == "" {
		return nil, errors.New("session id cannot be empty")
	}
	if interval <= 0 {
		return nil, errors.New("keepalive interval must be positive")
	}
	if keepAlive == nil {
		return nil, errors.New("keepalive function cannot be nil")
	}
	if clk == nil {
		clk = clock.NewStandardClock()
	}
	return &sessionKeeper{
		id:        id,
		interval:  interval,
		keepAlive: keepAlive,
		onLost:    onLost,
		clock:     clk,
	}, nil
}

// Start begins the keepalive loop in a background goroutine.
func (k *sessionKeeper) Start(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cancel != nil {
		return
	}
	k.ctx, k.cancel = context.WithCancel(ctx)

	ticker := k.clock.NewTicker(k.interval)
	k.wg.Add(1)
	go k.run(ticker)
}

// Stop stops the keepalive loop.
func (k *sessionKeeper) Stop(ctx context.Context) error {
	k.mu.RLock()
	cancel := k.cancel
	k.mu.RUnlock()

	if cancel == nil {
		return nil
	}

	cancel()

	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		err := k.Err()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for session keeper to stop: %w", ctx.Err())
	}
}

// Done returns a channel that is closed when the keeper stops.
func (k *sessionKeeper) Done() <-chan struct{} {
	k.mu.RLock()
	ctx := k.ctx
	k.mu.RUnlock()

	if ctx == nil {
		closedCh := make(chan struct{})
		close(closedCh)
		return closedCh
	}
	return ctx.Done()
}

// Err returns the error that caused the keeper to stop.
func (k *sessionKeeper) Err() error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.err
}

func (k *sessionKeeper) setError(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.err = err
}

// run is the keepalive loop. Transient failures are retried on the next tick;
// an expired session ends the loop.
func (k *sessionKeeper) run(ticker clock.Ticker) {
	defer k.wg.Done()
	defer k.cancel()
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			err := k.keepAlive(k.ctx, k.id)
			if errors.Is(err, ErrSessionExpired) {
				k.setError(fmt.Errorf("session %s lost: %w", k.id, err))
				if k.onLost != nil {
					k.onLost(k.id)
				}
				return
			}

		case <-k.ctx.Done():
			k.setError(k.ctx.Err())
			return
		}
	}
}
