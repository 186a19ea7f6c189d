package clock

import (
	"sync"
	"time"
)

// MockClock is a manually driven Clock. Time only moves when Advance is
// called; timers and tickers whose deadline is reached fire at that point.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*mockTimer
	tickers []*mockTicker
}

// NewMockClock returns a MockClock set to start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

// Now implements Clock.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since implements Clock.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// After implements Clock.
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	return c.NewTimer(d).Chan()
}

// Sleep blocks until the clock has been advanced by at least d.
func (c *MockClock) Sleep(d time.Duration) {
	<-c.After(d)
}

// NewTimer implements Clock.
func (c *MockClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &mockTimer{clock: c, deadline: c.now.Add(d), active: true, ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	c.fireLocked()
	return t
}

// NewTicker implements Clock.
func (c *MockClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &mockTicker{clock: c, period: d, next: c.now.Add(d), active: true, ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves the clock forward by d and fires everything that became due.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	c.fireLocked()
}

// Waiters returns the number of active timers and tickers.
func (c *MockClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if t.active {
			n++
		}
	}
	for _, t := range c.tickers {
		if t.active {
			n++
		}
	}
	return n
}

func (c *MockClock) fireLocked() {
	timers := c.timers[:0]
	for _, t := range c.timers {
		if t.active && !c.now.Before(t.deadline) {
			t.active = false
			select {
			case t.ch <- c.now:
			default:
			}
		}
		if t.active {
			timers = append(timers, t)
		}
	}
	c.timers = timers

	for _, t := range c.tickers {
		if !t.active || t.period <= 0 {
			continue
		}
		for !c.now.Before(t.next) {
			select {
			case t.ch <- c.now:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}
}

type mockTimer struct {
	clock    *MockClock
	deadline time.Time
	active   bool
	ch       chan time.Time
}

func (t *mockTimer) Chan() <-chan time.Time { return t.ch }

func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.active
	t.active = false
	return was
}

func (t *mockTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	was := t.active
	t.deadline = t.clock.now.Add(d)
	t.active = true
	if !was {
		t.clock.timers = append(t.clock.timers, t)
	}
	t.clock.fireLocked()
	return was
}

type mockTicker struct {
	clock  *MockClock
	period time.Duration
	next   time.Time
	active bool
	ch     chan time.Time
}

func (t *mockTicker) Chan() <-chan time.Time { return t.ch }

func (t *mockTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.active = false
}

func (t *mockTicker) Reset(d time.Duration) {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.period = d
	t.next = t.clock.now.Add(d)
	t.active = true
}
