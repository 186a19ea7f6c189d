package server

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
)

// RateLimiter decides whether a request from a client may proceed.
type RateLimiter interface {
	// Allow reports whether a request from key can proceed immediately.
	Allow(key string) bool

	// Wait blocks until a request from key can proceed or ctx is done.
	Wait(ctx context.Context, key string) error
}

// TokenBucketRateLimiter keeps one token bucket per client key. Buckets left
// idle for longer than idleTTL are dropped by Cleanup.
type TokenBucketRateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket

	clock  clock.Clock
	logger logger.Logger
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucketRateLimiter allows maxRequests per window for each client, with the given burst.
func NewTokenBucketRateLimiter(maxRequests, burst int, window time.Duration, clk clock.Clock, log logger.Logger) *TokenBucketRateLimiter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if clk == nil {
		clk = clock.NewStandardClock()
	}

	var rps rate.Limit
	if window.Seconds() > 0 {
		rps = rate.Limit(float64(maxRequests) / window.Seconds())
	} else {
		rps = rate.Inf
		log.Warnw("Rate limit window is zero or negative, disabling rate limiter.", "window", window)
	}
	if burst <= 0 {
		burst = 1
		if rps != rate.Inf {
			log.Warnw("Rate limit burst is zero or negative, setting to 1.", "burst", burst)
		}
	}

	idle := 10 * window
	if idle < time.Minute {
		idle = time.Minute
	}

	return &TokenBucketRateLimiter{
		limit:   rps,
		burst:   burst,
		idleTTL: idle,
		buckets: make(map[string]*bucket),
		clock:   clk,
		logger:  log.WithComponent("rate-limiter"),
	}
}

func (rl *TokenBucketRateLimiter) bucketFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = rl.clock.Now()
	return b.limiter
}

// Allow implements RateLimiter.
func (rl *TokenBucketRateLimiter) Allow(key string) bool {
	return rl.bucketFor(key).Allow()
}

// Wait implements RateLimiter.
func (rl *TokenBucketRateLimiter) Wait(ctx context.Context, key string) error {
	return rl.bucketFor(key).Wait(ctx)
}

// Cleanup drops buckets idle for longer than the idle TTL and returns how many were dropped.
func (rl *TokenBucketRateLimiter) Cleanup() int {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.idleTTL {
			delete(rl.buckets, key)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.Debugw("Dropped idle rate limit buckets", "count", removed, "remaining", len(rl.buckets))
	}
	return removed
}

// Clients returns the number of clients currently tracked.
func (rl *TokenBucketRateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
