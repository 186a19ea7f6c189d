package server

import (
	"testing"
	"time"

	"github.com/jathurchan/casecoord/store/memory"
	"github.com/jathurchan/casecoord/testutil"
)

func TestCoordinationServerBuilder_RequiresStore(t *testing.T) {
	_, err := NewCoordinationServerBuilder().Build()
	testutil.AssertError(t, err)
	testutil.AssertContains(t, err.Error(), "WithStore")

	_, err = NewCoordinationServerBuilder().WithStore(nil).Build()
	testutil.AssertError(t, err)
}

func TestCoordinationServerBuilder_Build(t *testing.T) {
	st := memory.New()
	defer st.Close()

	srv, err := NewCoordinationServerBuilder().
		WithStore(st).
		WithListenAddress("127.0.0.1:0").
		WithTimeouts(2*time.Second, 0).
		WithSessions(time.Minute, 10*time.Second, 0).
		WithMaxConcurrentRequests(5).
		WithRateLimit(true, 10, 0, 0).
		WithLogger(nil).
		WithMetrics(nil).
		WithClock(nil).
		Build()
	testutil.RequireNoError(t, err)

	s := srv.(*coordinationServer)
	testutil.AssertEqual(t, 2*time.Second, s.config.RequestTimeout)
	testutil.AssertEqual(t, DefaultShutdownTimeout, s.config.ShutdownTimeout)
	testutil.AssertEqual(t, time.Minute, s.config.SessionTTL)
	testutil.AssertEqual(t, 10*time.Second, s.config.SessionReapInterval)
	testutil.AssertEqual(t, DefaultLockReleaseTimeout, s.config.LockReleaseTimeout)
	testutil.AssertEqual(t, 5, cap(s.requestSemaphore))
	testutil.AssertEqual(t, 10, s.config.RateLimit)
	testutil.AssertEqual(t, DefaultRateLimitBurst, s.config.RateLimitBurst)
	testutil.AssertNotNil(t, s.rateLimiter)
	testutil.AssertEqual(t, "", srv.Addr())
}

func TestCoordinationServerBuilder_InvalidSessions(t *testing.T) {
	st := memory.New()
	defer st.Close()

	_, err := NewCoordinationServerBuilder().
		WithStore(st).
		WithSessions(time.Second, time.Minute, 0).
		Build()
	testutil.AssertError(t, err, "reap interval above the TTL is rejected")
}
