package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/jathurchan/casecoord/clock"
	pb "github.com/jathurchan/casecoord/proto"
	"github.com/jathurchan/casecoord/server"
	"github.com/jathurchan/casecoord/store/memory"
	"github.com/jathurchan/casecoord/testutil"
)

const (
	bufSize      = 1024 * 1024
	testEndpoint = "passthrough:///bufnet"
	testTTL      = 30 * time.Second
	testReap     = time.Second
)

var testEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// testCluster is a coordination server over a memory store, reachable in-process.
type testCluster struct {
	store    *memory.Store
	listener *bufconn.Listener
	clock    clock.Clock
}

// startTestCluster starts a server. A nil clock uses the real clock.
func startTestCluster(t *testing.T, clk clock.Clock) *testCluster {
	t.Helper()

	st := memory.New()
	lis := bufconn.Listen(bufSize)

	b := server.NewCoordinationServerBuilder().
		WithStore(st).
		WithListener(lis).
		WithTimeouts(5*time.Second, time.Second).
		WithSessions(testTTL, testReap, time.Second)
	if clk != nil {
		b = b.WithClock(clk)
	}
	srv, err := b.Build()
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, srv.Start(context.Background()))

	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
		_ = st.Close()
	})
	return &testCluster{store: st, listener: lis, clock: clk}
}

// config returns a client configuration dialing the in-process server.
func (c *testCluster) config() Config {
	cfg := DefaultClientConfig()
	cfg.Endpoints = []string{testEndpoint}
	cfg.RequestTimeout = 5 * time.Second
	cfg.CloseTimeout = time.Second
	cfg.DialOptions = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return c.listener.DialContext(ctx)
		}),
	}
	return cfg
}

func (c *testCluster) newStore(t *testing.T, modify func(*Config)) *RemoteStore {
	t.Helper()
	cfg := c.config()
	if modify != nil {
		modify(&cfg)
	}
	st, err := New(cfg)
	testutil.RequireNoError(t, err)
	return st
}

// lockIdle reports whether the server holds no lock on path.
func (c *testCluster) lockIdle(path string) bool {
	_, err := c.store.Locks().Info(path)
	return err != nil
}

// newTestBase returns a base client whose endpoint calls are served by call.
func newTestBase(t *testing.T, modify func(*Config), call func(endpoint string) error) (*baseClientImpl, *clock.MockClock) {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.Endpoints = []string{"endpoint1", "endpoint2"}
	cfg.RetryPolicy.JitterFactor = 0
	if modify != nil {
		modify(&cfg)
	}
	clk := clock.NewMockClock(testEpoch)
	cfg.Clock = clk
	cfg.Metrics = newRecordingMetrics()

	base, err := newBaseClient(cfg)
	testutil.RequireNoError(t, err)
	base.tryEndpointFunc = func(ctx context.Context, endpoint string, _ time.Duration, fn func(context.Context, pb.CoordinationClient) error) error {
		if err := call(endpoint); err != nil {
			return err
		}
		return fn(ctx, nil)
	}
	return base, clk
}

// advanceUntilDone advances clk while the operation running in done is
// blocked on a backoff timer.
func advanceUntilDone(t *testing.T, clk *clock.MockClock, step time.Duration, done <-chan error) error {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			return err
		case <-deadline:
			t.Fatal("operation did not finish")
			return nil
		default:
			if clk.Waiters() > 0 {
				clk.Advance(step)
			}
			time.Sleep(time.Millisecond)
		}
	}
}

type recordingMetrics struct {
	mu          sync.Mutex
	success     map[string]int
	failure     map[string]int
	retries     map[string]int
	sessionLost int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		success: make(map[string]int),
		failure: make(map[string]int),
		retries: make(map[string]int),
	}
}

func (m *recordingMetrics) IncrSuccess(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success[op]++
}

func (m *recordingMetrics) IncrFailure(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure[op]++
}

func (m *recordingMetrics) IncrRetry(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[op]++
}

func (m *recordingMetrics) ObserveLatency(string, time.Duration) {}

func (m *recordingMetrics) IncrSessionLost() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionLost++
}

func (m *recordingMetrics) counts(op string) (success, failure, retries int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.success[op], m.failure[op], m.retries[op]
}

func (m *recordingMetrics) lost() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionLost
}
