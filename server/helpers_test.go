package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/jathurchan/casecoord/clock"
	pb "github.com/jathurchan/casecoord/proto"
	"github.com/jathurchan/casecoord/store/memory"
	"github.com/jathurchan/casecoord/testutil"
)

const bufSize = 1024 * 1024

var testEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type testServer struct {
	server *coordinationServer
	store  *memory.Store
	client pb.CoordinationClient
	clock  *clock.MockClock
}

// startTestServer serves a memory store over an in-process listener.
// Session expiry is driven by the returned mock clock; the reaper is disabled
// by a reap interval that never fires unless the clock is advanced.
func startTestServer(t *testing.T, modify func(*CoordinationServerConfig)) *testServer {
	t.Helper()

	st := memory.New()
	clk := clock.NewMockClock(testEpoch)
	lis := bufconn.Listen(bufSize)

	cfg := DefaultCoordinationServerConfig()
	cfg.Store = st
	cfg.Listener = lis
	cfg.Clock = clk
	cfg.RequestTimeout = 5 * time.Second
	cfg.ShutdownTimeout = time.Second
	if modify != nil {
		modify(&cfg)
	}

	srv, err := NewCoordinationServer(cfg)
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, srv.Start(context.Background()))

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	testutil.RequireNoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		_ = srv.Stop(context.Background())
		_ = st.Close()
	})

	return &testServer{
		server: srv.(*coordinationServer),
		store:  st,
		client: pb.NewCoordinationClient(conn),
		clock:  clk,
	}
}

func (ts *testServer) openSession(t *testing.T) string {
	t.Helper()
	resp, err := ts.client.OpenSession(context.Background(), &emptypb.Empty{})
	testutil.RequireNoError(t, err)
	id := pb.String(resp, pb.FieldSessionID)
	testutil.RequireTrue(t, id != "", "expected a session id")
	return id
}

// recordingServerMetrics counts the calls it receives.
type recordingServerMetrics struct {
	NoOpServerMetrics

	mu               sync.Mutex
	requests         map[string]int
	failures         map[string]int
	validationErrors map[string]int
	serverErrors     map[string]int
	activeSessions   int
	expired          int
	locksHeld        int
}

func newRecordingServerMetrics() *recordingServerMetrics {
	return &recordingServerMetrics{
		requests:         make(map[string]int),
		failures:         make(map[string]int),
		validationErrors: make(map[string]int),
		serverErrors:     make(map[string]int),
	}
}

func (m *recordingServerMetrics) IncrGRPCRequest(method string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[method]++
	if !success {
		m.failures[method]++
	}
}

func (m *recordingServerMetrics) IncrValidationError(method, errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationErrors[errorType]++
}

func (m *recordingServerMetrics) IncrServerError(method, errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serverErrors[errorType]++
}

func (m *recordingServerMetrics) SetActiveSessions(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeSessions = count
}

func (m *recordingServerMetrics) IncrSessionExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired++
}

func (m *recordingServerMetrics) SetLocksHeld(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locksHeld = count
}

type metricsSnapshot struct {
	activeSessions int
	expired        int
	locksHeld      int
}

func (m *recordingServerMetrics) snapshot() metricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return metricsSnapshot{
		activeSessions: m.activeSessions,
		expired:        m.expired,
		locksHeld:      m.locksHeld,
	}
}

func (m *recordingServerMetrics) validationErrorCount(errorType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validationErrors[errorType]
}

func (m *recordingServerMetrics) serverErrorCount(errorType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serverErrors[errorType]
}

// mockRateLimiter allows or denies every request.
type mockRateLimiter struct {
	allow bool
}

func (m *mockRateLimiter) Allow(string) bool { return m.allow }

func (m *mockRateLimiter) Wait(ctx context.Context, _ string) error {
	if m.allow {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}
