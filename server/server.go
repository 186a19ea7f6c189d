package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
	pb "github.com/jathurchan/casecoord/proto"
	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/types"
)

// coordinationServer implements CoordinationServer on top of a store.Store.
type coordinationServer struct {
	pb.UnimplementedCoordinationServer

	config CoordinationServerConfig

	store       store.Store
	sessions    SessionManager
	validator   RequestValidator
	connManager ConnectionManager
	rateLimiter RateLimiter

	grpcServer *grpc.Server
	listener   net.Listener

	state            atomic.Value // ServerOperationalState
	requestSemaphore chan struct{}
	stopOnce         sync.Once
	stopped          atomic.Bool

	stopMaintenance chan struct{}
	maintenanceWg   sync.WaitGroup

	logger  logger.Logger
	metrics ServerMetrics
	clock   clock.Clock
}

// NewCoordinationServer creates a server from a validated configuration.
// The server does not listen until Start is called.
func NewCoordinationServer(config CoordinationServerConfig) (CoordinationServer, error) {
	if config.Logger == nil {
		config.Logger = logger.NewNoOpLogger()
	}
	if config.Metrics == nil {
		config.Metrics = NewNoOpServerMetrics()
	}
	if config.Clock == nil {
		config.Clock = clock.NewStandardClock()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log := config.Logger.WithComponent("server")
	s := &coordinationServer{
		config:           config,
		store:            config.Store,
		validator:        NewRequestValidator(log),
		connManager:      NewConnectionManager(config.Metrics, config.Logger, config.Clock),
		requestSemaphore: make(chan struct{}, config.MaxConcurrentReqs),
		stopMaintenance:  make(chan struct{}),
		logger:           log,
		metrics:          config.Metrics,
		clock:            config.Clock,
	}
	if config.EnableRateLimit {
		s.rateLimiter = NewTokenBucketRateLimiter(
			config.RateLimit, config.RateLimitBurst, config.RateLimitWindow, config.Clock, config.Logger)
	}
	s.state.Store(ServerStateStopped)

	s.logger.Infow("Coordination server created",
		"listenAddress", config.ListenAddress,
		"sessionTTL", config.SessionTTL,
		"rateLimit", config.EnableRateLimit)
	return s, nil
}

// Start listens on the configured address and serves in the background.
func (s *coordinationServer) Start(ctx context.Context) error {
	if s.stopped.Load() {
		return ErrServerStopped
	}
	if !s.state.CompareAndSwap(ServerStateStopped, ServerStateStarting) {
		return ErrServerAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		s.state.Store(ServerStateStopped)
		return err
	}

	listener := s.config.Listener
	if listener == nil {
		l, err := net.Listen("tcp", s.config.ListenAddress)
		if err != nil {
			s.state.Store(ServerStateStopped)
			s.logger.Errorw("Failed to listen", "address", s.config.ListenAddress, "error", err)
			return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
		}
		listener = l
	}
	s.listener = listener

	s.sessions = NewSessionManager(
		s.config.SessionTTL,
		s.config.SessionReapInterval,
		s.config.LockReleaseTimeout,
		s.metrics,
		s.config.Logger,
		s.clock,
	)

	s.grpcServer = grpc.NewServer(
		grpc.UnaryInterceptor(s.unaryInterceptor),
		grpc.StatsHandler(&connStatsHandler{manager: s.connManager}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    DefaultGRPCKeepaliveTime,
			Timeout: DefaultGRPCKeepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             max(DefaultGRPCKeepaliveTime/2, time.Second),
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(DefaultGRPCMaxRecvMsgSize),
		grpc.MaxSendMsgSize(DefaultGRPCMaxSendMsgSize),
	)
	pb.RegisterCoordinationServer(s.grpcServer, s)

	addr := listener.Addr().String()
	go func() {
		s.logger.Infow("gRPC server starting to serve requests", "address", addr)
		if err := s.grpcServer.Serve(listener); err != nil &&
			!errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, net.ErrClosed) {
			s.logger.Errorw("gRPC server encountered an error", "address", addr, "error", err)
		}
	}()

	s.startMaintenance()

	s.state.Store(ServerStateRunning)
	s.logger.Infow("Coordination server started", "address", addr)
	return nil
}

// startMaintenance periodically drops idle rate limiter buckets.
func (s *coordinationServer) startMaintenance() {
	cleaner, ok := s.rateLimiter.(interface{ Cleanup() int })
	if !ok {
		return
	}

	ticker := s.clock.NewTicker(s.config.SessionReapInterval)
	s.maintenanceWg.Add(1)
	go func() {
		defer s.maintenanceWg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.Chan():
				cleaner.Cleanup()
			case <-s.stopMaintenance:
				return
			}
		}
	}()
}

// Stop gracefully stops the gRPC server, falling back to a hard stop when
// ctx or the shutdown timeout expires, then closes every session.
func (s *coordinationServer) Stop(ctx context.Context) error {
	if s.state.Load() != ServerStateRunning {
		return ErrServerNotStarted
	}

	err := ErrServerStopped
	s.stopOnce.Do(func() {
		err = s.stopInternal(ctx)
	})
	return err
}

func (s *coordinationServer) stopInternal(ctx context.Context) error {
	s.stopped.Store(true)
	s.state.Store(ServerStateStopping)
	s.logger.Infow("Stopping coordination server...")

	close(s.stopMaintenance)
	s.maintenanceWg.Wait()

	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debugw("gRPC server gracefully stopped")
	case <-ctx.Done():
		s.logger.Warnw("Graceful stop timed out, forcing shutdown", "timeout", s.config.ShutdownTimeout)
		s.grpcServer.Stop()
		<-done
		shutdownErr = ErrShutdownTimeout
	}

	if err := s.sessions.Close(); err != nil {
		s.logger.Warnw("Errors while closing sessions", "error", err)
		shutdownErr = errors.Join(shutdownErr, err)
	}

	s.state.Store(ServerStateStopped)
	s.logger.Infow("Coordination server stopped")
	return shutdownErr
}

func (s *coordinationServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *coordinationServer) Metrics() ServerMetrics {
	return s.metrics
}

// unaryInterceptor applies admission control to every request: server state,
// per-client rate limiting, the concurrency cap and the request timeout.
// Errors are converted to gRPC status errors.
func (s *coordinationServer) unaryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	method := methodName(info.FullMethod)
	start := s.clock.Now()

	if state, _ := s.state.Load().(ServerOperationalState); state != ServerStateRunning {
		s.metrics.IncrServerError(method, ErrorTypeInternalError)
		return nil, status.Error(codes.Unavailable, ErrServerNotStarted.Error())
	}

	clientAddr := peerAddress(ctx)
	s.connManager.OnRequest(clientAddr)

	if s.rateLimiter != nil && !s.rateLimiter.Allow(clientAddr) {
		s.metrics.IncrServerError(method, ErrorTypeRateLimit)
		s.logger.Debugw("Request rate limited", "method", method, "remote_addr", clientAddr)
		return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}

	select {
	case s.requestSemaphore <- struct{}{}:
		defer func() { <-s.requestSemaphore }()
	case <-ctx.Done():
		s.metrics.IncrServerError(method, ErrorTypeTimeout)
		return nil, ErrorToStatus(ctx.Err())
	}

	s.metrics.IncrConcurrentRequests(method, 1)
	defer s.metrics.IncrConcurrentRequests(method, -1)

	// Lock waits are bounded by their own timeout.
	if method != MethodAcquireLock {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	resp, err := handler(ctx, req)

	s.metrics.ObserveRequestLatency(method, s.clock.Since(start))
	s.metrics.IncrGRPCRequest(method, err == nil)
	if err != nil {
		s.recordError(method, err)
		return nil, ErrorToStatus(err)
	}
	return resp, nil
}

func (s *coordinationServer) recordError(method string, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		s.metrics.IncrValidationError(method, validationErrorType(err))
	case errors.Is(err, ErrSessionNotFound):
		s.metrics.IncrServerError(method, ErrorTypeSessionExpired)
	case errors.Is(err, context.DeadlineExceeded):
		s.metrics.IncrServerError(method, ErrorTypeTimeout)
	case CodeOf(err) == codes.Internal || CodeOf(err) == codes.Unavailable:
		s.metrics.IncrServerError(method, ErrorTypeStoreError)
		s.logger.Warnw("Request failed", "method", method, "error", err)
	}
}

// methodName returns the short method from a full gRPC method name.
func methodName(fullMethod string) string {
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}

func (s *coordinationServer) OpenSession(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	id, ttl, err := s.sessions.Open()
	if err != nil {
		return nil, err
	}
	return pb.NewSessionResponse(string(id), ttl), nil
}

func (s *coordinationServer) KeepAlive(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	r, err := s.validator.ValidateSessionRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.KeepAlive(r.SessionID); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func (s *coordinationServer) CloseSession(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	r, err := s.validator.ValidateSessionRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.CloseSession(ctx, r.SessionID); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func (s *coordinationServer) CreateNode(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	r, err := s.validator.ValidateDataRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateNode(ctx, r.Path, r.Data); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func (s *coordinationServer) GetData(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	r, err := s.validator.ValidatePathRequest(req)
	if err != nil {
		return nil, err
	}
	data, err := s.store.GetData(ctx, r.Path)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bytes(data), nil
}

func (s *coordinationServer) SetData(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	r, err := s.validator.ValidateDataRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetData(ctx, r.Path, r.Data); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func (s *coordinationServer) DeleteNode(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	r, err := s.validator.ValidatePathRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteNode(ctx, r.Path); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func (s *coordinationServer) Children(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	r, err := s.validator.ValidatePathRequest(req)
	if err != nil {
		return nil, err
	}
	children, err := s.store.Children(ctx, r.Path)
	if err != nil {
		return nil, err
	}
	return pb.NewStringList(children), nil
}

// AcquireLock waits up to the requested timeout for the lock and records it
// against the session. A timeout reports acquired=false without an error.
func (s *coordinationServer) AcquireLock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r, err := s.validator.ValidateAcquireRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.KeepAlive(r.SessionID); err != nil {
		return nil, err
	}

	rw := s.store.ReadWriteLock(r.Path)
	mutex := rw.WriteLock()
	if r.Mode == types.LockShared {
		mutex = rw.ReadLock()
	}

	acquired, err := mutex.Acquire(ctx, r.Timeout)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return pb.NewAcquireResponse(false, ""), nil
	}

	token, err := s.sessions.AddLock(r.SessionID, r.Path, r.Mode, mutex)
	if err != nil {
		releaseCtx, cancel := context.WithTimeout(context.Background(), s.config.LockReleaseTimeout)
		defer cancel()
		if relErr := mutex.Release(releaseCtx); relErr != nil {
			s.logger.WithSession(r.SessionID).Warnw("Failed to release lock of ended session",
				"path", r.Path, "error", relErr)
		}
		return nil, err
	}

	s.logger.WithSession(r.SessionID).Debugw("Lock acquired", "path", r.Path, "mode", r.Mode.String())
	return pb.NewAcquireResponse(true, string(token)), nil
}

func (s *coordinationServer) ReleaseLock(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	r, err := s.validator.ValidateReleaseRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RemoveLock(ctx, r.SessionID, r.Token); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}
