package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
	pb "github.com/jathurchan/casecoord/proto"
)

// connector defines an interface for establishing gRPC connections.
// Useful for injecting mocks in tests.
type connector interface {
	// GetConnection creates a new connection to endpoint.
	GetConnection(endpoint string, opts ...grpc.DialOption) (*grpc.ClientConn, error)
}

// grpcConnector implements the default connector.
type grpcConnector struct{}

// GetConnection establishes a new gRPC connection to the given endpoint.
func (c *grpcConnector) GetConnection(endpoint string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	return grpc.NewClient(endpoint, opts...)
}

// callOptions tunes how a single operation is executed.
type callOptions struct {
	// idempotent operations are also retried on DeadlineExceeded.
	idempotent bool

	// timeout overrides the configured request timeout when positive.
	timeout time.Duration
}

// baseClient runs operations against the configured endpoints with retries,
// backoff and failover.
type baseClient interface {
	// executeWithRetry runs an operation with retry, backoff, and endpoint failover.
	executeWithRetry(ctx context.Context, operation string, opts callOptions, fn func(ctx context.Context, client pb.CoordinationClient) error) error

	// getCurrentEndpoint returns the endpoint that last answered.
	getCurrentEndpoint() string

	// isConnected reports whether the client has active connections.
	isConnected() bool

	// isClosed reports whether close was called.
	isClosed() bool

	// close releases all resources and shuts down the client.
	close() error

	// getMetrics returns the metrics recorder used by the client.
	getMetrics() Metrics
}

// baseClientImpl provides the default implementation of baseClient.
type baseClientImpl struct {
	config    Config
	endpoints []string

	mu              sync.RWMutex
	conns           map[string]*grpc.ClientConn
	currentEndpoint string

	metrics   Metrics
	logger    logger.Logger
	closed    atomic.Bool
	clock     clock.Clock
	rand      clock.Rand
	connector connector

	tryEndpointFunc func(ctx context.Context, endpoint string, timeout time.Duration, fn func(context.Context, pb.CoordinationClient) error) error
}

// newBaseClient creates a new base client with the given configuration.
func newBaseClient(config Config) (*baseClientImpl, error) {
	if len(config.Endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	c := &baseClientImpl{
		config:    config,
		endpoints: slices.Clone(config.Endpoints),
		conns:     make(map[string]*grpc.ClientConn),
		metrics:   config.Metrics,
		logger:    config.Logger,
		clock:     config.Clock,
		rand:      config.Rand,
		connector: &grpcConnector{},
	}
	if c.metrics == nil {
		c.metrics = NewNoOpMetrics()
	}
	if c.logger == nil {
		c.logger = logger.NewNoOpLogger()
	}
	c.logger = c.logger.WithComponent("client")
	if c.clock == nil {
		c.clock = clock.NewStandardClock()
	}
	if c.rand == nil {
		c.rand = clock.NewStandardRand()
	}
	return c, nil
}

// getMetrics returns the client’s metrics collector.
func (c *baseClientImpl) getMetrics() Metrics {
	return c.metrics
}

// buildDialOptions returns gRPC dial options based on the current configuration.
func (c *baseClientImpl) buildDialOptions() []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                c.config.KeepAlive.Time,
			Timeout:             c.config.KeepAlive.Timeout,
			PermitWithoutStream: c.config.KeepAlive.PermitWithoutStream,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(c.config.MaxMessageSize),
			grpc.MaxCallSendMsgSize(c.config.MaxMessageSize),
		),
	}
	return append(opts, c.config.DialOptions...)
}

// getConnection returns a cached connection or establishes a new one.
func (c *baseClientImpl) getConnection(endpoint string) (*grpc.ClientConn, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	c.mu.RLock()
	if conn, ok := c.conns[endpoint]; ok {
		c.mu.RUnlock()
		return conn, nil
	}
	c.mu.RUnlock()

	dialOpts := c.buildDialOptions()

	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[endpoint]; ok {
		return conn, nil
	}

	conn, err := c.connector.GetConnection(endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	c.conns[endpoint] = conn
	return conn, nil
}

// executeWithRetry runs an operation with retry logic, including backoff and
// endpoint failover. Errors are returned with store sentinels mapped from status codes.
func (c *baseClientImpl) executeWithRetry(ctx context.Context, operation string, opts callOptions, fn func(ctx context.Context, client pb.CoordinationClient) error) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	start := c.clock.Now()
	defer func() { c.metrics.ObserveLatency(operation, c.clock.Since(start)) }()

	maxRetries := c.config.RetryPolicy.MaxRetries

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.tryOperation(ctx, operation, opts.timeout, fn)
		if err == nil {
			c.metrics.IncrSuccess(operation)
			return nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if !c.isRetryable(err, opts.idempotent) {
			c.metrics.IncrFailure(operation)
			return fromStatus(operation, err)
		}
		if attempt == maxRetries {
			break
		}

		c.metrics.IncrRetry(operation)
		backoff := c.calculateBackoff(attempt + 1)
		c.logger.Debugw("Retrying operation", "operation", operation, "attempt", attempt+1, "backoff", backoff, "error", err)

		select {
		case <-c.clock.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.metrics.IncrFailure(operation)
	return fmt.Errorf("operation %q failed after %d attempts: %w", operation, maxRetries+1, fromStatus(operation, lastErr))
}

// tryOperation attempts the operation on the current endpoint, then on the
// others in order. Only transport failures move on to the next endpoint.
func (c *baseClientImpl) tryOperation(ctx context.Context, operation string, timeout time.Duration, fn func(context.Context, pb.CoordinationClient) error) error {
	current := c.getCurrentEndpoint()
	if current != "" {
		err := c.tryEndpoint(ctx, current, timeout, fn)
		if err == nil || !isTransportError(err) {
			return err
		}
		c.setCurrentEndpoint("")
	}

	var lastErr error
	for _, endpoint := range c.endpoints {
		if endpoint == current {
			continue
		}
		err := c.tryEndpoint(ctx, endpoint, timeout, fn)
		if err == nil || !isTransportError(err) {
			c.setCurrentEndpoint(endpoint)
			return err
		}
		c.logger.Debugw("Endpoint unavailable", "endpoint", endpoint, "operation", operation, "error", err)
		lastErr = err
	}

	if lastErr != nil {
		return lastErr
	}
	return status.Errorf(codes.Unavailable, "no available servers for operation %s", operation)
}

// tryEndpoint invokes the operation on the specified endpoint.
func (c *baseClientImpl) tryEndpoint(ctx context.Context, endpoint string, timeout time.Duration, fn func(context.Context, pb.CoordinationClient) error) error {
	if c.tryEndpointFunc != nil {
		return c.tryEndpointFunc(ctx, endpoint, timeout, fn)
	}

	conn, err := c.getConnection(endpoint)
	if err != nil {
		return status.Error(codes.Unavailable, err.Error())
	}
	client := pb.NewCoordinationClient(conn)

	if timeout <= 0 {
		timeout = c.config.RequestTimeout
	}
	reqCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	return fn(reqCtx, client)
}

// calculateBackoff computes exponential backoff with optional jitter.
func (c *baseClientImpl) calculateBackoff(attempt int) time.Duration {
	policy := c.config.RetryPolicy

	backoff := float64(policy.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= policy.BackoffMultiplier
	}
	if backoff > float64(policy.MaxBackoff) {
		backoff = float64(policy.MaxBackoff)
	}

	if policy.JitterFactor > 0 {
		jitter := (c.rand.Float64()*2 - 1) * policy.JitterFactor * backoff
		backoff += jitter
	}

	if backoff < 0 {
		return 0
	}
	return time.Duration(backoff)
}

// isRetryable reports whether err may be retried. Operations that change
// state are only retried when the server cannot have acted on them.
func (c *baseClientImpl) isRetryable(err error, idempotent bool) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	if !slices.Contains(c.config.RetryPolicy.RetryableCodes, st.Code()) {
		return false
	}
	if idempotent {
		return true
	}
	return st.Code() == codes.Unavailable || st.Code() == codes.ResourceExhausted
}

// isTransportError reports whether err means the endpoint could not be reached.
func isTransportError(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unavailable
}

// getCurrentEndpoint returns the endpoint that last answered.
func (c *baseClientImpl) getCurrentEndpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentEndpoint
}

// setCurrentEndpoint updates the sticky endpoint.
func (c *baseClientImpl) setCurrentEndpoint(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentEndpoint = endpoint
}

// isConnected reports whether there are any active connections.
func (c *baseClientImpl) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns) > 0
}

func (c *baseClientImpl) isClosed() bool {
	return c.closed.Load()
}

// close shuts down all gRPC connections and marks the client as closed.
func (c *baseClientImpl) close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for ep, conn := range c.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection to %s: %w", ep, err))
		}
	}
	c.conns = make(map[string]*grpc.ClientConn)
	return errors.Join(errs...)
}

// setConnector replaces the connector (mainly for testing).
func (c *baseClientImpl) setConnector(conn connector) {
	c.connector = conn
}
