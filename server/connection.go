package server

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/stats"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
)

// ConnectionInfo holds metadata about a gRPC client connection.
type ConnectionInfo struct {
	RemoteAddr   string    // Client's remote address
	ConnectedAt  time.Time // Time the connection was established
	LastActive   time.Time // Last time a request was received
	RequestCount int64     // Total number of requests from this connection
}

// ConnectionManager manages gRPC client connections and their lifecycle.
type ConnectionManager interface {
	// Registers a new connection
	OnConnect(remoteAddr string)

	// Removes an existing connection
	OnDisconnect(remoteAddr string)

	// Updates activity for a connection
	OnRequest(remoteAddr string)

	// Returns the number of active connections
	GetActiveConnections() int

	// Returns a snapshot of all connections
	GetAllConnectionInfo() map[string]ConnectionInfo
}

// connectionManager is the default implementation of ConnectionManager.
type connectionManager struct {
	mu sync.RWMutex

	// Active connections keyed by remote address
	connections map[string]*ConnectionInfo

	metrics ServerMetrics
	logger  logger.Logger
	clock   clock.Clock
}

// NewConnectionManager returns a new ConnectionManager.
// Falls back to the standard clock if none is given.
func NewConnectionManager(metrics ServerMetrics, log logger.Logger, clk clock.Clock) ConnectionManager {
	if clk == nil {
		clk = clock.NewStandardClock()
	}
	if metrics == nil {
		metrics = NewNoOpServerMetrics()
	}
	return &connectionManager{
		connections: make(map[string]*ConnectionInfo),
		metrics:     metrics,
		logger:      log.WithComponent("connection-manager"),
		clock:       clk,
	}
}

// OnConnect registers a new client connection.
func (cm *connectionManager) OnConnect(remoteAddr string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[remoteAddr]; exists {
		cm.logger.Warnw("Connection already exists", "remote_addr", remoteAddr)
		return
	}

	now := cm.clock.Now()
	cm.connections[remoteAddr] = &ConnectionInfo{
		RemoteAddr:  remoteAddr,
		ConnectedAt: now,
		LastActive:  now,
	}
	total := len(cm.connections)
	cm.metrics.SetActiveConnections(total)
	cm.logger.Debugw("New client connection", "remote_addr", remoteAddr, "total_connections", total)
}

// OnDisconnect unregisters a client connection.
func (cm *connectionManager) OnDisconnect(remoteAddr string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[remoteAddr]; exists {
		delete(cm.connections, remoteAddr)
		cm.metrics.SetActiveConnections(len(cm.connections))
		cm.logger.Debugw("Client connection closed", "remote_addr", remoteAddr, "total_connections", len(cm.connections))
	}
}

// OnRequest updates the last activity and request count for a connection.
func (cm *connectionManager) OnRequest(remoteAddr string) {
	now := cm.clock.Now()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn, exists := cm.connections[remoteAddr]
	if !exists {
		cm.logger.Debugw("Received request for unknown connection", "remote_addr", remoteAddr)
		return
	}

	conn.LastActive = now
	conn.RequestCount++
}

// GetActiveConnections returns the current number of active connections.
func (cm *connectionManager) GetActiveConnections() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// GetAllConnectionInfo returns a copy of all current connection info.
func (cm *connectionManager) GetAllConnectionInfo() map[string]ConnectionInfo {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	infos := make(map[string]ConnectionInfo, len(cm.connections))
	for addr, info := range cm.connections {
		infos[addr] = *info
	}
	return infos
}

// connStatsHandler feeds gRPC connection events into a ConnectionManager.
type connStatsHandler struct {
	manager ConnectionManager
}

type connAddrKey struct{}

func (h *connStatsHandler) TagConn(ctx context.Context, info *stats.ConnTagInfo) context.Context {
	if info.RemoteAddr == nil {
		return ctx
	}
	return context.WithValue(ctx, connAddrKey{}, info.RemoteAddr.String())
}

func (h *connStatsHandler) HandleConn(ctx context.Context, s stats.ConnStats) {
	addr, _ := ctx.Value(connAddrKey{}).(string)
	if addr == "" {
		return
	}
	switch s.(type) {
	case *stats.ConnBegin:
		h.manager.OnConnect(addr)
	case *stats.ConnEnd:
		h.manager.OnDisconnect(addr)
	}
}

func (h *connStatsHandler) TagRPC(ctx context.Context, _ *stats.RPCTagInfo) context.Context {
	return ctx
}

func (h *connStatsHandler) HandleRPC(context.Context, stats.RPCStats) {}

// peerAddress returns the remote address of the caller, or "unknown".
func peerAddress(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}
