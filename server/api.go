package server

import (
	"context"

	pb "github.com/jathurchan/casecoord/proto"
)

// CoordinationServer exposes a store.Store to remote clients over gRPC.
//
// Every request is authorized against a client session. Locks acquired
// through a session are released when the session is closed or expires,
// which is how a crashed client's locks are reclaimed.
type CoordinationServer interface {
	pb.CoordinationServer

	// Start begins serving on the configured listener.
	// Returns an error if initialization fails (e.g., port conflict).
	Start(ctx context.Context) error

	// Stop gracefully shuts down the server, closing every session.
	// The provided context can set a deadline for shutdown.
	Stop(ctx context.Context) error

	// Addr returns the address the server is listening on, or "" before Start.
	Addr() string

	// Metrics returns the metrics sink used by the server.
	Metrics() ServerMetrics
}
