// Package client implements store.Store against a coordination server.
//
// Node operations are plain RPCs. Locks are acquired through a server session
// which the client keeps alive in the background; if the session expires the
// server releases its locks, and the client opens a new session for the next
// acquisition.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jathurchan/casecoord/logger"
	pb "github.com/jathurchan/casecoord/proto"
	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/types"
)

// Operation names used for metrics, logging and errors.
const (
	opOpenSession  = "OpenSession"
	opKeepAlive    = "KeepAlive"
	opCloseSession = "CloseSession"
	opCreateNode   = "CreateNode"
	opGetData      = "GetData"
	opSetData      = "SetData"
	opDeleteNode   = "DeleteNode"
	opChildren     = "Children"
	opAcquireLock  = "AcquireLock"
	opReleaseLock  = "ReleaseLock"
)

// fallbackKeepAliveInterval is used when the server announces no session TTL.
const fallbackKeepAliveInterval = 10 * time.Second

// RemoteStore is a store.Store served by a coordination server. It is safe for concurrent use.
type RemoteStore struct {
	base   *baseClientImpl
	config Config
	logger logger.Logger

	sessionMu sync.Mutex
	session   types.SessionID
	keeper    *sessionKeeper
}

var _ store.Store = (*RemoteStore)(nil)

// New creates a client for the configured endpoints. Connections are
// established lazily on the first request.
func New(config Config) (*RemoteStore, error) {
	base, err := newBaseClient(config)
	if err != nil {
		return nil, err
	}
	return &RemoteStore{
		base:   base,
		config: config,
		logger: base.logger,
	}, nil
}

// check rejects calls on a closed client and malformed paths.
func (s *RemoteStore) check(path string) error {
	if s.base.isClosed() {
		return ErrClientClosed
	}
	return store.ValidatePath(path)
}

// CreateNode implements store.Store.
func (s *RemoteStore) CreateNode(ctx context.Context, path string, data []byte) error {
	if err := s.check(path); err != nil {
		return err
	}
	return s.base.executeWithRetry(ctx, opCreateNode, callOptions{}, func(ctx context.Context, c pb.CoordinationClient) error {
		_, err := c.CreateNode(ctx, pb.NewDataRequest(path, data))
		return err
	})
}

// GetData implements store.Store.
func (s *RemoteStore) GetData(ctx context.Context, path string) ([]byte, error) {
	if err := s.check(path); err != nil {
		return nil, err
	}
	var data []byte
	err := s.base.executeWithRetry(ctx, opGetData, callOptions{idempotent: true}, func(ctx context.Context, c pb.CoordinationClient) error {
		resp, err := c.GetData(ctx, pb.NewPathRequest(path))
		if err != nil {
			return err
		}
		data = resp.GetValue()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetData implements store.Store.
func (s *RemoteStore) SetData(ctx context.Context, path string, data []byte) error {
	if err := s.check(path); err != nil {
		return err
	}
	return s.base.executeWithRetry(ctx, opSetData, callOptions{idempotent: true}, func(ctx context.Context, c pb.CoordinationClient) error {
		_, err := c.SetData(ctx, pb.NewDataRequest(path, data))
		return err
	})
}

// DeleteNode implements store.Store.
func (s *RemoteStore) DeleteNode(ctx context.Context, path string) error {
	if err := s.check(path); err != nil {
		return err
	}
	return s.base.executeWithRetry(ctx, opDeleteNode, callOptions{}, func(ctx context.Context, c pb.CoordinationClient) error {
		_, err := c.DeleteNode(ctx, pb.NewPathRequest(path))
		return err
	})
}

// Children implements store.Store.
func (s *RemoteStore) Children(ctx context.Context, path string) ([]string, error) {
	if err := s.check(path); err != nil {
		return nil, err
	}
	var children []string
	err := s.base.executeWithRetry(ctx, opChildren, callOptions{idempotent: true}, func(ctx context.Context, c pb.CoordinationClient) error {
		resp, err := c.Children(ctx, pb.NewPathRequest(path))
		if err != nil {
			return err
		}
		children = pb.Strings(resp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

// ReadWriteLock implements store.Store. Locks are held through the client's session.
func (s *RemoteStore) ReadWriteLock(path string) store.ReadWriteLock {
	return &remoteRWLock{
		read:  newRemoteMutex(s, path, types.LockShared),
		write: newRemoteMutex(s, path, types.LockExclusive),
	}
}

// Session returns the current session, or "" when none is open.
func (s *RemoteStore) Session() types.SessionID {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.session
}

// ensureSession returns the open session, opening one if needed.
func (s *RemoteStore) ensureSession(ctx context.Context) (types.SessionID, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if s.session != "" {
		return s.session, nil
	}
	if s.base.isClosed() {
		return "", ErrClientClosed
	}

	var resp *structpb.Struct
	err := s.base.executeWithRetry(ctx, opOpenSession, callOptions{}, func(ctx context.Context, c pb.CoordinationClient) error {
		var err error
		resp, err = c.OpenSession(ctx, &emptypb.Empty{})
		return err
	})
	if err != nil {
		return "", err
	}

	id := types.SessionID(pb.String(resp, pb.FieldSessionID))
	interval := s.config.SessionKeepAliveInterval
	if interval <= 0 {
		interval = pb.Millis(resp, pb.FieldTTLMs) / 3
	}
	if interval <= 0 {
		interval = fallbackKeepAliveInterval
	}

	keeper, err := newSessionKeeper(id, interval, s.keepAlive, s.sessionLost, s.base.clock)
	if err != nil {
		return "", err
	}
	keeper.Start(context.Background())

	s.session, s.keeper = id, keeper
	s.logger.WithSession(id).Infow("Session opened", "keepalive_interval", interval, "endpoint", s.base.getCurrentEndpoint())
	return id, nil
}

func (s *RemoteStore) keepAlive(ctx context.Context, id types.SessionID) error {
	err := s.base.executeWithRetry(ctx, opKeepAlive, callOptions{idempotent: true}, func(ctx context.Context, c pb.CoordinationClient) error {
		_, err := c.KeepAlive(ctx, pb.NewSessionRequest(string(id)))
		return err
	})
	if err != nil && !errors.Is(err, ErrSessionExpired) {
		s.logger.WithSession(id).Warnw("Session keepalive failed", "error", err)
	}
	return err
}

// sessionLost is called by the keeper when the server no longer knows the session.
func (s *RemoteStore) sessionLost(id types.SessionID) {
	s.sessionMu.Lock()
	if s.session == id {
		s.session, s.keeper = "", nil
	}
	s.sessionMu.Unlock()

	s.base.getMetrics().IncrSessionLost()
	s.logger.WithSession(id).Warnw("Session expired on the server; its locks were released")
}

// invalidateSession forgets id after a request reported it expired.
func (s *RemoteStore) invalidateSession(id types.SessionID) {
	s.sessionMu.Lock()
	var keeper *sessionKeeper
	if s.session == id {
		keeper = s.keeper
		s.session, s.keeper = "", nil
	}
	s.sessionMu.Unlock()

	if keeper == nil {
		return
	}
	s.base.getMetrics().IncrSessionLost()
	stopCtx, cancel := context.WithTimeout(context.Background(), s.closeTimeout())
	defer cancel()
	_ = keeper.Stop(stopCtx)
}

func (s *RemoteStore) closeTimeout() time.Duration {
	if s.config.CloseTimeout > 0 {
		return s.config.CloseTimeout
	}
	return defaultCloseTimeout
}

// Close ends the session, releasing every lock held through it, and closes
// the connections. Further calls return ErrClientClosed.
func (s *RemoteStore) Close() error {
	if s.base.isClosed() {
		return ErrClientClosed
	}

	s.sessionMu.Lock()
	id, keeper := s.session, s.keeper
	s.session, s.keeper = "", nil
	s.sessionMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.closeTimeout())
	defer cancel()

	var errs []error
	if keeper != nil {
		if err := keeper.Stop(ctx); err != nil && !errors.Is(err, ErrSessionExpired) {
			errs = append(errs, err)
		}
	}
	if id != "" {
		err := s.base.executeWithRetry(ctx, opCloseSession, callOptions{}, func(ctx context.Context, c pb.CoordinationClient) error {
			_, err := c.CloseSession(ctx, pb.NewSessionRequest(string(id)))
			return err
		})
		if err != nil && !errors.Is(err, ErrSessionExpired) {
			s.logger.WithSession(id).Warnw("Failed to close session", "error", err)
			errs = append(errs, err)
		}
	}

	if err := s.base.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
