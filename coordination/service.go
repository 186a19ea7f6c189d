// Package coordination is the case coordination namespace client. A Service
// provisions the category nodes of a shared namespace on a store.Store, reads
// and writes node data by category and relative path, and hands out
// exclusive and shared DistributedLocks on those paths.
package coordination

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jathurchan/casecoord/clock"
	"github.com/jathurchan/casecoord/logger"
	"github.com/jathurchan/casecoord/store"
	"github.com/jathurchan/casecoord/types"
)

// Service is the namespace client and lock coordinator for one store
// connection. It is safe for concurrent use; the category map is built in New
// and never modified afterwards.
type Service struct {
	store          store.Store
	root           string
	categoryRoots  map[string]string
	releaseTimeout time.Duration

	logger  logger.Logger
	metrics Metrics
	clock   clock.Clock
}

// New provisions the category nodes under the root namespace and returns a
// ready Service. It fails with a *ServiceUnavailableError when st is nil or
// a category node cannot be created.
func New(ctx context.Context, st store.Store, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, &ServiceUnavailableError{Err: errors.New("no coordination store")}
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		store:          st,
		root:           o.root,
		categoryRoots:  make(map[string]string, len(types.AllCategories())),
		releaseTimeout: o.releaseTimeout,
		logger:         o.logger.WithComponent("coordination"),
		metrics:        o.metrics,
		clock:          o.clock,
	}

	for _, c := range types.AllCategories() {
		p := s.root + "/" + c.DisplayName()
		if err := st.CreateNode(ctx, p, nil); err != nil && !errors.Is(err, store.ErrNodeExists) {
			s.logger.Errorw("Failed to create category node", "path", p, "error", err)
			return nil, &ServiceUnavailableError{Err: err}
		}
		s.categoryRoots[c.DisplayName()] = p
	}

	s.logger.Infow("Coordination namespace ready", "root", s.root, "categories", len(s.categoryRoots))
	return s, nil
}

// Close closes the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}

// GetNodeData returns the data stored at the node, or nil if the node does not
// exist. The ancestors of the node are created first.
func (s *Service) GetNodeData(ctx context.Context, category types.Category, path string) ([]byte, error) {
	fqp := s.normalizedPath(category, path)
	if parent := store.Parent(fqp); parent != s.categoryRoot(category) {
		if err := s.ensureNode(ctx, parent); err != nil {
			s.metrics.ObserveNodeOperation("get", false)
			return nil, fail("create", parent, err)
		}
	}

	data, err := s.store.GetData(ctx, fqp)
	if errors.Is(err, store.ErrNoNode) {
		s.metrics.ObserveNodeOperation("get", true)
		return nil, nil
	}
	if err != nil {
		s.metrics.ObserveNodeOperation("get", false)
		return nil, fail("get", fqp, err)
	}
	s.metrics.ObserveNodeOperation("get", true)
	return data, nil
}

// SetNodeData replaces the data held by an existing node.
func (s *Service) SetNodeData(ctx context.Context, category types.Category, path string, data []byte) error {
	fqp := s.normalizedPath(category, path)
	if err := s.store.SetData(ctx, fqp, data); err != nil {
		s.metrics.ObserveNodeOperation("set", false)
		return fail("set", fqp, err)
	}
	s.metrics.ObserveNodeOperation("set", true)
	return nil
}

// DeleteNode removes a node that has no children.
func (s *Service) DeleteNode(ctx context.Context, category types.Category, path string) error {
	fqp := s.normalizedPath(category, path)
	if err := s.store.DeleteNode(ctx, fqp); err != nil {
		s.metrics.ObserveNodeOperation("delete", false)
		return fail("delete", fqp, err)
	}
	s.metrics.ObserveNodeOperation("delete", true)
	return nil
}

// GetNodeList returns the names of the immediate children of the category root.
func (s *Service) GetNodeList(ctx context.Context, category types.Category) ([]string, error) {
	root := s.categoryRoot(category)
	children, err := s.store.Children(ctx, root)
	if err != nil {
		s.metrics.ObserveNodeOperation("list", false)
		return nil, fail("list", root, err)
	}
	s.metrics.ObserveNodeOperation("list", true)
	return children, nil
}

// UpsertNodePath creates every missing node on the way to path, including the
// node itself, and returns its fully-qualified path. Trailing slashes are ignored.
func (s *Service) UpsertNodePath(ctx context.Context, category types.Category, path string) (string, error) {
	fqp := s.normalizedPath(category, path)
	if err := s.ensureNode(ctx, fqp); err != nil {
		s.metrics.ObserveNodeOperation("upsert", false)
		return "", fail("upsert", fqp, err)
	}
	s.metrics.ObserveNodeOperation("upsert", true)
	return fqp, nil
}

func (s *Service) ensureNode(ctx context.Context, fqp string) error {
	err := s.store.CreateNode(ctx, fqp, nil)
	if err == nil {
		s.logger.Debugw("Created node", "path", fqp)
		return nil
	}
	if errors.Is(err, store.ErrNodeExists) {
		return nil
	}
	return err
}

// normalizedPath is FullyQualifiedPath without trailing slashes, the form the
// store accepts.
func (s *Service) normalizedPath(category types.Category, path string) string {
	return strings.TrimRight(s.FullyQualifiedPath(category, path), "/")
}
