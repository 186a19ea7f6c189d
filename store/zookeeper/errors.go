package zookeeper

import (
	"errors"
	"fmt"

	"github.com/go-zookeeper/zk"

	"github.com/jathurchan/casecoord/store"
)

// ErrConnectTimeout is returned by New when no session is established in time.
var ErrConnectTimeout = errors.New("zookeeper store: timed out waiting for session")

// mapError translates ZooKeeper client errors into store sentinels, keeping
// the original error in the chain.
func mapError(err error, path string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, zk.ErrNoNode):
		return fmt.Errorf("%w: %s", store.ErrNoNode, path)
	case errors.Is(err, zk.ErrNodeExists):
		return fmt.Errorf("%w: %s", store.ErrNodeExists, path)
	case errors.Is(err, zk.ErrNotEmpty):
		return fmt.Errorf("%w: %s", store.ErrNotEmpty, path)
	case errors.Is(err, zk.ErrBadArguments), errors.Is(err, zk.ErrInvalidPath):
		return fmt.Errorf("%w: %s: %w", store.ErrInvalidPath, path, err)
	case errors.Is(err, zk.ErrConnectionClosed), errors.Is(err, zk.ErrClosing):
		return fmt.Errorf("%w: %w", store.ErrClosed, err)
	default:
		return fmt.Errorf("zookeeper %s: %w", path, err)
	}
}
