package store

import "errors"

var (
	// ErrNodeExists is returned by CreateNode when the node already exists.
	ErrNodeExists = errors.New("store: node already exists")

	// ErrNoNode is returned when the addressed node does not exist.
	ErrNoNode = errors.New("store: node does not exist")

	// ErrNotEmpty is returned when deleting a node that still has children.
	ErrNotEmpty = errors.New("store: node has children")

	// ErrNotHeld is returned when releasing a lock that is not held by the caller.
	ErrNotHeld = errors.New("store: lock not held")

	// ErrClosed is returned by any operation on a closed store.
	ErrClosed = errors.New("store: closed")

	// ErrInvalidPath is returned for paths that are not absolute or end with a slash.
	ErrInvalidPath = errors.New("store: invalid path")
)
