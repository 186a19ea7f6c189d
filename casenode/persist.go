package casenode

import (
	"context"
	"fmt"

	"github.com/jathurchan/casecoord/types"
)

// NodeDataAccessor is the part of the coordination namespace client used to
// persist case node data.
type NodeDataAccessor interface {
	GetNodeData(ctx context.Context, category types.Category, path string) ([]byte, error)
	SetNodeData(ctx context.Context, category types.Category, path string, data []byte) error
	UpsertNodePath(ctx context.Context, category types.Category, path string) (string, error)
}

// Create builds a record for the case and writes it to the case directory node.
func Create(ctx context.Context, nodes NodeDataAccessor, meta types.CaseMetadata) (*Record, error) {
	r, err := FromMetadata(meta)
	if err != nil {
		return nil, err
	}
	if err := Write(ctx, nodes, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Read fetches and decodes the node data stored for a case directory. A missing
// node or one with an empty payload, such as a node created only to hold case
// locks, reports ErrNodeDataNotFound.
func Read(ctx context.Context, nodes NodeDataAccessor, caseDirectory string) (*Record, error) {
	data, err := nodes.GetNodeData(ctx, types.CategoryCases, caseDirectory)
	if err != nil {
		return nil, fmt.Errorf("casenode: read %s: %w", caseDirectory, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("casenode: read %s: %w", caseDirectory, ErrNodeDataNotFound)
	}
	return Decode(data)
}

// ReadAndUpgrade reads the node data for the case and, when it predates the
// current version, upgrades it from meta and writes it back.
func ReadAndUpgrade(ctx context.Context, nodes NodeDataAccessor, meta types.CaseMetadata) (*Record, error) {
	r, err := Read(ctx, nodes, meta.CaseDirectory)
	if err != nil {
		return nil, err
	}
	if r.Version >= CurrentVersion {
		return r, nil
	}
	upgraded, err := Upgrade(r, meta)
	if err != nil {
		return nil, err
	}
	if err := Write(ctx, nodes, upgraded); err != nil {
		return nil, err
	}
	return upgraded, nil
}

// Write encodes r and stores it on the node named by r.Directory, creating the
// node and its ancestors when missing.
func Write(ctx context.Context, nodes NodeDataAccessor, r *Record) error {
	if _, err := nodes.UpsertNodePath(ctx, types.CategoryCases, r.Directory); err != nil {
		return fmt.Errorf("casenode: write %s: %w", r.Directory, err)
	}
	if err := nodes.SetNodeData(ctx, types.CategoryCases, r.Directory, Encode(r)); err != nil {
		return fmt.Errorf("casenode: write %s: %w", r.Directory, err)
	}
	return nil
}
