// Package tree implements the hierarchy logic over a node store: ancestor
// path resolution, configuration inheritance, cascading deletes, and the
// per-key patch operations layered on the store's whole-map updates.
package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agentic-research/stratum/api"
	"github.com/agentic-research/stratum/internal/store"
)

// ResolvePath returns the root-first ancestor chain of a node, ending with
// the node itself.
//
// A parent reference that cannot be resolved truncates the walk: the
// broken node acts as an effective root. That masks a missing row, so the
// truncation is logged at warn level rather than silently absorbed. The
// walk keeps a visited set — a corrupted store containing a cycle yields
// ErrConflict instead of looping.
func ResolvePath(ctx context.Context, s store.Store, owner, id string) ([]api.Node, error) {
	node, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	path := []api.Node{*node}
	seen := map[string]struct{}{node.ID: {}}
	cur := node
	for cur.ParentID != "" {
		if _, dup := seen[cur.ParentID]; dup {
			return nil, fmt.Errorf("cycle detected at node %s: %w", cur.ParentID, api.ErrConflict)
		}
		parent, err := s.Get(ctx, owner, cur.ParentID)
		if errors.Is(err, api.ErrNotFound) {
			zerolog.Ctx(ctx).Warn().Str("node", cur.ID).Str("parent", cur.ParentID).
				Msg("parent reference is broken; truncating path")
			break
		}
		if err != nil {
			return nil, err
		}
		seen[parent.ID] = struct{}{}
		path = append([]api.Node{*parent}, path...)
		cur = parent
	}
	return path, nil
}
