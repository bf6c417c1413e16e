package tree

import (
	"context"

	"github.com/agentic-research/stratum/api"
	"github.com/agentic-research/stratum/internal/store"
)

// Resolve computes the effective configuration of a node.
//
// The path is folded root to leaf; at each level the node's defaults merge
// in first, then its properties, each key overwriting whatever an earlier
// step set. Closer to the leaf wins across levels; properties beat
// defaults only as a same-level tie-break. Value tags are never coerced —
// a boolean set three levels up arrives as a boolean.
func Resolve(ctx context.Context, s store.Store, owner, id string) (*api.ResolvedConfiguration, error) {
	path, err := ResolvePath(ctx, s, owner, id)
	if err != nil {
		return nil, err
	}

	merged := map[string]api.Value{}
	for _, node := range path {
		for k, v := range node.Defaults {
			merged[k] = v
		}
		for k, v := range node.Properties {
			merged[k] = v
		}
	}

	leaf := path[len(path)-1]
	return &api.ResolvedConfiguration{
		NodeID:     leaf.ID,
		NodeName:   leaf.Name,
		Properties: merged,
		Path:       path,
	}, nil
}
