package tree

import (
	"context"
	"fmt"

	"github.com/agentic-research/stratum/api"
	"github.com/agentic-research/stratum/internal/store"
)

// The store's Update replaces properties/defaults wholesale. These helpers
// restore per-key semantics on top: read the node, merge one key, write
// the whole map back — inside a transaction so concurrent patches cannot
// lose each other's keys.

// SetProperty sets or overwrites one property key.
func SetProperty(ctx context.Context, s store.Store, owner, id, key string, v api.Value) (*api.Node, error) {
	return patchNode(ctx, s, owner, id, key, func(n *api.Node) (api.UpdateNode, error) {
		n.Properties[key] = v
		return api.UpdateNode{Properties: n.Properties}, nil
	})
}

// SetDefault sets or overwrites one default key.
func SetDefault(ctx context.Context, s store.Store, owner, id, key string, v api.Value) (*api.Node, error) {
	return patchNode(ctx, s, owner, id, key, func(n *api.Node) (api.UpdateNode, error) {
		n.Defaults[key] = v
		return api.UpdateNode{Defaults: n.Defaults}, nil
	})
}

// RemoveProperty deletes one property key. A missing key is ErrNotFound.
func RemoveProperty(ctx context.Context, s store.Store, owner, id, key string) (*api.Node, error) {
	return patchNode(ctx, s, owner, id, key, func(n *api.Node) (api.UpdateNode, error) {
		if _, ok := n.Properties[key]; !ok {
			return api.UpdateNode{}, fmt.Errorf("property %q on node %s: %w", key, id, api.ErrNotFound)
		}
		delete(n.Properties, key)
		return api.UpdateNode{Properties: n.Properties}, nil
	})
}

// RemoveDefault deletes one default key. A missing key is ErrNotFound.
func RemoveDefault(ctx context.Context, s store.Store, owner, id, key string) (*api.Node, error) {
	return patchNode(ctx, s, owner, id, key, func(n *api.Node) (api.UpdateNode, error) {
		if _, ok := n.Defaults[key]; !ok {
			return api.UpdateNode{}, fmt.Errorf("default %q on node %s: %w", key, id, api.ErrNotFound)
		}
		delete(n.Defaults, key)
		return api.UpdateNode{Defaults: n.Defaults}, nil
	})
}

func patchNode(ctx context.Context, s store.Store, owner, id, key string, mutate func(*api.Node) (api.UpdateNode, error)) (*api.Node, error) {
	if key == "" {
		return nil, fmt.Errorf("property key must not be empty: %w", api.ErrValidation)
	}
	var out *api.Node
	err := s.Transact(ctx, func(tx store.Store) error {
		n, err := tx.Get(ctx, owner, id)
		if err != nil {
			return err
		}
		upd, err := mutate(n)
		if err != nil {
			return err
		}
		out, err = tx.Update(ctx, owner, id, upd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
