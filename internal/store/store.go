// Package store owns node records and raw CRUD. It knows nothing about
// inheritance — path walking, merging, and cascading deletes live in
// internal/tree, layered on the Store interface.
package store

import (
	"context"
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/agentic-research/stratum/api"
)

// Store is the contract between the tree layer and a node backend.
//
// Every call takes the caller's owner identity explicitly; there is no
// ambient session state. Reads are owner-scoped and report ErrNotFound for
// foreign nodes, so existence is never disclosed across owners. The one
// place AccessDenied surfaces is Create with a foreign parent, where the
// caller has proven knowledge of the ID by supplying it.
type Store interface {
	// Create validates the request, assigns an ID and timestamps, and
	// inserts one node. A supplied ParentID must resolve to a node with the
	// caller's owner, or Create fails (ErrNotFound / ErrAccessDenied)
	// without inserting anything.
	Create(ctx context.Context, owner string, req api.CreateNode) (*api.Node, error)

	// Get returns the node, or ErrNotFound.
	Get(ctx context.Context, owner, id string) (*api.Node, error)

	// ListRoots returns the caller's parentless nodes, newest first.
	ListRoots(ctx context.Context, owner string) ([]api.Node, error)

	// ListChildren returns direct children of parentID, newest first.
	// Transitive descendants are the tree layer's concern.
	ListChildren(ctx context.Context, owner, parentID string) ([]api.Node, error)

	// Update applies a partial update and bumps UpdatedAt. Nil request
	// fields are untouched; a non-nil empty Properties or Defaults map
	// replaces the stored map entirely.
	Update(ctx context.Context, owner, id string, req api.UpdateNode) (*api.Node, error)

	// Delete removes exactly one node. It fails with ErrConflict while the
	// node still has children — orphans cannot be created through this
	// interface; subtree removal is tree.DeleteSubtree.
	Delete(ctx context.Context, owner, id string) error

	// Transact runs fn against a transactional view of the store: either
	// every mutation fn performed is visible afterwards, or none is.
	// Nested calls join the enclosing transaction.
	Transact(ctx context.Context, fn func(Store) error) error
}

// newID returns a fresh node identifier.
func newID() (string, error) {
	id, err := nanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate node id: %v: %w", err, api.ErrInternal)
	}
	return id, nil
}

func validateCreate(req api.CreateNode) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("node name must not be empty: %w", api.ErrValidation)
	}
	if !req.Type.Valid() {
		return fmt.Errorf("unknown node type %q: %w", req.Type, api.ErrValidation)
	}
	return nil
}

func validateUpdate(req api.UpdateNode) error {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return fmt.Errorf("node name must not be empty: %w", api.ErrValidation)
	}
	return nil
}

// cloneValues copies a value map. Values themselves are immutable, so a
// shallow per-entry copy is enough. Nil input yields an empty map — stored
// nodes always carry non-nil maps.
func cloneValues(m map[string]api.Value) map[string]api.Value {
	out := make(map[string]api.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneNode copies a node so callers can never mutate store state through
// a returned pointer.
func cloneNode(n *api.Node) *api.Node {
	c := *n
	c.Properties = cloneValues(n.Properties)
	c.Defaults = cloneValues(n.Defaults)
	return &c
}

func internalErr(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, api.ErrInternal)
}

// byNewest orders nodes newest-first with ID as a stable tie-break.
func byNewest(nodes []api.Node) func(i, j int) bool {
	return func(i, j int) bool {
		if !nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].CreatedAt.After(nodes[j].CreatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	}
}
