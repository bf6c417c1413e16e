package api

import "time"

// NodeType is the tier tag of a configuration node. The set is closed;
// Create rejects anything else.
type NodeType string

const (
	NodeTypeTerritory NodeType = "territory"
	NodeTypeCenter    NodeType = "center"
	NodeTypeUser      NodeType = "user"
)

// Valid reports whether t is one of the recognized tier tags.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeTerritory, NodeTypeCenter, NodeTypeUser:
		return true
	}
	return false
}

// Node is one configuration unit in the hierarchy.
//
// ParentID is a lookup key, not an owning pointer: traversal goes through
// the store, and an empty ParentID marks a root. Defaults hold fallback
// values assumed across the subtree; Properties hold explicit overrides at
// this level and beat Defaults for the same key.
type Node struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Type        NodeType         `json:"node_type"`
	ParentID    string           `json:"parent_id,omitempty"`
	OwnerID     string           `json:"owner_id"`
	Description string           `json:"description,omitempty"`
	Properties  map[string]Value `json:"properties"`
	Defaults    map[string]Value `json:"defaults"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// CreateNode is the payload for creating a node. ParentID empty creates a
// root. Properties and Defaults may be nil.
type CreateNode struct {
	Name        string           `json:"name"`
	Type        NodeType         `json:"node_type"`
	ParentID    string           `json:"parent_id,omitempty"`
	Description string           `json:"description,omitempty"`
	Properties  map[string]Value `json:"properties,omitempty"`
	Defaults    map[string]Value `json:"defaults,omitempty"`
}

// UpdateNode is a partial update. Nil fields are left unchanged. A non-nil
// empty Properties or Defaults map replaces the stored map entirely —
// per-key patching is a layered concern, not a store one.
type UpdateNode struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Properties  map[string]Value `json:"properties,omitempty"`
	Defaults    map[string]Value `json:"defaults,omitempty"`
}

// ResolvedConfiguration is the effective configuration of a node: the
// fold of defaults-then-properties over every node on the root-first path.
type ResolvedConfiguration struct {
	NodeID     string           `json:"node_id"`
	NodeName   string           `json:"node_name"`
	Properties map[string]Value `json:"properties"`
	Path       []Node           `json:"path"`
}
