package tree

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/agentic-research/stratum/api"
	"github.com/agentic-research/stratum/internal/store"
)

// ImportNode is one node in a YAML tree document.
type ImportNode struct {
	Name        string         `yaml:"name"`
	Type        api.NodeType   `yaml:"type"`
	Description string         `yaml:"description,omitempty"`
	Properties  map[string]any `yaml:"properties,omitempty"`
	Defaults    map[string]any `yaml:"defaults,omitempty"`
	Children    []ImportNode   `yaml:"children,omitempty"`
}

type importDoc struct {
	Nodes []ImportNode `yaml:"nodes"`
}

// Import creates a whole tree from a YAML document in one transaction.
// Top-level nodes attach under parentID (empty means they become roots).
// Parents are always created before their children; any failure — a bad
// value, an invalid type, a foreign parent — leaves nothing behind.
func Import(ctx context.Context, s store.Store, owner string, data []byte, parentID string) ([]api.Node, error) {
	var doc importDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse import document: %v: %w", err, api.ErrValidation)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("import document has no nodes: %w", api.ErrValidation)
	}

	var created []api.Node
	err := s.Transact(ctx, func(tx store.Store) error {
		type frame struct {
			parent string
			node   ImportNode
		}
		queue := make([]frame, 0, len(doc.Nodes))
		for _, n := range doc.Nodes {
			queue = append(queue, frame{parent: parentID, node: n})
		}
		for len(queue) > 0 {
			f := queue[0]
			queue = queue[1:]

			props, err := importValues(f.node.Properties)
			if err != nil {
				return fmt.Errorf("node %q properties: %w", f.node.Name, err)
			}
			defs, err := importValues(f.node.Defaults)
			if err != nil {
				return fmt.Errorf("node %q defaults: %w", f.node.Name, err)
			}
			n, err := tx.Create(ctx, owner, api.CreateNode{
				Name:        f.node.Name,
				Type:        f.node.Type,
				ParentID:    f.parent,
				Description: f.node.Description,
				Properties:  props,
				Defaults:    defs,
			})
			if err != nil {
				return err
			}
			created = append(created, *n)
			for _, child := range f.node.Children {
				queue = append(queue, frame{parent: n.ID, node: child})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func importValues(m map[string]any) (map[string]api.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]api.Value, len(m))
	for k, raw := range m {
		v, err := api.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %v: %w", k, err, api.ErrValidation)
		}
		out[k] = v
	}
	return out, nil
}
