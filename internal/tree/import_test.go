package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/stratum/api"
	"github.com/agentic-research/stratum/internal/store"
)

const importDocYAML = `
nodes:
  - name: Production
    type: territory
    description: production tier
    properties:
      api_timeout: 10
      cache_enabled: true
    children:
      - name: EastCoast
        type: center
        properties:
          api_timeout: 30
          region: us-east-1
        children:
          - name: alice
            type: user
      - name: WestCoast
        type: center
        defaults:
          region: us-west-2
`

func TestImportBuildsTree(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	created, err := Import(ctx, s, owner, []byte(importDocYAML), "")
	require.NoError(t, err)
	require.Len(t, created, 4)

	prod := created[0]
	assert.Equal(t, "Production", prod.Name)
	assert.Equal(t, api.NodeTypeTerritory, prod.Type)
	assert.Equal(t, "production tier", prod.Description)
	assert.Empty(t, prod.ParentID)
	assert.Equal(t, api.KindNumber, prod.Properties["api_timeout"].Kind())
	assert.True(t, prod.Properties["cache_enabled"].Equal(api.Bool(true)))

	children, err := s.ListChildren(ctx, owner, prod.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)

	var east api.Node
	for _, c := range children {
		if c.Name == "EastCoast" {
			east = c
		}
	}
	require.NotEmpty(t, east.ID)

	rc, err := Resolve(ctx, s, owner, east.ID)
	require.NoError(t, err)
	assert.True(t, rc.Properties["api_timeout"].Equal(api.Int(30)))
	assert.True(t, rc.Properties["cache_enabled"].Equal(api.Bool(true)))

	grandchildren, err := s.ListChildren(ctx, owner, east.ID)
	require.NoError(t, err)
	require.Len(t, grandchildren, 1)
	assert.Equal(t, "alice", grandchildren[0].Name)
	assert.Equal(t, api.NodeTypeUser, grandchildren[0].Type)
}

func TestImportUnderParent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	root := mustCreate(t, s, api.CreateNode{Name: "existing", Type: api.NodeTypeTerritory})

	created, err := Import(ctx, s, owner, []byte("nodes:\n  - name: sub\n    type: center\n"), root.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, root.ID, created[0].ParentID)
}

func TestImportIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	// Second root has an invalid type; the first must not survive.
	doc := `
nodes:
  - name: ok
    type: territory
  - name: bad
    type: galaxy
`
	_, err := Import(ctx, s, owner, []byte(doc), "")
	require.ErrorIs(t, err, api.ErrValidation)

	roots, err := s.ListRoots(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, roots, "failed import must leave nothing behind")
}

func TestImportRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	_, err := Import(ctx, s, owner, []byte("{not yaml"), "")
	assert.ErrorIs(t, err, api.ErrValidation)

	_, err = Import(ctx, s, owner, []byte("nodes: []\n"), "")
	assert.ErrorIs(t, err, api.ErrValidation)

	_, err = Import(ctx, s, owner, []byte("nodes:\n  - name: n\n    type: center\n"), "ghost")
	assert.ErrorIs(t, err, api.ErrNotFound, "unknown parent fails the whole import")
}
