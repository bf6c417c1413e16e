package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/stratum/api"
)

// The conformance suite runs every test against both backends — the
// MemoryStore is the reference for SQLiteStore semantics.

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "nodes.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, openTestSQLite(t)) })
}

const owner = "acme"

func mustCreate(t *testing.T, s Store, owner string, req api.CreateNode) *api.Node {
	t.Helper()
	n, err := s.Create(context.Background(), owner, req)
	require.NoError(t, err)
	return n
}

func TestCreateAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created := mustCreate(t, s, owner, api.CreateNode{
			Name:        "Production",
			Type:        api.NodeTypeTerritory,
			Description: "prod tier",
			Properties:  map[string]api.Value{"cache_enabled": api.Bool(true)},
			Defaults:    map[string]api.Value{"api_timeout": api.Int(10)},
		})
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, owner, created.OwnerID)
		assert.Empty(t, created.ParentID)
		assert.False(t, created.CreatedAt.IsZero())
		assert.Equal(t, created.CreatedAt, created.UpdatedAt)

		got, err := s.Get(ctx, owner, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Production", got.Name)
		assert.Equal(t, api.NodeTypeTerritory, got.Type)
		assert.Equal(t, "prod tier", got.Description)
		assert.True(t, got.Properties["cache_enabled"].Equal(api.Bool(true)))
		assert.True(t, got.Defaults["api_timeout"].Equal(api.Int(10)))
	})
}

func TestCreateValidation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Create(ctx, owner, api.CreateNode{Name: "", Type: api.NodeTypeCenter})
		assert.ErrorIs(t, err, api.ErrValidation)

		_, err = s.Create(ctx, owner, api.CreateNode{Name: "   ", Type: api.NodeTypeCenter})
		assert.ErrorIs(t, err, api.ErrValidation)

		_, err = s.Create(ctx, owner, api.CreateNode{Name: "x", Type: "galaxy"})
		assert.ErrorIs(t, err, api.ErrValidation)

		roots, err := s.ListRoots(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, roots, "failed creates must not insert anything")
	})
}

func TestCreateParentChecks(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Create(ctx, owner, api.CreateNode{
			Name: "orphan", Type: api.NodeTypeCenter, ParentID: "no-such-node",
		})
		assert.ErrorIs(t, err, api.ErrNotFound)

		foreign := mustCreate(t, s, "rival", api.CreateNode{Name: "theirs", Type: api.NodeTypeTerritory})
		_, err = s.Create(ctx, owner, api.CreateNode{
			Name: "intruder", Type: api.NodeTypeCenter, ParentID: foreign.ID,
		})
		assert.ErrorIs(t, err, api.ErrAccessDenied)

		children, err := s.ListChildren(ctx, "rival", foreign.ID)
		require.NoError(t, err)
		assert.Empty(t, children, "denied create must not attach a child")
	})
}

func TestGetIsOwnerScoped(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		n := mustCreate(t, s, owner, api.CreateNode{Name: "mine", Type: api.NodeTypeUser})

		_, err := s.Get(ctx, "rival", n.ID)
		assert.ErrorIs(t, err, api.ErrNotFound, "foreign reads report not-found, not denied")
	})
}

func TestListOrdering(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := mustCreate(t, s, owner, api.CreateNode{Name: "a", Type: api.NodeTypeTerritory})
		b := mustCreate(t, s, owner, api.CreateNode{Name: "b", Type: api.NodeTypeTerritory})

		roots, err := s.ListRoots(ctx, owner)
		require.NoError(t, err)
		require.Len(t, roots, 2)
		assert.Equal(t, b.ID, roots[0].ID, "newest first")
		assert.Equal(t, a.ID, roots[1].ID)

		c1 := mustCreate(t, s, owner, api.CreateNode{Name: "c1", Type: api.NodeTypeCenter, ParentID: a.ID})
		c2 := mustCreate(t, s, owner, api.CreateNode{Name: "c2", Type: api.NodeTypeCenter, ParentID: a.ID})

		children, err := s.ListChildren(ctx, owner, a.ID)
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, c2.ID, children[0].ID)
		assert.Equal(t, c1.ID, children[1].ID)

		roots, err = s.ListRoots(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, roots, 2, "children must not appear among roots")
	})
}

func TestUpdateSemantics(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		n := mustCreate(t, s, owner, api.CreateNode{
			Name:       "node",
			Type:       api.NodeTypeCenter,
			Properties: map[string]api.Value{"region": api.String("us-east-1")},
			Defaults:   map[string]api.Value{"timeout": api.Int(10)},
		})

		// Nil fields stay untouched.
		name := "renamed"
		got, err := s.Update(ctx, owner, n.ID, api.UpdateNode{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		assert.True(t, got.Properties["region"].Equal(api.String("us-east-1")))
		assert.True(t, got.Defaults["timeout"].Equal(api.Int(10)))
		assert.Equal(t, api.NodeTypeCenter, got.Type, "type is immutable")
		assert.Equal(t, n.CreatedAt, got.CreatedAt)

		// A supplied empty map replaces the whole map.
		got, err = s.Update(ctx, owner, n.ID, api.UpdateNode{Properties: map[string]api.Value{}})
		require.NoError(t, err)
		assert.Empty(t, got.Properties)
		assert.True(t, got.Defaults["timeout"].Equal(api.Int(10)), "defaults untouched")

		// A supplied map replaces, never merges.
		got, err = s.Update(ctx, owner, n.ID, api.UpdateNode{
			Defaults: map[string]api.Value{"retries": api.Int(3)},
		})
		require.NoError(t, err)
		assert.Len(t, got.Defaults, 1)
		_, hasOld := got.Defaults["timeout"]
		assert.False(t, hasOld)

		empty := " "
		_, err = s.Update(ctx, owner, n.ID, api.UpdateNode{Name: &empty})
		assert.ErrorIs(t, err, api.ErrValidation)

		_, err = s.Update(ctx, owner, "missing", api.UpdateNode{Name: &name})
		assert.ErrorIs(t, err, api.ErrNotFound)

		_, err = s.Update(ctx, "rival", n.ID, api.UpdateNode{Name: &name})
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		assert.ErrorIs(t, s.Delete(ctx, owner, "missing"), api.ErrNotFound,
			"deleting a non-existent node reports not-found, never silent success")

		parent := mustCreate(t, s, owner, api.CreateNode{Name: "p", Type: api.NodeTypeTerritory})
		child := mustCreate(t, s, owner, api.CreateNode{Name: "c", Type: api.NodeTypeCenter, ParentID: parent.ID})

		assert.ErrorIs(t, s.Delete(ctx, owner, parent.ID), api.ErrConflict,
			"single-row delete must refuse to orphan children")

		assert.ErrorIs(t, s.Delete(ctx, "rival", child.ID), api.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "rival", parent.ID), api.ErrNotFound,
			"a foreign node with children must read as not-found, not as a conflict")

		require.NoError(t, s.Delete(ctx, owner, child.ID))
		require.NoError(t, s.Delete(ctx, owner, parent.ID))

		_, err := s.Get(ctx, owner, parent.ID)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestTransactRollback(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		boom := errors.New("boom")

		err := s.Transact(ctx, func(tx Store) error {
			if _, err := tx.Create(ctx, owner, api.CreateNode{Name: "a", Type: api.NodeTypeTerritory}); err != nil {
				return err
			}
			if _, err := tx.Create(ctx, owner, api.CreateNode{Name: "b", Type: api.NodeTypeTerritory}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		roots, err := s.ListRoots(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, roots, "failed transaction must leave nothing behind")
	})
}

func TestTransactNestedJoins(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		err := s.Transact(ctx, func(tx Store) error {
			return tx.Transact(ctx, func(inner Store) error {
				_, err := inner.Create(ctx, owner, api.CreateNode{Name: "nested", Type: api.NodeTypeUser})
				return err
			})
		})
		require.NoError(t, err)

		roots, err := s.ListRoots(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, roots, 1)
	})
}

func TestReturnedNodeIsACopy(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		n := mustCreate(t, s, owner, api.CreateNode{
			Name:       "node",
			Type:       api.NodeTypeUser,
			Properties: map[string]api.Value{"k": api.Int(1)},
		})

		n.Properties["k"] = api.Int(999)
		n.Properties["injected"] = api.Bool(true)

		got, err := s.Get(ctx, owner, n.ID)
		require.NoError(t, err)
		assert.True(t, got.Properties["k"].Equal(api.Int(1)))
		_, injected := got.Properties["injected"]
		assert.False(t, injected)
	})
}
