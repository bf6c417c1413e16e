package tree

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/stratum/api"
	"github.com/agentic-research/stratum/internal/store"
)

const owner = "acme"

func mustCreate(t *testing.T, s store.Store, req api.CreateNode) *api.Node {
	t.Helper()
	n, err := s.Create(context.Background(), owner, req)
	require.NoError(t, err)
	return n
}

// seed inserts a raw node record, sidestepping create-time checks.
// Used to build broken trees the store would normally refuse.
func seed(s *store.MemoryStore, id, parentID string) {
	now := time.Now().UTC()
	s.Seed(&api.Node{
		ID: id, Name: id, Type: api.NodeTypeCenter,
		OwnerID: owner, ParentID: parentID,
		CreatedAt: now, UpdatedAt: now,
	})
}

func TestResolvePathChain(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	root := mustCreate(t, s, api.CreateNode{Name: "root", Type: api.NodeTypeTerritory})
	mid := mustCreate(t, s, api.CreateNode{Name: "mid", Type: api.NodeTypeCenter, ParentID: root.ID})
	leaf := mustCreate(t, s, api.CreateNode{Name: "leaf", Type: api.NodeTypeUser, ParentID: mid.ID})

	path, err := ResolvePath(ctx, s, owner, leaf.ID)
	require.NoError(t, err)
	require.Len(t, path, 3)

	assert.Equal(t, root.ID, path[0].ID, "root first")
	assert.Equal(t, leaf.ID, path[2].ID, "target last")
	for i := 1; i < len(path); i++ {
		assert.Equal(t, path[i-1].ID, path[i].ParentID, "consecutive nodes must link")
	}
}

func TestResolvePathSingleRoot(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	root := mustCreate(t, s, api.CreateNode{Name: "solo", Type: api.NodeTypeTerritory})

	path, err := ResolvePath(ctx, s, owner, root.ID)
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, root.ID, path[0].ID)
}

func TestResolvePathNotFound(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := ResolvePath(context.Background(), s, owner, "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestResolvePathOwnerScoped(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	n := mustCreate(t, s, api.CreateNode{Name: "mine", Type: api.NodeTypeTerritory})

	_, err := ResolvePath(ctx, s, "rival", n.ID)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestResolvePathTruncatesOnBrokenParent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seed(s, "orphaned", "ghost") // parent row does not exist
	seed(s, "child", "orphaned")

	path, err := ResolvePath(ctx, s, owner, "child")
	require.NoError(t, err, "a broken parent ref truncates, it does not fail")
	require.Len(t, path, 2)
	assert.Equal(t, "orphaned", path[0].ID, "broken node acts as the effective root")
	assert.Equal(t, "child", path[1].ID)
}

func TestResolvePathTruncationWarnsViaContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	s := store.NewMemoryStore()
	seed(s, "orphaned", "ghost")

	_, err := ResolvePath(ctx, s, owner, "orphaned")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "truncating path")

	// Without a logger in the context the walk is silent, not panicking.
	buf.Reset()
	_, err = ResolvePath(context.Background(), s, owner, "orphaned")
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestResolvePathCycleDetected(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seed(s, "a", "b")
	seed(s, "b", "a")

	_, err := ResolvePath(ctx, s, owner, "a")
	assert.ErrorIs(t, err, api.ErrConflict, "corrupted cycle must not loop forever")

	_, err = ResolvePath(ctx, s, owner, "b")
	assert.ErrorIs(t, err, api.ErrConflict)
}

func TestResolvePathSelfParentCycle(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seed(s, "snake", "snake")

	_, err := ResolvePath(ctx, s, owner, "snake")
	assert.ErrorIs(t, err, api.ErrConflict)
}
