package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/stratum/api"
)

// MemoryStore is the in-memory Store, used by tests and as the reference
// for SQLiteStore semantics.
//
// Secondary lookups (owner → nodes, parent → children) go through roaring
// bitmaps over compact internal IDs instead of per-key string slices, so
// owner scans and child listings stay cheap on wide trees. Internal IDs
// are assigned once per node and blanked on delete; bitmaps are dropped
// when they empty out.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes Transact bodies

	nodes map[string]*api.Node

	// Bitmap indexes: external string ID ↔ compact uint32 ID.
	byOwner     map[string]*roaring.Bitmap // owner → node set
	byParent    map[string]*roaring.Bitmap // parent → direct children
	nodeIntID   map[string]uint32
	intToNodeID []string
	nextIntID   uint32

	now       func() time.Time
	lastStamp int64 // unix nanos of the last issued timestamp
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:     make(map[string]*api.Node),
		byOwner:   make(map[string]*roaring.Bitmap),
		byParent:  make(map[string]*roaring.Bitmap),
		nodeIntID: make(map[string]uint32),
		now:       time.Now,
	}
}

// Seed inserts a node verbatim, bypassing validation and parent checks.
// Fixture hook: tests use it to build trees with fixed IDs and timestamps,
// including deliberately corrupted ones (broken parent refs, cycles).
func (s *MemoryStore) Seed(n *api.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneNode(n)
	s.nodes[stored.ID] = stored
	s.index(stored)
}

// tick returns a store-managed timestamp. Strictly monotonic, so the
// newest-first list ordering is total even for back-to-back creates.
// Must be called with s.mu held.
func (s *MemoryStore) tick() time.Time {
	now := s.now().UTC()
	if ts := now.UnixNano(); ts <= s.lastStamp {
		now = time.Unix(0, s.lastStamp+1).UTC()
	}
	s.lastStamp = now.UnixNano()
	return now
}

// index must be called with s.mu held.
func (s *MemoryStore) index(n *api.Node) {
	intID, ok := s.nodeIntID[n.ID]
	if !ok {
		intID = s.nextIntID
		s.nextIntID++
		s.nodeIntID[n.ID] = intID
		for uint32(len(s.intToNodeID)) <= intID {
			s.intToNodeID = append(s.intToNodeID, "")
		}
		s.intToNodeID[intID] = n.ID
	}
	owners, ok := s.byOwner[n.OwnerID]
	if !ok {
		owners = roaring.New()
		s.byOwner[n.OwnerID] = owners
	}
	owners.Add(intID)
	if n.ParentID != "" {
		children, ok := s.byParent[n.ParentID]
		if !ok {
			children = roaring.New()
			s.byParent[n.ParentID] = children
		}
		children.Add(intID)
	}
}

// unindex must be called with s.mu held.
func (s *MemoryStore) unindex(n *api.Node) {
	intID, ok := s.nodeIntID[n.ID]
	if !ok {
		return
	}
	if owners, ok := s.byOwner[n.OwnerID]; ok {
		owners.Remove(intID)
		if owners.IsEmpty() {
			delete(s.byOwner, n.OwnerID)
		}
	}
	if n.ParentID != "" {
		if children, ok := s.byParent[n.ParentID]; ok {
			children.Remove(intID)
			if children.IsEmpty() {
				delete(s.byParent, n.ParentID)
			}
		}
	}
	delete(s.nodeIntID, n.ID)
	if int(intID) < len(s.intToNodeID) {
		s.intToNodeID[intID] = ""
	}
}

// collect resolves a bitmap to node copies, filtered by keep.
// Must be called with s.mu held (read or write).
func (s *MemoryStore) collect(bm *roaring.Bitmap, keep func(*api.Node) bool) []api.Node {
	if bm == nil {
		return nil
	}
	var out []api.Node
	it := bm.Iterator()
	for it.HasNext() {
		intID := it.Next()
		if int(intID) >= len(s.intToNodeID) {
			continue
		}
		id := s.intToNodeID[intID]
		if id == "" {
			continue
		}
		n, ok := s.nodes[id]
		if !ok || !keep(n) {
			continue
		}
		out = append(out, *cloneNode(n))
	}
	sort.Slice(out, byNewest(out))
	return out
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, owner string, req api.CreateNode) (*api.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ParentID != "" {
		parent, ok := s.nodes[req.ParentID]
		if !ok {
			return nil, fmt.Errorf("parent node %s: %w", req.ParentID, api.ErrNotFound)
		}
		if parent.OwnerID != owner {
			return nil, fmt.Errorf("parent node %s belongs to another owner: %w", req.ParentID, api.ErrAccessDenied)
		}
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := s.tick()
	n := &api.Node{
		ID:          id,
		Name:        req.Name,
		Type:        req.Type,
		ParentID:    req.ParentID,
		OwnerID:     owner,
		Description: req.Description,
		Properties:  cloneValues(req.Properties),
		Defaults:    cloneValues(req.Defaults),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nodes[n.ID] = n
	s.index(n)
	return cloneNode(n), nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, owner, id string) (*api.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok || n.OwnerID != owner {
		return nil, fmt.Errorf("node %s: %w", id, api.ErrNotFound)
	}
	return cloneNode(n), nil
}

// ListRoots implements Store.
func (s *MemoryStore) ListRoots(ctx context.Context, owner string) ([]api.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byOwner[owner], func(n *api.Node) bool {
		return n.ParentID == ""
	}), nil
}

// ListChildren implements Store.
func (s *MemoryStore) ListChildren(ctx context.Context, owner, parentID string) ([]api.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byParent[parentID], func(n *api.Node) bool {
		return n.OwnerID == owner
	}), nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, owner, id string, req api.UpdateNode) (*api.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateUpdate(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok || n.OwnerID != owner {
		return nil, fmt.Errorf("node %s: %w", id, api.ErrNotFound)
	}
	if req.Name != nil {
		n.Name = *req.Name
	}
	if req.Description != nil {
		n.Description = *req.Description
	}
	if req.Properties != nil {
		n.Properties = cloneValues(req.Properties)
	}
	if req.Defaults != nil {
		n.Defaults = cloneValues(req.Defaults)
	}
	n.UpdatedAt = s.tick()
	return cloneNode(n), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok || n.OwnerID != owner {
		return fmt.Errorf("node %s: %w", id, api.ErrNotFound)
	}
	if children, ok := s.byParent[id]; ok && !children.IsEmpty() {
		return fmt.Errorf("node %s still has children: %w", id, api.ErrConflict)
	}
	s.unindex(n)
	delete(s.nodes, id)
	return nil
}

// Transact implements Store. Transactions are serialized against each
// other; a failed fn restores the pre-transaction snapshot. Writers
// outside any transaction are not blocked — acceptable for a test double,
// the durable backend is SQLiteStore.
func (s *MemoryStore) Transact(ctx context.Context, fn func(Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(memTx{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// memTx is the transactional view handed to Transact bodies. Nested
// Transact calls join the enclosing transaction instead of re-acquiring
// txMu, matching SQLiteStore.
type memTx struct {
	*MemoryStore
}

func (t memTx) Transact(ctx context.Context, fn func(Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(t)
}

type memSnapshot struct {
	nodes       map[string]*api.Node
	byOwner     map[string]*roaring.Bitmap
	byParent    map[string]*roaring.Bitmap
	nodeIntID   map[string]uint32
	intToNodeID []string
	nextIntID   uint32
	lastStamp   int64
}

func (s *MemoryStore) snapshot() *memSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &memSnapshot{
		nodes:       make(map[string]*api.Node, len(s.nodes)),
		byOwner:     make(map[string]*roaring.Bitmap, len(s.byOwner)),
		byParent:    make(map[string]*roaring.Bitmap, len(s.byParent)),
		nodeIntID:   make(map[string]uint32, len(s.nodeIntID)),
		intToNodeID: append([]string(nil), s.intToNodeID...),
		nextIntID:   s.nextIntID,
		lastStamp:   s.lastStamp,
	}
	for id, n := range s.nodes {
		snap.nodes[id] = cloneNode(n)
	}
	for owner, bm := range s.byOwner {
		snap.byOwner[owner] = bm.Clone()
	}
	for parent, bm := range s.byParent {
		snap.byParent[parent] = bm.Clone()
	}
	for id, intID := range s.nodeIntID {
		snap.nodeIntID[id] = intID
	}
	return snap
}

func (s *MemoryStore) restore(snap *memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = snap.nodes
	s.byOwner = snap.byOwner
	s.byParent = snap.byParent
	s.nodeIntID = snap.nodeIntID
	s.intToNodeID = snap.intToNodeID
	s.nextIntID = snap.nextIntID
	s.lastStamp = snap.lastStamp
}

// Verify interface compliance at compile time.
var _ Store = (*MemoryStore)(nil)
