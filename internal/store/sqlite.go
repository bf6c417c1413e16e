package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/agentic-research/stratum/api"
)

// SQLiteStore is the durable node store.
//
// One table holds the whole tree; properties and defaults are embedded as
// JSON text columns (the Value codec keeps type tags intact through the
// round trip). parent_id carries a RESTRICT foreign key: the engine itself
// refuses to orphan a subtree, independent of the tree layer doing its
// leaves-first walk. That constraint is a net, not the contract — the
// MemoryStore enforces the same rule in Go.
//
// Mutations run inside a transaction even when the caller did not open
// one, so a create racing a delete of its intended parent fails cleanly
// instead of inserting an orphan.
type SQLiteStore struct {
	db   *sql.DB
	q    querier // db outside a transaction, *sql.Tx inside
	log  zerolog.Logger
	inTx bool
}

// querier is the subset of *sql.DB and *sql.Tx the store uses.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	name        TEXT NOT NULL,
	node_type   TEXT NOT NULL,
	parent_id   TEXT REFERENCES nodes(id) ON DELETE RESTRICT,
	description TEXT NOT NULL DEFAULT '',
	properties  TEXT NOT NULL DEFAULT '{}',
	defaults    TEXT NOT NULL DEFAULT '{}',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_owner  ON nodes(owner_id);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);
`

// OpenSQLiteStore opens (creating if needed) the node database at path.
func OpenSQLiteStore(path string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// Single writer: SQLite serializes writes anyway, and one connection
	// sidesteps SQLITE_BUSY between our own transactions.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close() // ignore error
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close() // ignore error
		return nil, fmt.Errorf("create nodes table: %w", err)
	}

	return &SQLiteStore{db: db, q: db, log: log}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.inTx {
		return errors.New("close inside transaction")
	}
	return s.db.Close()
}

// Transact implements Store. Nested calls join the enclosing transaction.
func (s *SQLiteStore) Transact(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internalErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	txStore := &SQLiteStore{db: s.db, q: tx, log: s.log, inTx: true}
	if err := fn(txStore); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return internalErr("commit transaction", err)
	}
	return nil
}

// transacted runs fn inside a transaction, reusing the current one if the
// store is already transactional.
func (s *SQLiteStore) transacted(ctx context.Context, fn func(*SQLiteStore) error) error {
	return s.Transact(ctx, func(st Store) error {
		return fn(st.(*SQLiteStore))
	})
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, owner string, req api.CreateNode) (*api.Node, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	var node *api.Node
	err := s.transacted(ctx, func(tx *SQLiteStore) error {
		if req.ParentID != "" {
			var parentOwner string
			err := tx.q.QueryRowContext(ctx,
				"SELECT owner_id FROM nodes WHERE id = ?", req.ParentID).Scan(&parentOwner)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("parent node %s: %w", req.ParentID, api.ErrNotFound)
			}
			if err != nil {
				return internalErr("resolve parent", err)
			}
			if parentOwner != owner {
				return fmt.Errorf("parent node %s belongs to another owner: %w", req.ParentID, api.ErrAccessDenied)
			}
		}

		id, err := newID()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
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
		props, err := encodeValues(n.Properties)
		if err != nil {
			return err
		}
		defs, err := encodeValues(n.Defaults)
		if err != nil {
			return err
		}
		_, err = tx.q.ExecContext(ctx, `
			INSERT INTO nodes (id, owner_id, name, node_type, parent_id, description, properties, defaults, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.OwnerID, n.Name, string(n.Type), nullable(n.ParentID), n.Description,
			props, defs, n.CreatedAt.UnixNano(), n.UpdatedAt.UnixNano())
		if err != nil {
			return internalErr("insert node", err)
		}
		node = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("id", node.ID).Str("owner", owner).Str("parent", req.ParentID).Msg("node created")
	return node, nil
}

const nodeColumns = "id, owner_id, name, node_type, parent_id, description, properties, defaults, created_at, updated_at"

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, owner, id string) (*api.Node, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE id = ? AND owner_id = ?", id, owner)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %s: %w", id, api.ErrNotFound)
	}
	if err != nil {
		return nil, internalErr("get node", err)
	}
	return n, nil
}

// ListRoots implements Store.
func (s *SQLiteStore) ListRoots(ctx context.Context, owner string) ([]api.Node, error) {
	return s.list(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE owner_id = ? AND parent_id IS NULL ORDER BY created_at DESC, id", owner)
}

// ListChildren implements Store.
func (s *SQLiteStore) ListChildren(ctx context.Context, owner, parentID string) ([]api.Node, error) {
	return s.list(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE owner_id = ? AND parent_id = ? ORDER BY created_at DESC, id", owner, parentID)
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]api.Node, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, internalErr("list nodes", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var nodes []api.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, internalErr("scan node", err)
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, internalErr("list nodes", err)
	}
	return nodes, nil
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, owner, id string, req api.UpdateNode) (*api.Node, error) {
	if err := validateUpdate(req); err != nil {
		return nil, err
	}

	var node *api.Node
	err := s.transacted(ctx, func(tx *SQLiteStore) error {
		n, err := tx.Get(ctx, owner, id)
		if err != nil {
			return err
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
		n.UpdatedAt = time.Now().UTC()

		props, err := encodeValues(n.Properties)
		if err != nil {
			return err
		}
		defs, err := encodeValues(n.Defaults)
		if err != nil {
			return err
		}
		_, err = tx.q.ExecContext(ctx, `
			UPDATE nodes SET name = ?, description = ?, properties = ?, defaults = ?, updated_at = ?
			WHERE id = ? AND owner_id = ?`,
			n.Name, n.Description, props, defs, n.UpdatedAt.UnixNano(), id, owner)
		if err != nil {
			return internalErr("update node", err)
		}
		node = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, owner, id string) error {
	err := s.transacted(ctx, func(tx *SQLiteStore) error {
		// Ownership first. The child check below is not owner-scoped, so it
		// must never run for a node the caller cannot see — a conflict answer
		// would disclose the node's existence.
		var exists bool
		err := tx.q.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM nodes WHERE id = ? AND owner_id = ?)", id, owner).Scan(&exists)
		if err != nil {
			return internalErr("check node", err)
		}
		if !exists {
			return fmt.Errorf("node %s: %w", id, api.ErrNotFound)
		}

		var hasChildren bool
		err = tx.q.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM nodes WHERE parent_id = ?)", id).Scan(&hasChildren)
		if err != nil {
			return internalErr("check children", err)
		}
		if hasChildren {
			return fmt.Errorf("node %s still has children: %w", id, api.ErrConflict)
		}

		res, err := tx.q.ExecContext(ctx,
			"DELETE FROM nodes WHERE id = ? AND owner_id = ?", id, owner)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("node %s still has children: %w", id, api.ErrConflict)
			}
			return internalErr("delete node", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return internalErr("delete node", err)
		}
		if affected == 0 {
			return fmt.Errorf("node %s: %w", id, api.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Debug().Str("id", id).Str("owner", owner).Msg("node deleted")
	return nil
}

// ---------------------------------------------------------------------------
// Row mapping
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*api.Node, error) {
	var (
		n                  api.Node
		nodeType           string
		parentID           sql.NullString
		props, defs        string
		createdAt, updated int64
	)
	err := row.Scan(&n.ID, &n.OwnerID, &n.Name, &nodeType, &parentID, &n.Description,
		&props, &defs, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	n.Type = api.NodeType(nodeType)
	if parentID.Valid {
		n.ParentID = parentID.String
	}
	if n.Properties, err = decodeValues(props); err != nil {
		return nil, err
	}
	if n.Defaults, err = decodeValues(defs); err != nil {
		return nil, err
	}
	n.CreatedAt = time.Unix(0, createdAt).UTC()
	n.UpdatedAt = time.Unix(0, updated).UTC()
	return &n, nil
}

// isForeignKeyViolation matches the RESTRICT net by driver error code,
// not message text.
func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// encodeValues serializes a value map to JSON text with sorted keys.
func encodeValues(m map[string]api.Value) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return "", internalErr("encode key", err)
		}
		b.Write(kb)
		b.WriteByte(':')
		vb, err := m[k].MarshalJSON()
		if err != nil {
			return "", internalErr("encode value", err)
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.String(), nil
}

func decodeValues(text string) (map[string]api.Value, error) {
	m := map[string]api.Value{}
	if text == "" || text == "{}" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, internalErr("decode values", err)
	}
	return m, nil
}

// Verify interface compliance at compile time.
var _ Store = (*SQLiteStore)(nil)
