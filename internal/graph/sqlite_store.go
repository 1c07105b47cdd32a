package graph

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a persistent scene. Every mutation goes straight to the
// database, so attribute rewrites survive across processes.
//
// Node enumeration order is the rowid order of the nodes table, which is
// insertion order; re-adding an existing node keeps its position.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	selected INTEGER NOT NULL DEFAULT 0,
	referenced INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);

CREATE TABLE IF NOT EXISTS attrs (
	node_id TEXT NOT NULL,
	name TEXT NOT NULL,
	value BLOB,
	PRIMARY KEY (node_id, name)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS plugins (
	name TEXT PRIMARY KEY
);
`

// OpenSQLiteStore opens (creating if needed) a scene database.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (g *SQLiteStore) Path() string { return g.dbPath }

// Close closes the database.
func (g *SQLiteStore) Close() error { return g.db.Close() }

// AddNode inserts or replaces a node together with all of its attributes.
func (g *SQLiteStore) AddNode(n *Node) error {
	if n.Kind == "" {
		return fmt.Errorf("add node %q: empty kind", n.ID)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	tx, err := g.db.Begin()
	if err != nil {
		return fmt.Errorf("begin add node: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	_, err = tx.Exec(`INSERT INTO nodes (id, kind, selected, referenced) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, selected = excluded.selected, referenced = excluded.referenced`,
		n.ID, n.Kind, boolInt(n.Selected), boolInt(n.Referenced))
	if err != nil {
		return fmt.Errorf("insert node %s: %w", n.ID, err)
	}
	if _, err := tx.Exec("DELETE FROM attrs WHERE node_id = ?", n.ID); err != nil {
		return fmt.Errorf("clear attrs %s: %w", n.ID, err)
	}

	stmt, err := tx.Prepare("INSERT INTO attrs (node_id, name, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare attr insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for name, value := range n.Properties {
		if _, err := stmt.Exec(n.ID, name, value); err != nil {
			return fmt.Errorf("insert attr %s.%s: %w", n.ID, name, err)
		}
	}
	return tx.Commit()
}

// Enumerate implements Graph.
func (g *SQLiteStore) Enumerate(kind string, f Filter) ([]string, error) {
	query := "SELECT id FROM nodes WHERE kind = ?"
	if f.SelectionOnly {
		query += " AND selected = 1"
	}
	if !f.IncludeReferenced {
		query += " AND referenced = 0"
	}
	query += " ORDER BY rowid"

	rows, err := g.db.Query(query, kind)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", kind, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Kind implements Graph.
func (g *SQLiteStore) Kind(id string) (string, error) {
	var kind string
	err := g.db.QueryRow("SELECT kind FROM nodes WHERE id = ?", id).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return kind, err
}

func (g *SQLiteStore) nodeExists(id string) error {
	_, err := g.Kind(id)
	return err
}

// GetAttr implements Graph.
func (g *SQLiteStore) GetAttr(id, name string) ([]byte, error) {
	var value []byte
	err := g.db.QueryRow("SELECT value FROM attrs WHERE node_id = ? AND name = ?", id, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		if err := g.nodeExists(id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s.%s: %w", id, name, ErrNoAttr)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// SetAttr implements Graph.
func (g *SQLiteStore) SetAttr(id, name string, value []byte) error {
	if err := g.nodeExists(id); err != nil {
		return err
	}
	_, err := g.db.Exec(`INSERT INTO attrs (node_id, name, value) VALUES (?, ?, ?)
		ON CONFLICT(node_id, name) DO UPDATE SET value = excluded.value`, id, name, value)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", id, name, err)
	}
	return nil
}

// HasAttr implements Graph.
func (g *SQLiteStore) HasAttr(id, name string) (bool, error) {
	if err := g.nodeExists(id); err != nil {
		return false, err
	}
	var count int
	err := g.db.QueryRow("SELECT count(*) FROM attrs WHERE node_id = ? AND name = ?", id, name).Scan(&count)
	return count > 0, err
}

// AttrIndices implements Graph.
func (g *SQLiteStore) AttrIndices(id, array string) ([]int, error) {
	if err := g.nodeExists(id); err != nil {
		return nil, err
	}
	rows, err := g.db.Query("SELECT name FROM attrs WHERE node_id = ? AND substr(name, 1, ?) = ?",
		id, len(array)+1, array+"[")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return indicesOf(names, array), nil
}

// CreateNode implements Graph.
func (g *SQLiteStore) CreateNode(kind string) (string, error) {
	n := &Node{Kind: kind}
	if err := g.AddNode(n); err != nil {
		return "", err
	}
	return n.ID, nil
}

// LoadPlugin records a host plugin as loaded.
func (g *SQLiteStore) LoadPlugin(name string) error {
	_, err := g.db.Exec("INSERT OR IGNORE INTO plugins (name) VALUES (?)", name)
	return err
}

// PluginLoaded implements Graph.
func (g *SQLiteStore) PluginLoaded(name string) bool {
	var count int
	if err := g.db.QueryRow("SELECT count(*) FROM plugins WHERE name = ?", name).Scan(&count); err != nil {
		return false
	}
	return count > 0
}

// Plugins returns the loaded plugins, sorted.
func (g *SQLiteStore) Plugins() []string {
	rows, err := g.db.Query("SELECT name FROM plugins")
	if err != nil {
		return nil
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var name string
		if rows.Scan(&name) == nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Nodes returns every node with its attributes, in enumeration order.
func (g *SQLiteStore) Nodes() ([]*Node, error) {
	rows, err := g.db.Query("SELECT id, kind, selected, referenced FROM nodes ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	var nodes []*Node
	byID := make(map[string]*Node)
	for rows.Next() {
		var sel, ref int
		n := &Node{Properties: make(map[string][]byte)}
		if err := rows.Scan(&n.ID, &n.Kind, &sel, &ref); err != nil {
			_ = rows.Close()
			return nil, err
		}
		n.Selected, n.Referenced = sel == 1, ref == 1
		nodes = append(nodes, n)
		byID[n.ID] = n
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("read nodes: %w", err)
	}
	_ = rows.Close()

	attrRows, err := g.db.Query("SELECT node_id, name, value FROM attrs")
	if err != nil {
		return nil, err
	}
	defer func() { _ = attrRows.Close() }()
	for attrRows.Next() {
		var id, name string
		var value []byte
		if err := attrRows.Scan(&id, &name, &value); err != nil {
			return nil, err
		}
		if n, ok := byID[id]; ok {
			n.Properties[name] = value
		}
	}
	return nodes, attrRows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
