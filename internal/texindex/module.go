package texindex

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"modernc.org/sqlite/vtab"
)

// moduleName is the SQL module behind the textures virtual table.
const moduleName = "texmap_textures"

var (
	once      sync.Once
	singleton *texturesModule
	initErr   error
)

// texturesModule implements vtab.Module. The sqlite driver registers modules
// process-wide, so one instance serves every open index, keyed by the ID
// passed in CREATE VIRTUAL TABLE ... USING texmap_textures(id).
type texturesModule struct {
	mu  sync.RWMutex
	dbs map[string]*sql.DB
}

func register() (*texturesModule, error) {
	once.Do(func() {
		singleton = &texturesModule{dbs: make(map[string]*sql.DB)}
		if err := vtab.RegisterModule(nil, moduleName, singleton); err != nil {
			initErr = fmt.Errorf("register %s: %w", moduleName, err)
			singleton = nil
		}
	})
	return singleton, initErr
}

func (m *texturesModule) registerDB(id string, db *sql.DB) {
	m.mu.Lock()
	m.dbs[id] = db
	m.mu.Unlock()
}

func (m *texturesModule) unregisterDB(id string) {
	m.mu.Lock()
	delete(m.dbs, id)
	m.mu.Unlock()
}

// Create declares the (key, path) table. args are module name, database
// name, table name, then the arguments inside the parentheses.
func (m *texturesModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("%s: missing index ID argument", moduleName)
	}
	id := strings.TrimSpace(args[3])

	m.mu.RLock()
	db, ok := m.dbs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: unknown index ID %q", moduleName, id)
	}

	if err := ctx.Declare("CREATE TABLE x(key TEXT, path TEXT)"); err != nil {
		return nil, err
	}
	return &texturesTable{db: db}, nil
}

func (m *texturesModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Create(ctx, args)
}

type texturesTable struct {
	db *sql.DB
}

// Index numbers chosen by BestIndex.
const (
	scanAll = iota
	keyEQ
	keyLIKE
	keyGLOB
)

func (t *texturesTable) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable || c.Column != 0 {
			continue
		}
		switch c.Op {
		case vtab.OpEQ:
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = keyEQ
			info.EstimatedCost = 1
			info.EstimatedRows = 10
			return nil
		case vtab.OpLIKE:
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = keyLIKE
			info.EstimatedCost = 100
			info.EstimatedRows = 100
			return nil
		case vtab.OpGLOB:
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = keyGLOB
			info.EstimatedCost = 100
			info.EstimatedRows = 100
			return nil
		}
	}
	info.IdxNum = scanAll
	info.EstimatedCost = 1e6
	info.EstimatedRows = 1e6
	return nil
}

func (t *texturesTable) Open() (vtab.Cursor, error) {
	return &texturesCursor{table: t}, nil
}

func (t *texturesTable) Disconnect() error { return nil }
func (t *texturesTable) Destroy() error    { return nil }

type texturesRow struct {
	key  string
	path string
}

type texturesCursor struct {
	table *texturesTable
	rows  []texturesRow
	pos   int
}

func (c *texturesCursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = c.rows[:0]
	c.pos = 0

	where, arg := "", any(nil)
	if idxNum != scanAll {
		s, ok := vals[0].(string)
		if !ok {
			return nil
		}
		arg = s
		switch idxNum {
		case keyEQ:
			where = " WHERE key = ?"
		case keyLIKE:
			where = " WHERE key LIKE ?"
		case keyGLOB:
			where = " WHERE key GLOB ?"
		}
	}
	return c.load(where, arg)
}

// load reads the matching (key, bitmap) pairs, then expands the bitmaps.
// The sets are materialized before expansion because expanding needs a
// second connection.
func (c *texturesCursor) load(where string, arg any) error {
	type entry struct {
		key  string
		blob []byte
	}

	query := "SELECT key, bitmap FROM texture_sets" + where + " ORDER BY key"
	var (
		rows *sql.Rows
		err  error
	)
	if where == "" {
		rows, err = c.table.db.Query(query)
	} else {
		rows, err = c.table.db.Query(query, arg)
	}
	if err != nil {
		return fmt.Errorf("scan texture_sets: %w", err)
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.blob); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan texture_sets row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("scan texture_sets rows: %w", err)
	}
	_ = rows.Close()

	for _, e := range entries {
		paths, err := expandBitmap(c.table.db, e.blob)
		if err != nil {
			return fmt.Errorf("expand %s: %w", e.key, err)
		}
		for _, p := range paths {
			c.rows = append(c.rows, texturesRow{key: e.key, path: p})
		}
	}
	return nil
}

// expandBitmap resolves the file IDs of a serialized bitmap to paths, in
// path order.
func expandBitmap(db *sql.DB, blob []byte) ([]string, error) {
	rb := roaring.New()
	if err := rb.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("unmarshal bitmap: %w", err)
	}
	if rb.IsEmpty() {
		return nil, nil
	}

	ids := rb.ToArray()
	args := make([]any, len(ids))
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("SELECT path FROM texture_files WHERE id IN (%s) ORDER BY path",
		strings.Join(placeholders, ","))
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve texture_files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if len(paths) != len(ids) {
		return paths, errors.Join(rows.Err(), fmt.Errorf("%d of %d file IDs unresolved", len(ids)-len(paths), len(ids)))
	}
	return paths, rows.Err()
}

func (c *texturesCursor) Next() error {
	c.pos++
	return nil
}

func (c *texturesCursor) Eof() bool {
	return c.pos >= len(c.rows)
}

func (c *texturesCursor) Column(col int) (vtab.Value, error) {
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	switch col {
	case 0:
		return c.rows[c.pos].key, nil
	case 1:
		return c.rows[c.pos].path, nil
	}
	return nil, nil
}

func (c *texturesCursor) Rowid() (int64, error) {
	return int64(c.pos), nil
}

func (c *texturesCursor) Close() error {
	c.rows = nil
	return nil
}
