// Package texindex persists texture file sets in SQLite so that later runs
// can query them without resolving the scene again. Each canonical key's
// files are stored as a roaring bitmap over interned file IDs and exposed
// through the "textures" virtual table as (key, path) rows.
package texindex

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/RoaringBitmap/roaring"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/texmap/internal/texture"
)

const schema = `
CREATE TABLE IF NOT EXISTS texture_files (
	id INTEGER PRIMARY KEY,
	path TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS texture_sets (
	key TEXT PRIMARY KEY,
	bitmap BLOB NOT NULL
) WITHOUT ROWID;
`

// Index is an on-disk texture file index.
type Index struct {
	db   *sql.DB
	id   string
	path string
	mod  *texturesModule
}

// Open opens (creating if needed) the index database at path.
func Open(path string) (*Index, error) {
	mod, err := register()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", abs)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	// The virtual table reads through a second connection while the
	// outer query holds the first.
	db.SetMaxOpenConns(2)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}

	// The ID is persisted in the table definition, so it must be stable
	// across processes and a bare SQL identifier.
	id := fmt.Sprintf("idx%x", sha256.Sum256([]byte(abs)))[:19]
	mod.registerDB(id, db)
	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS textures USING %s(%s)", moduleName, id)
	if _, err := db.Exec(stmt); err != nil {
		mod.unregisterDB(id)
		_ = db.Close()
		return nil, fmt.Errorf("create textures table: %w", err)
	}
	return &Index{db: db, id: id, path: abs, mod: mod}, nil
}

// Path returns the absolute path of the database.
func (x *Index) Path() string { return x.path }

// Close closes the database.
func (x *Index) Close() error {
	x.mod.unregisterDB(x.id)
	return x.db.Close()
}

// Store replaces the content of the index with files.
func (x *Index) Store(files *texture.AssetSetMap) error {
	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("begin store: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM texture_sets`); err != nil {
		return fmt.Errorf("clear texture_sets: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM texture_files`); err != nil {
		return fmt.Errorf("clear texture_files: %w", err)
	}

	ids := make(map[string]uint32)
	for i, p := range files.Reduce() {
		ids[p] = uint32(i)
		if _, err := tx.Exec(`INSERT INTO texture_files (id, path) VALUES (?, ?)`, int64(i), p); err != nil {
			return fmt.Errorf("insert file %s: %w", p, err)
		}
	}
	for _, key := range files.Keys() {
		set, _ := files.Get(key)
		rb := roaring.New()
		for f := range set {
			rb.Add(ids[f])
		}
		blob, err := rb.ToBytes()
		if err != nil {
			return fmt.Errorf("serialize %s: %w", key, err)
		}
		if _, err := tx.Exec(`INSERT INTO texture_sets (key, bitmap) VALUES (?, ?)`, key, blob); err != nil {
			return fmt.Errorf("insert set %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit store: %w", err)
	}
	return nil
}

// Load returns every stored set. Keys without files are kept.
func (x *Index) Load() (*texture.AssetSetMap, error) {
	out := texture.NewAssetSetMap()
	rows, err := x.db.Query(`SELECT key FROM texture_sets`)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			_ = rows.Close()
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	for _, k := range keys {
		out.GetOrInsert(k)
	}

	matched, err := x.Query("*")
	if err != nil {
		return nil, err
	}
	out.Update(matched)
	return out, nil
}

// Query returns the sets whose key matches the GLOB pattern. Keys without
// files do not appear.
func (x *Index) Query(glob string) (*texture.AssetSetMap, error) {
	rows, err := x.db.Query(`SELECT key, path FROM textures WHERE key GLOB ?`, glob)
	if err != nil {
		return nil, fmt.Errorf("query textures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := texture.NewAssetSetMap()
	for rows.Next() {
		var key, path string
		if err := rows.Scan(&key, &path); err != nil {
			return nil, fmt.Errorf("scan textures: %w", err)
		}
		out.Add(key, path)
	}
	return out, rows.Err()
}

// Owners returns the keys whose sets contain path, sorted.
func (x *Index) Owners(path string) ([]string, error) {
	rows, err := x.db.Query(`SELECT DISTINCT key FROM textures WHERE path = ? ORDER BY key`, path)
	if err != nil {
		return nil, fmt.Errorf("query owners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
