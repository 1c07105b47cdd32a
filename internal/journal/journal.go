// Package journal records the relocations applied to a scene so they can be
// listed and undone later.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNoRun is returned when a run does not exist or nothing is left to undo.
var ErrNoRun = errors.New("no such run")

// Operation names.
const (
	OpRemap   = "remap"
	OpCollect = "collect"
	// OpUndo runs revert another run.
	OpUndo = "undo"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	op TEXT NOT NULL,
	undoes TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pairs (
	run_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	src TEXT NOT NULL,
	dst TEXT NOT NULL,
	PRIMARY KEY (run_id, direction, src)
) WITHOUT ROWID;
`

const (
	dirForward = "forward"
	dirReverse = "reverse"
)

// Entry is what a caller records.
type Entry struct {
	Op string
	// Undoes is the ID of the run this entry reverts, if any.
	Undoes  string
	Forward map[string]string
	Reverse map[string]string
}

// Run is a recorded entry.
type Run struct {
	Entry
	ID        string
	Seq       int64
	CreatedAt time.Time
}

// Journal is a SQLite-backed relocation log.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db, path: path}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Record stores e as a new run.
func (j *Journal) Record(e Entry) (*Run, error) {
	run := &Run{Entry: e, ID: uuid.NewString(), CreatedAt: time.Now().UTC()}

	tx, err := j.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`INSERT INTO runs (id, op, undoes, created_at) VALUES (?, ?, ?, ?)`,
		run.ID, e.Op, e.Undoes, run.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	if run.Seq, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("run seq: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO pairs (run_id, direction, src, dst) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare pairs: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for dir, m := range map[string]map[string]string{dirForward: e.Forward, dirReverse: e.Reverse} {
		for src, dst := range m {
			if _, err := stmt.Exec(run.ID, dir, src, dst); err != nil {
				return nil, fmt.Errorf("insert pair: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record: %w", err)
	}
	return run, nil
}

// Get returns the run with the given ID, wrapping ErrNoRun when absent.
func (j *Journal) Get(id string) (*Run, error) {
	row := j.db.QueryRow(`SELECT seq, id, op, undoes, created_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNoRun)
	}
	if err != nil {
		return nil, err
	}
	if err := j.loadPairs(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Runs returns every run, newest first.
func (j *Journal) Runs() ([]*Run, error) {
	rows, err := j.db.Query(`SELECT seq, id, op, undoes, created_at FROM runs ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	for _, run := range runs {
		if err := j.loadPairs(run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// LatestUndoable returns the newest run that is neither an undo nor already
// undone.
func (j *Journal) LatestUndoable() (*Run, error) {
	var id string
	err := j.db.QueryRow(`
		SELECT r.id FROM runs r
		WHERE r.op != ? AND NOT EXISTS (SELECT 1 FROM runs u WHERE u.undoes = r.id)
		ORDER BY r.seq DESC LIMIT 1`, OpUndo).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("nothing to undo: %w", ErrNoRun)
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	return j.Get(id)
}

// Undone reports whether some run reverts id.
func (j *Journal) Undone(id string) (bool, error) {
	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE undoes = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("query undo of %s: %w", id, err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run     Run
		created int64
	)
	if err := s.Scan(&run.Seq, &run.ID, &run.Op, &run.Undoes, &created); err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	return &run, nil
}

func (j *Journal) loadPairs(run *Run) error {
	rows, err := j.db.Query(`SELECT direction, src, dst FROM pairs WHERE run_id = ?`, run.ID)
	if err != nil {
		return fmt.Errorf("query pairs of %s: %w", run.ID, err)
	}
	defer func() { _ = rows.Close() }()

	run.Forward = make(map[string]string)
	run.Reverse = make(map[string]string)
	for rows.Next() {
		var dir, src, dst string
		if err := rows.Scan(&dir, &src, &dst); err != nil {
			return fmt.Errorf("scan pair: %w", err)
		}
		if dir == dirForward {
			run.Forward[src] = dst
		} else {
			run.Reverse[src] = dst
		}
	}
	return rows.Err()
}
