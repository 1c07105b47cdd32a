package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndGet(t *testing.T) {
	j := openTestJournal(t)

	run, err := j.Record(Entry{
		Op:      "collect",
		Forward: map[string]string{"/proj/a.png": "/dest/a.png"},
		Reverse: map[string]string{"/dest/a.png": "/proj/a.png"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, int64(1), run.Seq)

	got, err := j.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "collect", got.Op)
	assert.Equal(t, map[string]string{"/proj/a.png": "/dest/a.png"}, got.Forward)
	assert.Equal(t, map[string]string{"/dest/a.png": "/proj/a.png"}, got.Reverse)
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, 0)

	_, err = j.Get("missing")
	assert.ErrorIs(t, err, ErrNoRun)
}

func TestRunsNewestFirst(t *testing.T) {
	j := openTestJournal(t)
	first, err := j.Record(Entry{Op: OpRemap})
	require.NoError(t, err)
	second, err := j.Record(Entry{Op: "collect"})
	require.NoError(t, err)

	runs, err := j.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Empty(t, runs[0].Forward)
}

func TestLatestUndoable(t *testing.T) {
	j := openTestJournal(t)

	_, err := j.LatestUndoable()
	assert.ErrorIs(t, err, ErrNoRun)

	first, err := j.Record(Entry{Op: OpRemap, Reverse: map[string]string{"/b": "/a"}})
	require.NoError(t, err)
	second, err := j.Record(Entry{Op: "collect", Reverse: map[string]string{"/d": "/c"}})
	require.NoError(t, err)

	latest, err := j.LatestUndoable()
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = j.Record(Entry{Op: OpUndo, Undoes: second.ID, Forward: latest.Reverse})
	require.NoError(t, err)
	undone, err := j.Undone(second.ID)
	require.NoError(t, err)
	assert.True(t, undone)

	latest, err = j.LatestUndoable()
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)

	_, err = j.Record(Entry{Op: OpUndo, Undoes: first.ID})
	require.NoError(t, err)
	_, err = j.LatestUndoable()
	assert.ErrorIs(t, err, ErrNoRun)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	run, err := j.Record(Entry{Op: OpRemap, Forward: map[string]string{"/a": "/b"}})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()
	got, err := j.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"/a": "/b"}, got.Forward)
	assert.Equal(t, path, j.Path())
}
