package graph

import (
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "scene.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_AddAndEnumerate(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.AddNode(&Node{ID: "b", Kind: "file"}))
	require.NoError(t, store.AddNode(&Node{ID: "a", Kind: "file", Selected: true}))
	require.NoError(t, store.AddNode(&Node{ID: "r", Kind: "file", Referenced: true}))
	require.NoError(t, store.AddNode(&Node{ID: "s", Kind: "RedshiftSprite"}))

	ids, err := store.Enumerate("file", Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)

	ids, err = store.Enumerate("file", Filter{IncludeReferenced: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "r"}, ids)

	ids, err = store.Enumerate("file", Filter{SelectionOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestSQLiteStore_ReAddKeepsPosition(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.AddNode(&Node{ID: "first", Kind: "file"}))
	require.NoError(t, store.AddNode(&Node{ID: "second", Kind: "file"}))
	require.NoError(t, store.AddNode(&Node{ID: "first", Kind: "file", Properties: map[string][]byte{"x": []byte("1")}}))

	ids, err := store.Enumerate("file", Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, ids)

	v, err := AttrString(store, "first", "x")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestSQLiteStore_Attributes(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.AddNode(&Node{ID: "f", Kind: "file", Properties: map[string][]byte{
		"fileTextureName": []byte("/proj/a.png"),
		IndexedAttr("explicitUvTiles", 1, "explicitUvTileName"): []byte("/proj/a.1002.png"),
		IndexedAttr("explicitUvTiles", 0, "explicitUvTileName"): []byte("/proj/a.1001.png"),
	}}))

	path, err := AttrString(store, "f", "fileTextureName")
	require.NoError(t, err)
	assert.Equal(t, "/proj/a.png", path)

	_, err = store.GetAttr("f", "missing")
	assert.ErrorIs(t, err, ErrNoAttr)
	_, err = store.GetAttr("ghost", "fileTextureName")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, SetAttrString(store, "f", "fileTextureName", "/dest/a.png"))
	path, err = AttrString(store, "f", "fileTextureName")
	require.NoError(t, err)
	assert.Equal(t, "/dest/a.png", path)

	assert.ErrorIs(t, SetAttrString(store, "ghost", "x", "y"), ErrNotFound)

	has, err := store.HasAttr("f", "fileTextureName")
	require.NoError(t, err)
	assert.True(t, has)

	idx, err := store.AttrIndices("f", "explicitUvTiles")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, idx)
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scene.db")

	store, err := OpenSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.AddNode(&Node{ID: "f", Kind: "file", Properties: map[string][]byte{"fileTextureName": []byte("/a.png")}}))
	require.NoError(t, store.LoadPlugin("redshift4maya"))
	require.NoError(t, SetAttrString(store, "f", "fileTextureName", "/b.png"))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	v, err := AttrString(reopened, "f", "fileTextureName")
	require.NoError(t, err)
	assert.Equal(t, "/b.png", v)
	assert.True(t, reopened.PluginLoaded("redshift4maya"))
	assert.Equal(t, []string{"redshift4maya"}, reopened.Plugins())

	nodes, err := reopened.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "file", nodes[0].Kind)
	assert.Equal(t, []byte("/b.png"), nodes[0].Properties["fileTextureName"])
}

func TestSQLiteStore_CreateNode(t *testing.T) {
	store := openTestStore(t)
	id, err := store.CreateNode("RedshiftNormalMap")
	require.NoError(t, err)
	kind, err := store.Kind(id)
	require.NoError(t, err)
	assert.Equal(t, "RedshiftNormalMap", kind)
}

func TestSQLiteStore_NodesReportsRowError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rowErr := errors.New("disk I/O error")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, kind, selected, referenced FROM nodes")).
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "kind", "selected", "referenced"}).
				AddRow("a", "file", 0, 0).
				AddRow("b", "file", 1, 0).
				RowError(1, rowErr),
		)

	store := &SQLiteStore{db: db}
	nodes, err := store.Nodes()
	assert.ErrorIs(t, err, rowErr)
	assert.Nil(t, nodes)
	assert.NoError(t, mock.ExpectationsWereMet())
}
