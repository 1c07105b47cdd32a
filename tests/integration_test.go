package tests

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/texmap/internal/graph"
	"github.com/agentic-research/texmap/internal/ingest"
	"github.com/agentic-research/texmap/internal/journal"
	"github.com/agentic-research/texmap/internal/texture"
	"github.com/agentic-research/texmap/internal/vfs"
	"github.com/agentic-research/texmap/internal/workspace"
)

const sceneTemplate = `
version = "1"
plugins = ["redshift4maya"]

workspace {
  root = %q
  vars = {
    TEX = %q
  }
}

node "color" {
  kind = "file"
  attrs = {
    fileTextureName = "tex/color.<UDIM>.exr"
    uvTilingMode    = "3"
    colorSpace      = "ACEScg"
  }
}

node "bump" {
  kind = "RedshiftNormalMap"
  attrs = {
    tex0 = "$TEX/bump.<UDIM>.png"
  }
}
`

// testFixture is a project directory holding a scene file, its textures and
// a scene database the scene is imported into.
type testFixture struct {
	dir   string
	db    string
	store *graph.SQLiteStore
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	for _, p := range []string{
		"tex/color.1001.exr", "tex/color.1002.exr", "tex/color.1001.tx",
		"tex/bump.1001.png", "tex/bump.1001.tex", "tex/bump.1001.tx",
	} {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(p), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dest"), 0o755))

	scenePath := filepath.Join(dir, "scene.hcl")
	content := fmt.Sprintf(sceneTemplate, dir, filepath.Join(dir, "tex"))
	require.NoError(t, os.WriteFile(scenePath, []byte(content), 0o644))

	scene, err := ingest.LoadFile(vfs.OS(), scenePath)
	require.NoError(t, err)

	f := &testFixture{dir: dir, db: filepath.Join(dir, "scene.db")}
	f.store, err = graph.OpenSQLiteStore(f.db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.store.Close() })
	require.NoError(t, ingest.Populate(f.store, scene))
	return f
}

func (f *testFixture) path(p string) string { return filepath.Join(f.dir, p) }

func (f *testFixture) mapper() *texture.Mapper {
	ws := workspace.New(f.dir, map[string]string{"TEX": f.path("tex")})
	env := texture.NewEnv(f.store, vfs.OS(), ws)
	return texture.NewMapper(env, texture.DefaultVariants()...)
}

func TestCollectRelocateUndo(t *testing.T) {
	f := newFixture(t)
	m := f.mapper()

	files, err := m.TextureFileList(graph.Filter{}, texture.DefaultTextureOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{
		f.path("tex/bump.1001.png"),
		f.path("tex/bump.1001.tex"),
		f.path("tex/color.1001.exr"),
		f.path("tex/color.1001.tx"),
		f.path("tex/color.1002.exr"),
	}, files, "redshift nodes never pick up .tx companions")

	collected, err := m.Collect(f.path("dest"), nil)
	require.NoError(t, err)
	assert.Equal(t, f.path("dest/color.<UDIM>.exr"), collected[f.path("tex/color.<UDIM>.exr")])
	for _, p := range []string{"color.1001.exr", "color.1002.exr", "color.1001.tx", "bump.1001.png", "bump.1001.tex"} {
		assert.FileExists(t, f.path(filepath.Join("dest", p)))
	}

	reverse, err := m.MapTextures(collected, graph.Filter{})
	require.NoError(t, err)
	assert.Len(t, reverse, 2)

	j, err := journal.Open(f.path(".texmap/journal.db"))
	require.NoError(t, err)
	defer func() { _ = j.Close() }()
	_, err = j.Record(journal.Entry{Op: journal.OpCollect, Forward: reverse.Reverse(), Reverse: reverse})
	require.NoError(t, err)

	// The rewrites live in the database, not only in this process.
	require.NoError(t, f.store.Close())
	f.store, err = graph.OpenSQLiteStore(f.db)
	require.NoError(t, err)

	v, err := graph.AttrString(f.store, "color", texture.AttrFileTextureName)
	require.NoError(t, err)
	assert.Equal(t, f.path("dest/color.<UDIM>.exr"), v)
	cs, err := graph.AttrString(f.store, "color", texture.AttrColorSpace)
	require.NoError(t, err)
	assert.Equal(t, "ACEScg", cs)

	m = f.mapper()
	files, err = m.TextureFileList(graph.Filter{}, texture.DefaultTextureOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{
		f.path("dest/bump.1001.png"),
		f.path("dest/bump.1001.tex"),
		f.path("dest/color.1001.exr"),
		f.path("dest/color.1001.tx"),
		f.path("dest/color.1002.exr"),
	}, files)

	run, err := j.LatestUndoable()
	require.NoError(t, err)
	applied, err := m.MapTextures(texture.Mapping(run.Reverse), graph.Filter{})
	require.NoError(t, err)
	assert.Len(t, applied, 2)

	v, err = graph.AttrString(f.store, "bump", "tex0")
	require.NoError(t, err)
	assert.Equal(t, f.path("tex/bump.<UDIM>.png"), v)
}

func TestRedshiftHiddenWithoutPlugin(t *testing.T) {
	f := newFixture(t)
	store := graph.NewMemoryStore()
	nodes, err := f.store.Nodes()
	require.NoError(t, err)
	for _, n := range nodes {
		require.NoError(t, store.AddNode(n))
	}

	env := texture.NewEnv(store, vfs.OS(), workspace.New(f.dir, map[string]string{"TEX": f.path("tex")}))
	ids, err := texture.NewMapper(env, texture.DefaultVariants()...).Nodes(graph.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"color"}, ids)
}
