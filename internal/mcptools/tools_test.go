package mcptools

import (
	"context"
	"path/filepath"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/texmap/internal/graph"
	"github.com/agentic-research/texmap/internal/journal"
	"github.com/agentic-research/texmap/internal/texture"
)

type harness struct {
	tools *Tools
	store *graph.MemoryStore
	fs    billy.Filesystem
	j     *journal.Journal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := graph.NewMemoryStore()
	fs := memfs.New()
	for _, p := range []string{"/proj/a.png", "/proj/b.png"} {
		require.NoError(t, util.WriteFile(fs, p, []byte(p), 0o644))
	}
	require.NoError(t, fs.MkdirAll("/dest", 0o755))
	for id, path := range map[string]string{"a": "/proj/a.png", "b": "/proj/b.png"} {
		require.NoError(t, store.AddNode(&graph.Node{
			ID:         id,
			Kind:       texture.KindFile,
			Selected:   id == "a",
			Properties: map[string][]byte{texture.AttrFileTextureName: []byte(path)},
		}))
	}

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	env := texture.NewEnv(store, fs, nil)
	mapper := texture.NewMapper(env, texture.DefaultVariants()...)
	return &harness{
		tools: New(mapper, j, texture.DefaultTextureOptions(), nil),
		store: store,
		fs:    fs,
		j:     j,
	}
}

func request(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultDoc(t *testing.T, res *mcp.CallToolResult) any {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	require.False(t, res.IsError, text.Text)
	doc, err := oj.ParseString(text.Text)
	require.NoError(t, err)
	return doc
}

func TestTextureFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.tools.handleTextureFiles(ctx, request("texture_files", nil))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"/proj/a.png": []any{"/proj/a.png"},
		"/proj/b.png": []any{"/proj/b.png"},
	}, resultDoc(t, res))

	res, err = h.tools.handleTextureFiles(ctx, request("texture_files", map[string]any{
		"selection": true,
		"flat":      true,
	}))
	require.NoError(t, err)
	assert.Equal(t, []any{"/proj/a.png"}, resultDoc(t, res))
}

func TestTextureMapping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.tools.handleTextureMapping(ctx, request("texture_mapping", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError, "new_dir is required")

	res, err = h.tools.handleTextureMapping(ctx, request("texture_mapping", map[string]any{"new_dir": "/dest"}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"/proj/a.png": "/dest/a.png",
		"/proj/b.png": "/dest/b.png",
	}, resultDoc(t, res))
}

func TestCollectTextures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.tools.handleCollect(ctx, request("collect_textures", map[string]any{"dest": "/missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.tools.handleCollect(ctx, request("collect_textures", map[string]any{"dest": "/dest"}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"/proj/a.png": "/dest/a.png",
		"/proj/b.png": "/dest/b.png",
	}, resultDoc(t, res))

	data, err := util.ReadFile(h.fs, "/dest/a.png")
	require.NoError(t, err)
	assert.Equal(t, "/proj/a.png", string(data))
}

func TestMapTextures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.tools.handleMapTextures(ctx, request("map_textures", map[string]any{"mapping": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.tools.handleMapTextures(ctx, request("map_textures", map[string]any{
		"mapping": map[string]any{"/proj/a.png": "/dest/a.png"},
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"/dest/a.png": "/proj/a.png"}, resultDoc(t, res))

	v, err := graph.AttrString(h.store, "a", texture.AttrFileTextureName)
	require.NoError(t, err)
	assert.Equal(t, "/dest/a.png", v)

	run, err := h.j.LatestUndoable()
	require.NoError(t, err)
	assert.Equal(t, journal.OpRemap, run.Op)
	assert.Equal(t, map[string]string{"/proj/a.png": "/dest/a.png"}, run.Forward)
	assert.Equal(t, map[string]string{"/dest/a.png": "/proj/a.png"}, run.Reverse)
}

func TestMapTextures_Templated(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.AddNode(&graph.Node{
		ID:   "seq",
		Kind: texture.KindFile,
		Properties: map[string][]byte{
			texture.AttrFileTextureName: []byte("/proj/shot.0007.exr"),
		},
	}))

	res, err := h.tools.handleMapTextures(context.Background(), request("map_textures", map[string]any{
		"mapping":   map[string]any{"/proj/shot.<f>.exr": "/seq/shot.<f>.exr"},
		"templated": true,
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"/seq/shot.0007.exr": "/proj/shot.0007.exr"}, resultDoc(t, res))
}

func TestServerRegistersTools(t *testing.T) {
	h := newHarness(t)
	assert.NotNil(t, h.tools.Server("test"))
}
