package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/texmap/api"
)

func TestJSONDoc(t *testing.T) {
	doc, err := parseJSONDoc([]byte(`{
  "version": 2,
  "plugins": ["redshift4maya", "mtoa"],
  "workspace": {"root": "/proj"},
  "nodes": [{"name": "diffuse", "kind": "file"}, {"name": "bump", "kind": "RedshiftNormalMap"}]
}`))
	require.NoError(t, err)

	v, ok := doc.first(jsonVersion)
	assert.True(t, ok)
	assert.Equal(t, "2", stringify(v))

	assert.Equal(t, []string{"redshift4maya", "mtoa"}, doc.scalars(jsonPlugins))

	ws, err := doc.workspace()
	require.NoError(t, err)
	assert.Equal(t, &api.Workspace{Root: "/proj"}, ws)

	nodes, err := doc.objects(jsonNodes, "node")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "RedshiftNormalMap", nodes[1]["kind"])
}

func TestJSONDoc_MissingSections(t *testing.T) {
	doc, err := parseJSONDoc([]byte(`{}`))
	require.NoError(t, err)

	_, ok := doc.first(jsonVersion)
	assert.False(t, ok)
	assert.Nil(t, doc.scalars(jsonPlugins))

	ws, err := doc.workspace()
	require.NoError(t, err)
	assert.Nil(t, ws)

	nodes, err := doc.objects(jsonNodes, "node")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestDecodeJSON_Shapes(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"node not an object", `{"nodes": ["diffuse"]}`, "node 0 must be an object"},
		{"workspace not an object", `{"workspace": "/proj"}`, "workspace must be an object"},
		{"not json", `{"nodes": [`, "decode json scene"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJSON([]byte(tt.input))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestDecodeJSON_ScalarAttrs(t *testing.T) {
	scene, err := DecodeJSON([]byte(`{"nodes": [{"name": "n", "kind": "file", "selected": "true",
  "attrs": {"useFrameExtension": true, "uvTilingMode": 3, "frameOffset": 1.5}}]}`))
	require.NoError(t, err)
	require.Len(t, scene.Nodes, 1)
	n := scene.Nodes[0]
	assert.True(t, n.Selected)
	assert.Equal(t, map[string]string{
		"useFrameExtension": "true",
		"uvTilingMode":      "3",
		"frameOffset":       "1.5",
	}, n.Attrs)
}
