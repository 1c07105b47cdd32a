// Package ingest reads scene descriptions and loads them into a graph store.
package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/agentic-research/texmap/api"
	"github.com/agentic-research/texmap/internal/graph"
)

// ErrUnsupportedFormat is returned for scene files that are neither HCL nor JSON.
var ErrUnsupportedFormat = errors.New("unsupported scene format")

// LoadFile reads and decodes the scene at path.
func LoadFile(fs billy.Filesystem, path string) (*api.Scene, error) {
	data, err := util.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	return Decode(path, data)
}

// Decode decodes a scene, choosing the syntax from the extension of name.
func Decode(name string, data []byte) (*api.Scene, error) {
	var (
		scene *api.Scene
		err   error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hcl":
		scene, err = DecodeHCL(name, data)
	case ".json":
		scene, err = DecodeJSON(data)
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}
	if err := validate(scene); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return scene, nil
}

// DecodeHCL decodes an HCL scene. name is used in diagnostics.
func DecodeHCL(name string, data []byte) (*api.Scene, error) {
	if filepath.Ext(name) != ".hcl" {
		name += ".hcl"
	}
	var scene api.Scene
	if err := hclsimple.Decode(name, data, nil, &scene); err != nil {
		return nil, fmt.Errorf("decode hcl scene: %w", err)
	}
	return &scene, nil
}

func validate(scene *api.Scene) error {
	seen := make(map[string]bool, len(scene.Nodes))
	for i, n := range scene.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node %d: missing name", i)
		}
		if n.Kind == "" {
			return fmt.Errorf("node %s: missing kind", n.Name)
		}
		if seen[n.Name] {
			return fmt.Errorf("node %s: duplicate name", n.Name)
		}
		seen[n.Name] = true
	}
	return nil
}

// Populate adds the plugins and nodes of scene to store. Node names become
// node IDs.
func Populate(store graph.Store, scene *api.Scene) error {
	for _, p := range scene.Plugins {
		if err := store.LoadPlugin(p); err != nil {
			return fmt.Errorf("load plugin %s: %w", p, err)
		}
	}
	for _, n := range scene.Nodes {
		props := make(map[string][]byte, len(n.Attrs))
		for k, v := range n.Attrs {
			props[k] = []byte(v)
		}
		err := store.AddNode(&graph.Node{
			ID:         n.Name,
			Kind:       n.Kind,
			Selected:   n.Selected,
			Referenced: n.Referenced,
			Properties: props,
		})
		if err != nil {
			return fmt.Errorf("add node %s: %w", n.Name, err)
		}
	}
	return nil
}

// Dump returns the content of store as a scene.
func Dump(store graph.Store, ws *api.Workspace) (*api.Scene, error) {
	nodes, err := store.Nodes()
	if err != nil {
		return nil, err
	}
	scene := &api.Scene{Version: api.CurrentVersion, Workspace: ws}
	if plugins := store.Plugins(); len(plugins) > 0 {
		scene.Plugins = plugins
	}
	for _, n := range nodes {
		var attrs map[string]string
		if len(n.Properties) > 0 {
			attrs = make(map[string]string, len(n.Properties))
			for k, v := range n.Properties {
				attrs[k] = string(v)
			}
		}
		scene.Nodes = append(scene.Nodes, api.Node{
			Name:       n.ID,
			Kind:       n.Kind,
			Selected:   n.Selected,
			Referenced: n.Referenced,
			Attrs:      attrs,
		})
	}
	return scene, nil
}

// Encode renders scene in the syntax matching the extension of name.
func Encode(name string, scene *api.Scene) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hcl":
		return EncodeHCL(scene), nil
	case ".json":
		return EncodeJSON(scene), nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
}

// SaveFile encodes scene and writes it to path.
func SaveFile(fs billy.Filesystem, path string, scene *api.Scene) error {
	data, err := Encode(path, scene)
	if err != nil {
		return err
	}
	if err := util.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write scene %s: %w", path, err)
	}
	return nil
}

// EncodeHCL renders scene in the HCL syntax DecodeHCL reads.
func EncodeHCL(scene *api.Scene) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	body.SetAttributeValue("version", cty.StringVal(scene.Version))
	if len(scene.Plugins) > 0 {
		vals := make([]cty.Value, len(scene.Plugins))
		for i, p := range scene.Plugins {
			vals[i] = cty.StringVal(p)
		}
		body.SetAttributeValue("plugins", cty.ListVal(vals))
	}
	if ws := scene.Workspace; ws != nil {
		body.AppendNewline()
		wb := body.AppendNewBlock("workspace", nil).Body()
		wb.SetAttributeValue("root", cty.StringVal(ws.Root))
		if len(ws.Vars) > 0 {
			wb.SetAttributeValue("vars", ctyMap(ws.Vars))
		}
	}
	for _, n := range scene.Nodes {
		body.AppendNewline()
		nb := body.AppendNewBlock("node", []string{n.Name}).Body()
		nb.SetAttributeValue("kind", cty.StringVal(n.Kind))
		if n.Selected {
			nb.SetAttributeValue("selected", cty.True)
		}
		if n.Referenced {
			nb.SetAttributeValue("referenced", cty.True)
		}
		if len(n.Attrs) > 0 {
			nb.SetAttributeValue("attrs", ctyMap(n.Attrs))
		}
	}
	return f.Bytes()
}

func ctyMap(m map[string]string) cty.Value {
	vals := make(map[string]cty.Value, len(m))
	for k, v := range m {
		vals[k] = cty.StringVal(v)
	}
	return cty.MapVal(vals)
}
