package ingest

import (
	"fmt"
	"strconv"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/texmap/api"
)

// Locations of the scene sections in a JSON document.
var (
	jsonVersion   = jp.MustParseString("$.version")
	jsonPlugins   = jp.MustParseString("$.plugins[*]")
	jsonWorkspace = jp.MustParseString("$.workspace")
	jsonNodes     = jp.MustParseString("$.nodes[*]")
)

// jsonDoc is a JSON scene parsed by oj.
type jsonDoc struct {
	root any
}

func parseJSONDoc(data []byte) (*jsonDoc, error) {
	root, err := oj.Parse(data)
	if err != nil {
		return nil, err
	}
	return &jsonDoc{root: root}, nil
}

// first returns the first value at x.
func (d *jsonDoc) first(x jp.Expr) (any, bool) {
	res := x.Get(d.root)
	if len(res) == 0 {
		return nil, false
	}
	return res[0], true
}

// scalars returns every value at x as a string.
func (d *jsonDoc) scalars(x jp.Expr) []string {
	res := x.Get(d.root)
	if len(res) == 0 {
		return nil
	}
	out := make([]string, len(res))
	for i, v := range res {
		out[i] = stringify(v)
	}
	return out
}

// objects returns every value at x, each of which must be an object.
func (d *jsonDoc) objects(x jp.Expr, what string) ([]map[string]any, error) {
	res := x.Get(d.root)
	out := make([]map[string]any, 0, len(res))
	for i, v := range res {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s %d must be an object", what, i)
		}
		out = append(out, obj)
	}
	return out, nil
}

// workspace returns the workspace section, or nil when there is none.
func (d *jsonDoc) workspace() (*api.Workspace, error) {
	v, ok := d.first(jsonWorkspace)
	if !ok || v == nil {
		return nil, nil
	}
	fields, isObj := v.(map[string]any)
	if !isObj {
		return nil, fmt.Errorf("workspace must be an object")
	}
	return &api.Workspace{
		Root: stringify(fields["root"]),
		Vars: stringMap(fields["vars"]),
	}, nil
}

// DecodeJSON decodes a JSON scene.
func DecodeJSON(data []byte) (*api.Scene, error) {
	doc, err := parseJSONDoc(data)
	if err != nil {
		return nil, fmt.Errorf("decode json scene: %w", err)
	}
	scene := &api.Scene{Plugins: doc.scalars(jsonPlugins)}
	if v, ok := doc.first(jsonVersion); ok {
		scene.Version = stringify(v)
	}
	if scene.Workspace, err = doc.workspace(); err != nil {
		return nil, fmt.Errorf("decode json scene: %w", err)
	}

	nodes, err := doc.objects(jsonNodes, "node")
	if err != nil {
		return nil, fmt.Errorf("decode json scene: %w", err)
	}
	for _, fields := range nodes {
		scene.Nodes = append(scene.Nodes, api.Node{
			Name:       stringify(fields["name"]),
			Kind:       stringify(fields["kind"]),
			Selected:   truthy(fields["selected"]),
			Referenced: truthy(fields["referenced"]),
			Attrs:      stringMap(fields["attrs"]),
		})
	}
	return scene, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	case int64:
		return x != 0
	}
	return false
}

func stringMap(v any) map[string]string {
	fields, ok := v.(map[string]any)
	if !ok || len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, val := range fields {
		out[k] = stringify(val)
	}
	return out
}

// EncodeJSON renders scene as indented JSON with sorted keys.
func EncodeJSON(scene *api.Scene) []byte {
	doc := map[string]any{"version": scene.Version}
	if len(scene.Plugins) > 0 {
		plugins := make([]any, len(scene.Plugins))
		for i, p := range scene.Plugins {
			plugins[i] = p
		}
		doc["plugins"] = plugins
	}
	if ws := scene.Workspace; ws != nil {
		w := map[string]any{"root": ws.Root}
		if len(ws.Vars) > 0 {
			w["vars"] = anyMap(ws.Vars)
		}
		doc["workspace"] = w
	}
	nodes := make([]any, 0, len(scene.Nodes))
	for _, n := range scene.Nodes {
		node := map[string]any{"name": n.Name, "kind": n.Kind}
		if n.Selected {
			node["selected"] = true
		}
		if n.Referenced {
			node["referenced"] = true
		}
		if len(n.Attrs) > 0 {
			node["attrs"] = anyMap(n.Attrs)
		}
		nodes = append(nodes, node)
	}
	doc["nodes"] = nodes
	return []byte(oj.JSON(doc, &oj.Options{Indent: 2, Sort: true}))
}

func anyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
