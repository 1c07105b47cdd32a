package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/texmap/internal/texture"
)

const (
	formatYAML = "yaml"
	formatJSON = "json"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// writeDoc renders v in the requested format.
func writeDoc(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		_, err := fmt.Fprintln(w, oj.JSON(jsonable(v), &oj.Options{Indent: 2, Sort: true}))
		return err
	default:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	}
}

// jsonable converts the string collections the commands print into the
// generic shapes oj writes.
func jsonable(v any) any {
	switch x := v.(type) {
	case texture.Mapping:
		return jsonable(map[string]string(x))
	case map[string]string:
		out := make(map[string]any, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out
	case map[string][]string:
		out := make(map[string]any, len(x))
		for k, list := range x {
			out[k] = jsonable(list)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out
	}
	return v
}

// readMapping reads a {source: destination} document. JSON documents are
// valid YAML and are accepted too.
func readMapping(path string) (texture.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mapping %s: %w", path, err)
	}
	return texture.Mapping(m), nil
}

// writeMapping saves m as YAML.
func writeMapping(path string, m texture.Mapping) error {
	data, err := yaml.Marshal(map[string]string(m))
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write mapping: %w", err)
	}
	return nil
}
