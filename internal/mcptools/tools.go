// Package mcptools exposes the texture engine as MCP tools over stdio.
package mcptools

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ohler55/ojg/oj"
	"go.uber.org/zap"

	"github.com/agentic-research/texmap/internal/graph"
	"github.com/agentic-research/texmap/internal/journal"
	"github.com/agentic-research/texmap/internal/texture"
)

// Tools serves the texture operations of one mapper. Calls are serialized
// because the engine is single-threaded.
type Tools struct {
	mu      sync.Mutex
	mapper  *texture.Mapper
	journal *journal.Journal
	opts    texture.TextureOptions
	log     *zap.Logger
}

// New returns the tool set. j may be nil, in which case map_textures is not
// journaled.
func New(mapper *texture.Mapper, j *journal.Journal, opts texture.TextureOptions, log *zap.Logger) *Tools {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tools{mapper: mapper, journal: j, opts: opts, log: log}
}

// Server returns an MCP server with every tool registered.
func (t *Tools) Server(version string) *server.MCPServer {
	s := server.NewMCPServer("texmap", version, server.WithToolCapabilities(false))
	t.Register(s)
	return s
}

// Register adds the tools to s.
func (t *Tools) Register(s *server.MCPServer) {
	filterOpts := []mcp.ToolOption{
		mcp.WithBoolean("selection", mcp.Description("Only consider selected nodes")),
		mcp.WithBoolean("referenced", mcp.Description("Include nodes from referenced scenes")),
	}

	s.AddTool(mcp.NewTool("texture_files", append([]mcp.ToolOption{
		mcp.WithDescription("List the texture files of the scene, keyed by each node's canonical path"),
		mcp.WithBoolean("flat", mcp.Description("Return a flat sorted list instead of a map")),
	}, filterOpts...)...), t.handleTextureFiles)

	s.AddTool(mcp.NewTool("texture_mapping", append([]mcp.ToolOption{
		mcp.WithDescription("Map texture files into new_dir keeping basenames. Basenames are not de-duplicated"),
		mcp.WithString("new_dir", mcp.Required(), mcp.Description("Destination directory")),
		mcp.WithString("old_dir", mcp.Description("Only map files directly inside this directory")),
	}, filterOpts...)...), t.handleTextureMapping)

	s.AddTool(mcp.NewTool("collect_textures", append([]mcp.ToolOption{
		mcp.WithDescription("Copy every texture file into dest with collision-free names and return the mapping"),
		mcp.WithString("dest", mcp.Required(), mcp.Description("Existing destination directory")),
	}, filterOpts...)...), t.handleCollect)

	s.AddTool(mcp.NewTool("map_textures", append([]mcp.ToolOption{
		mcp.WithDescription("Rewrite texture nodes through a {old: new} mapping and return the reverse mapping"),
		mcp.WithObject("mapping", mcp.Required(), mcp.Description("Source path to destination path")),
		mcp.WithBoolean("templated", mcp.Description("Allow <f>, <udim>, ? and # tokens in mapping keys")),
	}, filterOpts...)...), t.handleMapTextures)
}

// ServeStdio serves s on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func filterFrom(req mcp.CallToolRequest) graph.Filter {
	return graph.Filter{
		SelectionOnly:     req.GetBool("selection", false),
		IncludeReferenced: req.GetBool("referenced", false),
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	return mcp.NewToolResultText(oj.JSON(v, &oj.Options{Indent: 2, Sort: true}))
}

func mappingDoc(m texture.Mapping) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t *Tools) handleTextureFiles(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	files, err := t.mapper.TextureFiles(filterFrom(req), t.opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetBool("flat", false) {
		list := files.Reduce()
		out := make([]any, len(list))
		for i, f := range list {
			out[i] = f
		}
		return jsonResult(out), nil
	}
	doc := make(map[string]any, files.Len())
	for k, v := range files.Entries() {
		list := make([]any, len(v))
		for i, f := range v {
			list[i] = f
		}
		doc[k] = list
	}
	return jsonResult(doc), nil
}

func (t *Tools) handleTextureMapping(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	newDir, err := req.RequireString("new_dir")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	files, err := t.mapper.TextureFiles(filterFrom(req), t.opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := t.mapper.Mapping(newDir, req.GetString("old_dir", ""), files)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(mappingDoc(m)), nil
}

func (t *Tools) handleCollect(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dest, err := req.RequireString("dest")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	files, err := t.mapper.TextureFiles(filterFrom(req), t.opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := t.mapper.Collect(dest, files)
	if err != nil {
		t.log.Warn("collect failed", zap.String("dest", dest), zap.Int("copied", len(m)), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("%v (%d files collected before the failure)", err, len(m))), nil
	}
	return jsonResult(mappingDoc(m)), nil
}

func (t *Tools) handleMapTextures(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := req.GetArguments()["mapping"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("mapping must be an object of source path to destination path"), nil
	}
	forward := make(texture.Mapping, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("mapping value for %s must be a string", k)), nil
		}
		forward[k] = s
	}

	var lookup texture.Lookup = forward
	if req.GetBool("templated", false) {
		lookup = texture.NewPathTokenMap(forward)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	reverse, err := t.mapper.MapTextures(lookup, filterFrom(req))
	if t.journal != nil && len(reverse) > 0 {
		if _, jerr := t.journal.Record(journal.Entry{Op: journal.OpRemap, Forward: reverse.Reverse(), Reverse: reverse}); jerr != nil {
			t.log.Warn("journal record failed", zap.Error(jerr))
		}
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(mappingDoc(reverse)), nil
}
