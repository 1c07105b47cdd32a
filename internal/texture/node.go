// Package texture discovers the files referenced by texture nodes of a host
// scene, computes relocation mappings for them, copies them and rewrites
// the nodes to point at the new locations.
package texture

import (
	"errors"
	"fmt"

	billy "github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/agentic-research/texmap/internal/graph"
	"github.com/agentic-research/texmap/internal/tiles"
	"github.com/agentic-research/texmap/internal/vfs"
	"github.com/agentic-research/texmap/internal/workspace"
)

var (
	// ErrKindMismatch is returned when a node is wrapped by a variant of a
	// different kind.
	ErrKindMismatch = errors.New("node kind does not match variant")
	// ErrInvalidVariant is returned when registering an unusable variant.
	ErrInvalidVariant = errors.New("invalid texture variant")
)

// Env bundles the host collaborators every texture node works against.
type Env struct {
	Graph     graph.Graph
	FS        billy.Filesystem
	Workspace workspace.Expander
	Tiles     tiles.Provider
	Log       *zap.Logger
}

// NewEnv wires an Env with a disk-backed tile provider and a no-op logger.
// A nil expander only cleans paths.
func NewEnv(g graph.Graph, fs billy.Filesystem, ws workspace.Expander) *Env {
	if ws == nil {
		ws = workspace.Identity{}
	}
	return &Env{
		Graph:     g,
		FS:        fs,
		Workspace: ws,
		Tiles:     tiles.NewDiskProvider(fs),
		Log:       zap.NewNop(),
	}
}

func (e *Env) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// TextureOptions controls which files Textures reports.
type TextureOptions struct {
	// Filter, when set, must accept a file for it to be reported.
	Filter func(path string) bool
	// Aux includes pre-baked optimized companions (.tx, .tex).
	Aux bool
	TX  bool
	TEX bool
}

// DefaultTextureOptions reports every existing file including all
// optimized companions.
func DefaultTextureOptions() TextureOptions {
	return TextureOptions{Aux: true, TX: true, TEX: true}
}

func (o TextureOptions) keep(path string) bool {
	return o.Filter == nil || o.Filter(path)
}

func (o TextureOptions) auxExts() []string {
	var exts []string
	if o.TX {
		exts = append(exts, "tx")
	}
	if o.TEX {
		exts = append(exts, "tex")
	}
	return exts
}

// TextureNode is a texture-bearing node of the host scene.
type TextureNode interface {
	ID() string
	Kind() string
	// Path returns the node's primary path, expanded through the workspace.
	Path() (string, error)
	// SetPath rewrites the primary path, keeping node-local metadata such as
	// the color space intact.
	SetPath(path string) error
	// AllPaths returns every concrete path implied by the node's tiling or
	// sequencing mode, whether or not it exists on disk.
	AllPaths() ([]string, error)
	// AuxFiles probes the optimized companions of every file in texs. A nil
	// texs resolves the node first.
	AuxFiles(texs *AssetSetMap, opts TextureOptions) (*AssetSetMap, error)
	// Textures returns the canonical keys of the node mapped to the files
	// that exist on disk and pass opts.Filter.
	Textures(opts TextureOptions) (*AssetSetMap, error)
	// MapTexture rewrites the node when its canonical path has an entry in
	// l, returning the (new, old) pairs it applied.
	MapTexture(l Lookup) ([]Pair, error)
}

// Variant describes one kind of texture node and knows how to wrap it.
type Variant interface {
	Kind() string
	// Available reports whether nodes of this kind can exist in the host,
	// e.g. whether the owning renderer plugin is loaded.
	Available(env *Env) bool
	Wrap(env *Env, id string) (TextureNode, error)
}

// checkKind fails with ErrKindMismatch unless id is a node of kind.
func checkKind(env *Env, id, kind string) error {
	actual, err := env.Graph.Kind(id)
	if err != nil {
		return fmt.Errorf("wrap %s: %w", id, err)
	}
	if actual != kind {
		return fmt.Errorf("wrap %s as %s: node is %s: %w", id, kind, actual, ErrKindMismatch)
	}
	return nil
}

// baseNode carries what every variant shares: identity, the primary path
// attributes and the metadata to preserve across path rewrites.
type baseNode struct {
	env       *Env
	id        string
	kind      string
	readAttr  string
	writeAttr string
	preserve  []string
}

func (n *baseNode) ID() string   { return n.id }
func (n *baseNode) Kind() string { return n.kind }

func (n *baseNode) expand(p string) string {
	return n.env.Workspace.Expand(p)
}

// readPath reads and expands a path attribute. A missing attribute reads as "".
func (n *baseNode) readPath(attr string) (string, error) {
	raw, err := graph.AttrString(n.env.Graph, n.id, attr)
	if errors.Is(err, graph.ErrNoAttr) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return n.expand(raw), nil
}

func (n *baseNode) Path() (string, error) {
	return n.readPath(n.readAttr)
}

func (n *baseNode) SetPath(path string) error {
	return n.writeAttrs(path, n.writeAttr)
}

// writeAttrs writes value to attrs, restoring the preserved metadata
// afterwards because hosts may re-derive it from the new path.
func (n *baseNode) writeAttrs(value string, attrs ...string) error {
	g := n.env.Graph
	snapshot := make(map[string][]byte, len(n.preserve))
	for _, name := range n.preserve {
		v, err := g.GetAttr(n.id, name)
		if errors.Is(err, graph.ErrNoAttr) {
			continue
		}
		if err != nil {
			return err
		}
		snapshot[name] = v
	}
	for _, attr := range attrs {
		if err := graph.SetAttrString(g, n.id, attr, value); err != nil {
			return fmt.Errorf("set %s.%s: %w", n.id, attr, err)
		}
	}
	for name, v := range snapshot {
		if err := g.SetAttr(n.id, name, v); err != nil {
			return fmt.Errorf("restore %s.%s: %w", n.id, name, err)
		}
	}
	return nil
}

// remap applies l to the canonical key of a node through set.
func remap(l Lookup, key string, set func(string) error) ([]Pair, error) {
	if key == "" {
		return nil, nil
	}
	dst, ok := l.Lookup(key)
	if !ok {
		return nil, nil
	}
	if err := set(dst); err != nil {
		return nil, err
	}
	return []Pair{{New: dst, Old: key}}, nil
}

// flatten returns the sorted union of the keys and members of texs.
func flatten(texs *AssetSetMap) []string {
	all := NewSet(texs.Keys()...)
	all.Add(texs.Reduce()...)
	return all.Sorted()
}

// auxFiles probes each file of texs for companions with the given extensions.
func auxFiles(env *Env, texs *AssetSetMap, exts []string) *AssetSetMap {
	auxs := NewAssetSetMap()
	for _, k := range texs.Keys() {
		dst := auxs.GetOrInsert(k)
		files, _ := texs.Get(k)
		for _, f := range files.Sorted() {
			for _, ext := range exts {
				if p, ok := env.Tiles.FileByExtension(f, ext); ok {
					dst.Add(p)
				}
			}
		}
	}
	return auxs
}

// existing keeps the files that pass opts and exist as regular files.
// Keys are retained even when no file survives.
func existing(env *Env, texs *AssetSetMap, opts TextureOptions) *AssetSetMap {
	out := NewAssetSetMap()
	for _, k := range texs.Keys() {
		dst := out.GetOrInsert(k)
		files, _ := texs.Get(k)
		for f := range files {
			if opts.keep(f) && vfs.IsFile(env.FS, f) {
				dst.Add(f)
			}
		}
	}
	return out
}
