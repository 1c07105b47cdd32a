package texture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/agentic-research/texmap/internal/graph"
	"github.com/agentic-research/texmap/internal/tiles"
)

// Attributes of the host's plain file texture node.
const (
	KindFile = "file"

	AttrFileTextureName   = "fileTextureName"
	AttrComputedPattern   = "computedFileTextureNamePattern"
	AttrUVTilingMode      = "uvTilingMode"
	AttrUseFrameExtension = "useFrameExtension"
	AttrColorSpace        = "colorSpace"
	AttrExplicitTiles     = "explicitUvTiles"
	AttrExplicitTileName  = "explicitUvTileName"
)

// FileVariant describes plain file texture nodes. They are always available.
type FileVariant struct{}

func (FileVariant) Kind() string        { return KindFile }
func (FileVariant) Available(*Env) bool { return true }

func (FileVariant) Wrap(env *Env, id string) (TextureNode, error) {
	return WrapFile(env, id)
}

// FileNode is a plain file texture node. It supports every tiling mode,
// including explicit per-tile paths, and frame sequences.
type FileNode struct {
	baseNode
}

// WrapFile wraps id, failing with ErrKindMismatch unless it is a file node.
func WrapFile(env *Env, id string) (*FileNode, error) {
	if err := checkKind(env, id, KindFile); err != nil {
		return nil, err
	}
	return &FileNode{baseNode{
		env:       env,
		id:        id,
		kind:      KindFile,
		readAttr:  AttrFileTextureName,
		writeAttr: AttrFileTextureName,
		preserve:  []string{AttrColorSpace},
	}}, nil
}

// CreateFile creates a file node pointing at path.
func CreateFile(env *Env, path string) (*FileNode, error) {
	id, err := env.Graph.CreateNode(KindFile)
	if err != nil {
		return nil, fmt.Errorf("create file node: %w", err)
	}
	n, err := WrapFile(env, id)
	if err != nil {
		return nil, err
	}
	if err := n.SetPath(path); err != nil {
		return nil, err
	}
	return n, nil
}

// SetPath writes the texture name and keeps the computed pattern, when the
// node carries one, in step with it.
func (n *FileNode) SetPath(path string) error {
	attrs := []string{AttrFileTextureName}
	has, err := n.env.Graph.HasAttr(n.id, AttrComputedPattern)
	if err != nil {
		return err
	}
	if has {
		attrs = append(attrs, AttrComputedPattern)
	}
	return n.writeAttrs(path, attrs...)
}

// TilingMode returns the declared UV tiling mode, given either as the host
// enum index or by name. A node without the attribute is untiled.
func (n *FileNode) TilingMode() (tiles.Mode, error) {
	raw, err := graph.AttrString(n.env.Graph, n.id, AttrUVTilingMode)
	if errors.Is(err, graph.ErrNoAttr) {
		return tiles.None, nil
	}
	if err != nil {
		return tiles.None, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return tiles.None, nil
	}
	if idx, err := strconv.Atoi(raw); err == nil {
		return tiles.ModeFromIndex(idx)
	}
	return tiles.ParseMode(raw)
}

// patternPath returns the computed pattern when set, otherwise fallback.
func (n *FileNode) patternPath(fallback string) (string, error) {
	p, err := n.readPath(AttrComputedPattern)
	if err != nil || p == "" {
		return fallback, err
	}
	return p, nil
}

// ExplicitTile is one entry of the explicit per-tile array.
type ExplicitTile struct {
	Index int
	Path  string
}

// ExplicitTiles returns the expanded per-tile paths in index order. Blank
// entries are kept with an empty Path.
func (n *FileNode) ExplicitTiles() ([]ExplicitTile, error) {
	indices, err := n.env.Graph.AttrIndices(n.id, AttrExplicitTiles)
	if err != nil {
		return nil, err
	}
	var out []ExplicitTile
	for _, i := range indices {
		p, err := n.readPath(graph.IndexedAttr(AttrExplicitTiles, i, AttrExplicitTileName))
		if err != nil {
			return nil, err
		}
		out = append(out, ExplicitTile{Index: i, Path: p})
	}
	return out, nil
}

// canonical returns the key the node is known by and its effective mode.
func (n *FileNode) canonical() (string, tiles.Mode, error) {
	path, err := n.Path()
	if err != nil || path == "" {
		return "", tiles.None, err
	}
	mode, err := n.TilingMode()
	if err != nil {
		return "", tiles.None, err
	}
	switch {
	case mode == tiles.None:
		return path, n.env.Tiles.DetectUDIMMode(path), nil
	case mode.Vendor():
		key, err := n.patternPath(path)
		return key, mode, err
	default:
		return path, mode, nil
	}
}

// resolve maps each canonical key to every concrete path it implies.
func (n *FileNode) resolve() (*AssetSetMap, error) {
	texs := NewAssetSetMap()
	key, mode, err := n.canonical()
	if err != nil || key == "" {
		return texs, err
	}
	switch {
	case mode == tiles.None:
		texs.Add(key, key)
		frames, err := graph.AttrBool(n.env.Graph, n.id, AttrUseFrameExtension)
		if err != nil {
			return nil, err
		}
		if frames {
			siblings, err := n.env.Tiles.FindSequenceSiblings(key)
			if err != nil {
				return nil, fmt.Errorf("sequence %s: %w", key, err)
			}
			texs.Add(key, siblings...)
		}
	case mode == tiles.Explicit:
		texs.Add(key, key)
		explicit, err := n.ExplicitTiles()
		if err != nil {
			return nil, err
		}
		for _, t := range explicit {
			if t.Path != "" {
				texs.Add(t.Path, t.Path)
			}
		}
	default:
		found, err := n.env.Tiles.EnumerateUVTiles(key, mode)
		if err != nil {
			return nil, fmt.Errorf("uv tiles %s: %w", key, err)
		}
		texs.Add(key, found...)
	}
	return texs, nil
}

// AllPaths returns every concrete path of the node. In explicit mode that is
// the literal path followed by one path per indexed tile, blank tiles
// included.
func (n *FileNode) AllPaths() ([]string, error) {
	key, mode, err := n.canonical()
	if err != nil {
		return nil, err
	}
	if key != "" && mode == tiles.Explicit {
		explicit, err := n.ExplicitTiles()
		if err != nil {
			return nil, err
		}
		paths := make([]string, 0, len(explicit)+1)
		paths = append(paths, key)
		for _, t := range explicit {
			paths = append(paths, t.Path)
		}
		return paths, nil
	}
	texs, err := n.resolve()
	if err != nil {
		return nil, err
	}
	return flatten(texs), nil
}

func (n *FileNode) AuxFiles(texs *AssetSetMap, opts TextureOptions) (*AssetSetMap, error) {
	if texs == nil {
		var err error
		if texs, err = n.resolve(); err != nil {
			return nil, err
		}
	}
	return auxFiles(n.env, texs, opts.auxExts()), nil
}

func (n *FileNode) Textures(opts TextureOptions) (*AssetSetMap, error) {
	texs, err := n.resolve()
	if err != nil {
		return nil, err
	}
	if opts.Aux {
		texs.Update(auxFiles(n.env, texs, opts.auxExts()))
	}
	return existing(n.env, texs, opts), nil
}

// MapTexture rewrites the primary path and, in explicit mode, every tile
// path that has an entry in l.
func (n *FileNode) MapTexture(l Lookup) ([]Pair, error) {
	key, mode, err := n.canonical()
	if err != nil {
		return nil, err
	}
	pairs, err := remap(l, key, n.SetPath)
	if err != nil {
		return nil, err
	}
	if mode != tiles.Explicit {
		return pairs, nil
	}

	explicit, err := n.ExplicitTiles()
	if err != nil {
		return pairs, err
	}
	for _, t := range explicit {
		attr := graph.IndexedAttr(AttrExplicitTiles, t.Index, AttrExplicitTileName)
		more, err := remap(l, t.Path, func(dst string) error {
			return n.writeAttrs(dst, attr)
		})
		if err != nil {
			return pairs, err
		}
		pairs = append(pairs, more...)
	}
	return pairs, nil
}
