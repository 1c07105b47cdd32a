package texture

import (
	"fmt"

	"github.com/agentic-research/texmap/internal/graph"
	"github.com/agentic-research/texmap/internal/tiles"
)

// PluginRedshift is the host plugin that owns the Redshift texture nodes.
const PluginRedshift = "redshift4maya"

// Redshift node kinds.
const (
	KindRedshiftSprite       = "RedshiftSprite"
	KindRedshiftNormalMap    = "RedshiftNormalMap"
	KindRedshiftDisplacement = "RedshiftDisplacement"
)

// RedshiftVariant describes a Redshift node holding a single texture path
// in PathAttr. Nodes only exist while the plugin is loaded.
type RedshiftVariant struct {
	NodeKind string
	PathAttr string
}

var (
	SpriteVariant       = RedshiftVariant{NodeKind: KindRedshiftSprite, PathAttr: "tex0"}
	NormalMapVariant    = RedshiftVariant{NodeKind: KindRedshiftNormalMap, PathAttr: "tex0"}
	DisplacementVariant = RedshiftVariant{NodeKind: KindRedshiftDisplacement, PathAttr: "texMap"}
)

func (v RedshiftVariant) Kind() string { return v.NodeKind }

func (v RedshiftVariant) Available(env *Env) bool {
	return env.Graph.PluginLoaded(PluginRedshift)
}

func (v RedshiftVariant) Wrap(env *Env, id string) (TextureNode, error) {
	if err := checkKind(env, id, v.NodeKind); err != nil {
		return nil, err
	}
	return &RedshiftNode{baseNode{
		env:       env,
		id:        id,
		kind:      v.NodeKind,
		readAttr:  v.PathAttr,
		writeAttr: v.PathAttr,
	}}, nil
}

// RedshiftNode is a Redshift texture node. It follows frame sequences and
// infers UDIM tiles from filename tokens, and has no explicit tile array.
type RedshiftNode struct {
	baseNode
}

func (n *RedshiftNode) resolve() (*AssetSetMap, error) {
	texs := NewAssetSetMap()
	path, err := n.Path()
	if err != nil || path == "" {
		return texs, err
	}
	texs.Add(path, path)

	frames, err := graph.AttrBool(n.env.Graph, n.id, AttrUseFrameExtension)
	if err != nil {
		return nil, err
	}
	if frames {
		siblings, err := n.env.Tiles.FindSequenceSiblings(path)
		if err != nil {
			return nil, fmt.Errorf("sequence %s: %w", path, err)
		}
		texs.Add(path, siblings...)
	}
	if mode := n.env.Tiles.DetectUDIMMode(path); mode != tiles.None {
		found, err := n.env.Tiles.EnumerateUVTiles(path, mode)
		if err != nil {
			return nil, fmt.Errorf("uv tiles %s: %w", path, err)
		}
		texs.Add(path, found...)
	}
	return texs, nil
}

func (n *RedshiftNode) AllPaths() ([]string, error) {
	texs, err := n.resolve()
	if err != nil {
		return nil, err
	}
	return flatten(texs), nil
}

// AuxFiles only probes .tex companions; Redshift never reads .tx.
func (n *RedshiftNode) AuxFiles(texs *AssetSetMap, opts TextureOptions) (*AssetSetMap, error) {
	if texs == nil {
		var err error
		if texs, err = n.resolve(); err != nil {
			return nil, err
		}
	}
	var exts []string
	if opts.TEX {
		exts = []string{"tex"}
	}
	return auxFiles(n.env, texs, exts), nil
}

func (n *RedshiftNode) Textures(opts TextureOptions) (*AssetSetMap, error) {
	texs, err := n.resolve()
	if err != nil {
		return nil, err
	}
	if opts.Aux {
		auxs, err := n.AuxFiles(texs, opts)
		if err != nil {
			return nil, err
		}
		texs.Update(auxs)
	}
	return existing(n.env, texs, opts), nil
}

func (n *RedshiftNode) MapTexture(l Lookup) ([]Pair, error) {
	path, err := n.Path()
	if err != nil {
		return nil, err
	}
	return remap(l, path, n.SetPath)
}
