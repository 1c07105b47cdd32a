package texture

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/agentic-research/texmap/internal/graph"
)

// Mapper discovers texture nodes through its registered variants and
// relocates the files behind them.
type Mapper struct {
	env      *Env
	variants []Variant
	cache    *AssetSetMap
}

// DefaultVariants returns the variants the engine ships with, in discovery
// order.
func DefaultVariants() []Variant {
	return []Variant{
		FileVariant{},
		SpriteVariant,
		NormalMapVariant,
		DisplacementVariant,
	}
}

// NewMapper returns a mapper over env with the given variants registered in
// order. Unusable variants are logged and skipped.
func NewMapper(env *Env, variants ...Variant) *Mapper {
	m := &Mapper{env: env}
	for _, v := range variants {
		if err := m.RegisterVariant(v); err != nil {
			env.logger().Warn("skipping variant", zap.Error(err))
		}
	}
	return m
}

// Env returns the collaborators the mapper works against.
func (m *Mapper) Env() *Env { return m.env }

// RegisterVariant appends v to the discovery order. It fails with
// ErrInvalidVariant for a nil variant, an empty kind or a kind that is
// already registered.
func (m *Mapper) RegisterVariant(v Variant) error {
	if v == nil {
		return fmt.Errorf("register nil variant: %w", ErrInvalidVariant)
	}
	kind := v.Kind()
	if kind == "" {
		return fmt.Errorf("register variant without kind: %w", ErrInvalidVariant)
	}
	for _, existing := range m.variants {
		if existing.Kind() == kind {
			return fmt.Errorf("register %s: already registered: %w", kind, ErrInvalidVariant)
		}
	}
	m.variants = append(m.variants, v)
	m.cache = nil
	return nil
}

// UnregisterVariant removes the variant of kind, reporting whether it was
// registered.
func (m *Mapper) UnregisterVariant(kind string) bool {
	for i, v := range m.variants {
		if v.Kind() == kind {
			m.variants = append(m.variants[:i:i], m.variants[i+1:]...)
			m.cache = nil
			return true
		}
	}
	return false
}

// Variants returns the registered variants in discovery order.
func (m *Mapper) Variants() []Variant {
	out := make([]Variant, len(m.variants))
	copy(out, m.variants)
	return out
}

// Discover wraps every node of every available variant that passes f,
// ordered by registration and then by graph enumeration.
func (m *Mapper) Discover(f graph.Filter) ([]TextureNode, error) {
	var nodes []TextureNode
	for _, v := range m.variants {
		if !v.Available(m.env) {
			m.env.logger().Debug("variant unavailable", zap.String("kind", v.Kind()))
			continue
		}
		ids, err := m.env.Graph.Enumerate(v.Kind(), f)
		if err != nil {
			return nil, fmt.Errorf("enumerate %s: %w", v.Kind(), err)
		}
		for _, id := range ids {
			n, err := v.Wrap(m.env, id)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// Nodes returns the ids of the discovered nodes.
func (m *Mapper) Nodes(f graph.Filter) ([]string, error) {
	nodes, err := m.Discover(f)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	return ids, nil
}

// TextureFiles merges the textures of every discovered node and caches the
// result for Mapping and Collect.
func (m *Mapper) TextureFiles(f graph.Filter, opts TextureOptions) (*AssetSetMap, error) {
	nodes, err := m.Discover(f)
	if err != nil {
		return nil, err
	}
	files := NewAssetSetMap()
	for _, n := range nodes {
		texs, err := n.Textures(opts)
		if err != nil {
			return nil, fmt.Errorf("textures of %s: %w", n.ID(), err)
		}
		files.Update(texs)
	}
	m.cache = files.Clone()
	m.env.logger().Debug("texture files",
		zap.Int("nodes", len(nodes)),
		zap.Int("keys", files.Len()))
	return files, nil
}

// TextureFileList returns the flat, sorted list of files behind TextureFiles.
func (m *Mapper) TextureFileList(f graph.Filter, opts TextureOptions) ([]string, error) {
	files, err := m.TextureFiles(f, opts)
	if err != nil {
		return nil, err
	}
	return files.Reduce(), nil
}

// Cached returns the result of the last TextureFiles call, or nil.
func (m *Mapper) Cached() *AssetSetMap {
	if m.cache == nil {
		return nil
	}
	return m.cache.Clone()
}

// resolveFiles picks the explicit files, then the cache, then a fresh
// unfiltered discovery.
func (m *Mapper) resolveFiles(files *AssetSetMap) (*AssetSetMap, error) {
	if files != nil {
		return files, nil
	}
	if m.cache != nil {
		return m.cache, nil
	}
	return m.TextureFiles(graph.Filter{}, DefaultTextureOptions())
}

// Mapping maps every canonical key and file in files to newDir, keeping
// basenames. When oldDir is set only paths directly inside it are mapped.
// Basenames are not de-duplicated: two sources sharing a basename map to
// the same destination. Use Collect for collision-free names.
func (m *Mapper) Mapping(newDir, oldDir string, files *AssetSetMap) (Mapping, error) {
	files, err := m.resolveFiles(files)
	if err != nil {
		return nil, err
	}
	if oldDir != "" {
		oldDir = filepath.Clean(oldDir)
	}
	out := make(Mapping)
	for _, p := range flatten(files) {
		if oldDir != "" && filepath.Dir(p) != oldDir {
			continue
		}
		out[p] = filepath.Join(newDir, filepath.Base(p))
	}
	return out, nil
}

// MapTextures applies l to every discovered node and returns the reverse
// mapping {new: old} of the rewrites performed. On failure the rewrites made
// so far are returned with the error.
func (m *Mapper) MapTextures(l Lookup, f graph.Filter) (Mapping, error) {
	nodes, err := m.Discover(f)
	if err != nil {
		return nil, err
	}
	m.cache = nil
	reverse := make(Mapping)
	for _, n := range nodes {
		pairs, err := n.MapTexture(l)
		for _, p := range pairs {
			reverse[p.New] = p.Old
			m.env.logger().Debug("remapped",
				zap.String("node", n.ID()),
				zap.String("from", p.Old),
				zap.String("to", p.New))
		}
		if err != nil {
			return reverse, fmt.Errorf("map %s: %w", n.ID(), err)
		}
	}
	m.env.logger().Info("mapped textures", zap.Int("rewrites", len(reverse)))
	return reverse, nil
}
