// Command scenegen writes a synthetic project: a scene file whose texture
// nodes cover every tiling and sequencing convention, and the texture files
// they reference. Basenames repeat across directories so collect has
// collisions to resolve.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/agentic-research/texmap/api"
	"github.com/agentic-research/texmap/internal/ingest"
	"github.com/agentic-research/texmap/internal/texture"
	"github.com/agentic-research/texmap/internal/vfs"
)

func main() {
	outDir := flag.String("out", "scenegen", "Output directory")
	nodes := flag.Int("nodes", 20, "Number of texture nodes")
	seed := flag.Int64("seed", 1, "Random seed")
	format := flag.String("format", "hcl", "Scene format (hcl or json)")
	flag.Parse()

	root, err := filepath.Abs(*outDir)
	if err != nil {
		fatal(err)
	}
	scene, files := generate(rand.New(rand.NewSource(*seed)), root, *nodes)

	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
			fatal(err)
		}
		if err := os.WriteFile(f, []byte(f), 0o644); err != nil {
			fatal(err)
		}
	}
	scenePath := filepath.Join(root, "scene."+*format)
	if err := ingest.SaveFile(vfs.OS(), scenePath, scene); err != nil {
		fatal(err)
	}
	fmt.Printf("Wrote %s with %d nodes and %d files\n", scenePath, len(scene.Nodes), len(files))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

var (
	dirs  = []string{"tex", "tex/old", "assets/props"}
	names = []string{"wood", "metal", "rust", "cloth"}
)

// generate builds a scene of n nodes rooted at root and the absolute paths
// of the files it references.
func generate(rng *rand.Rand, root string, n int) (*api.Scene, []string) {
	scene := &api.Scene{
		Version:   api.CurrentVersion,
		Plugins:   []string{texture.PluginRedshift},
		Workspace: &api.Workspace{Root: root},
	}
	var files []string
	add := func(rel string) { files = append(files, filepath.Join(root, rel)) }

	for i := 0; i < n; i++ {
		dir := dirs[rng.Intn(len(dirs))]
		name := names[rng.Intn(len(names))]
		node := api.Node{
			Name:     fmt.Sprintf("tex%03d", i),
			Kind:     texture.KindFile,
			Selected: rng.Intn(4) == 0,
			Attrs:    map[string]string{},
		}
		switch i % 4 {
		case 0:
			rel := filepath.Join(dir, name+".png")
			node.Attrs[texture.AttrFileTextureName] = rel
			add(rel)
			if rng.Intn(2) == 0 {
				add(filepath.Join(dir, name+".tx"))
			}
		case 1:
			frames := 1 + rng.Intn(5)
			node.Attrs[texture.AttrFileTextureName] = filepath.Join(dir, fmt.Sprintf("%s.%04d.exr", name, 1))
			node.Attrs[texture.AttrUseFrameExtension] = "true"
			for f := 1; f <= frames; f++ {
				add(filepath.Join(dir, fmt.Sprintf("%s.%04d.exr", name, f)))
			}
		case 2:
			tiles := 1 + rng.Intn(4)
			node.Attrs[texture.AttrFileTextureName] = filepath.Join(dir, name+".<UDIM>.exr")
			node.Attrs[texture.AttrUVTilingMode] = "3"
			for t := 0; t < tiles; t++ {
				add(filepath.Join(dir, fmt.Sprintf("%s.%d.exr", name, 1001+t)))
			}
		case 3:
			node.Kind = texture.KindRedshiftSprite
			rel := filepath.Join(dir, name+"_sprite.png")
			node.Attrs["tex0"] = rel
			add(rel)
			add(filepath.Join(dir, name+"_sprite.tex"))
		}
		scene.Nodes = append(scene.Nodes, node)
	}
	return scene, dedupe(files)
}

func dedupe(files []string) []string {
	return texture.NewSet(files...).Sorted()
}
