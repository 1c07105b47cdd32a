// Package tiles discovers the concrete files behind a texture path: frame
// sequences, UV tile sets and pre-baked optimized companions.
package tiles

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/texmap/internal/vfs"
)

// Mode is a UV tiling convention. The numeric values follow the host's
// uvTilingMode enum.
type Mode int

const (
	None Mode = iota
	ZBrush
	Mudbox
	Mari
	Explicit
)

var modeNames = [...]string{"None", "zbrush", "mudbox", "mari", "explicit"}

func (m Mode) String() string {
	if m < None || m > Explicit {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Vendor reports whether m is one of the three tile-naming conventions that
// are resolved by scanning the disk.
func (m Mode) Vendor() bool {
	return m == ZBrush || m == Mudbox || m == Mari
}

// ModeFromIndex converts a host uvTilingMode value.
func ModeFromIndex(i int) (Mode, error) {
	if i < int(None) || i > int(Explicit) {
		return None, fmt.Errorf("unknown uv tiling mode %d", i)
	}
	return Mode(i), nil
}

// ParseMode converts a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(s, name) {
			return Mode(i), nil
		}
	}
	return None, fmt.Errorf("unknown uv tiling mode %q", s)
}

// Provider enumerates tile and sequence members on behalf of texture nodes.
type Provider interface {
	// EnumerateUVTiles lists the files on disk that belong to the tile set
	// described by path under the given convention.
	EnumerateUVTiles(path string, mode Mode) ([]string, error)
	// DetectUDIMMode infers a tiling convention from tokens in the basename.
	DetectUDIMMode(path string) Mode
	// FindSequenceSiblings returns every file of the frame sequence path
	// belongs to, or nil when path cannot be part of a sequence.
	FindSequenceSiblings(path string) ([]string, error)
	// FileByExtension returns the sibling of path with extension ext when
	// it exists as a regular file.
	FileByExtension(path, ext string) (string, bool)
}

// DiskProvider implements Provider over a billy filesystem.
type DiskProvider struct {
	FS billy.Filesystem
}

// NewDiskProvider returns a Provider reading from fs.
func NewDiskProvider(fs billy.Filesystem) *DiskProvider {
	return &DiskProvider{FS: fs}
}

// matchSiblings lists dir and returns the full paths of entries matching re.
// A missing directory yields no matches.
func (p *DiskProvider) matchSiblings(dir string, re *regexp.Regexp) ([]string, error) {
	if !vfs.IsDir(p.FS, dir) {
		return nil, nil
	}
	names, err := vfs.ListDir(p.FS, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, name := range names {
		if re.MatchString(name) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}

// FileByExtension implements Provider.
func (p *DiskProvider) FileByExtension(path, ext string) (string, bool) {
	ext = "." + strings.TrimPrefix(ext, ".")
	cur := filepath.Ext(path)
	if strings.EqualFold(cur, ext) {
		return "", false
	}
	candidate := strings.TrimSuffix(path, cur) + ext
	if vfs.IsFile(p.FS, candidate) {
		return candidate, true
	}
	return "", false
}
