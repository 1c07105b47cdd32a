package texture

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/agentic-research/texmap/internal/vfs"
)

// ErrNotDirectory is returned by Collect when the destination is missing or
// is not a directory.
var ErrNotDirectory = errors.New("destination is not a directory")

// framePart splits a stem into prefix, separator and a trailing frame
// number, UDIM number, tile coordinate or token.
var framePart = regexp.MustCompile(`^(.+?)([._-])(<[A-Za-z]+>|u<[uU]>_v<[vV]>|u\d+_v\d+|[?#]+|-?\d+)$`)

// SuffixName inserts "_n" into base. With beforeFrame the suffix goes in
// front of a trailing frame or tile part so sequences stay parseable;
// otherwise, or when there is no such part, it goes before the extension.
// n == 0 returns base unchanged.
func SuffixName(base string, n int, beforeFrame bool) string {
	if n == 0 {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	suffix := "_" + strconv.Itoa(n)
	if beforeFrame {
		if m := framePart.FindStringSubmatch(stem); m != nil {
			return m[1] + suffix + m[2] + m[3] + ext
		}
	}
	return stem + suffix + ext
}

// LowestUniqueName returns the first of base, base_1, base_2, ... (suffix
// before the extension) for which taken reports false.
func LowestUniqueName(dir, base string, taken func(path string) bool) string {
	for n := 0; ; n++ {
		p := filepath.Join(dir, SuffixName(base, n, false))
		if !taken(p) {
			return p
		}
	}
}

// relatedKeys returns, sorted, every key reachable from start through keys
// whose file sets intersect.
func relatedKeys(files *AssetSetMap, start string) []string {
	owners := make(map[string][]string)
	for _, k := range files.Keys() {
		set, _ := files.Get(k)
		for f := range set {
			owners[f] = append(owners[f], k)
		}
	}
	seen := NewSet(start)
	queue := []string{start}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		set, _ := files.Get(k)
		for f := range set {
			for _, other := range owners[f] {
				if !seen.Has(other) {
					seen.Add(other)
					queue = append(queue, other)
				}
			}
		}
	}
	return seen.Sorted()
}

// familyNames names every source of one family with the lowest shared
// suffix under which all names are distinct and free.
func familyNames(dest string, sources []string, taken func(string) bool) map[string]string {
	bases := NewSet()
	for _, src := range sources {
		bases.Add(filepath.Base(src))
	}
	if len(bases) != len(sources) {
		// Identical basenames can never be told apart by a shared suffix.
		out := make(map[string]string, len(sources))
		claimed := NewSet()
		for _, src := range sources {
			dst := LowestUniqueName(dest, filepath.Base(src), func(p string) bool {
				return claimed.Has(p) || taken(p)
			})
			claimed.Add(dst)
			out[src] = dst
		}
		return out
	}

	beforeFrame := len(sources) > 1
	for n := 0; ; n++ {
		out := make(map[string]string, len(sources))
		claimed := NewSet()
		ok := true
		for _, src := range sources {
			dst := filepath.Join(dest, SuffixName(filepath.Base(src), n, beforeFrame))
			if claimed.Has(dst) || taken(dst) {
				ok = false
				break
			}
			claimed.Add(dst)
			out[src] = dst
		}
		if ok {
			return out
		}
	}
}

// Collect copies every file in files into the flat directory dest, giving
// files that share a basename distinct names, and returns the mapping from
// source to destination. Related keys, whose file sets overlap, are named
// together with one suffix. Canonical keys that are not files on disk are
// mapped but not copied. On a copy failure the mapping built so far is
// returned with the error; copies already made are left in place.
func (m *Mapper) Collect(dest string, files *AssetSetMap) (Mapping, error) {
	fs := m.env.FS
	if !vfs.IsDir(fs, dest) {
		return nil, fmt.Errorf("collect into %s: %w", dest, ErrNotDirectory)
	}
	files, err := m.resolveFiles(files)
	if err != nil {
		return nil, err
	}

	mapping := make(Mapping)
	values := NewSet()
	taken := func(p string) bool {
		return values.Has(p) || vfs.Exists(fs, p)
	}
	done := NewSet()
	for _, key := range files.Keys() {
		if done.Has(key) {
			continue
		}
		family := relatedKeys(files, key)
		done.Add(family...)

		sources := NewSet()
		for _, k := range family {
			if _, ok := mapping[k]; !ok {
				sources.Add(k)
			}
			set, _ := files.Get(k)
			for f := range set {
				if _, ok := mapping[f]; !ok {
					sources.Add(f)
				}
			}
		}
		sorted := sources.Sorted()
		if len(sorted) == 0 {
			continue
		}
		names := familyNames(dest, sorted, taken)
		for _, src := range sorted {
			dst := names[src]
			if vfs.IsFile(fs, src) {
				n, err := vfs.Copy(fs, src, dst)
				if err != nil {
					return mapping, fmt.Errorf("collect %s: %w", src, err)
				}
				m.env.logger().Debug("copied",
					zap.String("from", src),
					zap.String("to", dst),
					zap.Int64("bytes", n))
			}
			mapping[src] = dst
			values.Add(dst)
		}
	}
	m.env.logger().Info("collected textures",
		zap.String("dest", dest),
		zap.Int("files", len(mapping)))
	return mapping, nil
}
