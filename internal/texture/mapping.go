package texture

import (
	"path/filepath"
	"sort"
)

// Lookup resolves a source path to its relocation target.
type Lookup interface {
	Lookup(path string) (string, bool)
}

// Mapping maps a concrete source path to a destination path.
type Mapping map[string]string

// Lookup implements Lookup. Keys are tried verbatim, then cleaned.
func (m Mapping) Lookup(path string) (string, bool) {
	if v, ok := m[path]; ok {
		return v, true
	}
	v, ok := m[filepath.Clean(path)]
	return v, ok
}

// Update copies every entry of other into m.
func (m Mapping) Update(other Mapping) {
	for k, v := range other {
		m[k] = v
	}
}

// Reverse returns the inverse mapping. When several sources share a
// destination the lexically last source wins.
func (m Mapping) Reverse() Mapping {
	out := make(Mapping, len(m))
	for _, k := range m.Keys() {
		out[m[k]] = k
	}
	return out
}

// Keys returns the source paths, sorted.
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the set of destination paths.
func (m Mapping) Values() Set {
	s := make(Set, len(m))
	for _, v := range m {
		s.Add(v)
	}
	return s
}

// Pair is one rewrite performed on a node: the path it now holds and the
// path it held before.
type Pair struct {
	New string
	Old string
}
