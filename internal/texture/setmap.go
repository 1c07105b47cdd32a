package texture

import "sort"

// Set is a set of file paths.
type Set map[string]struct{}

// NewSet returns a set holding items.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	s.Add(items...)
	return s
}

// Add inserts items; duplicates are no-ops.
func (s Set) Add(items ...string) {
	for _, it := range items {
		s[it] = struct{}{}
	}
}

// Has reports membership.
func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Union inserts every member of other.
func (s Set) Union(other Set) {
	for it := range other {
		s[it] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for it := range s {
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}

// AssetSetMap maps a canonical key (a node's primary resolved path) to the
// set of concrete files behind it. Merging is always a per-key union.
type AssetSetMap struct {
	m map[string]Set
}

// NewAssetSetMap returns an empty map.
func NewAssetSetMap() *AssetSetMap {
	return &AssetSetMap{m: make(map[string]Set)}
}

// GetOrInsert returns the set stored under key, inserting an empty one on a
// miss. The returned set is live: adding to it updates the map.
func (a *AssetSetMap) GetOrInsert(key string) Set {
	s, ok := a.m[key]
	if !ok {
		s = make(Set)
		a.m[key] = s
	}
	return s
}

// Get returns the set stored under key without inserting.
func (a *AssetSetMap) Get(key string) (Set, bool) {
	s, ok := a.m[key]
	return s, ok
}

// Set replaces the entry for key. A nil value stores an empty set.
func (a *AssetSetMap) Set(key string, value Set) {
	if value == nil {
		value = make(Set)
	}
	a.m[key] = value
}

// Add inserts files under key, creating the entry if needed.
func (a *AssetSetMap) Add(key string, files ...string) {
	a.GetOrInsert(key).Add(files...)
}

// Update merges other into a by per-key union. Existing members are never
// dropped. A nil other is a no-op.
func (a *AssetSetMap) Update(other *AssetSetMap) {
	if other == nil {
		return
	}
	for k, v := range other.m {
		a.GetOrInsert(k).Union(v)
	}
}

// Reduce returns the union of all values, sorted.
func (a *AssetSetMap) Reduce() []string {
	all := make(Set)
	for _, v := range a.m {
		all.Union(v)
	}
	return all.Sorted()
}

// Keys returns the canonical keys, sorted.
func (a *AssetSetMap) Keys() []string {
	keys := make([]string, 0, len(a.m))
	for k := range a.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key has an entry.
func (a *AssetSetMap) Has(key string) bool {
	_, ok := a.m[key]
	return ok
}

// Delete removes the entry for key.
func (a *AssetSetMap) Delete(key string) {
	delete(a.m, key)
}

// Len returns the number of keys.
func (a *AssetSetMap) Len() int {
	return len(a.m)
}

// Clone returns a deep copy.
func (a *AssetSetMap) Clone() *AssetSetMap {
	c := NewAssetSetMap()
	c.Update(a)
	return c
}

// Entries returns a plain copy of the map with sorted values, handy for
// serialization.
func (a *AssetSetMap) Entries() map[string][]string {
	out := make(map[string][]string, len(a.m))
	for k, v := range a.m {
		out[k] = v.Sorted()
	}
	return out
}
