package texture

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ErrNoMapping is returned when neither an exact nor a templated entry
// covers a path. Callers treat it as "no known relocation for this file".
var ErrNoMapping = errors.New("no mapping for path")

type pathToken struct {
	re      *regexp.Regexp
	pattern func(tok string) string
}

// Token vocabulary, checked in this order.
var pathTokens = []pathToken{
	{regexp.MustCompile(`(?i)<f>`), func(string) string { return `\d+` }},
	{regexp.MustCompile(`(?i)<udim>`), func(string) string { return `\d{4}` }},
	{regexp.MustCompile(`\?+`), func(tok string) string { return fmt.Sprintf(`\d{%d}`, len(tok)) }},
	{regexp.MustCompile(`#+`), func(tok string) string { return fmt.Sprintf(`\d{%d}`, len(tok)) }},
}

var lastDigits = regexp.MustCompile(`\d+`)

// TokenType returns the first token found in the basename of path, or "".
func TokenType(path string) string {
	base := filepath.Base(path)
	for _, t := range pathTokens {
		if m := t.re.FindString(base); m != "" {
			return m
		}
	}
	return ""
}

// TokenPattern returns the capturing regexp a token compiles to.
func TokenPattern(tokenType string) (string, error) {
	if tokenType == "" {
		return "", nil
	}
	for _, t := range pathTokens {
		if loc := t.re.FindStringIndex(tokenType); loc != nil && loc[0] == 0 {
			return "(" + t.pattern(tokenType) + ")", nil
		}
	}
	return "", fmt.Errorf("unknown token type %q", tokenType)
}

// compileTemplate turns a templated path into an anchored regexp whose first
// group captures the digits standing in for the token.
func compileTemplate(path string) (*regexp.Regexp, string, bool) {
	dir, base := filepath.Split(path)
	tok := TokenType(base)
	if tok == "" {
		return nil, "", false
	}
	pat, err := TokenPattern(tok)
	if err != nil {
		return nil, "", false
	}
	body := strings.ReplaceAll(regexp.QuoteMeta(base), regexp.QuoteMeta(tok), pat)
	return regexp.MustCompile("^" + regexp.QuoteMeta(dir) + body + "$"), tok, true
}

// Templatize replaces the last run of digits in the basename of path with a
// run of '?' of the same length, returning the templated path and the digits.
func Templatize(path string) (templated, digits string) {
	dir, base := filepath.Split(path)
	locs := lastDigits.FindAllStringIndex(base, -1)
	if len(locs) == 0 {
		return path, ""
	}
	last := locs[len(locs)-1]
	digits = base[last[0]:last[1]]
	base = base[:last[0]] + strings.Repeat("?", len(digits)) + base[last[1]:]
	return dir + base, digits
}

// CollapseSequences returns a PathTokenMap holding every entry of m plus,
// for each literal entry whose source and destination end in the same run
// of digits, a '?' entry standing for the rest of that sequence. Existing
// entries are never replaced.
func CollapseSequences(m Mapping) *PathTokenMap {
	p := NewPathTokenMap(m)
	for _, k := range m.Keys() {
		v := m[k]
		if TokenType(k) != "" || TokenType(v) != "" {
			continue
		}
		tk, dk := Templatize(k)
		tv, dv := Templatize(v)
		if dk == "" || dk != dv {
			continue
		}
		if _, ok := p.entries[filepath.Clean(tk)]; !ok {
			p.Set(tk, tv)
		}
	}
	return p
}

// TokenMatch is one fallback hit in a PathTokenMap.
type TokenMatch struct {
	Key    string // stored key that matched
	Digits string // digits captured for the token
	// Templated is true when the stored key carries the token and the query
	// is literal; false when the query carries the token.
	Templated bool
}

// PathTokenMap is a path mapping that falls back to token matching when a
// path has no exact entry, so a single entry can cover a whole frame
// sequence or UV tile set.
//
// Fallback lookups cost O(n) in the number of entries. When several entries
// match, templated-query matches win over templated-key matches and, within
// each group, the lexicographically smallest key wins.
type PathTokenMap struct {
	entries map[string]string
}

// NewPathTokenMap returns a map seeded with m.
func NewPathTokenMap(m map[string]string) *PathTokenMap {
	p := &PathTokenMap{entries: make(map[string]string, len(m))}
	for k, v := range m {
		p.Set(k, v)
	}
	return p
}

// Set stores an entry under the normalized key.
func (p *PathTokenMap) Set(key, value string) {
	p.entries[filepath.Clean(key)] = value
}

// Len returns the number of stored entries.
func (p *PathTokenMap) Len() int { return len(p.entries) }

// Mapping returns a copy of the stored entries.
func (p *PathTokenMap) Mapping() Mapping {
	out := make(Mapping, len(p.entries))
	for k, v := range p.entries {
		out[k] = v
	}
	return out
}

func (p *PathTokenMap) sortedKeys() []string {
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KeyMatches returns the fallback matches for query, best first.
func (p *PathTokenMap) KeyMatches(query string) []TokenMatch {
	query = filepath.Clean(query)
	keys := p.sortedKeys()

	var out []TokenMatch
	if re, _, ok := compileTemplate(query); ok {
		for _, k := range keys {
			if m := re.FindStringSubmatch(k); m != nil {
				out = append(out, TokenMatch{Key: k, Digits: m[1]})
			}
		}
	}
	for _, k := range keys {
		if k == query {
			continue
		}
		re, _, ok := compileTemplate(k)
		if !ok {
			continue
		}
		if m := re.FindStringSubmatch(query); m != nil {
			out = append(out, TokenMatch{Key: k, Digits: m[1], Templated: true})
		}
	}
	return out
}

// Get returns the destination for key. On an exact miss the first fallback
// match is used and the token travels into the returned value. A total miss
// returns an error wrapping ErrNoMapping.
func (p *PathTokenMap) Get(key string) (string, error) {
	query := filepath.Clean(key)
	if v, ok := p.entries[query]; ok {
		return v, nil
	}
	matches := p.KeyMatches(query)
	if len(matches) == 0 {
		return "", fmt.Errorf("%s: %w", key, ErrNoMapping)
	}
	m := matches[0]
	val := p.entries[m.Key]

	dir, base := filepath.Split(val)
	if m.Templated {
		tok := TokenType(base)
		if tok == "" {
			return val, nil
		}
		base = strings.ReplaceAll(base, tok, m.Digits)
	} else {
		base = strings.ReplaceAll(base, m.Digits, TokenType(query))
	}
	return filepath.Clean(dir + base), nil
}

// Lookup implements Lookup.
func (p *PathTokenMap) Lookup(key string) (string, bool) {
	v, err := p.Get(key)
	return v, err == nil
}

// Contains reports whether key has an exact or fallback entry.
func (p *PathTokenMap) Contains(key string) bool {
	if _, ok := p.entries[filepath.Clean(key)]; ok {
		return true
	}
	return len(p.KeyMatches(key)) > 0
}
