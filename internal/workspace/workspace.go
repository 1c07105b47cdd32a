// Package workspace resolves texture paths stored on scene nodes into
// absolute, normalized paths.
package workspace

import (
	"os"
	"path/filepath"
	"strings"
)

// Expander turns a stored path into an absolute, normalized one.
type Expander interface {
	Expand(path string) string
}

// Resolver expands project-relative paths against Root.
//
// Variables ($NAME or ${NAME}) are looked up in Vars first, exactly and then
// ignoring case, and then in the process environment. Unknown variables are
// left verbatim so that host tokens such as <udim> and literal dollars
// survive.
type Resolver struct {
	Root string
	Vars map[string]string
}

// New returns a Resolver rooted at root. An empty root means the current
// working directory.
func New(root string, vars map[string]string) *Resolver {
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		}
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Resolver{Root: root, Vars: vars}
}

// Expand implements Expander. The empty path stays empty.
func (r *Resolver) Expand(path string) string {
	if path == "" {
		return ""
	}
	path = r.expandVars(path)
	path = filepath.FromSlash(path)
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.Root, path)
	}
	return filepath.Clean(path)
}

// expandVars replaces $NAME and ${NAME} where NAME is known. Anything else,
// including unknown names, $1, $$ and an unclosed ${, is copied through.
func (r *Resolver) expandVars(path string) string {
	if !strings.Contains(path, "$") {
		return path
	}
	var b strings.Builder
	for i := 0; i < len(path); {
		if path[i] != '$' {
			b.WriteByte(path[i])
			i++
			continue
		}
		name, width := varName(path[i+1:])
		if width == 0 {
			b.WriteByte('$')
			i++
			continue
		}
		if v, ok := r.lookup(name); ok {
			b.WriteString(v)
		} else {
			b.WriteString(path[i : i+1+width])
		}
		i += 1 + width
	}
	return b.String()
}

// varName reads a variable reference following a '$' and returns the name
// and the number of bytes it spans. width is 0 when s does not start with
// a reference.
func varName(s string) (name string, width int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 || nameLen(s[1:end]) != end-1 {
			return "", 0
		}
		return s[1:end], end + 1
	}
	n := nameLen(s)
	return s[:n], n
}

// nameLen is the length of the identifier at the start of s.
func nameLen(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' && i > 0:
		default:
			return i
		}
	}
	return len(s)
}

func (r *Resolver) lookup(name string) (string, bool) {
	if v, ok := r.Vars[name]; ok {
		return v, true
	}
	// Configuration layers may lower-case variable names.
	for k, v := range r.Vars {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return os.LookupEnv(name)
}

// Identity is an Expander that only cleans paths. It is useful when stored
// paths are already absolute.
type Identity struct{}

// Expand implements Expander.
func (Identity) Expand(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}
