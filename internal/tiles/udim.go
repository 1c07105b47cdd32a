package tiles

import (
	"fmt"
	"path/filepath"
	"regexp"
)

var (
	mariToken   = regexp.MustCompile(`(?i)<udim>`)
	mudboxToken = regexp.MustCompile(`u<U>_v<V>`)
	zbrushToken = regexp.MustCompile(`(?i)<uvtile>|u<u>_v<v>`)

	// Literal fallbacks when the path names one concrete tile.
	mariLiteral = regexp.MustCompile(`\d{4}`)
	uvLiteral   = regexp.MustCompile(`u\d+_v\d+`)
)

const (
	mariTile = `\d{4}`
	uvTile   = `u\d+_v\d+`
)

// DetectUDIMMode implements Provider.
func (p *DiskProvider) DetectUDIMMode(path string) Mode {
	return DetectMode(path)
}

// DetectMode infers the tiling convention from tokens in the basename of path.
func DetectMode(path string) Mode {
	base := filepath.Base(path)
	switch {
	case mariToken.MatchString(base):
		return Mari
	case mudboxToken.MatchString(base):
		return Mudbox
	case zbrushToken.MatchString(base):
		return ZBrush
	}
	return None
}

// TilePattern compiles the regexp matching every tile basename of the set
// described by path. When path carries no tiling token, the last literal
// tile number in the basename is generalized instead.
func TilePattern(path string, mode Mode) (*regexp.Regexp, error) {
	base := filepath.Base(path)

	var token, literal *regexp.Regexp
	var tile string
	switch mode {
	case Mari:
		token, literal, tile = mariToken, mariLiteral, mariTile
	case ZBrush:
		token, literal, tile = zbrushToken, uvLiteral, uvTile
	case Mudbox:
		token, literal, tile = mudboxToken, uvLiteral, uvTile
	default:
		return nil, fmt.Errorf("%s is not a tile naming convention", mode)
	}

	if token.MatchString(base) {
		quoted := regexp.QuoteMeta(base)
		return regexp.MustCompile("^" + token.ReplaceAllLiteralString(quoted, tile) + "$"), nil
	}

	locs := literal.FindAllStringIndex(base, -1)
	if len(locs) == 0 {
		return regexp.MustCompile("^" + regexp.QuoteMeta(base) + "$"), nil
	}
	last := locs[len(locs)-1]
	pat := "^" + regexp.QuoteMeta(base[:last[0]]) + tile + regexp.QuoteMeta(base[last[1]:]) + "$"
	return regexp.MustCompile(pat), nil
}

// EnumerateUVTiles implements Provider. For None and Explicit the path
// itself is returned when it exists.
func (p *DiskProvider) EnumerateUVTiles(path string, mode Mode) ([]string, error) {
	path = filepath.Clean(path)
	if !mode.Vendor() {
		re := regexp.MustCompile("^" + regexp.QuoteMeta(filepath.Base(path)) + "$")
		return p.matchSiblings(filepath.Dir(path), re)
	}
	re, err := TilePattern(path, mode)
	if err != nil {
		return nil, err
	}
	return p.matchSiblings(filepath.Dir(path), re)
}
