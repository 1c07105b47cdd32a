package tiles

import (
	"path/filepath"
	"regexp"
	"strings"
)

// seqNameRe splits a file stem into (prefix)(separator)(optional signed frame).
// The prefix is lazy so the separator is the last non-digit before the frame.
var seqNameRe = regexp.MustCompile(`^(.*?)(\D)(-?\d*)$`)

// SequencePattern returns the regexp matching every basename of the frame
// sequence that path belongs to. ok is false when path cannot be part of a
// sequence.
func SequencePattern(path string) (re *regexp.Regexp, ok bool) {
	base := filepath.Base(filepath.Clean(path))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	m := seqNameRe.FindStringSubmatch(stem)
	if m == nil {
		return nil, false
	}
	pat := "^" + regexp.QuoteMeta(m[1]+m[2]) + `(-?)(\d+)` + regexp.QuoteMeta(ext) + "$"
	return regexp.MustCompile(pat), true
}

// FindSequenceSiblings implements Provider.
func (p *DiskProvider) FindSequenceSiblings(path string) ([]string, error) {
	path = filepath.Clean(path)
	re, ok := SequencePattern(path)
	if !ok {
		return nil, nil
	}
	return p.matchSiblings(filepath.Dir(path), re)
}
