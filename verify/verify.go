// Package verify implements the match verifier (§4.H): the scalar
// secondary filter applied to each row a cursor's trigram expression
// accepts as a candidate, rejecting any trigram-level false positive and
// optionally reporting match extents.
//
// Compilation (parsing a substring pattern's bytes, or compiling a
// regular expression) happens once per statement in the pattern and
// prefilter packages; the functions here are the cheap, stateless
// per-row check applied against that already-compiled state, which is
// what amortises cost across rows in place of SQLite's per-call-site
// auxiliary-data cache.
package verify

import (
	"bytes"
	"regexp"
)

// Extent is a matched byte range [Start, End) within the row text.
type Extent struct {
	Start, End int
}

// MatchSubstring reports whether text contains pattern as a literal byte
// sequence.
func MatchSubstring(text, pattern []byte) bool {
	return bytes.Contains(text, pattern)
}

// SubstringExtents returns every non-overlapping occurrence of pattern in
// text, in order of occurrence, scanning left to right and resuming each
// search immediately after the previous match.
func SubstringExtents(text, pattern []byte) []Extent {
	if len(pattern) == 0 {
		return nil
	}
	var extents []Extent
	offset := 0
	for {
		i := bytes.Index(text[offset:], pattern)
		if i < 0 {
			break
		}
		start := offset + i
		end := start + len(pattern)
		extents = append(extents, Extent{Start: start, End: end})
		offset = end
	}
	return extents
}

// MatchRegexp reports whether re has a partial (unanchored) match
// anywhere in text.
func MatchRegexp(re *regexp.Regexp, text []byte) bool {
	return re.Match(text)
}

// RegexpExtents returns every non-overlapping match of re in text, in
// order of occurrence: each search resumes at the end of the previous
// match, mirroring repeated calls to match(text, from).
func RegexpExtents(re *regexp.Regexp, text []byte) []Extent {
	locs := re.FindAllIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	extents := make([]Extent, len(locs))
	for i, loc := range locs {
		extents[i] = Extent{Start: loc[0], End: loc[1]}
	}
	return extents
}
