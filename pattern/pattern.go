// Package pattern parses a MATCH operand's pattern string — a prefix
// selecting substring or regex matching, boolean or extents-reporting —
// into a query.Expr trigram filter plus enough context for the verifier
// to apply as a secondary, exact check.
package pattern

import (
	"bytes"

	"github.com/gotrigram/trigram/pending"
	"github.com/gotrigram/trigram/query"
	"github.com/gotrigram/trigram/trgerr"
)

// Mode distinguishes boolean match patterns from extents-reporting ones.
type Mode int

const (
	// Boolean patterns report only whether a row matches.
	Boolean Mode = iota
	// Extents patterns additionally report (start, end) match locations.
	Extents
)

// Kind distinguishes the verification algorithm the pattern requires.
type Kind int

const (
	// Substr patterns are verified with an exact literal byte search.
	Substr Kind = iota
	// Regexp patterns are verified against a compiled regular expression.
	Regexp
)

const (
	prefixSubstr        = "substr:"
	prefixSubstrExtents = "substr-extents:"
	prefixRegexp        = "regexp:"
	prefixRegexpExtents = "regexp-extents:"
)

// Pattern is a parsed MATCH operand: a trigram filter expression plus the
// verification mode, kind, and the raw operand bytes the verifier needs
// (the literal substring, or the regex source).
type Pattern struct {
	Expr query.Expr
	Mode Mode
	Kind Kind
	Body []byte
}

// Parse splits raw on its recognised prefix and builds the corresponding
// trigram expression, loading each candidate trigram's doclist via load.
// buildRegexpExpr is supplied by the caller (the prefilter package) to
// avoid an import cycle between pattern and prefilter; it must compile
// body as a regular expression and lower its prefilter to a query.Expr.
func Parse(raw []byte, load query.Loader, buildRegexpExpr func(body []byte) (query.Expr, error)) (Pattern, error) {
	switch {
	case bytes.HasPrefix(raw, []byte(prefixSubstrExtents)):
		return substrPattern(raw[len(prefixSubstrExtents):], Extents, load)
	case bytes.HasPrefix(raw, []byte(prefixSubstr)):
		return substrPattern(raw[len(prefixSubstr):], Boolean, load)
	case bytes.HasPrefix(raw, []byte(prefixRegexpExtents)):
		return regexpPattern(raw[len(prefixRegexpExtents):], Extents, load, buildRegexpExpr)
	case bytes.HasPrefix(raw, []byte(prefixRegexp)):
		return regexpPattern(raw[len(prefixRegexp):], Boolean, load, buildRegexpExpr)
	default:
		return Pattern{}, trgerr.New(trgerr.BadPattern, "pattern must be a regular expression or a substring pattern")
	}
}

func substrPattern(body []byte, mode Mode, load query.Loader) (Pattern, error) {
	if len(body) == 0 {
		return Pattern{}, trgerr.New(trgerr.BadPattern, "pattern must be a regular expression or a substring pattern")
	}
	expr := SubstringExpr(body, load)
	return Pattern{Expr: expr, Mode: mode, Kind: Substr, Body: body}, nil
}

func regexpPattern(body []byte, mode Mode, load query.Loader, buildRegexpExpr func([]byte) (query.Expr, error)) (Pattern, error) {
	if len(body) == 0 {
		return Pattern{}, trgerr.New(trgerr.BadPattern, "pattern must be a regular expression or a substring pattern")
	}
	expr, err := buildRegexpExpr(body)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{Expr: expr, Mode: mode, Kind: Regexp, Body: body}, nil
}

// SubstringExpr builds the trigram expression for a literal substring per
// §4.F: ANY if the string is shorter than a trigram (verification alone
// still rejects false positives), otherwise the AND of every overlapping
// trigram it contains, with duplicate trigrams elided.
func SubstringExpr(body []byte, load query.Loader) query.Expr {
	if len(body) < 3 {
		return query.Any
	}
	seen := map[pending.Trigram]bool{}
	var leaves []query.Expr
	for i := 0; i+3 <= len(body); i++ {
		tg := Pack(body[i], body[i+1], body[i+2])
		if seen[tg] {
			continue
		}
		seen[tg] = true
		leaves = append(leaves, query.Leaf(tg, load))
	}
	return query.AndAll(leaves...)
}

// Pack packs three bytes into the little-endian 24-bit trigram value.
func Pack(b0, b1, b2 byte) pending.Trigram {
	return pending.Trigram(b0) | pending.Trigram(b1)<<8 | pending.Trigram(b2)<<16
}

// Trigrams returns every overlapping 3-byte trigram in s, in order of
// occurrence, with duplicates retained (used by callers, such as the
// indexer, that need the full multiset rather than the deduplicated AND
// expression).
func Trigrams(s []byte) []pending.Trigram {
	if len(s) < 3 {
		return nil
	}
	out := make([]pending.Trigram, 0, len(s)-2)
	for i := 0; i+3 <= len(s); i++ {
		out = append(out, Pack(s[i], s[i+1], s[i+2]))
	}
	return out
}
