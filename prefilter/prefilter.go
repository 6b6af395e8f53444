// Package prefilter lowers a compiled regular expression into a sound,
// necessary trigram boolean condition: a filter that every matching row
// must satisfy, so the query planner can narrow candidates before the
// match verifier confirms an exact match.
//
// The algorithm mirrors the structure trilite used when it asked RE2 for
// a Prefilter and lowered ALL/NONE/ATOM/AND/OR nodes into a trigram
// expression (see exprFromPreFilter in the original C++ source); Go has
// no equivalent prefilter-extraction library in this module's dependency
// set, so the AST walk over regexp/syntax that builds the ALL/NONE/ATOM/
// AND/OR tree is hand-written here, grounded on that same algorithm.
package prefilter

import (
	"regexp"
	"regexp/syntax"

	"github.com/gotrigram/trigram/pattern"
	"github.com/gotrigram/trigram/query"
	"github.com/gotrigram/trigram/trgerr"
)

// DefaultMaxMemory is the default compiled-program byte budget (§4.G:
// "bounded memory... default 8 MiB").
const DefaultMaxMemory = 8 << 20

// bytesPerInst approximates the memory an instruction in a compiled
// regexp program occupies, for budget enforcement.
const bytesPerInst = 16

// Options configures regex compilation and lowering.
type Options struct {
	// MaxMemory caps the compiled program's approximate byte size. Zero
	// selects DefaultMaxMemory.
	MaxMemory int
	// ForbidFullMatchScan causes Compile to return a no_prefilter error
	// instead of query.Any when no trigram filter can be derived.
	ForbidFullMatchScan bool
}

func (o Options) maxMemory() int {
	if o.MaxMemory <= 0 {
		return DefaultMaxMemory
	}
	return o.MaxMemory
}

// kind tags a node of the intermediate ALL/NONE/ATOM/AND/OR prefilter
// tree, before it is lowered into a query.Expr.
type kind int

const (
	kindAll kind = iota
	kindNone
	kindAtom
	kindAnd
	kindOr
)

// node's kindAtom carries a set of literal alternatives rather than a
// single byte string: "one of atoms matches here". A plain literal is a
// singleton set; a bounded character class expands to one alternative
// per character; concatenation cross-joins adjacent atom sets (see
// extractConcat) so "h" + [ae] + "l" becomes the pair {"hal", "hel"}
// instead of losing precision to ALL.
type node struct {
	kind  kind
	atoms [][]byte
	subs  []*node
}

// maxAtomAlternatives bounds both how many characters a single bounded
// class may expand into and how large a cross-join between adjacent
// atom sets may grow, so a run of character classes in a pattern like
// "[a-j][a-j][a-j]" cannot blow the prefilter tree up combinatorially.
// Exceeding it falls back to a coarser (but still sound) node rather
// than enumerating every combination.
const maxAtomAlternatives = 16

var allNode = &node{kind: kindAll}
var noneNode = &node{kind: kindNone}

// Compile parses pattern as a regular expression, enforcing opts'
// memory budget, and returns both the matcher used by the verifier
// (component H) and the lowered trigram filter expression (loaded via
// load). A pattern with no extractable prefilter yields query.Any unless
// opts.ForbidFullMatchScan is set, in which case it is an error.
func Compile(pattern_ []byte, load query.Loader, opts Options) (*regexp.Regexp, query.Expr, error) {
	src := string(pattern_)
	parsed, err := syntax.Parse(src, syntax.Perl)
	if err != nil {
		return nil, nil, trgerr.Wrapf(trgerr.BadPattern, err, "regexp: bad pattern %q", src)
	}
	prog, err := syntax.Compile(parsed.Simplify())
	if err != nil {
		return nil, nil, trgerr.Wrapf(trgerr.BadPattern, err, "regexp: compile %q", src)
	}
	if len(prog.Inst)*bytesPerInst > opts.maxMemory() {
		return nil, nil, trgerr.Wrapf(trgerr.BadPattern, errPatternTooLarge, "regexp: pattern %q exceeds memory budget", src)
	}

	re, err := regexp.Compile(src)
	if err != nil {
		return nil, nil, trgerr.Wrapf(trgerr.BadPattern, err, "regexp: bad pattern %q", src)
	}

	n := extract(parsed)
	if n.kind == kindNone {
		return re, query.None, nil
	}
	expr := lower(n, load)
	if query.IsAny(expr) && opts.ForbidFullMatchScan {
		return nil, nil, trgerr.Wrapf(trgerr.NoPrefilter, errNoPrefilter, "regexp: no trigram filter for %q", src)
	}
	return re, expr, nil
}

var errPatternTooLarge = trgerr.New(trgerr.BadPattern, "pattern too large")
var errNoPrefilter = trgerr.New(trgerr.NoPrefilter, "no prefilter derivable")

// extract walks a parsed regexp AST to an ALL/NONE/ATOM/AND/OR tree: a
// sound (never over-matching in the "required" direction) approximation
// of the substrings every match must contain.
func extract(re *syntax.Regexp) *node {
	switch re.Op {
	case syntax.OpNoMatch:
		return noneNode
	case syntax.OpEmptyMatch,
		syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary,
		syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return allNode
	case syntax.OpLiteral:
		if re.Flags&syntax.FoldCase != 0 {
			// A case-folded literal matches bytes other than its runes.
			return allNode
		}
		return &node{kind: kindAtom, atoms: [][]byte{runesToBytes(re.Rune)}}
	case syntax.OpCharClass:
		atoms, ok := expandCharClass(re.Rune)
		if !ok {
			return allNode
		}
		return &node{kind: kindAtom, atoms: atoms}
	case syntax.OpCapture:
		return extract(re.Sub[0])
	case syntax.OpPlus, syntax.OpRepeat:
		if re.Op == syntax.OpRepeat && re.Min < 1 {
			return allNode
		}
		n := extract(re.Sub[0])
		if n.kind == kindAtom {
			// Repeated text does not sit directly beside its neighbours
			// ("ab+c" matches "abbc"), so wrap the atom in a one-child AND
			// that extractConcat will not cross-join.
			return &node{kind: kindAnd, subs: []*node{n}}
		}
		return n
	case syntax.OpStar, syntax.OpQuest:
		return allNode
	case syntax.OpConcat:
		return extractConcat(re.Sub)
	case syntax.OpAlternate:
		var parts []*node
		for _, sub := range re.Sub {
			parts = append(parts, extract(sub))
		}
		return foldOr(parts)
	default:
		return allNode
	}
}

func runesToBytes(rs []rune) []byte {
	out := make([]byte, 0, len(rs))
	for _, r := range rs {
		out = append(out, []byte(string(r))...)
	}
	return out
}

// expandCharClass turns a syntax.Regexp.Rune range list (lo,hi pairs)
// into one atom per character, provided the class is small enough to
// bound; a class like [^a] or [a-z] that would expand past
// maxAtomAlternatives reports ok=false so the caller falls back to ALL.
func expandCharClass(ranges []rune) (atoms [][]byte, ok bool) {
	total := 0
	for i := 0; i+1 < len(ranges); i += 2 {
		total += int(ranges[i+1]-ranges[i]) + 1
		if total > maxAtomAlternatives {
			return nil, false
		}
	}
	if total == 0 {
		return nil, false
	}
	atoms = make([][]byte, 0, total)
	for i := 0; i+1 < len(ranges); i += 2 {
		for r := ranges[i]; r <= ranges[i+1]; r++ {
			atoms = append(atoms, []byte(string(r)))
		}
	}
	return atoms, true
}

// crossJoin concatenates every pair (a[i], b[j]) into a[i]+b[j], used to
// merge adjacent atom sets within a concatenation. It reports ok=false
// without merging when the product would exceed maxAtomAlternatives,
// leaving the two atoms as separate (still sound, just less precise)
// AND operands instead.
func crossJoin(a, b [][]byte) (joined [][]byte, ok bool) {
	if len(a)*len(b) > maxAtomAlternatives {
		return nil, false
	}
	joined = make([][]byte, 0, len(a)*len(b))
	for _, x := range a {
		for _, y := range b {
			joined = append(joined, append(append([]byte{}, x...), y...))
		}
	}
	return joined, true
}

// extractConcat extracts each child, then merges adjacent atom sets by
// cross product before folding the remainder with AND, so that e.g.
// "ab" + "cd" in sequence yields the single atom "abcd" rather than an
// AND of two 2-byte (sub-trigram) atoms, and "h" + [ae] + "l" yields the
// pair {"hal", "hel"} rather than collapsing the class to ALL.
func extractConcat(subs []*syntax.Regexp) *node {
	var parts []*node
	for _, s := range subs {
		parts = append(parts, extract(s))
	}
	var merged []*node
	for _, p := range parts {
		if n := len(merged); n > 0 && merged[n-1].kind == kindAtom && p.kind == kindAtom {
			if joined, ok := crossJoin(merged[n-1].atoms, p.atoms); ok {
				merged[n-1] = &node{kind: kindAtom, atoms: joined}
				continue
			}
		}
		merged = append(merged, p)
	}
	return foldAnd(merged)
}

// foldAnd applies §4.G's AND short-circuit rules: an ALL child is
// dropped; a NONE child collapses the whole node to NONE; an empty list
// is ALL.
func foldAnd(parts []*node) *node {
	var kept []*node
	for _, p := range parts {
		switch p.kind {
		case kindNone:
			return noneNode
		case kindAll:
			continue
		default:
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return allNode
	case 1:
		return kept[0]
	default:
		return &node{kind: kindAnd, subs: kept}
	}
}

// foldOr applies §4.G's OR short-circuit rules: a NONE child is dropped;
// an ALL child collapses the whole node to ALL; an empty list is NONE.
func foldOr(parts []*node) *node {
	var kept []*node
	for _, p := range parts {
		switch p.kind {
		case kindAll:
			return allNode
		case kindNone:
			continue
		default:
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return noneNode
	case 1:
		return kept[0]
	default:
		return &node{kind: kindOr, subs: kept}
	}
}

// lower maps the ALL/NONE/ATOM/AND/OR tree to a query.Expr per the table
// in §4.G.
func lower(n *node, load query.Loader) query.Expr {
	switch n.kind {
	case kindAll:
		return query.Any
	case kindNone:
		return query.None
	case kindAtom:
		if len(n.atoms) == 1 {
			return pattern.SubstringExpr(n.atoms[0], load)
		}
		exprs := make([]query.Expr, len(n.atoms))
		for i, a := range n.atoms {
			exprs[i] = pattern.SubstringExpr(a, load)
		}
		return query.OrAll(exprs...)
	case kindAnd:
		exprs := make([]query.Expr, len(n.subs))
		for i, s := range n.subs {
			exprs[i] = lower(s, load)
		}
		return query.AndAll(exprs...)
	case kindOr:
		exprs := make([]query.Expr, len(n.subs))
		for i, s := range n.subs {
			exprs[i] = lower(s, load)
		}
		return query.OrAll(exprs...)
	default:
		return query.Any
	}
}
