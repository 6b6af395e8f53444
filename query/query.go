// Package query implements the lazy sorted-merge evaluator over trigram
// doclists: a binary expression tree of leaves (one per trigram) and
// AND/OR nodes that yields matching document ids in strictly ascending
// order without ever materializing a full doclist intersection.
package query

import (
	"math"

	"github.com/gotrigram/trigram/doclist"
	"github.com/gotrigram/trigram/pending"
)

// Trigram identifies a leaf's posting list.
type Trigram = pending.Trigram

// NoMore is the sentinel peek() value meaning "this subtree can never
// produce another candidate."
const NoMore = math.MaxInt64

// Expr is a node in the expression tree. Implementations are not safe for
// concurrent use; the core is single-threaded by design.
type Expr interface {
	// peek returns the smallest id the subtree could still match, or
	// NoMore if it is exhausted.
	peek() int64
	// consume reports whether target is in the subtree's result set and
	// advances state past it.
	consume(target int64) bool
	// Err returns the first decode error encountered by any leaf in the
	// subtree, if any.
	Err() error
}

type anyMarker struct{}

func (anyMarker) peek() int64         { panic("query: Any has no inherent candidate set; detect query.Any and use a full scan instead of evaluating it") }
func (anyMarker) consume(int64) bool  { panic("query: Any cannot be consumed; detect query.Any before evaluating") }
func (anyMarker) Err() error          { return nil }

type noneMarker struct{}

func (noneMarker) peek() int64        { return NoMore }
func (noneMarker) consume(int64) bool { return false }
func (noneMarker) Err() error         { return nil }

// Any is the sentinel expression matching every document id: a sound but
// maximally imprecise filter (e.g. from a pattern too short to trigram, or
// a regex whose prefilter extraction is ALL). Callers must special-case
// Any rather than evaluate it, typically by falling back to a full scan.
var Any Expr = anyMarker{}

// None is the sentinel expression matching no document id at all (e.g. a
// trigram with no stored doclist, or a regex prefilter of NONE). Its
// peek/consume behave correctly as an always-empty subtree, so unlike Any
// it may be evaluated directly — a Cursor over None simply yields nothing.
var None Expr = noneMarker{}

// IsAny reports whether e is the Any sentinel.
func IsAny(e Expr) bool { return e == Any }

// IsNone reports whether e is the None sentinel.
func IsNone(e Expr) bool { return e == None }

// Loader supplies the encoded doclist bytes for a trigram. It returns
// ok == false for a trigram with no stored doclist (treated as empty).
type Loader func(trigram Trigram) (data []byte, ok bool, err error)

type leaf struct {
	trigram   Trigram
	r         *doclist.Reader
	lastID    int64
	exhausted bool
	err       error
}

// Leaf builds the expression for a single trigram's doclist, loaded
// eagerly via load so the leaf is primed (peek already valid) on return.
// A trigram with no stored doclist, or an empty one, yields a leaf that
// behaves exactly like None: any AND containing it collapses to no
// matches, any OR containing it is unaffected, purely through the normal
// peek/consume recursion with no special-casing required.
func Leaf(trigram Trigram, load Loader) Expr {
	data, ok, err := load(trigram)
	l := &leaf{trigram: trigram}
	if err != nil {
		l.err = err
		l.exhausted = true
		return l
	}
	if !ok {
		l.exhausted = true
		return l
	}
	l.r = doclist.NewReader(data)
	l.advance()
	return l
}

func (l *leaf) advance() {
	id, ok, err := l.r.Next()
	if err != nil {
		if l.err == nil {
			l.err = err
		}
		l.exhausted = true
		return
	}
	if !ok {
		l.exhausted = true
		return
	}
	l.lastID = id
}

func (l *leaf) peek() int64 {
	if l.exhausted {
		return NoMore
	}
	return l.lastID
}

func (l *leaf) consume(target int64) bool {
	for !l.exhausted && l.lastID < target {
		l.advance()
	}
	result := !l.exhausted && l.lastID == target
	if !l.exhausted && l.lastID <= target {
		l.advance()
	}
	return result
}

func (l *leaf) Err() error { return l.err }

type andNode struct{ left, right Expr }

func (n *andNode) peek() int64 {
	lp, rp := n.left.peek(), n.right.peek()
	if lp > rp {
		return lp
	}
	return rp
}

func (n *andNode) consume(target int64) bool {
	// Both sides must be asked regardless of short-circuit, so that each
	// child's cursor advances past target.
	l := n.left.consume(target)
	r := n.right.consume(target)
	return l && r
}

func (n *andNode) Err() error {
	if err := n.left.Err(); err != nil {
		return err
	}
	return n.right.Err()
}

type orNode struct{ left, right Expr }

func (n *orNode) peek() int64 {
	lp, rp := n.left.peek(), n.right.peek()
	if lp < rp {
		return lp
	}
	return rp
}

func (n *orNode) consume(target int64) bool {
	l := n.left.consume(target)
	r := n.right.consume(target)
	return l || r
}

func (n *orNode) Err() error {
	if err := n.left.Err(); err != nil {
		return err
	}
	return n.right.Err()
}

// And combines two subtrees conjunctively.
func And(left, right Expr) Expr { return &andNode{left: left, right: right} }

// Or combines two subtrees disjunctively.
func Or(left, right Expr) Expr { return &orNode{left: left, right: right} }

// AndAll folds children with And, applying the short-circuit
// simplification rules: an Any child is dropped (it is the identity for
// AND); a None child collapses the whole conjunction to None; an empty
// list is Any.
func AndAll(children ...Expr) Expr {
	var kept []Expr
	for _, c := range children {
		if IsNone(c) {
			return None
		}
		if IsAny(c) {
			continue
		}
		kept = append(kept, c)
	}
	return foldTree(kept, Any, And)
}

// OrAll folds children with Or, applying the symmetric short-circuit
// rules: a None child is dropped (identity for OR); an Any child
// collapses the whole disjunction to Any; an empty list is None.
func OrAll(children ...Expr) Expr {
	var kept []Expr
	for _, c := range children {
		if IsAny(c) {
			return Any
		}
		if IsNone(c) {
			continue
		}
		kept = append(kept, c)
	}
	return foldTree(kept, None, Or)
}

func foldTree(kept []Expr, empty Expr, combine func(a, b Expr) Expr) Expr {
	if len(kept) == 0 {
		return empty
	}
	acc := kept[0]
	for _, e := range kept[1:] {
		acc = combine(acc, e)
	}
	return acc
}

// Cursor drives root's peek/consume loop to yield matching ids in
// strictly ascending order.
type Cursor struct {
	root Expr
	done bool
}

// NewCursor returns a Cursor over root. root must not be Any; callers are
// expected to detect Any beforehand and substitute a full scan.
func NewCursor(root Expr) *Cursor {
	return &Cursor{root: root}
}

// Next advances to the next matching id. ok is false once the expression
// is exhausted; a non-nil err alongside it distinguishes a decode failure
// partway through from a clean end.
func (c *Cursor) Next() (id int64, ok bool, err error) {
	if c.done {
		return 0, false, nil
	}
	for {
		t := c.root.peek()
		if t == NoMore {
			c.done = true
			return 0, false, c.root.Err()
		}
		if c.root.consume(t) {
			return t, true, nil
		}
	}
}
