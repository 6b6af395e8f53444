package vtab

import (
	"context"
	"sort"

	"github.com/gotrigram/trigram/pattern"
	"github.com/gotrigram/trigram/planner"
	"github.com/gotrigram/trigram/query"
	"github.com/gotrigram/trigram/store"
	"github.com/gotrigram/trigram/trgerr"
	"github.com/gotrigram/trigram/verify"
)

// candidate is one row id the active strategy proposes, optionally
// already carrying its text (FULL_SCAN and ID_LOOKUP read text and id
// together; MATCH_SCAN fetches text only after the id survives the
// trigram filter).
type candidate struct {
	id      int64
	text    []byte
	haveText bool
}

// candidateSource yields the next candidate in the strategy's order.
// ok is false, with a nil error, at a clean end of results.
type candidateSource func() (candidate, bool, error)

// Cursor drives one query: it walks a candidate source, fetching row
// text as needed and applying the match verifier, until it finds a row
// that survives every MATCH pattern.
type Cursor struct {
	table    *Table
	ctx      context.Context
	patterns []compiledPattern
	plan     planner.Plan
	state    cursorState

	source candidateSource
	rowIter store.RowIter // closed on reset, if FULL_SCAN opened one

	cur store.Row
}

// open primes the cursor's candidate source for the chosen strategy.
func (c *Cursor) open(expr query.Expr, idEquality *int64) error {
	switch c.plan.Strategy {
	case planner.IDLookup:
		return c.openIDLookup(*idEquality)
	case planner.MatchScan:
		return c.openMatchScan(expr)
	default:
		return c.openFullScan()
	}
}

func (c *Cursor) openIDLookup(id int64) error {
	text, ok, err := c.table.rows.Row(c.ctx, id)
	if err != nil {
		return err
	}
	done := false
	c.source = func() (candidate, bool, error) {
		if done || !ok {
			return candidate{}, false, nil
		}
		done = true
		return candidate{id: id, text: text, haveText: true}, true, nil
	}
	return nil
}

func (c *Cursor) openMatchScan(expr query.Expr) error {
	if query.IsAny(expr) {
		return trgerr.New(trgerr.StoreError, "vtab: MATCH_SCAN chosen with an unfilterable expression")
	}
	qc := query.NewCursor(expr)
	if c.plan.Ordering != planner.OrderDesc {
		c.source = func() (candidate, bool, error) {
			id, ok, err := qc.Next()
			if err != nil || !ok {
				return candidate{}, false, err
			}
			return candidate{id: id}, true, nil
		}
		return nil
	}
	// Descending order: the evaluator only produces ascending ids, so
	// buffer the full ascending result and walk it backwards. This
	// trades memory for correctness rather than re-deriving a descending
	// merge algorithm; acceptable since MATCH_SCAN candidate sets are
	// the narrow, already-filtered case.
	var ids []int64
	for {
		id, ok, err := qc.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		ids = append(ids, id)
	}
	pos := len(ids)
	c.source = func() (candidate, bool, error) {
		if pos == 0 {
			return candidate{}, false, nil
		}
		pos--
		return candidate{id: ids[pos]}, true, nil
	}
	return nil
}

func (c *Cursor) openFullScan() error {
	it, err := c.table.rows.Scan(c.ctx)
	if err != nil {
		return err
	}
	c.rowIter = it
	if c.plan.Ordering != planner.OrderDesc {
		c.source = func() (candidate, bool, error) {
			if !it.Next() {
				return candidate{}, false, it.Err()
			}
			r := it.Row()
			return candidate{id: r.ID, text: r.Text, haveText: true}, true, nil
		}
		return nil
	}
	var rows []store.Row
	for it.Next() {
		rows = append(rows, it.Row())
	}
	if err := it.Err(); err != nil {
		return err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	pos := 0
	c.source = func() (candidate, bool, error) {
		if pos >= len(rows) {
			return candidate{}, false, nil
		}
		r := rows[pos]
		pos++
		return candidate{id: r.ID, text: r.Text, haveText: true}, true, nil
	}
	return nil
}

func (c *Cursor) verifyAll(text []byte) bool {
	for _, p := range c.patterns {
		switch p.Kind {
		case pattern.Substr:
			if !verify.MatchSubstring(text, p.Body) {
				return false
			}
		case pattern.Regexp:
			if !verify.MatchRegexp(p.Regexp, text) {
				return false
			}
		}
	}
	return true
}

// Next advances the cursor to the next row satisfying every MATCH
// pattern (ROW -> ROW, or ROW -> EOF at the end). ok is false once
// exhausted.
func (c *Cursor) Next() (id int64, ok bool, err error) {
	for {
		cand, ok, err := c.source()
		if err != nil {
			return 0, false, err
		}
		if !ok {
			c.state = cursorEOF
			return 0, false, nil
		}
		text := cand.text
		if !cand.haveText {
			var rowOK bool
			text, rowOK, err = c.table.rows.Row(c.ctx, cand.id)
			if err != nil {
				return 0, false, err
			}
			if !rowOK {
				// Row was deleted after this id entered the candidate
				// stream (e.g. concurrent-with-scan mutation outside
				// the isolation the host is assumed to provide); skip.
				continue
			}
		}
		if !c.verifyAll(text) {
			continue
		}
		c.cur = store.Row{ID: cand.id, Text: text}
		c.state = cursorRow
		return cand.id, true, nil
	}
}

// Row returns the row at the cursor's current position. Valid only after
// a true result from Next.
func (c *Cursor) Row() store.Row { return c.cur }

// Extents reports the match locations of the i'th MATCH pattern (in
// Filter's rawPatterns order) against the row at the cursor's current
// position.
func (c *Cursor) Extents(i int) []verify.Extent {
	p := c.patterns[i]
	switch p.Kind {
	case pattern.Substr:
		return verify.SubstringExtents(c.cur.Text, p.Body)
	default:
		return verify.RegexpExtents(p.Regexp, c.cur.Text)
	}
}

// Reset releases the cursor's expression tree and row iterator, and
// returns it to INIT so it may be re-Filter'd (ROW/EOF -> (reset) ->
// INIT).
func (c *Cursor) Reset() error {
	if c.rowIter != nil {
		err := c.rowIter.Close()
		c.rowIter = nil
		c.source = nil
		c.state = cursorInit
		return err
	}
	c.source = nil
	c.state = cursorInit
	return nil
}
