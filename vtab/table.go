// Package vtab glues the trigram index core to a host store: it drains
// the pending hash table into persisted doclists on sync, applies
// row-level insert/delete against the row-content store, and builds
// cursors that plan and evaluate MATCH patterns. It plays the role
// trilite's vtable.c plays for SQLite, against the store package's
// narrower, host-agnostic interfaces instead of the SQLite virtual-table
// API directly.
package vtab

import (
	"context"
	"regexp"

	"github.com/gotrigram/trigram/doclist"
	"github.com/gotrigram/trigram/pattern"
	"github.com/gotrigram/trigram/pending"
	"github.com/gotrigram/trigram/planner"
	"github.com/gotrigram/trigram/prefilter"
	"github.com/gotrigram/trigram/query"
	"github.com/gotrigram/trigram/store"
	"github.com/gotrigram/trigram/trgerr"
)

// Config holds the table-level options recognised by §6: forbidding the
// full-scan fallback, and the regex compilation memory budget.
type Config struct {
	ForbidFullMatchScan bool
	MaxRegexpMemory     int
}

// Table is one indexed column: a row-content store, an index-blob store,
// and the in-memory pending hash table buffering changes between syncs.
type Table struct {
	rows   store.RowStore
	blobs  store.Store
	cfg    Config
	pend   *pending.Table
	state  txState
}

// Open wires a Table from its two backing stores. rows and blobs are
// typically the same *sqlitestore.Store value, satisfying both
// interfaces.
func Open(rows store.RowStore, blobs store.Store, cfg Config) *Table {
	return &Table{rows: rows, blobs: blobs, cfg: cfg, pend: pending.New(), state: txIdle}
}

// Begin starts a transaction scope, aligned with the host's (IDLE ->
// BEGIN).
func (t *Table) Begin(ctx context.Context) error {
	if t.state != txIdle {
		return trgerr.New(trgerr.StoreError, "vtab: Begin called outside IDLE state")
	}
	if err := t.blobs.Begin(ctx); err != nil {
		return err
	}
	t.state = txBegin
	return nil
}

func (t *Table) assertActive() error {
	if t.state != txBegin && t.state != txWork {
		return trgerr.New(trgerr.StoreError, "vtab: operation requires an open transaction")
	}
	return nil
}

// Insert adds a row and indexes its trigrams, buffering the index
// changes in the pending hash table. It triggers an implicit Sync if the
// pending table's approximate memory exceeds pending.MemoryThreshold
// (§4.C backpressure).
func (t *Table) Insert(ctx context.Context, id int64, text []byte) error {
	if err := t.assertActive(); err != nil {
		return err
	}
	rs, ok := t.rows.(interface {
		PutRow(ctx context.Context, id int64, text []byte) error
	})
	if !ok {
		return trgerr.New(trgerr.TypeError, "vtab: row store does not support writes")
	}
	if err := rs.PutRow(ctx, id, text); err != nil {
		return err
	}
	for _, tg := range dedupe(pattern.Trigrams(text)) {
		t.pend.Add(tg, id)
	}
	t.state = txWork
	return t.maybeImplicitSync(ctx)
}

// Update replaces a row's text, removing the trigrams only the old text
// contributed and adding the trigrams only the new text contributes.
// Trigrams common to both cancel out through the pending hash table's
// own add/remove annihilation, so an unchanged trigram never triggers a
// doclist rewrite on the next Sync. If the row does not yet exist,
// Update behaves like Insert.
func (t *Table) Update(ctx context.Context, id int64, text []byte) error {
	if err := t.assertActive(); err != nil {
		return err
	}
	oldText, existed, err := t.rows.Row(ctx, id)
	if err != nil {
		return err
	}
	rs, ok := t.rows.(interface {
		PutRow(ctx context.Context, id int64, text []byte) error
	})
	if !ok {
		return trgerr.New(trgerr.TypeError, "vtab: row store does not support writes")
	}
	if err := rs.PutRow(ctx, id, text); err != nil {
		return err
	}
	if existed {
		for _, tg := range dedupe(pattern.Trigrams(oldText)) {
			t.pend.Remove(tg, id)
		}
	}
	for _, tg := range dedupe(pattern.Trigrams(text)) {
		t.pend.Add(tg, id)
	}
	t.state = txWork
	return t.maybeImplicitSync(ctx)
}

// Delete removes a row and its trigrams from the pending index, first
// reading back the row's text to know which trigrams it contributed.
func (t *Table) Delete(ctx context.Context, id int64) error {
	if err := t.assertActive(); err != nil {
		return err
	}
	text, ok, err := t.rows.Row(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	rs, ok := t.rows.(interface {
		DeleteRow(ctx context.Context, id int64) error
	})
	if !ok {
		return trgerr.New(trgerr.TypeError, "vtab: row store does not support deletes")
	}
	if err := rs.DeleteRow(ctx, id); err != nil {
		return err
	}
	for _, tg := range dedupe(pattern.Trigrams(text)) {
		t.pend.Remove(tg, id)
	}
	t.state = txWork
	return t.maybeImplicitSync(ctx)
}

func dedupe(tgs []pending.Trigram) []pending.Trigram {
	seen := make(map[pending.Trigram]bool, len(tgs))
	out := tgs[:0]
	for _, tg := range tgs {
		if seen[tg] {
			continue
		}
		seen[tg] = true
		out = append(out, tg)
	}
	return out
}

func (t *Table) maybeImplicitSync(ctx context.Context) error {
	if t.pend.ApproxMemory() < pending.MemoryThreshold {
		return nil
	}
	return t.Sync(ctx)
}

// Sync drains the pending hash table into the index store by merging
// each entry's added/removed ids into its persisted doclist (§4.B), then
// flushes the store without ending the transaction. It may be called
// explicitly or triggered implicitly by memory pressure.
func (t *Table) Sync(ctx context.Context) error {
	if err := t.assertActive(); err != nil {
		return err
	}
	t.state = txSync
	err := t.pend.Drain(func(c pending.Change) error {
		blob, err := t.blobs.OpenBlob(ctx, store.Trigram(c.Trigram))
		if err != nil {
			return err
		}
		merged, err := doclist.Merge(blob.Bytes, c.Added, c.Removed)
		if err != nil {
			return trgerr.Wrapf(trgerr.CorruptDoclist, err, "sync trigram %d", c.Trigram)
		}
		return t.blobs.WriteBlob(ctx, store.Trigram(c.Trigram), merged)
	})
	if err != nil {
		t.state = txWork
		return err
	}
	if err := t.blobs.Sync(ctx); err != nil {
		t.state = txWork
		return err
	}
	t.state = txWork
	return nil
}

// Commit syncs any remaining pending changes and ends the transaction
// scope (SYNC -> COMMIT -> IDLE). Per the Transaction state machine,
// COMMIT must succeed if SYNC succeeded.
func (t *Table) Commit(ctx context.Context) error {
	if t.state != txIdle {
		if err := t.Sync(ctx); err != nil {
			return err
		}
	}
	t.state = txCommit
	if err := t.blobs.Commit(ctx); err != nil {
		return err
	}
	t.state = txIdle
	return nil
}

// Rollback discards pending entries and the store's buffered writes,
// returning to IDLE.
func (t *Table) Rollback(ctx context.Context) error {
	t.state = txRollback
	t.pend.Reset()
	if err := t.blobs.Rollback(ctx); err != nil {
		return err
	}
	t.state = txIdle
	return nil
}

// loadTrigram is the query.Loader backing a cursor: the persisted
// doclist for trigram, overlaid with whatever the pending hash table has
// buffered for it since the last sync.
func (t *Table) loadTrigram(ctx context.Context, tg pending.Trigram) ([]byte, bool, error) {
	blob, err := t.blobs.OpenBlob(ctx, store.Trigram(tg))
	if err != nil {
		return nil, false, err
	}
	added, removed := t.pend.Find(tg)
	if len(added) == 0 && len(removed) == 0 {
		if !blob.Exists {
			return nil, false, nil
		}
		return blob.Bytes, true, nil
	}
	merged, err := doclist.Merge(blob.Bytes, added, removed)
	if err != nil {
		return nil, false, trgerr.Wrapf(trgerr.CorruptDoclist, err, "trigram %d", tg)
	}
	if len(merged) == 0 {
		return nil, false, nil
	}
	return merged, true, nil
}

// compiledPattern is one parsed MATCH operand plus whatever compiled
// state the verifier needs to recheck it per row (nil Regexp for substr
// patterns).
type compiledPattern struct {
	pattern.Pattern
	Regexp *regexp.Regexp
}

func (t *Table) compilePattern(ctx context.Context, raw []byte) (compiledPattern, error) {
	load := func(tg pending.Trigram) ([]byte, bool, error) { return t.loadTrigram(ctx, tg) }
	var compiled compiledPattern
	build := func(body []byte) (query.Expr, error) {
		re, expr, err := prefilter.Compile(body, load, prefilter.Options{
			MaxMemory:           t.cfg.MaxRegexpMemory,
			ForbidFullMatchScan: t.cfg.ForbidFullMatchScan,
		})
		if err != nil {
			return nil, err
		}
		compiled.Regexp = re
		return expr, nil
	}
	p, err := pattern.Parse(raw, load, build)
	if err != nil {
		return compiledPattern{}, err
	}
	compiled.Pattern = p
	if p.Kind == pattern.Substr && query.IsAny(p.Expr) && t.cfg.ForbidFullMatchScan {
		return compiledPattern{}, trgerr.New(trgerr.NoPrefilter, "vtab: pattern too short for a trigram filter and forbid_full_match_scan is set")
	}
	return compiled, nil
}

// Filter builds a cursor for the given MATCH patterns (ANDed together)
// and, optionally, an equality constraint on the row-id column. It
// implements the Cursor state machine's INIT -> FILTERED transition: it
// picks a strategy via the planner, parses every pattern, and primes the
// candidate source, but does not yet position on a row.
func (t *Table) Filter(ctx context.Context, rawPatterns [][]byte, idEquality *int64, order planner.Ordering) (*Cursor, error) {
	patterns := make([]compiledPattern, 0, len(rawPatterns))
	exprs := make([]query.Expr, 0, len(rawPatterns))
	for _, raw := range rawPatterns {
		cp, err := t.compilePattern(ctx, raw)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, cp)
		exprs = append(exprs, cp.Expr)
	}
	combined := query.AndAll(exprs...)
	matchIsAny := query.IsAny(combined)

	plan := planner.Select(planner.Constraints{
		IDEquality:     idEquality != nil,
		HasMatch:       len(rawPatterns) > 0 && !matchIsAny,
		RequestedOrder: order,
	})

	c := &Cursor{table: t, patterns: patterns, plan: plan, ctx: ctx, state: cursorInit}
	if err := c.open(combined, idEquality); err != nil {
		return nil, err
	}
	c.state = cursorFiltered
	return c, nil
}
