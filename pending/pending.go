// Package pending implements the in-memory hash table that buffers
// per-trigram insertions and deletions between syncs. Entries are created
// lazily on the first change to a trigram within a transaction, drained
// (and freed) by Drain, and discarded wholesale by Reset on rollback.
package pending

import "sort"

// Trigram is a 3-byte sequence packed little-endian into its low 24 bits:
// byte0 | byte1<<8 | byte2<<16.
type Trigram uint32

// bucketCount is a prime near 10^4, matching the fixed bucket count the
// original hash table design calls for.
const bucketCount = 9973

// MemoryThreshold is the default approximate-memory watermark (in bytes)
// at which a caller should trigger an implicit sync to bound pending-state
// size.
const MemoryThreshold = 1 << 20 // 1 MiB

type entry struct {
	trigram Trigram
	added   []int64
	removed []int64
	next    *entry
}

// approxSize estimates the bytes held by one entry, for backpressure.
func (e *entry) approxSize() int {
	const headerBytes = 32 // trigram + slice headers + next pointer, rough
	return headerBytes + 8*(cap(e.added)+cap(e.removed))
}

// Table is a fixed-bucket, open-chained hash table keyed by trigram. Each
// bucket's chain is ordered by ascending trigram value so lookups can stop
// early.
type Table struct {
	buckets [bucketCount]*entry
	memory  int
}

// New returns an empty pending table.
func New() *Table {
	return &Table{}
}

func hashOf(t Trigram) uint32 {
	return uint32(t) % bucketCount
}

// find locates the entry for trigram, and the entry immediately preceding
// it in the chain (nil if it would be the first). If no entry exists for
// trigram, entry is nil and prev is where a new entry should be linked
// after.
func (tb *Table) find(trigram Trigram) (e, prev *entry) {
	prev = nil
	e = tb.buckets[hashOf(trigram)]
	for e != nil && e.trigram < trigram {
		prev = e
		e = e.next
	}
	if e != nil && e.trigram != trigram {
		e = nil
	}
	return e, prev
}

func (tb *Table) link(e *entry, prev *entry, trigram Trigram) {
	if prev != nil {
		e.next = prev.next
		prev.next = e
		return
	}
	h := hashOf(trigram)
	e.next = tb.buckets[h]
	tb.buckets[h] = e
}

// unlink removes e (located via find, with its preceding node prev) from
// its bucket chain, once an Add/Remove cancellation has left it with
// nothing pending on either side.
func (tb *Table) unlink(trigram Trigram, prev, e *entry) {
	if prev != nil {
		prev.next = e.next
		return
	}
	tb.buckets[hashOf(trigram)] = e.next
}

func sortedInsert(s []int64, id int64) ([]int64, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
	if i < len(s) && s[i] == id {
		return s, false
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = id
	return s, true
}

func sortedRemove(s []int64, id int64) ([]int64, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
	if i >= len(s) || s[i] != id {
		return s, false
	}
	return append(s[:i], s[i+1:]...), true
}

// Add records that id should be added for trigram. If a pending removal of
// id is already buffered, it is cancelled instead (the two operations
// annihilate). Returns false if this is a no-op (id was already pending
// addition).
func (tb *Table) Add(trigram Trigram, id int64) bool {
	e, prev := tb.find(trigram)
	if e != nil {
		if removed, ok := sortedRemove(e.removed, id); ok {
			tb.memory -= 8
			e.removed = removed
			if len(e.added) == 0 && len(e.removed) == 0 {
				tb.unlink(trigram, prev, e)
			}
			return true
		}
	}
	if e == nil {
		e = &entry{trigram: trigram}
		tb.link(e, prev, trigram)
	}
	added, ok := sortedInsert(e.added, id)
	if !ok {
		return false
	}
	e.added = added
	tb.memory += 8
	return true
}

// Remove records that id should be removed for trigram, symmetric to Add.
func (tb *Table) Remove(trigram Trigram, id int64) bool {
	e, prev := tb.find(trigram)
	if e != nil {
		if added, ok := sortedRemove(e.added, id); ok {
			tb.memory -= 8
			e.added = added
			if len(e.added) == 0 && len(e.removed) == 0 {
				tb.unlink(trigram, prev, e)
			}
			return true
		}
	}
	if e == nil {
		e = &entry{trigram: trigram}
		tb.link(e, prev, trigram)
	}
	removed, ok := sortedInsert(e.removed, id)
	if !ok {
		return false
	}
	e.removed = removed
	tb.memory += 8
	return true
}

// Find returns the pending added/removed ids for trigram without draining
// them. The returned slices must not be mutated by the caller and are only
// valid until the next call to Add, Remove, Drain, or Reset.
func (tb *Table) Find(trigram Trigram) (added, removed []int64) {
	e, _ := tb.find(trigram)
	if e == nil {
		return nil, nil
	}
	return e.added, e.removed
}

// Change is one drained pending entry, handed to the Drain callback.
type Change struct {
	Trigram Trigram
	Added   []int64
	Removed []int64
}

// Drain visits every non-empty entry exactly once, passing it to fn, and
// removes the table's reference to it as it goes (entries become eligible
// for garbage collection once fn returns for them). If fn returns an
// error, Drain stops and returns it; entries already visited remain
// drained.
func (tb *Table) Drain(fn func(Change) error) error {
	for i := range tb.buckets {
		for e := tb.buckets[i]; e != nil; {
			next := e.next
			tb.buckets[i] = next
			if len(e.added) != 0 || len(e.removed) != 0 {
				if err := fn(Change{Trigram: e.trigram, Added: e.added, Removed: e.removed}); err != nil {
					return err
				}
			}
			e = next
		}
	}
	tb.memory = 0
	return nil
}

// IsEmpty reports whether the table holds any pending changes at all.
func (tb *Table) IsEmpty() bool {
	for _, e := range tb.buckets {
		if e != nil {
			return false
		}
	}
	return true
}

// Reset discards all pending changes without flushing them (used on
// rollback).
func (tb *Table) Reset() {
	for i := range tb.buckets {
		tb.buckets[i] = nil
	}
	tb.memory = 0
}

// ApproxMemory returns an approximate byte count of memory held by pending
// entries, for backpressure: callers should trigger a sync once this
// exceeds MemoryThreshold.
func (tb *Table) ApproxMemory() int {
	total := 0
	for _, e := range tb.buckets {
		for ; e != nil; e = e.next {
			total += e.approxSize()
		}
	}
	return total
}
