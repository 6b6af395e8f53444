// Package doclist implements the delta+varint encoded, strictly increasing
// document-id lists ("doclists") that back every trigram's posting list.
//
// A doclist is a contiguous byte buffer encoding ids as varints over
// first-order deltas: the first entry is the id itself (delta from an
// implicit base of zero), every later entry is the difference from the
// previous id. An empty doclist is the empty buffer. Any truncation of a
// doclist at a varint boundary yields a shorter, still-valid doclist.
package doclist

import (
	"github.com/gotrigram/trigram/trgerr"
	"github.com/gotrigram/trigram/varint"
)

// ErrCorrupt is the sentinel wrapped (with call-site context, tagged
// trgerr.CorruptDoclist) when a doclist buffer does not decode cleanly: a
// varint is left unterminated at the end of the buffer, or the decoded ids
// are not strictly increasing.
var ErrCorrupt = trgerr.New(trgerr.CorruptDoclist, "doclist: corrupt")

// Reader streams ids out of an encoded doclist in ascending order.
type Reader struct {
	buf  []byte
	last int64
}

// NewReader returns a Reader positioned before the first id in buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Next decodes the next id. It returns ok == false when the buffer is
// exhausted, and an error if the buffer is malformed.
func (r *Reader) Next() (id int64, ok bool, err error) {
	if len(r.buf) == 0 {
		return 0, false, nil
	}
	delta, n := varint.Get(r.buf)
	if n == 0 {
		return 0, false, trgerr.Wrap(trgerr.CorruptDoclist, ErrCorrupt, "truncated varint")
	}
	r.buf = r.buf[n:]
	next := r.last + int64(delta)
	r.last = next
	return next, true, nil
}

// DecodeAll decodes every id in buf into a slice. It is a convenience
// wrapper around Reader for callers that do not need streaming access.
func DecodeAll(buf []byte) ([]int64, error) {
	r := NewReader(buf)
	var ids []int64
	for {
		id, ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if len(ids) > 0 && id <= ids[len(ids)-1] {
			return nil, trgerr.Wrapf(trgerr.CorruptDoclist, ErrCorrupt, "ids not strictly increasing: %d after %d", id, ids[len(ids)-1])
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Builder appends ids (which must be supplied in strictly increasing order)
// to an encoded doclist buffer.
type Builder struct {
	buf  []byte
	last int64
	any  bool
}

// NewBuilder returns an empty Builder, optionally pre-sizing its backing
// buffer to reduce reallocation (callers merging ADD ids of known count may
// pass len(existing) + len(add)*varint.MaxLen).
func NewBuilder(capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity)}
}

// Append encodes id as a delta from the previously appended id (or from the
// implicit base of zero for the first id). id must be strictly greater than
// the previous id.
func (b *Builder) Append(id int64) {
	if b.any && id <= b.last {
		panic("doclist: ids must be appended in strictly increasing order")
	}
	b.buf = varint.Append(b.buf, uint64(id-b.last))
	b.last = id
	b.any = true
}

// Bytes returns the encoded doclist built so far.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// EncodeAll encodes a strictly increasing slice of ids as a doclist.
func EncodeAll(ids []int64) []byte {
	b := NewBuilder(len(ids) * 2)
	for _, id := range ids {
		b.Append(id)
	}
	return b.Bytes()
}

// Merge produces the doclist for (decode(existing) ∪ add) \ remove, where
// add and remove are sorted, duplicate-free, and disjoint from each other.
// It performs a single linear three-way merge pass, as specified: existing
// ids that also appear in add are emitted once; existing or added ids that
// appear in remove are dropped.
func Merge(existing []byte, add, remove []int64) ([]byte, error) {
	old, err := DecodeAll(existing)
	if err != nil {
		return nil, err
	}
	out := NewBuilder(len(existing) + len(add)*varint.MaxLen)
	i, j := 0, 0 // i indexes old, j indexes add
	removeIdx := 0
	skipRemoved := func(id int64) bool {
		for removeIdx < len(remove) && remove[removeIdx] < id {
			removeIdx++
		}
		return removeIdx < len(remove) && remove[removeIdx] == id
	}
	for i < len(old) || j < len(add) {
		var id int64
		switch {
		case i >= len(old):
			id = add[j]
			j++
		case j >= len(add):
			id = old[i]
			i++
		case old[i] < add[j]:
			id = old[i]
			i++
		case add[j] < old[i]:
			id = add[j]
			j++
		default: // old[i] == add[j]: emit once
			id = old[i]
			i++
			j++
		}
		if skipRemoved(id) {
			continue
		}
		out.Append(id)
	}
	return out.Bytes(), nil
}
