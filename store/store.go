// Package store defines the host collaborators the trigram index core
// consumes: a keyed-blob store for doclists and a row-content store for
// the indexed text. Concrete adapters live in sub-packages (see
// store/sqlitestore).
package store

import "context"

// Trigram is a 3-byte sequence packed little-endian into its low 24 bits,
// mirroring pending.Trigram; store does not import pending to avoid a
// dependency cycle with packages that sit above both.
type Trigram uint32

// Blob is a doclist's bytes together with whether it existed at all. A
// missing blob is not an error: it is treated as an empty doclist.
type Blob struct {
	Bytes  []byte
	Exists bool
}

// Store is the index-store adapter required by §4.D: a persistent keyed
// blob store for doclists, with host-aligned transaction hooks. No
// assumption is made about block size or alignment; doclists are opaque
// byte blobs.
type Store interface {
	// OpenBlob returns the current bytes stored for trigram. A trigram
	// with no stored doclist returns a zero-value, non-existent Blob
	// rather than an error.
	OpenBlob(ctx context.Context, trigram Trigram) (Blob, error)

	// WriteBlob replaces (or creates) the doclist stored for trigram.
	// Passing an empty slice removes the blob's entry rather than storing
	// a zero-length blob, so that doclists which were fully drained by a
	// merge do not linger as empty rows.
	WriteBlob(ctx context.Context, trigram Trigram, data []byte) error

	// Begin starts a transaction scope aligned with the host's.
	Begin(ctx context.Context) error
	// Sync flushes buffered writes without ending the transaction.
	Sync(ctx context.Context) error
	// Commit ends the transaction scope, persisting all writes made
	// since Begin.
	Commit(ctx context.Context) error
	// Rollback ends the transaction scope, discarding all writes made
	// since Begin.
	Rollback(ctx context.Context) error
}

// Row is one indexed document: an identifier and its text content.
type Row struct {
	ID   int64
	Text []byte
}

// RowStore provides (id → text) lookup and ordered full scan over the
// indexed rows, the host's row-content store.
type RowStore interface {
	// Row fetches the text stored for id. ok is false if no row with
	// that id exists.
	Row(ctx context.Context, id int64) (text []byte, ok bool, err error)

	// Scan returns an iterator over every row in ascending id order,
	// for FULL_SCAN strategies. The returned RowIter must be closed.
	Scan(ctx context.Context) (RowIter, error)
}

// RowIter walks rows in ascending id order.
type RowIter interface {
	// Next advances to the next row, returning false at end of scan or
	// on error (check Err after a false return).
	Next() bool
	// Row returns the row at the iterator's current position. Valid
	// only after a true return from Next.
	Row() Row
	// Err returns the first error encountered by Next, if any.
	Err() error
	// Close releases resources held by the iterator.
	Close() error
}
