// Package sqlitestore implements store.Store and store.RowStore on top of
// a pure-Go SQLite database (modernc.org/sqlite), following the table
// naming trilite used for its shadow tables: a `<name>_content` table holding
// row content and a `<name>_index` table holding trigram -> doclist blobs.
package sqlitestore

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/gotrigram/trigram/store"
	"github.com/gotrigram/trigram/trgerr"
)

// Store is a store.Store and store.RowStore backed by one SQLite table
// pair: name+"_content" for row content, name+"_index" for trigram doclists.
type Store struct {
	db   *sql.DB
	name string
	tx   *sql.Tx
}

// Open opens (creating if necessary) the shadow tables for an indexed
// column called name within db.
func Open(ctx context.Context, db *sql.DB, name string) (*Store, error) {
	s := &Store{db: db, name: name}
	if err := s.createTables(ctx); err != nil {
		return nil, trgerr.Wrap(trgerr.StoreError, err, "create shadow tables")
	}
	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS "` + s.name + `_content" (id INTEGER PRIMARY KEY, text BLOB)`,
		`CREATE TABLE IF NOT EXISTS "` + s.name + `_index" (trg INTEGER PRIMARY KEY, ids BLOB NOT NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// execer abstracts over *sql.DB and *sql.Tx so store methods work whether
// or not a transaction is open.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *Store) ex() execer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// OpenBlob implements store.Store.
func (s *Store) OpenBlob(ctx context.Context, trigram store.Trigram) (store.Blob, error) {
	row := s.ex().QueryRowContext(ctx, `SELECT ids FROM "`+s.name+`_index" WHERE trg = ?`, int64(trigram))
	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return store.Blob{}, nil
		}
		return store.Blob{}, trgerr.Wrap(trgerr.StoreError, err, "open blob")
	}
	return store.Blob{Bytes: data, Exists: true}, nil
}

// WriteBlob implements store.Store. Writing an empty slice removes the
// row for trigram instead of storing a zero-length blob.
func (s *Store) WriteBlob(ctx context.Context, trigram store.Trigram, data []byte) error {
	var err error
	if len(data) == 0 {
		_, err = s.ex().ExecContext(ctx, `DELETE FROM "`+s.name+`_index" WHERE trg = ?`, int64(trigram))
	} else {
		_, err = s.ex().ExecContext(ctx,
			`INSERT INTO "`+s.name+`_index" (trg, ids) VALUES (?, ?)
			 ON CONFLICT(trg) DO UPDATE SET ids = excluded.ids`,
			int64(trigram), data)
	}
	if err != nil {
		return trgerr.Wrap(trgerr.StoreError, err, "write blob")
	}
	return nil
}

// Begin implements store.Store.
func (s *Store) Begin(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return trgerr.Wrap(trgerr.StoreError, err, "begin")
	}
	s.tx = tx
	return nil
}

// Sync implements store.Store: commits and immediately reopens the
// transaction, so that buffered writes are durable without ending the
// caller's logical transaction scope.
func (s *Store) Sync(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	if err := s.tx.Commit(); err != nil {
		return trgerr.Wrap(trgerr.StoreError, err, "sync commit")
	}
	return s.Begin(ctx)
}

// Commit implements store.Store.
func (s *Store) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return trgerr.Wrap(trgerr.StoreError, err, "commit")
	}
	return nil
}

// Rollback implements store.Store.
func (s *Store) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil {
		return trgerr.Wrap(trgerr.StoreError, err, "rollback")
	}
	return nil
}

// Row implements store.RowStore.
func (s *Store) Row(ctx context.Context, id int64) ([]byte, bool, error) {
	row := s.ex().QueryRowContext(ctx, `SELECT text FROM "`+s.name+`_content" WHERE id = ?`, id)
	var text []byte
	if err := row.Scan(&text); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, trgerr.Wrap(trgerr.StoreError, err, "row lookup")
	}
	return text, true, nil
}

// PutRow stores (or replaces) the text content for id, used by callers
// populating the row-content store alongside index updates.
func (s *Store) PutRow(ctx context.Context, id int64, text []byte) error {
	_, err := s.ex().ExecContext(ctx,
		`INSERT INTO "`+s.name+`_content" (id, text) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET text = excluded.text`,
		id, text)
	if err != nil {
		return trgerr.Wrap(trgerr.StoreError, err, "put row")
	}
	return nil
}

// DeleteRow removes id from the row-content store.
func (s *Store) DeleteRow(ctx context.Context, id int64) error {
	_, err := s.ex().ExecContext(ctx, `DELETE FROM "`+s.name+`_content" WHERE id = ?`, id)
	if err != nil {
		return trgerr.Wrap(trgerr.StoreError, err, "delete row")
	}
	return nil
}

// Scan implements store.RowStore.
func (s *Store) Scan(ctx context.Context) (store.RowIter, error) {
	rows, err := s.ex().QueryContext(ctx, `SELECT id, text FROM "`+s.name+`_content" ORDER BY id ASC`)
	if err != nil {
		return nil, trgerr.Wrap(trgerr.StoreError, err, "scan")
	}
	return &rowIter{rows: rows}, nil
}

type rowIter struct {
	rows *sql.Rows
	cur  store.Row
	err  error
}

func (it *rowIter) Next() bool {
	if !it.rows.Next() {
		return false
	}
	var r store.Row
	if err := it.rows.Scan(&r.ID, &r.Text); err != nil {
		it.err = trgerr.Wrap(trgerr.StoreError, err, "scan row")
		return false
	}
	it.cur = r
	return true
}

func (it *rowIter) Row() store.Row { return it.cur }
func (it *rowIter) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}
func (it *rowIter) Close() error { return it.rows.Close() }
