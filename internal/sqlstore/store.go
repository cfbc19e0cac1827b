// Package sqlstore is an embedded sqlite backend for engine.RecordStore.
// Each record is one row holding its JSON payload; row order is append order.
package sqlstore

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/civicwater/waterboard/pkg/engine"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS records (
	collection TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	ref        TEXT    NOT NULL,
	payload    BLOB    NOT NULL,
	PRIMARY KEY (collection, seq)
)`

const indexSQL = `CREATE INDEX IF NOT EXISTS records_ref ON records (collection, ref)`

// Store persists collections in a single sqlite table.
type Store struct {
	db   *sql.DB
	opts engine.Settings

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ engine.RecordStore = (*Store)(nil)

// Open opens (or creates) the sqlite database at path.
func Open(path string, opts ...engine.Option) (*Store, error) {
	if path == "" {
		path = "waterboard.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer; one connection keeps writes ordered.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{schemaSQL, indexSQL} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{
		db:    db,
		opts:  engine.ResolveOptions(opts...),
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) lock(collection string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		s.locks[collection] = l
	}
	return l
}

type row struct {
	seq int64
	rec engine.Record
}

func (s *Store) rows(collection string) ([]row, error) {
	rs, err := s.db.Query(`SELECT seq, payload FROM records WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = rs.Close() }()

	var out []row
	for rs.Next() {
		var (
			r       row
			payload []byte
		)
		if err := rs.Scan(&r.seq, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		if err := dec.Decode(&r.rec); err != nil || r.rec == nil {
			s.opts.Logger.Warn("skipping undecodable record", "collection", collection, "seq", r.seq, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

// loadRows is rows with the read-degradation policy applied.
func (s *Store) loadRows(collection string) []row {
	if !engine.ValidCollection(collection) {
		s.degraded(collection, engine.ReadUnreadable, engine.ErrInvalidCollection)
		return nil
	}
	out, err := s.rows(collection)
	if err != nil {
		s.degraded(collection, engine.ReadUnreadable, err)
		return nil
	}
	return out
}

func (s *Store) degraded(collection string, reason engine.ReadFailure, err error) {
	s.opts.Logger.Warn("collection unreadable, using empty collection",
		"collection", collection, "reason", string(reason), "error", err)
	if s.opts.OnRead != nil {
		s.opts.OnRead(collection, reason)
	}
}

func (s *Store) wrote(collection, op string) {
	if s.opts.OnWrite != nil {
		s.opts.OnWrite(collection, op)
	}
}

func records(rows []row) []engine.Record {
	out := make([]engine.Record, len(rows))
	for i, r := range rows {
		out[i] = r.rec
	}
	return out
}

// Load returns a collection in append order; failures read as empty.
func (s *Store) Load(collection string) []engine.Record {
	return records(s.loadRows(collection))
}

// Append stores a new record under the next sequence number.
func (s *Store) Append(collection string, payload engine.Record) (engine.Record, error) {
	if !engine.ValidCollection(collection) {
		return nil, engine.ErrInvalidCollection
	}
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	existing := s.loadRows(collection)
	p := engine.PolicyFor(collection)
	rec := p.Stamp(records(existing), payload, s.opts.Now())

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, &engine.PersistenceError{Collection: collection, Op: "append", Err: err}
	}
	_, err = s.db.Exec(
		`INSERT INTO records (collection, seq, ref, payload)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records WHERE collection = ?), ?, ?)`,
		collection, collection, rec.String(p.KeyField), data,
	)
	if err != nil {
		return nil, &engine.PersistenceError{Collection: collection, Op: "append", Err: err}
	}
	s.wrote(collection, "append")
	return rec, nil
}

// Update overwrites fields of the first matching record.
func (s *Store) Update(collection string, match engine.Matcher, changes engine.Record) (engine.Record, error) {
	if !engine.ValidCollection(collection) {
		return nil, engine.ErrInvalidCollection
	}
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	existing := s.loadRows(collection)
	i := engine.Index(records(existing), match)
	if i < 0 {
		return nil, engine.ErrNotFound
	}
	rec := engine.PolicyFor(collection).Apply(existing[i].rec, changes)

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, &engine.PersistenceError{Collection: collection, Op: "update", Err: err}
	}
	if _, err := s.db.Exec(`UPDATE records SET payload = ? WHERE collection = ? AND seq = ?`,
		data, collection, existing[i].seq); err != nil {
		return nil, &engine.PersistenceError{Collection: collection, Op: "update", Err: err}
	}
	s.wrote(collection, "update")
	return rec, nil
}

// Delete removes the first matching record.
func (s *Store) Delete(collection string, match engine.Matcher) (engine.Record, error) {
	if !engine.ValidCollection(collection) {
		return nil, engine.ErrInvalidCollection
	}
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	existing := s.loadRows(collection)
	i := engine.Index(records(existing), match)
	if i < 0 {
		return nil, engine.ErrNotFound
	}
	if _, err := s.db.Exec(`DELETE FROM records WHERE collection = ? AND seq = ?`,
		collection, existing[i].seq); err != nil {
		return nil, &engine.PersistenceError{Collection: collection, Op: "delete", Err: err}
	}
	s.wrote(collection, "delete")
	return existing[i].rec, nil
}

// Import replaces a collection inside one transaction.
func (s *Store) Import(collection string, recs []engine.Record) (retErr error) {
	if !engine.ValidCollection(collection) {
		return engine.ErrInvalidCollection
	}
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	fail := func(err error) error {
		return &engine.PersistenceError{Collection: collection, Op: "import", Err: err}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fail(err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.Exec(`DELETE FROM records WHERE collection = ?`, collection); err != nil {
		return fail(err)
	}
	key := engine.PolicyFor(collection).KeyField
	for i, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fail(err)
		}
		if _, err := tx.Exec(`INSERT INTO records (collection, seq, ref, payload) VALUES (?, ?, ?, ?)`,
			collection, i+1, rec.String(key), data); err != nil {
			return fail(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fail(err)
	}
	s.wrote(collection, "import")
	return nil
}

// Collections lists collections holding at least one record.
func (s *Store) Collections() ([]string, error) {
	rs, err := s.db.Query(`SELECT DISTINCT collection FROM records ORDER BY collection`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rs.Close() }()

	var names []string
	for rs.Next() {
		var name string
		if err := rs.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rs.Err()
}
