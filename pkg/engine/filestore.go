package engine

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ReadHook is called whenever a collection load degrades to an empty sequence.
type ReadHook func(collection string, reason ReadFailure)

// WriteHook is called after every successful mutation with the operation name
// (append, update, delete, import).
type WriteHook func(collection, op string)

// Option configures a FileStore, MemStore or an external backend.
type Option func(*Settings)

// Settings is the resolved form of a list of Options. Backends outside this
// package obtain it through ResolveOptions.
type Settings struct {
	Logger  *slog.Logger
	Now     func() time.Time
	OnRead  ReadHook
	OnWrite WriteHook
}

// ResolveOptions applies opts over the defaults.
func ResolveOptions(opts ...Option) Settings {
	o := Settings{
		Logger: slog.Default(),
		Now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for read degradations.
func WithLogger(l *slog.Logger) Option {
	return func(o *Settings) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Settings) {
		if now != nil {
			o.Now = now
		}
	}
}

// WithReadHook registers a callback for degraded reads.
func WithReadHook(h ReadHook) Option {
	return func(o *Settings) { o.OnRead = h }
}

// WithWriteHook registers a callback for successful writes.
func WithWriteHook(h WriteHook) Option {
	return func(o *Settings) { o.OnWrite = h }
}

// FileStore is the JSON-file RecordStore. Each mutation reads the whole
// collection file, changes it in memory and rewrites it. Mutations of the
// same collection are serialised; different collections proceed in parallel.
type FileStore struct {
	persister *Persistence
	opts      Settings

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore returns a FileStore over the given persistence handler.
func NewFileStore(p *Persistence, opts ...Option) *FileStore {
	return &FileStore{
		persister: p,
		opts:      ResolveOptions(opts...),
		locks:     make(map[string]*sync.Mutex),
	}
}

// lock returns the mutex guarding one collection, creating it on first use.
func (s *FileStore) lock(collection string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		s.locks[collection] = l
	}
	return l
}

// Load reads a collection. Any failure yields an empty sequence.
func (s *FileStore) Load(collection string) []Record {
	records, err := s.persister.LoadCollection(collection)
	if err != nil {
		s.degraded(collection, err)
		return []Record{}
	}
	return records
}

func (s *FileStore) degraded(collection string, err error) {
	reason := ReadUnreadable
	var re *ReadError
	if errors.As(err, &re) {
		reason = re.Reason
	}

	if reason == ReadMissing {
		s.opts.Logger.Debug("collection file absent, using empty collection", "collection", collection)
	} else {
		s.opts.Logger.Warn("collection unreadable, using empty collection",
			"collection", collection, "reason", string(reason), "error", err)
	}
	if s.opts.OnRead != nil {
		s.opts.OnRead(collection, reason)
	}
}

func (s *FileStore) save(collection, op string, records []Record) error {
	if err := s.persister.SaveCollection(collection, records); err != nil {
		return &PersistenceError{Collection: collection, Op: op, Err: err}
	}
	if s.opts.OnWrite != nil {
		s.opts.OnWrite(collection, op)
	}
	return nil
}

// Append stores a new record and returns it with its system fields.
func (s *FileStore) Append(collection string, payload Record) (Record, error) {
	if !ValidCollection(collection) {
		return nil, ErrInvalidCollection
	}
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	records, rec := appendTo(s.Load(collection), collection, payload, s.opts.Now())
	if err := s.save(collection, "append", records); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Update overwrites fields of the first matching record.
func (s *FileStore) Update(collection string, match Matcher, changes Record) (Record, error) {
	if !ValidCollection(collection) {
		return nil, ErrInvalidCollection
	}
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	records := s.Load(collection)
	rec, err := updateIn(records, collection, match, changes)
	if err != nil {
		return nil, err
	}
	if err := s.save(collection, "update", records); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Delete removes the first matching record and returns it.
func (s *FileStore) Delete(collection string, match Matcher) (Record, error) {
	if !ValidCollection(collection) {
		return nil, ErrInvalidCollection
	}
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	records, removed, err := deleteFrom(s.Load(collection), match)
	if err != nil {
		return nil, err
	}
	if err := s.save(collection, "delete", records); err != nil {
		return nil, err
	}
	return removed, nil
}

// Import replaces a collection with the given records.
func (s *FileStore) Import(collection string, records []Record) error {
	if !ValidCollection(collection) {
		return ErrInvalidCollection
	}
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	return s.save(collection, "import", cloneAll(records))
}

// Collections lists the collection files present in the data directory.
func (s *FileStore) Collections() ([]string, error) {
	return s.persister.Names()
}
