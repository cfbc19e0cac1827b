package engine

import (
	"sort"
	"sync"
)

// MemStore is an in-memory RecordStore with the same semantics as FileStore.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]Record
	opts Settings
}

// NewMemStore initializes a store, optionally seeded with existing collections.
func NewMemStore(initialData map[string][]Record, opts ...Option) *MemStore {
	data := make(map[string][]Record, len(initialData))
	for name, records := range initialData {
		data[name] = cloneAll(records)
	}
	return &MemStore{data: data, opts: ResolveOptions(opts...)}
}

// --- Interface Implementation ---

func (m *MemStore) Load(collection string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Return copies to prevent external mutation of the internal slices
	return cloneAll(m.data[collection])
}

func (m *MemStore) Append(collection string, payload Record) (Record, error) {
	if !ValidCollection(collection) {
		return nil, ErrInvalidCollection
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	records, rec := appendTo(m.data[collection], collection, payload, m.opts.Now())
	m.data[collection] = records
	m.wrote(collection, "append")
	return rec.Clone(), nil
}

func (m *MemStore) Update(collection string, match Matcher, changes Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := updateIn(m.data[collection], collection, match, changes)
	if err != nil {
		return nil, err
	}
	m.wrote(collection, "update")
	return rec.Clone(), nil
}

func (m *MemStore) Delete(collection string, match Matcher) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, removed, err := deleteFrom(m.data[collection], match)
	if err != nil {
		return nil, err
	}
	m.data[collection] = records
	m.wrote(collection, "delete")
	return removed, nil
}

func (m *MemStore) Import(collection string, records []Record) error {
	if !ValidCollection(collection) {
		return ErrInvalidCollection
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[collection] = cloneAll(records)
	m.wrote(collection, "import")
	return nil
}

func (m *MemStore) Collections() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data))
	for name := range m.data {
		list = append(list, name)
	}
	sort.Strings(list)
	return list, nil
}

// wrote MUST be called while holding m.mu.
func (m *MemStore) wrote(collection, op string) {
	if m.opts.OnWrite != nil {
		m.opts.OnWrite(collection, op)
	}
}
