// Package engine implements the record store behind every waterboard
// collection: one JSON array per collection, rewritten whole on each mutation.
package engine

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound is returned when no record satisfies a matcher.
	ErrNotFound = errors.New("record not found")
	// ErrPersistence marks a failed write of a collection. Match it with errors.Is.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidCollection is returned for collection names that cannot be mapped to a file.
	ErrInvalidCollection = errors.New("invalid collection name")
)

// PersistenceError wraps the underlying I/O error of a failed collection write.
type PersistenceError struct {
	Collection string
	Op         string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPersistence) match any PersistenceError.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Matcher selects records for Update and Delete.
type Matcher func(Record) bool

// --- Functional Interfaces ---

// RecordReader loads collections. Load never fails: a missing or corrupt
// collection reads as an empty sequence.
type RecordReader interface {
	Load(collection string) []Record
}

// RecordWriter mutates collections. Every write rewrites the whole collection.
type RecordWriter interface {
	// Append assigns the reference and timestamp fields and stores the record.
	Append(collection string, payload Record) (Record, error)
	// Update overwrites the given fields on the first matching record.
	Update(collection string, match Matcher, changes Record) (Record, error)
	// Delete removes the first matching record and returns it.
	Delete(collection string, match Matcher) (Record, error)
}

// Importer replaces a collection with records as given, keeping their references.
type Importer interface {
	Import(collection string, records []Record) error
}

// CollectionLister enumerates the collections a store holds.
type CollectionLister interface {
	Collections() ([]string, error)
}

// --- Composite Interface ---

// RecordStore is the full contract implemented by the file, memory and sqlite backends.
type RecordStore interface {
	RecordReader
	RecordWriter
	Importer
	CollectionLister
}

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidCollection reports whether name is usable as a collection name.
func ValidCollection(name string) bool {
	return collectionNamePattern.MatchString(name)
}
