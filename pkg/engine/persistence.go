package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadFailure classifies why a collection file could not be loaded.
type ReadFailure string

const (
	ReadMissing    ReadFailure = "missing"
	ReadUnreadable ReadFailure = "unreadable"
	ReadMalformed  ReadFailure = "malformed"
)

// ReadError is returned by Persistence.LoadCollection. FileStore absorbs it.
type ReadError struct {
	Collection string
	Reason     ReadFailure
	Err        error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s (%s): %v", e.Collection, e.Reason, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Persistence handles the disk I/O for collection files: one
// <collection>.json file per collection under DataDir.
type Persistence struct {
	DataDir string
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	// Ensure the data directory exists
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir}, nil
}

func (p *Persistence) path(collection string) string {
	return filepath.Join(p.DataDir, collection+".json")
}

// LoadCollection reads and decodes a collection file. Errors are *ReadError.
func (p *Persistence) LoadCollection(collection string) ([]Record, error) {
	if !ValidCollection(collection) {
		return nil, &ReadError{Collection: collection, Reason: ReadUnreadable, Err: ErrInvalidCollection}
	}

	content, err := os.ReadFile(p.path(collection))
	if err != nil {
		reason := ReadUnreadable
		if errors.Is(err, fs.ErrNotExist) {
			reason = ReadMissing
		}
		return nil, &ReadError{Collection: collection, Reason: reason, Err: err}
	}

	records, err := decodeCollection(content)
	if err != nil {
		return nil, &ReadError{Collection: collection, Reason: ReadMalformed, Err: err}
	}
	return records, nil
}

// decodeCollection accepts exactly one JSON array of objects. Numbers are
// kept as json.Number so integer ids survive a rewrite unchanged.
func decodeCollection(content []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var raw []Record
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("trailing data after collection array")
	}
	if raw == nil {
		// A literal null is not an array.
		return nil, fmt.Errorf("collection is not an array")
	}

	records := make([]Record, 0, len(raw))
	for _, r := range raw {
		if r != nil {
			records = append(records, r)
		}
	}
	return records, nil
}

// SaveCollection writes a collection file atomically.
func (p *Persistence) SaveCollection(collection string, records []Record) error {
	if !ValidCollection(collection) {
		return ErrInvalidCollection
	}
	if records == nil {
		records = []Record{}
	}

	// 1. Convert records to JSON bytes
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	// 2. Write to a temporary file in the same directory
	tmp, err := os.CreateTemp(p.DataDir, "."+collection+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// 3. Atomic rename: readers see either the old file or the new one.
	return os.Rename(tmpName, p.path(collection))
}

// Names returns the collections that have a file in DataDir, sorted.
func (p *Persistence) Names() ([]string, error) {
	entries, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if ValidCollection(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
