// Package storage selects the record backend from configuration.
package storage

import (
	"fmt"
	"io"

	"github.com/civicwater/waterboard/internal/config"
	"github.com/civicwater/waterboard/internal/sqlstore"
	"github.com/civicwater/waterboard/pkg/engine"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the RecordStore named by cfg.Driver and a closer releasing it.
// The app only sees the interface, so it does not care which backend is used.
func Open(cfg config.StoreConfig, opts ...engine.Option) (engine.RecordStore, io.Closer, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		// 1. Embedded database
		s, err := sqlstore.Open(cfg.SQLitePath, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s, nil

	case config.StoreJSON, "":
		// 2. Flat JSON files, one per collection
		p, err := engine.NewPersistence(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open json store: %w", err)
		}
		return engine.NewFileStore(p, opts...), nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
}
