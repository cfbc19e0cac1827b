package engine

import "fmt"

// Migrate copies collections from src to dst, keeping every reference.
// With no names given, every collection src reports is copied.
// This works for:
// - JSON files -> sqlite (the "Upgrade")
// - sqlite -> JSON files (the "Export")
func Migrate(src RecordStore, dst Importer, names ...string) (int, error) {
	// 1. Decide which collections to move
	if len(names) == 0 {
		list, err := src.Collections()
		if err != nil {
			return 0, fmt.Errorf("failed to list collections: %w", err)
		}
		names = list
	}

	total := 0
	for _, name := range names {
		// 2. Read the full collection from the source
		records := src.Load(name)

		// 3. Replace the destination collection in one write
		if err := dst.Import(name, records); err != nil {
			return total, fmt.Errorf("failed to import collection %s: %w", name, err)
		}
		total += len(records)
	}

	return total, nil
}
