// Package enginetest provides a behavioural test suite that every
// engine.RecordStore implementation must pass.
package enginetest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/civicwater/waterboard/pkg/schema"
)

// Factory builds a fresh, empty store for one subtest.
type Factory func(t *testing.T, opts ...engine.Option) engine.RecordStore

// FixedClock returns a clock that always reports the same instant.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("NumericIDsInAppendOrder", func(t *testing.T) {
		s := newStore(t)
		a, err := s.Append(schema.Notices, engine.Record{"name": "A"})
		if err != nil {
			t.Fatalf("Append A failed: %v", err)
		}
		b, err := s.Append(schema.Notices, engine.Record{"name": "B"})
		if err != nil {
			t.Fatalf("Append B failed: %v", err)
		}
		if id, _ := a.Int("id"); id != 1 {
			t.Errorf("Expected id 1 for A, got %v", a["id"])
		}
		if id, _ := b.Int("id"); id != 2 {
			t.Errorf("Expected id 2 for B, got %v", b["id"])
		}

		list := s.Load(schema.Notices)
		if len(list) != 2 || list[0].String("name") != "A" || list[1].String("name") != "B" {
			t.Fatalf("Expected [A B] in order, got %v", list)
		}
	})

	t.Run("NAppendsYieldUniqueReferences", func(t *testing.T) {
		// A frozen clock forces every token into the same millisecond.
		s := newStore(t, engine.WithClock(FixedClock(time.UnixMilli(1_700_000_000_000))))
		const n = 25
		for i := 0; i < n; i++ {
			if _, err := s.Append(schema.Notices, engine.Record{"n": i}); err != nil {
				t.Fatalf("Append notice %d failed: %v", i, err)
			}
			if _, err := s.Append(schema.Complaints, engine.Record{"n": i}); err != nil {
				t.Fatalf("Append complaint %d failed: %v", i, err)
			}
		}

		notices := s.Load(schema.Notices)
		if len(notices) != n {
			t.Fatalf("Expected %d notices, got %d", n, len(notices))
		}
		for i, r := range notices {
			if id, _ := r.Int("id"); id != int64(i+1) {
				t.Errorf("Notice %d: expected id %d, got %v", i, i+1, r["id"])
			}
		}

		complaints := s.Load(schema.Complaints)
		if len(complaints) != n {
			t.Fatalf("Expected %d complaints, got %d", n, len(complaints))
		}
		seen := make(map[string]bool)
		for _, r := range complaints {
			ref := r.String("reference")
			if seen[ref] {
				t.Errorf("Duplicate reference %s", ref)
			}
			seen[ref] = true
		}
	})

	t.Run("ContactMessageReference", func(t *testing.T) {
		s := newStore(t)
		rec, err := s.Append(schema.ContactMessages, engine.Record{
			"name":    "Asha",
			"email":   "asha@example.org",
			"message": "Low pressure in ward 4",
			"status":  "spoofed",
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		ref := rec.String("reference")
		if !strings.HasPrefix(ref, "MSG") || len(ref) != 11 {
			t.Errorf("Expected MSG + 8 chars, got %q", ref)
		}
		if ref != strings.ToUpper(ref) {
			t.Errorf("Expected upper-case reference, got %q", ref)
		}

		stored := s.Load(schema.ContactMessages)
		if len(stored) != 1 || stored[0].String("status") != "received" {
			t.Fatalf("Expected stored status received, got %v", stored)
		}
		if _, err := time.Parse(time.RFC3339, stored[0].String("receivedAt")); err != nil {
			t.Errorf("receivedAt is not an ISO-8601 instant: %v", err)
		}
	})

	t.Run("MaintenancePrefixBySector", func(t *testing.T) {
		s := newStore(t)
		cit, _ := s.Append(schema.MaintenanceRequests, engine.Record{"sector": "citizen"})
		ind, _ := s.Append(schema.MaintenanceRequests, engine.Record{"sector": "industrial"})
		if !strings.HasPrefix(cit.String("reference"), "CIT") {
			t.Errorf("Expected CIT prefix, got %s", cit.String("reference"))
		}
		if !strings.HasPrefix(ind.String("reference"), "IND") {
			t.Errorf("Expected IND prefix, got %s", ind.String("reference"))
		}
		if cit.String("status") != "New" {
			t.Errorf("Expected status New, got %s", cit.String("status"))
		}
	})

	t.Run("DeleteRemovesOnlyTarget", func(t *testing.T) {
		s := newStore(t)
		for _, name := range []string{"A", "B", "C"} {
			s.Append(schema.Notices, engine.Record{"name": name})
		}

		removed, err := s.Delete(schema.Notices, engine.ByID(2))
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if removed.String("name") != "B" {
			t.Errorf("Expected B removed, got %v", removed)
		}

		list := s.Load(schema.Notices)
		if len(list) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(list))
		}
		if list[0].String("name") != "A" || list[0].String("id") != "1" {
			t.Errorf("Record A changed: %v", list[0])
		}
		if list[1].String("name") != "C" || list[1].String("id") != "3" {
			t.Errorf("Record C changed: %v", list[1])
		}

		// Ids are not reused after deletion
		d, _ := s.Append(schema.Notices, engine.Record{"name": "D"})
		if id, _ := d.Int("id"); id != 4 {
			t.Errorf("Expected id 4 after delete, got %v", d["id"])
		}

		if _, err := s.Delete(schema.Notices, engine.ByID(2)); !errors.Is(err, engine.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdatePreservesSystemFields", func(t *testing.T) {
		s := newStore(t)
		rec, _ := s.Append(schema.Complaints, engine.Record{"name": "Ravi", "category": "leak"})
		ref := rec.String("reference")
		at := rec.String("receivedAt")

		updated, err := s.Update(schema.Complaints, engine.ByReference(strings.ToLower(ref)), engine.Record{
			"status":     "Resolved",
			"reference":  "CMPHIJACK1",
			"receivedAt": "1999-01-01T00:00:00.000Z",
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if updated.String("reference") != ref || updated.String("receivedAt") != at {
			t.Errorf("System fields changed: %v", updated)
		}
		if updated.String("status") != "Resolved" {
			t.Errorf("Expected status Resolved, got %v", updated["status"])
		}
		if updated.String("name") != "Ravi" || updated.String("category") != "leak" {
			t.Errorf("Untouched fields changed: %v", updated)
		}

		if _, err := s.Update(schema.Complaints, engine.ByReference("CMP00000000"), engine.Record{"status": "x"}); !errors.Is(err, engine.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ImportKeepsReferences", func(t *testing.T) {
		s := newStore(t)
		err := s.Import(schema.Users, []engine.Record{
			{"id": 7, "name": "Admin", "role": "admin"},
			{"id": 9, "name": "Officer", "role": "authority"},
		})
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		next, _ := s.Append(schema.Users, engine.Record{"name": "New"})
		if id, _ := next.Int("id"); id != 10 {
			t.Errorf("Expected id 10 after import, got %v", next["id"])
		}
		names, err := s.Collections()
		if err != nil {
			t.Fatalf("Collections failed: %v", err)
		}
		found := false
		for _, n := range names {
			if n == schema.Users {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected users in %v", names)
		}
	})

	t.Run("EmptyCollectionLoadsEmpty", func(t *testing.T) {
		s := newStore(t)
		list := s.Load(schema.Tanks)
		if list == nil || len(list) != 0 {
			t.Errorf("Expected empty non-nil sequence, got %#v", list)
		}
	})

	t.Run("InvalidCollectionName", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Append("../etc", engine.Record{}); !errors.Is(err, engine.ErrInvalidCollection) {
			t.Errorf("Expected ErrInvalidCollection, got %v", err)
		}
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		s := newStore(t)
		const (
			numGoroutines = 8
			numOps        = 15
		)
		var wg sync.WaitGroup
		errs := make(chan error, numGoroutines*numOps)
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOps; j++ {
					if _, err := s.Append(schema.Notices, engine.Record{"who": fmt.Sprintf("%d-%d", id, j)}); err != nil {
						errs <- err
					}
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("Concurrent append failed: %v", err)
		}

		list := s.Load(schema.Notices)
		if len(list) != numGoroutines*numOps {
			t.Fatalf("Lost updates: expected %d records, got %d", numGoroutines*numOps, len(list))
		}
		seen := make(map[string]bool)
		for _, r := range list {
			id := r.String("id")
			if seen[id] {
				t.Errorf("Duplicate id %s", id)
			}
			seen[id] = true
		}
	})
}
