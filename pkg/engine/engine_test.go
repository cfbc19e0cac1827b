package engine_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/civicwater/waterboard/pkg/engine/enginetest"
	"github.com/civicwater/waterboard/pkg/schema"
)

func newFileStore(t *testing.T, opts ...engine.Option) (*engine.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	p, err := engine.NewPersistence(dir)
	if err != nil {
		t.Fatalf("NewPersistence failed: %v", err)
	}
	return engine.NewFileStore(p, opts...), dir
}

func TestFileStore_Contract(t *testing.T) {
	enginetest.Run(t, func(t *testing.T, opts ...engine.Option) engine.RecordStore {
		s, _ := newFileStore(t, opts...)
		return s
	})
}

func TestMemStore_Contract(t *testing.T) {
	enginetest.Run(t, func(t *testing.T, opts ...engine.Option) engine.RecordStore {
		return engine.NewMemStore(nil, opts...)
	})
}

func TestFileStore_MissingAndCorruptFiles(t *testing.T) {
	var reasons []engine.ReadFailure
	s, dir := newFileStore(t, engine.WithReadHook(func(_ string, r engine.ReadFailure) {
		reasons = append(reasons, r)
	}))

	if got := s.Load(schema.Notices); len(got) != 0 {
		t.Errorf("Expected empty collection for missing file, got %v", got)
	}

	cases := map[string]string{
		schema.Schedule: "{not json",
		schema.Tanks:    `{"id": 1}`,
		schema.Plants:   "",
		schema.Users:    "null",
		schema.Messages: "[1, 2, 3]",
	}
	for name, content := range cases {
		if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if got := s.Load(name); got == nil || len(got) != 0 {
			t.Errorf("%s: expected empty collection, got %#v", name, got)
		}
	}

	if len(reasons) != 1+len(cases) {
		t.Fatalf("Expected %d degraded reads, got %v", 1+len(cases), reasons)
	}
	if reasons[0] != engine.ReadMissing {
		t.Errorf("Expected first reason missing, got %s", reasons[0])
	}
	for _, r := range reasons[1:] {
		if r != engine.ReadMalformed {
			t.Errorf("Expected malformed, got %s", r)
		}
	}
}

func TestFileStore_ReadsExternalEdits(t *testing.T) {
	s, dir := newFileStore(t)
	content := `[{"id": 4, "area": "Parvati", "timing": "06:00-08:00"}, null]`
	if err := os.WriteFile(filepath.Join(dir, "schedule.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	list := s.Load(schema.Schedule)
	if len(list) != 1 || list[0].String("area") != "Parvati" {
		t.Fatalf("Unexpected schedule: %v", list)
	}

	rec, err := s.Append(schema.Schedule, engine.Record{"area": "Lashkar"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if id, _ := rec.Int("id"); id != 5 {
		t.Errorf("Expected id 5, got %v", rec["id"])
	}

	// Integer ids must round-trip as integers, not floats.
	raw, _ := os.ReadFile(filepath.Join(dir, "schedule.json"))
	if !strings.Contains(string(raw), `"id": 4`) || !strings.Contains(string(raw), `"id": 5`) {
		t.Errorf("Ids not written as integers:\n%s", raw)
	}
}

func TestFileStore_PersistenceFailure(t *testing.T) {
	s, dir := newFileStore(t)
	if _, err := s.Append(schema.Notices, engine.Record{"title": "first"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Pull the data directory out from under the store.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}

	_, err := s.Append(schema.Notices, engine.Record{"title": "second"})
	if !errors.Is(err, engine.ErrPersistence) {
		t.Fatalf("Expected ErrPersistence, got %v", err)
	}
	var pe *engine.PersistenceError
	if !errors.As(err, &pe) || pe.Collection != schema.Notices || pe.Op != "append" {
		t.Errorf("Unexpected persistence error: %#v", err)
	}

	// Reads keep degrading quietly.
	if got := s.Load(schema.Notices); len(got) != 0 {
		t.Errorf("Expected empty read, got %v", got)
	}
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	s, dir := newFileStore(t)
	for i := 0; i < 3; i++ {
		s.Append(schema.Notices, engine.Record{"i": i})
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "notices.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only notices.json, got %v", names)
	}
}

func TestWriteHook(t *testing.T) {
	var ops []string
	ms := engine.NewMemStore(nil, engine.WithWriteHook(func(c, op string) {
		ops = append(ops, c+":"+op)
	}))
	rec, _ := ms.Append(schema.Notices, engine.Record{"title": "x"})
	ms.Update(schema.Notices, engine.ByID(rec["id"]), engine.Record{"title": "y"})
	ms.Delete(schema.Notices, engine.ByID(rec["id"]))
	ms.Delete(schema.Notices, engine.ByID(rec["id"]))

	want := []string{"notices:append", "notices:update", "notices:delete"}
	if strings.Join(ops, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, ops)
	}
}

func TestToken(t *testing.T) {
	cases := []struct {
		millis int64
		want   string
	}{
		{0, "MSG00000000"},
		{35, "MSG0000000Z"},
		// 36^8 rolls over to nine digits; only the last eight are kept.
		{2821109907456, "MSG00000000"},
		{1700000000000, "MSGLOYW3V28"},
	}
	for _, tc := range cases {
		if got := engine.Token("MSG", tc.millis); got != tc.want {
			t.Errorf("Token(%d) = %s, want %s", tc.millis, got, tc.want)
		}
	}
}

func TestTokenCollisionBumpsMillisecond(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	p := engine.PolicyFor(schema.Complaints)
	existing := []engine.Record{{"reference": engine.Token("CMP", at.UnixMilli())}}

	got := p.NextKey(existing, engine.Record{}, at)
	if got != engine.Token("CMP", at.UnixMilli()+1) {
		t.Errorf("Expected bumped token, got %v", got)
	}
}

func TestMatchers(t *testing.T) {
	rec := engine.Record{"id": 3, "reference": "CMPABCDEFGH"}
	for _, v := range []any{3, int64(3), float64(3), "3", " 3 "} {
		if !engine.ByID(v)(rec) {
			t.Errorf("ByID(%#v) did not match", v)
		}
	}
	if engine.ByID(4)(rec) {
		t.Error("ByID(4) should not match")
	}
	if !engine.ByReference("cmpabcdefgh")(rec) {
		t.Error("ByReference should be case-insensitive")
	}
	if engine.ByField("missing", "")(rec) {
		t.Error("Absent fields should never match")
	}
}

func TestMigrate(t *testing.T) {
	src := engine.NewMemStore(map[string][]engine.Record{
		schema.Notices:    {{"id": 1, "title": "Supply cut"}, {"id": 3, "title": "Tank cleaning"}},
		schema.Complaints: {{"reference": "CMP12345678", "status": "New"}},
	})
	dst, _ := newFileStore(t)

	n, err := engine.Migrate(src, dst)
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 records migrated, got %d", n)
	}

	notices := dst.Load(schema.Notices)
	if len(notices) != 2 || notices[1].String("id") != "3" {
		t.Errorf("Notices not preserved: %v", notices)
	}
	complaints := dst.Load(schema.Complaints)
	if len(complaints) != 1 || complaints[0].String("reference") != "CMP12345678" {
		t.Errorf("Complaints not preserved: %v", complaints)
	}
}

func TestListTyped(t *testing.T) {
	ms := engine.NewMemStore(nil)
	ms.Append(schema.Users, engine.Record{"name": "Meera", "role": "authority", "email": "meera@pmc.example"})

	users, err := engine.List[schema.UserRecord](ms, schema.Users)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(users) != 1 || users[0].ID != 1 || users[0].Role != schema.RoleAuthority {
		t.Errorf("Unexpected users: %+v", users)
	}

	rec, err := engine.Encode(schema.Notice{Title: "Low pressure"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if rec.String("title") != "Low pressure" {
		t.Errorf("Unexpected record: %v", rec)
	}
}
