package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/civicwater/waterboard/pkg/schema"
	"github.com/civicwater/waterboard/pkg/sdk"
	"github.com/gin-gonic/gin"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--data-dir", dir, "-q"}, args...))
	err := root.Execute()
	return out.String(), err
}

func setup(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv(sdk.AddrEnv, "")
	return t.TempDir()
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out)
	}
	return out
}

func TestUsersAddListRemove(t *testing.T) {
	dir := setup(t)

	out := mustRun(t, dir, "users", "add", "--name", "Officer Rao", "--role", "authority", "--email", "rao@water.gov")
	if !strings.Contains(out, "id 1") {
		t.Errorf("Expected id 1 in output, got %q", out)
	}
	mustRun(t, dir, "users", "add", "--name", "Asha", "--area-code", "W-12")

	out = mustRun(t, dir, "users", "list")
	if !strings.Contains(out, "Officer Rao") || !strings.Contains(out, "W-12") {
		t.Errorf("Unexpected list output:\n%s", out)
	}
	out = mustRun(t, dir, "users", "list", "--role", "citizen")
	if strings.Contains(out, "Officer Rao") {
		t.Errorf("Role filter not applied:\n%s", out)
	}

	mustRun(t, dir, "users", "remove", "2")
	if _, err := run(t, dir, "users", "remove", "2"); err == nil {
		t.Error("Expected an error removing a missing user")
	}
}

func TestUsersAddRejects(t *testing.T) {
	dir := setup(t)
	mustRun(t, dir, "users", "add", "--name", "Officer Rao", "--role", "authority", "--email", "rao@water.gov")

	cases := map[string][]string{
		"duplicate":      {"--name", "Rao 2", "--role", "authority", "--email", "RAO@water.gov"},
		"bad role":       {"--name", "X", "--role", "mayor", "--email", "x@water.gov"},
		"staff no email": {"--name", "X", "--role", "admin", "--area-code", "W-1"},
		"no identifier":  {"--name", "X"},
		"blank name":     {"--name", "  ", "--area-code", "W-1"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := run(t, dir, append([]string{"users", "add"}, args...)...); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestDump(t *testing.T) {
	dir := setup(t)
	mustRun(t, dir, "users", "add", "--name", "Asha", "--area-code", "W-12")

	out := mustRun(t, dir, "dump", schema.Users)
	var records []map[string]any
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("dump is not JSON: %v\n%s", err, out)
	}
	if len(records) != 1 || records[0]["name"] != "Asha" {
		t.Errorf("Unexpected dump: %v", records)
	}

	out = mustRun(t, dir, "dump", schema.Notices)
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("Expected an empty array, got %q", out)
	}

	if _, err := run(t, dir, "dump", "../etc"); err == nil {
		t.Error("Expected an error for an invalid collection name")
	}
}

func TestMigrateToSQLite(t *testing.T) {
	dir := setup(t)
	mustRun(t, dir, "users", "add", "--name", "Asha", "--area-code", "W-12")
	mustRun(t, dir, "users", "add", "--name", "Officer Rao", "--role", "authority", "--email", "rao@water.gov")

	db := filepath.Join(dir, "out.db")
	out := mustRun(t, dir, "migrate", "--to", "sqlite", "--target", db)
	if !strings.Contains(out, "Migrated 2 records") {
		t.Errorf("Unexpected migrate output: %q", out)
	}

	out = mustRun(t, dir, "--driver", "sqlite", "--sqlite-path", db, "users", "list")
	if !strings.Contains(out, "Officer Rao") {
		t.Errorf("Migrated users missing:\n%s", out)
	}

	if _, err := run(t, dir, "migrate", "--to", "csv", "--target", db); err == nil {
		t.Error("Expected an error for an unknown driver")
	}
}

func TestNoticesEmbedded(t *testing.T) {
	dir := setup(t)
	mustRun(t, dir, "users", "add", "--name", "Officer Rao", "--role", "authority", "--email", "rao@water.gov")

	out := mustRun(t, dir, "notices", "list")
	if !strings.Contains(out, "no notices") {
		t.Errorf("Expected empty notice list, got %q", out)
	}

	out = mustRun(t, dir, "notices", "publish", "Boil water advisory", "--as", "rao@water.gov", "--date", "2026-10-14")
	if !strings.Contains(out, "Published notice 1") {
		t.Errorf("Unexpected publish output: %q", out)
	}

	out = mustRun(t, dir, "notices", "list")
	if !strings.Contains(out, "Boil water advisory") || !strings.Contains(out, "2026-10-14") {
		t.Errorf("Notice missing from list:\n%s", out)
	}

	if _, err := run(t, dir, "notices", "publish", "x"); err == nil {
		t.Error("Expected an error without --as")
	}
	if _, err := run(t, dir, "notices", "publish", "x", "--as", "nobody@water.gov"); err == nil {
		t.Error("Expected an error for an unknown staff email")
	}
}

func TestComplaintsEmbedded(t *testing.T) {
	dir := setup(t)
	mustRun(t, dir, "users", "add", "--name", "Officer Rao", "--role", "authority", "--email", "rao@water.gov")

	citizen, err := sdk.Embedded(dir)
	if err != nil {
		t.Fatalf("Embedded failed: %v", err)
	}
	rc, err := citizen.SubmitComplaint(context.Background(), sdk.ComplaintInput{
		Name:        "Kiran",
		Phone:       "+91 98220 12345",
		AreaCode:    "W-12",
		Category:    "Low pressure",
		Description: "No water since morning",
	})
	if err != nil {
		t.Fatalf("SubmitComplaint failed: %v", err)
	}

	out := mustRun(t, dir, "complaints", "list", "--as", "rao@water.gov", "--status", "New")
	if !strings.Contains(out, rc.Reference) {
		t.Errorf("Complaint missing from list:\n%s", out)
	}

	out = mustRun(t, dir, "complaints", "set", strings.ToLower(rc.Reference), "resolved", "--as", "rao@water.gov", "--notes", "Valve replaced")
	if !strings.Contains(out, "Resolved") {
		t.Errorf("Unexpected set output: %q", out)
	}

	p, _ := engine.NewPersistence(dir)
	list, err := engine.List[schema.Complaint](engine.NewFileStore(p), schema.Complaints)
	if err != nil || len(list) != 1 || list[0].Notes != "Valve replaced" {
		t.Fatalf("Stored complaint = %+v, %v", list, err)
	}

	mustRun(t, dir, "complaints", "delete", rc.Reference, "--as", "rao@water.gov")
	out = mustRun(t, dir, "complaints", "list", "--as", "rao@water.gov")
	if !strings.Contains(out, "no complaints") {
		t.Errorf("Expected no complaints, got:\n%s", out)
	}
}
