package sdk_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/civicwater/waterboard/internal/api"
	"github.com/civicwater/waterboard/internal/blob"
	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/civicwater/waterboard/pkg/schema"
	"github.com/civicwater/waterboard/pkg/sdk"
	"github.com/gin-gonic/gin"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &api.Handler{
		Store: engine.NewMemStore(map[string][]engine.Record{
			schema.Users: {
				{"id": 1, "name": "Asha", "role": "citizen", "areaCode": "W-12"},
				{"id": 2, "name": "Officer Rao", "role": "authority", "email": "rao@water.gov"},
				{"id": 3, "name": "Admin", "role": "admin", "email": "admin@water.gov"},
			},
		}),
		Blobs:  blob.NewMemory(),
		Logger: quiet,
	}
	r, err := api.NewRouter(h)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func connect(t *testing.T, srv *httptest.Server) *sdk.Client {
	t.Helper()
	c, err := sdk.Connect(context.Background(), srv.URL, sdk.WithLogger(quiet))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return c
}

func complaint() sdk.ComplaintInput {
	return sdk.ComplaintInput{
		Name:        "Kiran",
		Phone:       "+91 98220 12345",
		AreaCode:    "W-12",
		Category:    "Low pressure",
		Description: "No water since morning",
	}
}

func TestPublicReads(t *testing.T) {
	c := connect(t, startServer(t))
	ctx := context.Background()

	notices, err := c.Notices(ctx)
	if err != nil {
		t.Fatalf("Notices failed: %v", err)
	}
	if len(notices) != 0 {
		t.Errorf("Expected no notices, got %d", len(notices))
	}

	key, err := c.MapConfig(ctx)
	if err != nil || key != "" {
		t.Errorf("MapConfig = %q, %v", key, err)
	}
}

func TestPublishNotice(t *testing.T) {
	c := connect(t, startServer(t))
	ctx := context.Background()

	p, err := c.Login(ctx, schema.RoleAuthority, "email", "RAO@water.gov ")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if p.Name != "Officer Rao" || p.Role != schema.RoleAuthority {
		t.Errorf("Unexpected principal: %+v", p)
	}

	n, err := c.PublishNotice(ctx, schema.Notice{Title: "Supply interruption", Date: "2026-10-14"})
	if err != nil {
		t.Fatalf("PublishNotice failed: %v", err)
	}
	if n.ID != 1 {
		t.Errorf("Expected id 1, got %d", n.ID)
	}

	notices, err := c.Notices(ctx)
	if err != nil || len(notices) != 1 || notices[0].Title != "Supply interruption" {
		t.Fatalf("Notices = %+v, %v", notices, err)
	}

	if err := c.DeleteNotice(ctx, n.ID); err != nil {
		t.Fatalf("DeleteNotice failed: %v", err)
	}
	if err := c.DeleteNotice(ctx, n.ID); !errors.Is(err, sdk.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestComplaintLifecycle(t *testing.T) {
	c := connect(t, startServer(t))
	ctx := context.Background()

	rc, err := c.SubmitComplaint(ctx, complaint(), sdk.Upload{Name: "meter.jpg", Content: strings.NewReader("jpeg")})
	if err != nil {
		t.Fatalf("SubmitComplaint failed: %v", err)
	}
	if !strings.HasPrefix(rc.Reference, schema.PrefixComplaint) || rc.Status != schema.StatusNew {
		t.Errorf("Unexpected receipt: %+v", rc)
	}

	if _, err := c.Login(ctx, schema.RoleAuthority, "email", "rao@water.gov"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	list, err := c.Complaints(ctx, "new")
	if err != nil {
		t.Fatalf("Complaints failed: %v", err)
	}
	if len(list) != 1 || len(list[0].Attachments) != 1 {
		t.Fatalf("Expected one complaint with one attachment, got %+v", list)
	}
	if list[0].Attachments[0].OriginalName != "meter.jpg" {
		t.Errorf("Unexpected attachment: %+v", list[0].Attachments[0])
	}

	notes := "Crew dispatched"
	updated, err := c.UpdateComplaint(ctx, rc.Reference, "resolved", &notes)
	if err != nil {
		t.Fatalf("UpdateComplaint failed: %v", err)
	}
	if updated.Status != schema.StatusResolved || updated.Notes != notes {
		t.Errorf("Unexpected update: %+v", updated)
	}

	if err := c.DeleteComplaint(ctx, rc.Reference); err != nil {
		t.Fatalf("DeleteComplaint failed: %v", err)
	}
	list, _ = c.Complaints(ctx, "")
	if len(list) != 0 {
		t.Errorf("Expected no complaints left, got %d", len(list))
	}
}

func TestErrorMapping(t *testing.T) {
	c := connect(t, startServer(t))
	ctx := context.Background()

	if _, err := c.PublishNotice(ctx, schema.Notice{Title: "x"}); !errors.Is(err, sdk.ErrForbidden) {
		t.Errorf("Expected ErrForbidden without a session, got %v", err)
	}
	if _, err := c.Login(ctx, schema.RoleCitizen, "code", "NOPE"); !errors.Is(err, sdk.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for unknown code, got %v", err)
	}
	if _, err := c.Me(ctx); !errors.Is(err, sdk.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized from Me, got %v", err)
	}
	_, err := c.SubmitContact(ctx, sdk.ContactInput{Name: "A", Email: "not-an-email", Message: "hi"})
	if !errors.Is(err, sdk.ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}
	var apiErr *sdk.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message == "" {
		t.Errorf("Expected a 400 APIError with a message, got %#v", err)
	}

	// A citizen session is still not enough for the dashboard
	if _, err := c.Login(ctx, schema.RoleCitizen, "code", "W-12"); err != nil {
		t.Fatalf("Citizen login failed: %v", err)
	}
	if _, err := c.Users(ctx); !errors.Is(err, sdk.ErrForbidden) {
		t.Errorf("Expected ErrForbidden for citizen, got %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
}

func TestUserAdmin(t *testing.T) {
	c := connect(t, startServer(t))
	ctx := context.Background()

	if _, err := c.Login(ctx, schema.RoleAdmin, "email", "admin@water.gov"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	u, err := c.CreateUser(ctx, schema.UserRecord{Name: "Meena", Role: schema.RoleCitizen, AreaCode: "E-4"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.ID != 4 {
		t.Errorf("Expected id 4, got %d", u.ID)
	}
	if _, err := c.CreateUser(ctx, schema.UserRecord{Name: "Meena", Role: schema.RoleCitizen, AreaCode: "E-4"}); !errors.Is(err, sdk.ErrInvalid) {
		t.Errorf("Expected conflict as ErrInvalid, got %v", err)
	}
	if err := c.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	users, err := c.Users(ctx)
	if err != nil || len(users) != 3 {
		t.Errorf("Users = %d, %v", len(users), err)
	}
}

func TestRetriesIdempotentRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if r.URL.Path == "/health" {
			return
		}
		if r.Method == http.MethodGet && n < 4 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := connect(t, srv)
	ctx := context.Background()

	// health + two failures + success
	if _, err := c.Notices(ctx); err != nil {
		t.Fatalf("Notices failed after retries: %v", err)
	}
	if got := hits.Load(); got != 4 {
		t.Errorf("Expected 4 requests, got %d", got)
	}

	hits.Store(100)
	_, err := c.SubmitContact(ctx, sdk.ContactInput{Name: "A", Email: "a@b.co", Message: "hi"})
	if !errors.Is(err, sdk.ErrServer) {
		t.Errorf("Expected ErrServer, got %v", err)
	}
	if got := hits.Load(); got != 101 {
		t.Errorf("POST must not be retried, saw %d requests", got-100)
	}
}

func TestEmbedded(t *testing.T) {
	dir := t.TempDir()
	gin.SetMode(gin.TestMode)
	c, err := sdk.Embedded(dir, sdk.WithLogger(quiet))
	if err != nil {
		t.Fatalf("Embedded failed: %v", err)
	}
	ctx := context.Background()

	rc, err := c.SubmitContact(ctx, sdk.ContactInput{Name: "Asha", Email: "asha@example.com", Message: "Leak near the park"})
	if err != nil {
		t.Fatalf("SubmitContact failed: %v", err)
	}
	if !strings.HasPrefix(rc.Reference, schema.PrefixContactMessage) {
		t.Errorf("Unexpected reference %q", rc.Reference)
	}
	if _, err := os.Stat(filepath.Join(dir, schema.ContactMessages+".json")); err != nil {
		t.Errorf("Expected the collection file on disk: %v", err)
	}
}

func TestNewFallsBackToEmbedded(t *testing.T) {
	t.Setenv(sdk.AddrEnv, "127.0.0.1:1")
	gin.SetMode(gin.TestMode)

	c, err := sdk.New(context.Background(), t.TempDir(), sdk.WithAttempts(1), sdk.WithLogger(quiet))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Embedded client is not healthy: %v", err)
	}
}

func TestConnectRejectsBadAddress(t *testing.T) {
	if _, err := sdk.Connect(context.Background(), "http://", sdk.WithAttempts(1)); err == nil {
		t.Error("Expected an error for an address without a host")
	}
}
