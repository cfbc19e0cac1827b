package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStoreHooks(t *testing.T) {
	m := New(nil)
	store := engine.NewMemStore(nil, m.StoreOptions()...)

	store.Append("notices", engine.Record{"title": "Valve repair"})
	store.Append("notices", engine.Record{"title": "Pipe burst"})

	if got := testutil.ToFloat64(m.recordsWritten.WithLabelValues("notices", "append")); got != 2 {
		t.Errorf("Expected 2 writes, got %v", got)
	}
}

func TestReadDegradation(t *testing.T) {
	m := New(nil)
	opts := engine.ResolveOptions(m.StoreOptions()...)
	opts.OnRead("tanks", engine.ReadMalformed)

	if got := testutil.ToFloat64(m.readDegraded.WithLabelValues("tanks", string(engine.ReadMalformed))); got != 1 {
		t.Errorf("Expected 1 degradation, got %v", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(func() int { return 3 })
	m.Denied("delete-complaint")
	m.Login("citizen", false)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/notices/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, id := range []string{"1", "2", "3"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notices/"+id, nil))
	}

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/notices/:id", "204")); got != 3 {
		t.Errorf("Expected 3 requests on one route label, got %v", got)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	for _, want := range []string{
		`waterboard_access_denied_total{operation="delete-complaint"} 1`,
		`waterboard_logins_total{outcome="denied",role="citizen"} 1`,
		`waterboard_sessions 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Metrics output missing %q", want)
		}
	}
}
