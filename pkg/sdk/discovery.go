package sdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/civicwater/waterboard/internal/api"
	"github.com/civicwater/waterboard/internal/blob"
	"github.com/civicwater/waterboard/pkg/engine"
)

// AddrEnv names the variable holding a remote server address.
const AddrEnv = "WATERBOARD_ADDR"

// New returns a client for the environment.
// It uses the server in WATERBOARD_ADDR when one answers and otherwise serves
// requests in-process from the JSON files under dataDir, so callers do not
// care whether they are local or remote.
func New(ctx context.Context, dataDir string, opts ...Option) (*Client, error) {
	// 1. Check if a remote server is defined in the environment
	if addr := os.Getenv(AddrEnv); addr != "" {
		client, err := Connect(ctx, addr, opts...)
		if err == nil {
			return client, nil
		}
		// Unreachable servers fall through to embedded mode
	}

	// 2. Fall back to embedded mode
	return Embedded(dataDir, opts...)
}

// Embedded serves the full API in-process over the file store in dataDir.
// Attachments go to dataDir/uploads. The router logs through the client logger,
// and an http.Client given with WithHTTPClient has its Transport replaced.
func Embedded(dataDir string, opts ...Option) (*Client, error) {
	c, err := newClient("http://embedded", opts...)
	if err != nil {
		return nil, err
	}

	p, err := engine.NewPersistence(dataDir)
	if err != nil {
		return nil, err
	}
	blobs, err := blob.NewFS(filepath.Join(dataDir, "uploads"))
	if err != nil {
		return nil, err
	}
	router, err := api.NewRouter(&api.Handler{
		Store:  engine.NewFileStore(p, engine.WithLogger(c.log)),
		Blobs:  blobs,
		Logger: c.log,
	})
	if err != nil {
		return nil, err
	}

	c.http.Transport = handlerTransport{router}
	return c, nil
}

// handlerTransport answers requests by calling an http.Handler directly.
type handlerTransport struct{ h http.Handler }

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	t.h.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}
