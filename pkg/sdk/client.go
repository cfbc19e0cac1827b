// Package sdk is the client library for the waterboard HTTP API.
// It talks to a running server, or serves requests in-process from a local
// data directory when no server is configured.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/civicwater/waterboard/pkg/schema"
)

const defaultAttempts = 3

// Client is a session-holding client for the waterboard API.
// It implements the Waterboard interface.
type Client struct {
	base     string
	http     *http.Client
	attempts int
	log      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. A cookie jar is added
// when it has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger routes retry diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithAttempts sets how many times idempotent requests are tried.
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// Connect returns a client for the server at addr and checks /health.
// A bare host:port is treated as http.
func Connect(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c, err := newClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Health(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(addr string, opts ...Option) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid server address %q", addr)
	}

	c := &Client{
		base:     strings.TrimRight(u.String(), "/"),
		attempts: defaultAttempts,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	return c, nil
}

// retryable reports whether a failed attempt may be repeated.
func retryable(method string, status int) bool {
	if method != http.MethodGet && method != http.MethodPut && method != http.MethodDelete {
		return false
	}
	return status == 0 || status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout
}

// send performs one API call. Idempotent methods are retried with backoff on
// transport errors and gateway failures.
func (c *Client) send(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	var lastErr error
	for i := 0; i < c.attempts; i++ {
		status, err := c.once(ctx, method, path, contentType, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(method, status) || i == c.attempts-1 {
			break
		}

		c.log.Warn("waterboard request failed, retrying", "method", method, "path", path, "attempt", i+1, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration((i+1)*200) * time.Millisecond):
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, path, contentType string, body []byte, out any) (int, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}
	return c.send(ctx, method, path, "application/json", body, out)
}

// --- Generics Support ---

// List fetches any public collection and decodes it into T.
func List[T any](ctx context.Context, c *Client, collection string) ([]T, error) {
	var out []T
	if err := c.send(ctx, http.MethodGet, "/api/"+collection, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	return c.send(ctx, http.MethodGet, "/health", "", nil, nil)
}

// --- Public listings ---

func (c *Client) Notices(ctx context.Context) ([]schema.Notice, error) {
	return List[schema.Notice](ctx, c, schema.Notices)
}

func (c *Client) Schedule(ctx context.Context) ([]schema.ScheduleEntry, error) {
	return List[schema.ScheduleEntry](ctx, c, schema.Schedule)
}

// MapConfig returns the browser maps key the server is configured with.
func (c *Client) MapConfig(ctx context.Context) (string, error) {
	var out struct {
		GoogleMapsKey string `json:"googleMapsKey"`
	}
	err := c.send(ctx, http.MethodGet, "/api/map-config", "", nil, &out)
	return out.GoogleMapsKey, err
}

// --- Intake ---

func (c *Client) SubmitContact(ctx context.Context, in ContactInput) (Receipt, error) {
	var out Receipt
	err := c.sendJSON(ctx, http.MethodPost, "/api/contact", in, &out)
	return out, err
}

func (c *Client) SubmitMaintenance(ctx context.Context, in MaintenanceInput, files ...Upload) (Receipt, error) {
	return c.submit(ctx, "/api/maintenance", in, files)
}

func (c *Client) SubmitComplaint(ctx context.Context, in ComplaintInput, files ...Upload) (Receipt, error) {
	return c.submit(ctx, "/api/complaints", in, files)
}

// submit posts JSON, or a multipart form when files are attached.
func (c *Client) submit(ctx context.Context, path string, in any, files []Upload) (Receipt, error) {
	var out Receipt
	if len(files) == 0 {
		err := c.sendJSON(ctx, http.MethodPost, path, in, &out)
		return out, err
	}

	body, contentType, err := multipartBody(in, files)
	if err != nil {
		return out, err
	}
	err = c.send(ctx, http.MethodPost, path, contentType, body, &out)
	return out, err
}

// multipartBody writes the JSON fields of in as form values followed by the
// files under "attachments".
func multipartBody(in any, files []Upload) ([]byte, string, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, "", err
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile("attachments", f.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// --- Session ---

func (c *Client) Login(ctx context.Context, role schema.Role, method, identifier string) (schema.Principal, error) {
	var out struct {
		Principal schema.Principal `json:"principal"`
	}
	in := map[string]string{"role": string(role), "method": method, "identifier": identifier}
	err := c.sendJSON(ctx, http.MethodPost, "/api/auth/login", in, &out)
	return out.Principal, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.sendJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (schema.Principal, error) {
	var out struct {
		Principal schema.Principal `json:"principal"`
	}
	err := c.send(ctx, http.MethodGet, "/api/auth/me", "", nil, &out)
	return out.Principal, err
}

// --- Dashboard ---

func (c *Client) PublishNotice(ctx context.Context, n schema.Notice) (schema.Notice, error) {
	in := map[string]string{"title": n.Title, "body": n.Body, "category": n.Category, "date": n.Date}
	var out schema.Notice
	err := c.sendJSON(ctx, http.MethodPost, "/api/admin/notices", in, &out)
	return out, err
}

func (c *Client) DeleteNotice(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, "/api/admin/notices/"+strconv.FormatInt(id, 10), "", nil, nil)
}

// Complaints lists complaints, filtered by status when it is not empty.
func (c *Client) Complaints(ctx context.Context, status string) ([]schema.Complaint, error) {
	path := "/api/admin/complaints"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out []schema.Complaint
	if err := c.send(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateComplaint(ctx context.Context, reference, status string, notes *string) (schema.Complaint, error) {
	in := struct {
		Status string  `json:"status,omitempty"`
		Notes  *string `json:"notes,omitempty"`
	}{status, notes}
	var out schema.Complaint
	err := c.sendJSON(ctx, http.MethodPatch, "/api/admin/complaints/"+url.PathEscape(reference), in, &out)
	return out, err
}

func (c *Client) DeleteComplaint(ctx context.Context, reference string) error {
	return c.send(ctx, http.MethodDelete, "/api/admin/complaints/"+url.PathEscape(reference), "", nil, nil)
}

func (c *Client) Users(ctx context.Context) ([]schema.UserRecord, error) {
	var out []schema.UserRecord
	if err := c.send(ctx, http.MethodGet, "/api/admin/users", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateUser(ctx context.Context, u schema.UserRecord) (schema.UserRecord, error) {
	in := map[string]string{"name": u.Name, "role": string(u.Role), "email": u.Email, "areaCode": u.AreaCode}
	var out schema.UserRecord
	err := c.sendJSON(ctx, http.MethodPost, "/api/admin/users", in, &out)
	return out, err
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, "/api/admin/users/"+strconv.FormatInt(id, 10), "", nil, nil)
}

var _ Waterboard = (*Client)(nil)
