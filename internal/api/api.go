// Package api is the waterboard HTTP surface: public listings, citizen
// intake forms, login, and the role-gated dashboard, served with gin.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/civicwater/waterboard/internal/access"
	"github.com/civicwater/waterboard/internal/blob"
	"github.com/civicwater/waterboard/internal/metrics"
	"github.com/civicwater/waterboard/internal/validate"
	"github.com/civicwater/waterboard/internal/vault"
	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Defaults applied when Options leaves a limit at zero.
const (
	DefaultMaxUploadBytes = 10 << 20
	DefaultMaxAttachments = 5
)

// Options tunes request handling.
type Options struct {
	GoogleMapsKey  string
	MaxUploadBytes int64
	MaxAttachments int
	// CookieKey seals session cookies (32 bytes). A random key is used when nil.
	CookieKey     []byte
	SecureCookies bool
	SessionTTL    time.Duration
}

// Handler carries the collaborators every route needs.
type Handler struct {
	Store    engine.RecordStore
	Blobs    blob.Store
	Sessions *access.SessionStore
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Options  Options
	Now      func() time.Time
}

func (h *Handler) defaults() error {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.Sessions == nil {
		h.Sessions = access.NewSessionStore(12 * time.Hour)
	}
	if h.Options.MaxUploadBytes <= 0 {
		h.Options.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if h.Options.MaxAttachments <= 0 {
		h.Options.MaxAttachments = DefaultMaxAttachments
	}
	if h.Options.SessionTTL <= 0 {
		h.Options.SessionTTL = 12 * time.Hour
	}
	if len(h.Options.CookieKey) == 0 {
		key, err := vault.DeriveKey("")
		if err != nil {
			return err
		}
		h.Options.CookieKey = key
	}
	return nil
}

// validationError is a client input problem, reported as 400.
type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func invalid(msg string) error { return &validationError{msg: msg} }

// form is a bound request body that can tidy itself before validation.
type form interface{ normalize() }

// bind decodes the body (JSON or form encoded), trims it and validates again
// so whitespace-only values do not satisfy "required".
func bind(c *gin.Context, f form) error {
	if err := c.ShouldBind(f); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return invalid(validate.Message(err))
	}
	f.normalize()
	if err := binding.Validator.ValidateStruct(f); err != nil {
		return invalid(validate.Message(err))
	}
	return nil
}

// fail maps an error onto a status code and a short, non-revealing message.
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		verr     *validationError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.msg})
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request too large"})
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, blob.ErrNotFound), errors.Is(err, blob.ErrInvalidKey):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, access.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, access.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, engine.ErrPersistence):
		h.Logger.Error("persistence failure", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save, please try again"})
	default:
		h.Logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// nonNil keeps empty collections rendering as [] instead of null.
func nonNil(records []engine.Record) []engine.Record {
	if records == nil {
		return []engine.Record{}
	}
	return records
}
