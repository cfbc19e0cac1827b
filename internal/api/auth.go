package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/civicwater/waterboard/internal/access"
	"github.com/civicwater/waterboard/internal/vault"
	"github.com/civicwater/waterboard/pkg/schema"
	"github.com/gin-gonic/gin"
)

// SessionCookie carries the sealed session token.
const SessionCookie = "waterboard_session"

const principalKey = "principal"

type loginForm struct {
	Role       string `json:"role" form:"role" binding:"required,role"`
	Method     string `json:"method" form:"method" binding:"required,oneof=email code"`
	Identifier string `json:"identifier" form:"identifier" binding:"required,max=254"`
}

func (f *loginForm) normalize() {
	f.Role = strings.ToLower(strings.TrimSpace(f.Role))
	f.Method = strings.ToLower(strings.TrimSpace(f.Method))
	f.Identifier = strings.TrimSpace(f.Identifier)
}

// principal resolves the caller from the session cookie, or nil.
func (h *Handler) principal(c *gin.Context) *schema.Principal {
	if p, ok := c.Get(principalKey); ok {
		if pp, ok := p.(*schema.Principal); ok {
			return pp
		}
	}
	sealed, err := c.Cookie(SessionCookie)
	if err != nil || sealed == "" {
		return nil
	}
	token, err := vault.Decrypt(sealed, h.Options.CookieKey)
	if err != nil {
		return nil
	}
	p, ok := h.Sessions.Get(token)
	if !ok {
		return nil
	}
	return p
}

func (h *Handler) sessionToken(c *gin.Context) string {
	sealed, err := c.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	token, err := vault.Decrypt(sealed, h.Options.CookieKey)
	if err != nil {
		return ""
	}
	return token
}

// authorize gates a route on op. The denial never says which check failed.
func (h *Handler) authorize(op access.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := h.principal(c)
		if err := access.Authorize(p, op); err != nil {
			if h.Metrics != nil {
				h.Metrics.Denied(string(op))
			}
			h.Logger.Info("access denied", "operation", string(op), "path", c.Request.URL.Path)
			h.deny(c)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// deny redirects interactive callers to the login page and answers 403 otherwise.
func (h *Handler) deny(c *gin.Context) {
	if strings.Contains(c.GetHeader("Accept"), "text/html") {
		c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
}

func (h *Handler) Login(c *gin.Context) {
	var in loginForm
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	role := schema.Role(in.Role)
	p, err := access.Authenticate(h.Store.Load(schema.Users), role, in.Method, in.Identifier)
	if h.Metrics != nil {
		h.Metrics.Login(in.Role, err == nil)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	// Drop any previous session held by this browser
	if old := h.sessionToken(c); old != "" {
		h.Sessions.Destroy(old)
	}

	token := h.Sessions.Create(p)
	sealed, err := vault.Encrypt(token, h.Options.CookieKey)
	if err != nil {
		h.Sessions.Destroy(token)
		h.fail(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, sealed, int(h.Options.SessionTTL.Seconds()), "/", "", h.Options.SecureCookies, true)

	h.Logger.Info("login", "role", in.Role, "method", in.Method)
	c.JSON(http.StatusOK, gin.H{"principal": p})
}

func (h *Handler) Logout(c *gin.Context) {
	if token := h.sessionToken(c); token != "" {
		h.Sessions.Destroy(token)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", h.Options.SecureCookies, true)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) Me(c *gin.Context) {
	p := h.principal(c)
	if p == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"principal": p})
}
