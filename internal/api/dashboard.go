package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/civicwater/waterboard/internal/access"
	"github.com/civicwater/waterboard/internal/blob"
	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/civicwater/waterboard/pkg/schema"
	"github.com/gin-gonic/gin"
)

// Statuses a staff member may set, per intake collection.
var triageStatuses = map[string][]string{
	schema.ContactMessages:     {schema.StatusReceived, schema.StatusViewed, schema.StatusResolved},
	schema.MaintenanceRequests: {schema.StatusNew, schema.StatusViewed, schema.StatusResolved},
	schema.Complaints:          {schema.StatusNew, schema.StatusViewed, schema.StatusResolved},
}

type noticeForm struct {
	Title    string `json:"title" form:"title" binding:"required,max=300"`
	Body     string `json:"body" form:"body" binding:"max=10000"`
	Category string `json:"category" form:"category" binding:"max=100"`
	Date     string `json:"date" form:"date" binding:"omitempty,datetime=2006-01-02"`
}

func (f *noticeForm) normalize() { trim(&f.Title, &f.Body, &f.Category, &f.Date) }

type scheduleForm struct {
	Area    string `json:"area" form:"area" binding:"required,max=200"`
	Days    string `json:"days" form:"days" binding:"max=200"`
	Timing  string `json:"timing" form:"timing" binding:"required,max=200"`
	Remarks string `json:"remarks" form:"remarks" binding:"max=1000"`
}

func (f *scheduleForm) normalize() { trim(&f.Area, &f.Days, &f.Timing, &f.Remarks) }

func (f *scheduleForm) record() engine.Record {
	return engine.Record{"area": f.Area, "days": f.Days, "timing": f.Timing, "remarks": f.Remarks}
}

type triageForm struct {
	Status string  `json:"status" form:"status" binding:"max=50"`
	Notes  *string `json:"notes" form:"notes" binding:"omitempty,max=5000"`
}

func (f *triageForm) normalize() {
	f.Status = strings.TrimSpace(f.Status)
	if f.Notes != nil {
		n := strings.TrimSpace(*f.Notes)
		f.Notes = &n
	}
}

type userForm struct {
	Name     string `json:"name" form:"name" binding:"required,max=200"`
	Role     string `json:"role" form:"role" binding:"required,role"`
	Email    string `json:"email" form:"email" binding:"omitempty,email,max=254"`
	AreaCode string `json:"areaCode" form:"areaCode" binding:"omitempty,areacode"`
}

func (f *userForm) normalize() {
	trim(&f.Name, &f.Email, &f.AreaCode)
	f.Role = strings.ToLower(strings.TrimSpace(f.Role))
}

// actor names the signed-in principal for audit logging.
func actor(c *gin.Context) string {
	if p, ok := c.Get(principalKey); ok {
		if pp, ok := p.(*schema.Principal); ok && pp != nil {
			return pp.Name
		}
	}
	return ""
}

// --- Notices ---

func (h *Handler) CreateNotice(c *gin.Context) {
	var in noticeForm
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	payload := engine.Record{"title": in.Title}
	put(payload, "body", in.Body)
	put(payload, "category", in.Category)
	put(payload, "date", in.Date)

	rec, err := h.Store.Append(schema.Notices, payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Logger.Info("notice published", "id", rec.String(engine.FieldID), "by", actor(c))
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) DeleteNotice(c *gin.Context) {
	h.remove(c, schema.Notices, engine.ByID(c.Param("id")))
}

// --- Schedule ---

func (h *Handler) CreateScheduleEntry(c *gin.Context) {
	var in scheduleForm
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	rec, err := h.Store.Append(schema.Schedule, in.record())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) UpdateScheduleEntry(c *gin.Context) {
	var in scheduleForm
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	rec, err := h.Store.Update(schema.Schedule, engine.ByID(c.Param("id")), in.record())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) DeleteScheduleEntry(c *gin.Context) {
	h.remove(c, schema.Schedule, engine.ByID(c.Param("id")))
}

// --- Intake triage ---

// ListIntake serves an intake collection, optionally filtered by
// ?status= and ?areaCode=.
func (h *Handler) ListIntake(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		records := h.Store.Load(collection)
		status := strings.TrimSpace(c.Query("status"))
		area := strings.TrimSpace(c.Query("areaCode"))
		if status == "" && area == "" {
			c.JSON(http.StatusOK, nonNil(records))
			return
		}
		out := make([]engine.Record, 0, len(records))
		for _, r := range records {
			if status != "" && !strings.EqualFold(r.String(engine.FieldStatus), status) {
				continue
			}
			if area != "" && !strings.EqualFold(r.String("areaCode"), area) {
				continue
			}
			out = append(out, r)
		}
		c.JSON(http.StatusOK, out)
	}
}

// Triage updates status and notes of an intake record.
func (h *Handler) Triage(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in triageForm
		if err := bind(c, &in); err != nil {
			h.fail(c, err)
			return
		}
		changes := engine.Record{}
		if in.Status != "" {
			status, ok := canonicalStatus(collection, in.Status)
			if !ok {
				h.fail(c, invalid(fmt.Sprintf("status must be one of: %s", strings.Join(triageStatuses[collection], ", "))))
				return
			}
			changes[engine.FieldStatus] = status
		}
		if in.Notes != nil {
			changes["notes"] = *in.Notes
		}
		if len(changes) == 0 {
			h.fail(c, invalid("nothing to update"))
			return
		}

		ref := c.Param("reference")
		rec, err := h.Store.Update(collection, engine.ByReference(ref), changes)
		if err != nil {
			h.fail(c, err)
			return
		}
		h.Logger.Info("record triaged", "collection", collection, "reference", ref, "status", rec.String(engine.FieldStatus), "by", actor(c))
		c.JSON(http.StatusOK, rec)
	}
}

func canonicalStatus(collection, status string) (string, bool) {
	for _, s := range triageStatuses[collection] {
		if strings.EqualFold(s, status) {
			return s, true
		}
	}
	return "", false
}

// DeleteComplaint removes a complaint and its attachment blobs.
func (h *Handler) DeleteComplaint(c *gin.Context) {
	ref := c.Param("reference")
	rec, err := h.Store.Delete(schema.Complaints, engine.ByReference(ref))
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.Blobs != nil {
		if cmp, err := engine.Decode[schema.Complaint](rec); err == nil && len(cmp.Attachments) > 0 {
			if err := blob.Remove(context.Background(), h.Blobs, cmp.Attachments); err != nil {
				h.Logger.Warn("orphaned attachments", "reference", ref, "error", err)
			}
		}
	}
	h.Logger.Info("complaint deleted", "reference", ref, "by", actor(c))
	c.JSON(http.StatusOK, rec)
}

// --- Users ---

func (h *Handler) CreateUser(c *gin.Context) {
	var in userForm
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	role := schema.Role(in.Role)
	if in.Email == "" && in.AreaCode == "" {
		h.fail(c, invalid("email or areaCode is required"))
		return
	}
	if role != schema.RoleCitizen && in.Email == "" {
		h.fail(c, invalid("email is required for staff accounts"))
		return
	}

	if access.Duplicate(h.Store.Load(schema.Users), role, in.Email, in.AreaCode) {
		c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
		return
	}

	payload := engine.Record{"name": in.Name, "role": in.Role}
	put(payload, "email", in.Email)
	put(payload, "areaCode", in.AreaCode)

	rec, err := h.Store.Append(schema.Users, payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Logger.Info("user created", "id", rec.String(engine.FieldID), "role", in.Role, "by", actor(c))
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	h.remove(c, schema.Users, engine.ByID(c.Param("id")))
}

// --- Attachments ---

// Attachment streams a stored upload back to staff.
func (h *Handler) Attachment(c *gin.Context) {
	if h.Blobs == nil {
		h.fail(c, blob.ErrNotFound)
		return
	}
	name := c.Param("name")
	info, rc, err := h.Blobs.Get(c.Request.Context(), name)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()

	ct := info.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size, ct, rc, map[string]string{
		"Content-Disposition":    fmt.Sprintf(`attachment; filename="%s"`, blob.SanitizeName(name)),
		"X-Content-Type-Options": "nosniff",
	})
}

func (h *Handler) remove(c *gin.Context, collection string, match engine.Matcher) {
	rec, err := h.Store.Delete(collection, match)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Logger.Info("record deleted", "collection", collection, "by", actor(c))
	c.JSON(http.StatusOK, rec)
}
