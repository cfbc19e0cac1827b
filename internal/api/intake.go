package api

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/civicwater/waterboard/internal/blob"
	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/civicwater/waterboard/pkg/schema"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type contactForm struct {
	Name    string `json:"name" form:"name" binding:"required,max=200"`
	Email   string `json:"email" form:"email" binding:"required,email,max=254"`
	Subject string `json:"subject" form:"subject" binding:"max=200"`
	Message string `json:"message" form:"message" binding:"required,max=5000"`
	Phone   string `json:"phone" form:"phone" binding:"omitempty,phone"`
}

func (f *contactForm) normalize() {
	trim(&f.Name, &f.Email, &f.Subject, &f.Message, &f.Phone)
}

type maintenanceForm struct {
	Name        string `json:"name" form:"name" binding:"required,max=200"`
	Email       string `json:"email" form:"email" binding:"omitempty,email,max=254"`
	Phone       string `json:"phone" form:"phone" binding:"required,phone"`
	Sector      string `json:"sector" form:"sector" binding:"required,sector"`
	Address     string `json:"address" form:"address" binding:"required,max=500"`
	AreaCode    string `json:"areaCode" form:"areaCode" binding:"omitempty,areacode"`
	IssueType   string `json:"issueType" form:"issueType" binding:"required,max=100"`
	Description string `json:"description" form:"description" binding:"required,max=5000"`
}

func (f *maintenanceForm) normalize() {
	trim(&f.Name, &f.Email, &f.Phone, &f.Address, &f.AreaCode, &f.IssueType, &f.Description)
	f.Sector = strings.ToLower(strings.TrimSpace(f.Sector))
}

type complaintForm struct {
	Name        string `json:"name" form:"name" binding:"required,max=200"`
	Email       string `json:"email" form:"email" binding:"omitempty,email,max=254"`
	Phone       string `json:"phone" form:"phone" binding:"required,phone"`
	AreaCode    string `json:"areaCode" form:"areaCode" binding:"omitempty,areacode"`
	Category    string `json:"category" form:"category" binding:"required,max=100"`
	Description string `json:"description" form:"description" binding:"required,max=5000"`
}

func (f *complaintForm) normalize() {
	trim(&f.Name, &f.Email, &f.Phone, &f.AreaCode, &f.Category, &f.Description)
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// put sets optional fields only when they carry a value.
func put(rec engine.Record, field, value string) {
	if value != "" {
		rec[field] = value
	}
}

func (h *Handler) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Options.MaxUploadBytes)
}

func (h *Handler) SubmitContact(c *gin.Context) {
	h.limitBody(c)
	var in contactForm
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}

	payload := engine.Record{"name": in.Name, "email": in.Email, "message": in.Message}
	put(payload, "subject", in.Subject)
	put(payload, "phone", in.Phone)

	rec, err := h.Store.Append(schema.ContactMessages, payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Logger.Info("contact message received", "reference", rec.String(engine.FieldReference))
	c.JSON(http.StatusCreated, gin.H{
		"reference": rec[engine.FieldReference],
		"status":    rec[engine.FieldStatus],
	})
}

func (h *Handler) SubmitMaintenance(c *gin.Context) {
	h.limitBody(c)
	var in maintenanceForm
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	files, err := h.uploads(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	payload := engine.Record{
		"name":        in.Name,
		"phone":       in.Phone,
		"sector":      in.Sector,
		"address":     in.Address,
		"issueType":   in.IssueType,
		"description": in.Description,
	}
	put(payload, "email", in.Email)
	put(payload, "areaCode", in.AreaCode)

	h.intake(c, schema.MaintenanceRequests, payload, files)
}

func (h *Handler) SubmitComplaint(c *gin.Context) {
	h.limitBody(c)
	var in complaintForm
	if err := bind(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	files, err := h.uploads(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	payload := engine.Record{
		"name":        in.Name,
		"phone":       in.Phone,
		"category":    in.Category,
		"description": in.Description,
	}
	put(payload, "email", in.Email)
	put(payload, "areaCode", in.AreaCode)

	h.intake(c, schema.Complaints, payload, files)
}

// uploads returns the attachment parts of a multipart submission.
func (h *Handler) uploads(c *gin.Context) ([]*multipart.FileHeader, error) {
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		return nil, nil
	}
	mf, err := c.MultipartForm()
	if err != nil {
		return nil, invalid("malformed multipart form")
	}
	files := mf.File["attachments"]
	if len(files) > h.Options.MaxAttachments {
		return nil, invalid(fmt.Sprintf("at most %d attachments are allowed", h.Options.MaxAttachments))
	}
	if len(files) > 0 && h.Blobs == nil {
		return nil, invalid("attachments are not accepted")
	}
	return files, nil
}

// intake appends the record, then stores attachments named after its
// reference and records their metadata. A failed upload removes the record
// so the caller can resubmit cleanly.
func (h *Handler) intake(c *gin.Context, collection string, payload engine.Record, files []*multipart.FileHeader) {
	// 1. Persist the submission to obtain its reference
	rec, err := h.Store.Append(collection, payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	ref := rec.String(engine.FieldReference)

	// 2. Write blobs under collision-resistant names
	if len(files) > 0 {
		atts, err := blob.SaveAttachments(c.Request.Context(), h.Blobs, ref, files, h.Now())
		if err != nil {
			h.rollback(collection, ref, nil)
			h.fail(c, err)
			return
		}

		// 3. Attach the metadata
		rec, err = h.Store.Update(collection, engine.ByReference(ref), engine.Record{"attachments": atts})
		if err != nil {
			h.rollback(collection, ref, atts)
			h.fail(c, err)
			return
		}
	}

	h.Logger.Info("submission received", "collection", collection, "reference", ref, "attachments", len(files))
	c.JSON(http.StatusCreated, gin.H{
		"reference": rec[engine.FieldReference],
		"status":    rec[engine.FieldStatus],
	})
}

func (h *Handler) rollback(collection, ref string, atts []schema.Attachment) {
	if len(atts) > 0 {
		if err := blob.Remove(context.Background(), h.Blobs, atts); err != nil {
			h.Logger.Warn("could not remove attachments", "reference", ref, "error", err)
		}
	}
	if _, err := h.Store.Delete(collection, engine.ByReference(ref)); err != nil {
		h.Logger.Error("could not roll back submission", "collection", collection, "reference", ref, "error", err)
	}
}
