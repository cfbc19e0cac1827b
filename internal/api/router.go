package api

import (
	"log/slog"
	"time"

	"github.com/civicwater/waterboard/internal/access"
	"github.com/civicwater/waterboard/internal/validate"
	"github.com/civicwater/waterboard/pkg/schema"
	"github.com/gin-gonic/gin"
)

// NewRouter fills unset Handler fields with defaults and registers every route.
func NewRouter(h *Handler) (*gin.Engine, error) {
	if err := h.defaults(); err != nil {
		return nil, err
	}
	if err := validate.Register(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.Logger))
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}
	r.GET("/health", h.Health)

	pub := r.Group("/api")
	{
		pub.GET("/notices", h.List(schema.Notices))
		pub.GET("/schedule", h.List(schema.Schedule))
		pub.GET("/messages", h.List(schema.Messages))
		pub.GET("/tanks", h.List(schema.Tanks))
		pub.GET("/plants", h.List(schema.Plants))
		pub.GET("/map-config", h.MapConfig)

		pub.POST("/contact", h.SubmitContact)
		pub.POST("/maintenance", h.SubmitMaintenance)
		pub.POST("/complaints", h.SubmitComplaint)

		pub.POST("/auth/login", h.Login)
		pub.POST("/auth/logout", h.Logout)
		pub.GET("/auth/me", h.Me)
	}

	admin := r.Group("/api/admin")
	{
		admin.POST("/notices", h.authorize(access.PublishNotice), h.CreateNotice)
		admin.DELETE("/notices/:id", h.authorize(access.DeleteNotice), h.DeleteNotice)

		admin.POST("/schedule", h.authorize(access.EditSchedule), h.CreateScheduleEntry)
		admin.PUT("/schedule/:id", h.authorize(access.EditSchedule), h.UpdateScheduleEntry)
		admin.DELETE("/schedule/:id", h.authorize(access.EditSchedule), h.DeleteScheduleEntry)

		admin.GET("/complaints", h.authorize(access.ViewComplaints), h.ListIntake(schema.Complaints))
		admin.PATCH("/complaints/:reference", h.authorize(access.UpdateComplaint), h.Triage(schema.Complaints))
		admin.DELETE("/complaints/:reference", h.authorize(access.DeleteComplaint), h.DeleteComplaint)

		admin.GET("/maintenance", h.authorize(access.ViewMaintenance), h.ListIntake(schema.MaintenanceRequests))
		admin.PATCH("/maintenance/:reference", h.authorize(access.UpdateMaintenance), h.Triage(schema.MaintenanceRequests))

		admin.GET("/contact-messages", h.authorize(access.ViewContactMessages), h.ListIntake(schema.ContactMessages))
		admin.PATCH("/contact-messages/:reference", h.authorize(access.UpdateContactMessage), h.Triage(schema.ContactMessages))

		admin.GET("/users", h.authorize(access.ManageUsers), h.List(schema.Users))
		admin.POST("/users", h.authorize(access.ManageUsers), h.CreateUser)
		admin.DELETE("/users/:id", h.authorize(access.ManageUsers), h.DeleteUser)

		admin.GET("/attachments/:name", h.authorize(access.ViewAttachments), h.Attachment)
	}
	return r, nil
}

// requestLogger logs one line per request. Health probes log at debug.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		switch {
		case c.Writer.Status() >= 500:
			level = slog.LevelError
		case c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics":
			level = slog.LevelDebug
		}
		log.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}
