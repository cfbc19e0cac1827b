package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// List serves a whole collection. Missing or corrupt files list as [].
func (h *Handler) List(collection string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, nonNil(h.Store.Load(collection)))
	}
}

func (h *Handler) MapConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"googleMapsKey": h.Options.GoogleMapsKey})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
