package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessChecker reports whether classification is available.
type ReadinessChecker interface {
	Ready() bool
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	classifier ReadinessChecker
	started    time.Time
	now        func() time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(classifier ReadinessChecker, started time.Time) *HealthHandler {
	return &HealthHandler{classifier: classifier, started: started, now: time.Now}
}

// Health reports process uptime and whether the category seeds are loaded.
// The process stays up when seeding fails, but health reports degraded with 503.
func (h *HealthHandler) Health(c *gin.Context) {
	now := h.now()
	ready := h.classifier != nil && h.classifier.Ready()

	status, code := "OK", http.StatusOK
	if !ready {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":          status,
		"uptime":          now.Sub(h.started).Seconds(),
		"timestamp":       now.UTC().Format(time.RFC3339Nano),
		"classifierReady": ready,
	})
}
