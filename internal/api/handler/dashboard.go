package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/grievo/internal/service"
)

// DashboardHandler serves the admin dashboard aggregates.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats handles GET /api/dashboard/stats.
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// PriorityDistribution handles GET /api/dashboard/priority-distribution.
func (h *DashboardHandler) PriorityDistribution(c *gin.Context) {
	dist, err := h.dashboard.PriorityDistribution(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dist)
}

// CategoryDistribution handles GET /api/dashboard/category-distribution.
func (h *DashboardHandler) CategoryDistribution(c *gin.Context) {
	dist, err := h.dashboard.CategoryDistribution(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dist)
}

// Aging handles GET /api/dashboard/aging.
func (h *DashboardHandler) Aging(c *gin.Context) {
	aging, err := h.dashboard.Aging(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, aging)
}
