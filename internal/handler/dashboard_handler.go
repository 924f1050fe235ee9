package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flightline-dev/flightline-api/internal/middleware"
	"github.com/flightline-dev/flightline-api/internal/service"
	"github.com/flightline-dev/flightline-api/pkg/response"
)

// DashboardHandler exposes the admin overview endpoint.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary School overview
// @Description Aggregated roster, fleet, scheduling and billing headline numbers
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, cached, err := h.dashboard.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}
