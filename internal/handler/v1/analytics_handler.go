package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/neurotrace/neurotrace-api/internal/service"
)

type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
}

func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// PatientAnalytics returns stage distribution, confidence trend and the
// stage forecast for one patient's visit history.
func (h *AnalyticsHandler) PatientAnalytics(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	analytics, err := h.analyticsService.PatientAnalytics(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, analytics)
}

// Overview returns clinic-wide aggregates. The recent_window query parameter
// bounds how many of the newest visits feed the aggregation (default 100).
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	window := parseQueryInt(c, "recent_window", 100)

	overview, err := h.analyticsService.Overview(c.Request.Context(), window)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, overview)
}
