package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"brokerfolio/internal/services"
)

// DashboardHandler serves the read-only aggregates.
type DashboardHandler struct {
	analyticsService services.AnalyticsServicer
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(analyticsService services.AnalyticsServicer) *DashboardHandler {
	return &DashboardHandler{analyticsService: analyticsService}
}

// GetDashboard handles the landing-page summary.
// @Summary     Dashboard
// @Description Active records, totals per currency, expected fixed-term return, upcoming maturities, top brokers and recent messages
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.Dashboard "Dashboard"
// @Router      /dashboard [get]
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	dash, err := h.analyticsService.GetDashboard(time.Now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dash)
}

// GetBrokerSnapshot handles one broker's holdings, fixed-term records and totals.
// @Summary     Broker snapshot
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Broker ID"
// @Success     200 {object} valuation.BrokerSnapshot "Snapshot"
// @Failure     404 {object} ErrorResponse "Broker not found"
// @Router      /brokers/{id}/snapshot [get]
func (h *DashboardHandler) GetBrokerSnapshot(c *gin.Context) {
	brokerID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	snap, err := h.analyticsService.GetBrokerSnapshot(brokerID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// GetExecutiveSummary handles every broker's snapshot with grand totals.
// @Summary     Executive summary
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.ExecutiveSummary "Summary"
// @Router      /dashboard/executive [get]
func (h *DashboardHandler) GetExecutiveSummary(c *gin.Context) {
	summary, err := h.analyticsService.GetExecutiveSummary(time.Now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
