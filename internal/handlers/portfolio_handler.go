package handlers

import (
	"bytes"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
	"brokerfolio/internal/reports"
	"brokerfolio/internal/services"
	"brokerfolio/internal/valuation"
)

// PortfolioHandler handles portfolio, holding and valuation requests.
type PortfolioHandler struct {
	portfolioService services.PortfolioServicer
	activityService  services.ActivityServicer
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService services.PortfolioServicer, activityService services.ActivityServicer) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService, activityService: activityService}
}

// PortfolioRequest represents the payload for creating or updating a portfolio.
type PortfolioRequest struct {
	BrokerID    string `json:"broker_id" binding:"required,uuid"`
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=1000"`
}

// HoldingRequest represents the payload for adding or updating a holding.
// Either instrument_id or symbol names the instrument; an unknown symbol is
// created on the fly.
type HoldingRequest struct {
	InstrumentID  string                    `json:"instrument_id" binding:"omitempty,uuid"`
	Symbol        string                    `json:"symbol" binding:"max=20"`
	Name          string                    `json:"name" binding:"max=200"`
	Category      models.InstrumentCategory `json:"category" binding:"omitempty,instrument_category"`
	Quantity      decimal.Decimal           `json:"quantity" binding:"required,decimal_positive"`
	PurchasePrice decimal.Decimal           `json:"purchase_price" binding:"required,decimal_positive"`
	PurchaseDate  string                    `json:"purchase_date"`
	Notes         string                    `json:"notes" binding:"max=500"`
}

func (r HoldingRequest) input() (services.HoldingInput, error) {
	in := services.HoldingInput{
		InstrumentID:  r.InstrumentID,
		Symbol:        r.Symbol,
		Name:          r.Name,
		Category:      r.Category,
		Quantity:      r.Quantity,
		PurchasePrice: r.PurchasePrice,
		Notes:         r.Notes,
	}
	if r.PurchaseDate != "" {
		d, err := parseFlexibleTime(r.PurchaseDate)
		if err != nil {
			return in, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid purchase_date format, use RFC3339 or YYYY-MM-DD")
		}
		in.PurchaseDate = d
	}
	return in, nil
}

// CreatePortfolio handles portfolio creation.
// @Summary     Create portfolio
// @Tags        portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PortfolioRequest true "Portfolio details"
// @Success     201 {object} models.Portfolio "Portfolio created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Broker not found"
// @Router      /portfolios [post]
func (h *PortfolioHandler) CreatePortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	portfolio, err := h.portfolioService.CreatePortfolio(userID, req.BrokerID, req.Name, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionCreate, "portfolio", portfolio.ID, portfolio.Name, c.ClientIP(), nil)

	c.JSON(http.StatusCreated, gin.H{"portfolio": portfolio})
}

// ListPortfolios handles listing portfolios.
// @Summary     List portfolios
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       broker_id query string false "Filter by broker"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Portfolio] "Paginated portfolios"
// @Router      /portfolios [get]
func (h *PortfolioHandler) ListPortfolios(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.portfolioService.ListPortfolios(c.Query("broker_id"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPortfolio handles retrieving a portfolio with its holdings.
// @Summary     Get portfolio by ID
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     200 {object} models.Portfolio "Portfolio details"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id} [get]
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio, err := h.portfolioService.GetPortfolioByID(portfolioID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	holdings, err := h.portfolioService.GetHoldings(portfolioID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio, "holdings": holdings})
}

// UpdatePortfolio handles updating a portfolio.
// @Summary     Update portfolio
// @Tags        portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string           true "Portfolio ID"
// @Param       request body PortfolioRequest true "Portfolio details"
// @Success     200 {object} models.Portfolio "Updated portfolio"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Portfolio or broker not found"
// @Router      /portfolios/{id} [put]
func (h *PortfolioHandler) UpdatePortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	portfolio, err := h.portfolioService.UpdatePortfolio(portfolioID, req.BrokerID, req.Name, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionUpdate, "portfolio", portfolio.ID, portfolio.Name, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio})
}

// DeletePortfolio handles deleting a portfolio and its holdings.
// @Summary     Delete portfolio
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     200 {object} map[string]string "Portfolio deleted"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id} [delete]
func (h *PortfolioHandler) DeletePortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio, err := h.portfolioService.GetPortfolioByID(portfolioID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.portfolioService.DeletePortfolio(portfolioID); err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionDelete, "portfolio", portfolioID, portfolio.Name, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Portfolio deleted successfully"})
}

// AddHolding handles adding a position to a portfolio.
// @Summary     Add holding
// @Tags        portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string         true "Portfolio ID"
// @Param       request body HoldingRequest true "Holding details"
// @Success     201 {object} models.Holding "Holding created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Portfolio or instrument not found"
// @Router      /portfolios/{id}/holdings [post]
func (h *PortfolioHandler) AddHolding(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req HoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if req.InstrumentID == "" && req.Symbol == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "instrument_id or symbol is required"))
		return
	}
	in, err := req.input()
	if err != nil {
		respondWithError(c, err)
		return
	}

	holding, err := h.portfolioService.AddHolding(portfolioID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionCreate, "holding", holding.ID, holdingLabel(holding), c.ClientIP(),
		map[string]interface{}{"portfolio_id": portfolioID, "quantity": holding.Quantity.String()})

	c.JSON(http.StatusCreated, gin.H{"holding": holding})
}

// UpdateHolding handles changing a holding's quantity, price, date or notes.
// @Summary     Update holding
// @Tags        portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id         path string         true "Portfolio ID"
// @Param       holding_id path string         true "Holding ID"
// @Param       request    body HoldingRequest true "Holding details"
// @Success     200 {object} models.Holding "Updated holding"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Holding not found"
// @Router      /portfolios/{id}/holdings/{holding_id} [put]
func (h *PortfolioHandler) UpdateHolding(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	holdingID, err := parsePathID(c, "holding_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req HoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	in, err := req.input()
	if err != nil {
		respondWithError(c, err)
		return
	}

	holding, err := h.portfolioService.UpdateHolding(portfolioID, holdingID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionUpdate, "holding", holding.ID, holdingLabel(holding), c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"holding": holding})
}

// RemoveHolding handles deleting a holding.
// @Summary     Remove holding
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id         path string true "Portfolio ID"
// @Param       holding_id path string true "Holding ID"
// @Success     200 {object} map[string]string "Holding removed"
// @Failure     404 {object} ErrorResponse "Holding not found"
// @Router      /portfolios/{id}/holdings/{holding_id} [delete]
func (h *PortfolioHandler) RemoveHolding(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	holdingID, err := parsePathID(c, "holding_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.portfolioService.RemoveHolding(portfolioID, holdingID); err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionDelete, "holding", holdingID, "", c.ClientIP(),
		map[string]interface{}{"portfolio_id": portfolioID})

	c.JSON(http.StatusOK, gin.H{"message": "Holding removed successfully"})
}

// GetValuation handles computing a portfolio's current snapshot.
// @Summary     Portfolio valuation
// @Description Invested, current value and gain/loss per holding, per category and in total
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     200 {object} valuation.PortfolioSnapshot "Snapshot"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id}/valuation [get]
func (h *PortfolioHandler) GetValuation(c *gin.Context) {
	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	snap, err := h.portfolioService.GetValuation(portfolioID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// GetValueHistory handles reconstructing a portfolio's daily value.
// @Summary     Portfolio value history
// @Description Daily value from stored samples; defaults to the portfolio's creation date through today
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string true  "Portfolio ID"
// @Param       from query string false "Start date (YYYY-MM-DD)"
// @Param       to   query string false "End date (YYYY-MM-DD)"
// @Success     200 {object} services.ValueHistory "Series and metrics"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id}/value-history [get]
func (h *PortfolioHandler) GetValueHistory(c *gin.Context) {
	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	from, err := optionalTimeQuery(c, "from")
	if err != nil {
		respondWithError(c, err)
		return
	}
	to, err := optionalTimeQuery(c, "to")
	if err != nil {
		respondWithError(c, err)
		return
	}

	history, err := h.portfolioService.GetValueHistory(portfolioID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// Performance ranks a portfolio's holdings by gain/loss percentage.
type Performance struct {
	PortfolioID string                      `json:"portfolio_id"`
	Totals      valuation.Totals            `json:"totals"`
	GainLossPct decimal.Decimal             `json:"gain_loss_pct"`
	Holdings    []valuation.HoldingSnapshot `json:"holdings"`
	Best        *valuation.HoldingSnapshot  `json:"best,omitempty"`
	Worst       *valuation.HoldingSnapshot  `json:"worst,omitempty"`
}

// GetPerformance handles ranking a portfolio's holdings.
// @Summary     Portfolio performance
// @Description Holdings ordered by gain/loss percentage, best first
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     200 {object} Performance "Ranked holdings"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id}/performance [get]
func (h *PortfolioHandler) GetPerformance(c *gin.Context) {
	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	snap, err := h.portfolioService.GetValuation(portfolioID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	holdings := append([]valuation.HoldingSnapshot(nil), snap.Holdings...)
	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].GainLossPct.GreaterThan(holdings[j].GainLossPct)
	})
	perf := Performance{
		PortfolioID: snap.ID,
		Totals:      snap.Totals,
		GainLossPct: snap.GainLossPct,
		Holdings:    holdings,
	}
	if len(holdings) > 0 {
		perf.Best = &holdings[0]
		perf.Worst = &holdings[len(holdings)-1]
	}

	c.JSON(http.StatusOK, perf)
}

// ExportHoldings handles downloading a portfolio's valued holdings as CSV.
// @Summary     Export holdings
// @Tags        portfolios
// @Produce     text/csv
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     200 {file} file "CSV file"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id}/holdings/export [get]
func (h *PortfolioHandler) ExportHoldings(c *gin.Context) {
	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	snap, err := h.portfolioService.GetValuation(portfolioID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := reports.WriteHoldingsCSV(&buf, *snap); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	sendFile(c, "holdings_"+time.Now().Format("20060102")+".csv", "text/csv", buf.Bytes())
}

func holdingLabel(h *models.Holding) string {
	if h.Instrument != nil {
		return h.Instrument.Symbol
	}
	return ""
}
