package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
	"brokerfolio/internal/services"
	"brokerfolio/internal/valuation"
)

// InvestmentHandler handles fixed-term record requests.
type InvestmentHandler struct {
	investmentService services.InvestmentServicer
	activityService   services.ActivityServicer
}

// NewInvestmentHandler creates a new InvestmentHandler.
func NewInvestmentHandler(investmentService services.InvestmentServicer, activityService services.ActivityServicer) *InvestmentHandler {
	return &InvestmentHandler{investmentService: investmentService, activityService: activityService}
}

// InvestmentRequest represents the payload for creating or updating a
// fixed-term record. Dates accept RFC3339 or YYYY-MM-DD.
type InvestmentRequest struct {
	Name         string                  `json:"name" binding:"required,min=1,max=200"`
	Type         models.InvestmentType   `json:"type" binding:"required,investment_type"`
	Amount       decimal.Decimal         `json:"amount" binding:"required,decimal_positive"`
	Currency     string                  `json:"currency" binding:"omitempty,iso4217"`
	InterestRate decimal.NullDecimal     `json:"interest_rate"`
	StartDate    string                  `json:"start_date"`
	EndDate      string                  `json:"end_date"`
	Status       models.InvestmentStatus `json:"status" binding:"omitempty,investment_status"`
	BrokerID     *string                 `json:"broker_id" binding:"omitempty,uuid"`
	Notes        string                  `json:"notes" binding:"max=1000"`
}

func (r InvestmentRequest) input() (services.InvestmentInput, error) {
	in := services.InvestmentInput{
		Name:         r.Name,
		Type:         r.Type,
		Principal:    r.Amount,
		Currency:     r.Currency,
		InterestRate: r.InterestRate,
		Status:       r.Status,
		BrokerID:     r.BrokerID,
		Notes:        r.Notes,
	}
	var err error
	if in.StartDate, err = optionalDate(r.StartDate, "start_date"); err != nil {
		return in, err
	}
	if in.EndDate, err = optionalDate(r.EndDate, "end_date"); err != nil {
		return in, err
	}
	return in, nil
}

// InvestmentDetail is a fixed-term record with its computed return.
type InvestmentDetail struct {
	Investment *models.Investment          `json:"investment"`
	Returns    valuation.FixedTermSnapshot `json:"returns"`
}

// CreateInvestment handles recording a fixed-term record.
// @Summary     Create investment
// @Tags        investments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body InvestmentRequest true "Investment details"
// @Success     201 {object} InvestmentDetail "Investment created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Broker not found"
// @Router      /investments [post]
func (h *InvestmentHandler) CreateInvestment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req InvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	in, err := req.input()
	if err != nil {
		respondWithError(c, err)
		return
	}

	inv, err := h.investmentService.CreateInvestment(userID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionCreate, "investment", inv.ID, inv.Name, c.ClientIP(),
		map[string]interface{}{"amount": inv.Principal.String(), "currency": inv.Currency})

	c.JSON(http.StatusCreated, InvestmentDetail{Investment: inv, Returns: valuation.SnapshotFixedTerm(inv)})
}

// ListInvestments handles listing fixed-term records.
// @Summary     List investments
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       broker_id query string false "Filter by broker"
// @Param       type      query string false "Filter by type"
// @Param       status    query string false "Filter by status"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Investment] "Paginated investments"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /investments [get]
func (h *InvestmentHandler) ListInvestments(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.InvestmentFilter{
		BrokerID: c.Query("broker_id"),
		Type:     models.InvestmentType(c.Query("type")),
		Status:   models.InvestmentStatus(c.Query("status")),
	}

	result, err := h.investmentService.ListInvestments(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetInvestment handles retrieving one fixed-term record with its return.
// @Summary     Get investment by ID
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Investment ID"
// @Success     200 {object} InvestmentDetail "Investment details"
// @Failure     404 {object} ErrorResponse "Investment not found"
// @Router      /investments/{id} [get]
func (h *InvestmentHandler) GetInvestment(c *gin.Context) {
	investmentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	inv, err := h.investmentService.GetInvestmentByID(investmentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, InvestmentDetail{Investment: inv, Returns: valuation.SnapshotFixedTerm(inv)})
}

// UpdateInvestment handles updating a fixed-term record.
// @Summary     Update investment
// @Tags        investments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Investment ID"
// @Param       request body InvestmentRequest true "Investment details"
// @Success     200 {object} InvestmentDetail "Updated investment"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Investment not found"
// @Router      /investments/{id} [put]
func (h *InvestmentHandler) UpdateInvestment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	investmentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req InvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	in, err := req.input()
	if err != nil {
		respondWithError(c, err)
		return
	}

	inv, err := h.investmentService.UpdateInvestment(investmentID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionUpdate, "investment", inv.ID, inv.Name, c.ClientIP(),
		map[string]interface{}{"status": string(inv.Status)})

	c.JSON(http.StatusOK, InvestmentDetail{Investment: inv, Returns: valuation.SnapshotFixedTerm(inv)})
}

// DeleteInvestment handles deleting a fixed-term record.
// @Summary     Delete investment
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Investment ID"
// @Success     200 {object} map[string]string "Investment deleted"
// @Failure     404 {object} ErrorResponse "Investment not found"
// @Router      /investments/{id} [delete]
func (h *InvestmentHandler) DeleteInvestment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	investmentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	inv, err := h.investmentService.GetInvestmentByID(investmentID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.investmentService.DeleteInvestment(investmentID); err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionDelete, "investment", investmentID, inv.Name, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Investment deleted successfully"})
}

// UpcomingMaturities handles listing the active records maturing next.
// @Summary     Upcoming maturities
// @Tags        investments
// @Produce     json
// @Security    BearerAuth
// @Param       limit query int false "Maximum records (default 5, max 50)"
// @Success     200 {array} valuation.FixedTermSnapshot "Records by end date"
// @Router      /investments/upcoming [get]
func (h *InvestmentHandler) UpcomingMaturities(c *gin.Context) {
	limit := 5
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit must be between 1 and 50"))
			return
		}
		limit = n
	}

	investments, err := h.investmentService.UpcomingMaturities(time.Now(), limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	out := make([]valuation.FixedTermSnapshot, 0, len(investments))
	for i := range investments {
		out = append(out, valuation.SnapshotFixedTerm(&investments[i]))
	}

	c.JSON(http.StatusOK, gin.H{"investments": out})
}

// optionalDate parses an optional date field of a request body.
func optionalDate(s, field string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseFlexibleTime(s)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid "+field+" format, use RFC3339 or YYYY-MM-DD")
	}
	return &t, nil
}
