package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/reports"
	"brokerfolio/internal/services"
)

const maxPipelinePrices = 5000

// PipelineHandler serves the API-key endpoints used by external jobs.
type PipelineHandler struct {
	pricingService services.PricingServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(pricingService services.PricingServicer) *PipelineHandler {
	return &PipelineHandler{pricingService: pricingService}
}

// PipelinePrice is one pushed price.
type PipelinePrice struct {
	Symbol string          `json:"symbol" binding:"required,max=20"`
	Price  decimal.Decimal `json:"price" binding:"required,decimal_positive"`
	Volume *int64          `json:"volume" binding:"omitempty,min=0"`
	Date   string          `json:"date"`
}

// PushPricesRequest represents a batch of pushed prices.
type PushPricesRequest struct {
	Prices []PipelinePrice `json:"prices" binding:"required,min=1,max=5000,dive"`
}

// PushPrices handles storing externally fetched prices. The body is either
// JSON or a text/csv document with a symbol,date,price,volume header. Any
// unknown symbol rejects the whole batch.
// @Summary     Push prices
// @Tags        pipeline
// @Accept      json
// @Accept      text/csv
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body PushPricesRequest true "Prices"
// @Success     200 {object} map[string]int "Recorded count"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Unknown symbol"
// @Router      /pipeline/prices [post]
func (h *PipelineHandler) PushPrices(c *gin.Context) {
	var (
		prices []services.PriceInput
		err    error
	)
	if strings.HasPrefix(c.ContentType(), "text/csv") {
		prices, err = pricesFromCSV(c)
	} else {
		prices, err = pricesFromJSON(c)
	}
	if err != nil {
		respondWithError(c, err)
		return
	}

	recorded, err := h.pricingService.RecordPrices(prices)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recorded": recorded})
}

// TriggerRefresh handles running a refresh cycle immediately.
// @Summary     Trigger price refresh
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} services.RefreshResult "Refresh outcome"
// @Failure     401 {object} ErrorResponse "Quote provider authentication failed"
// @Failure     503 {object} ErrorResponse "Quote provider not configured"
// @Router      /pipeline/refresh [post]
func (h *PipelineHandler) TriggerRefresh(c *gin.Context) {
	result, err := h.pricingService.RefreshPrices(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func pricesFromJSON(c *gin.Context) ([]services.PriceInput, error) {
	var req PushPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	out := make([]services.PriceInput, 0, len(req.Prices))
	for i, p := range req.Prices {
		in := services.PriceInput{Symbol: p.Symbol, Price: p.Price, Volume: p.Volume}
		if p.Date != "" {
			d, err := parseFlexibleTime(p.Date)
			if err != nil {
				return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "prices["+strconv.Itoa(i)+"]: invalid date")
			}
			in.Date = d
		}
		out = append(out, in)
	}
	return out, nil
}

func pricesFromCSV(c *gin.Context) ([]services.PriceInput, error) {
	records, err := reports.ReadPriceRecords(c.Request.Body)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid CSV: "+err.Error())
	}
	if len(records) == 0 || len(records) > maxPipelinePrices {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "CSV must hold between 1 and 5000 prices")
	}

	out := make([]services.PriceInput, 0, len(records))
	for i, rec := range records {
		line := "line " + strconv.Itoa(i+2) + ": "
		if strings.TrimSpace(rec.Symbol) == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, line+"symbol is required")
		}
		price, err := decimal.NewFromString(strings.TrimSpace(rec.Price))
		if err != nil || price.Sign() <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, line+"price must be a positive number")
		}
		in := services.PriceInput{Symbol: rec.Symbol, Price: price}
		if v := strings.TrimSpace(rec.Volume); v != "" {
			vol, err := strconv.ParseInt(v, 10, 64)
			if err != nil || vol < 0 {
				return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, line+"invalid volume")
			}
			in.Volume = &vol
		}
		if v := strings.TrimSpace(rec.Date); v != "" {
			d, err := parseFlexibleTime(v)
			if err != nil {
				return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, line+"invalid date")
			}
			in.Date = d
		}
		out = append(out, in)
	}
	return out, nil
}
