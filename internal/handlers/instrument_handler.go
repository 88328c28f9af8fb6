package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/logger"
	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
	"brokerfolio/internal/reports"
	"brokerfolio/internal/services"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 3650
)

// InstrumentHandler handles instrument and price history requests.
type InstrumentHandler struct {
	instrumentService services.InstrumentServicer
	pricingService    services.PricingServicer
	activityService   services.ActivityServicer
}

// NewInstrumentHandler creates a new InstrumentHandler.
func NewInstrumentHandler(instrumentService services.InstrumentServicer, pricingService services.PricingServicer, activityService services.ActivityServicer) *InstrumentHandler {
	return &InstrumentHandler{
		instrumentService: instrumentService,
		pricingService:    pricingService,
		activityService:   activityService,
	}
}

// CreateInstrumentRequest represents the payload for adding an instrument.
type CreateInstrumentRequest struct {
	Symbol   string                    `json:"symbol" binding:"required,min=1,max=20"`
	Name     string                    `json:"name" binding:"max=200"`
	Category models.InstrumentCategory `json:"category" binding:"omitempty,instrument_category"`
	Market   string                    `json:"market" binding:"max=20"`
	Currency string                    `json:"currency" binding:"omitempty,iso4217"`
	Price    *decimal.Decimal          `json:"price" binding:"omitempty,decimal_positive"`
}

// SetPriceRequest represents a manual price edit.
type SetPriceRequest struct {
	Price  decimal.Decimal `json:"price" binding:"required,decimal_positive"`
	Volume *int64          `json:"volume" binding:"omitempty,min=0"`
}

// CreateInstrument handles adding a custom instrument. When no price is given
// and the quote provider is configured, the live price is fetched once; a
// failed lookup does not fail the request.
// @Summary     Create instrument
// @Tags        instruments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateInstrumentRequest true "Instrument details"
// @Success     201 {object} models.Instrument "Instrument created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Duplicate symbol"
// @Router      /instruments [post]
func (h *InstrumentHandler) CreateInstrument(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	inst, err := h.instrumentService.CreateInstrument(services.InstrumentInput{
		Symbol:   req.Symbol,
		Name:     req.Name,
		Category: req.Category,
		Market:   req.Market,
		Currency: req.Currency,
		Price:    req.Price,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	if req.Price == nil {
		if r, err := h.pricingService.Quote(c.Request.Context(), inst.Symbol); err != nil {
			logger.Get().Infow("initial price lookup failed", "symbol", inst.Symbol, "error", err.Error())
		} else if updated, err := h.instrumentService.SetPrice(inst.ID, *r.Price, r.Volume, time.Now()); err != nil {
			logger.Get().Warnw("storing initial price failed", "symbol", inst.Symbol, "error", err.Error())
		} else {
			inst = updated
		}
	}

	h.activityService.Log(userID, services.ActionCreate, "instrument", inst.ID, inst.Symbol, c.ClientIP(), nil)

	c.JSON(http.StatusCreated, gin.H{"instrument": inst})
}

// ListInstruments handles listing instruments.
// @Summary     List instruments
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Param       search    query string false "Symbol or name contains"
// @Param       category  query string false "Category (equity, bond, cedear, other)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Instrument] "Paginated instruments"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /instruments [get]
func (h *InstrumentHandler) ListInstruments(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category := models.InstrumentCategory(c.Query("category"))
	switch category {
	case "", models.InstrumentCategoryEquity, models.InstrumentCategoryBond,
		models.InstrumentCategoryCEDEAR, models.InstrumentCategoryOther:
	default:
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid category"))
		return
	}

	result, err := h.instrumentService.ListInstruments(c.Query("search"), category, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetInstrument handles retrieving one instrument.
// @Summary     Get instrument by ID
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Instrument ID"
// @Success     200 {object} models.Instrument "Instrument details"
// @Failure     404 {object} ErrorResponse "Instrument not found"
// @Router      /instruments/{id} [get]
func (h *InstrumentHandler) GetInstrument(c *gin.Context) {
	instrumentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	inst, err := h.instrumentService.GetInstrumentByID(instrumentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"instrument": inst})
}

// DeleteInstrument handles deleting an instrument with its price history and
// holdings. Admin only.
// @Summary     Delete instrument
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Instrument ID"
// @Success     200 {object} map[string]string "Instrument deleted"
// @Failure     403 {object} ErrorResponse "Admin access required"
// @Failure     404 {object} ErrorResponse "Instrument not found"
// @Router      /instruments/{id} [delete]
func (h *InstrumentHandler) DeleteInstrument(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	instrumentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	inst, err := h.instrumentService.GetInstrumentByID(instrumentID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.instrumentService.DeleteInstrument(instrumentID); err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionDelete, "instrument", instrumentID, inst.Symbol, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Instrument deleted successfully"})
}

// SetPrice handles a manual price edit. The price becomes current and is
// recorded as today's sample.
// @Summary     Set instrument price
// @Tags        instruments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string          true "Instrument ID"
// @Param       request body SetPriceRequest true "Price"
// @Success     200 {object} models.Instrument "Updated instrument"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Instrument not found"
// @Router      /instruments/{id}/price [put]
func (h *InstrumentHandler) SetPrice(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	instrumentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SetPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	inst, err := h.instrumentService.SetPrice(instrumentID, req.Price, req.Volume, time.Now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionUpdate, "instrument", inst.ID, inst.Symbol, c.ClientIP(),
		map[string]interface{}{"price": req.Price.String()})

	c.JSON(http.StatusOK, gin.H{"instrument": inst})
}

// GetPriceHistory handles listing an instrument's samples. Without from/to it
// covers the last 30 days.
// @Summary     Get price history
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Instrument ID"
// @Param       from      query string false "Start date (YYYY-MM-DD)"
// @Param       to        query string false "End date (YYYY-MM-DD)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.PriceSample] "Paginated samples"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Instrument not found"
// @Router      /instruments/{id}/prices [get]
func (h *InstrumentHandler) GetPriceHistory(c *gin.Context) {
	instrumentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	from, to, err := dateRange(c, defaultHistoryDays)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.instrumentService.GetPriceHistory(instrumentID, from, to, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportPriceHistory handles downloading the last N days of samples as CSV.
// @Summary     Export price history
// @Tags        instruments
// @Produce     text/csv
// @Security    BearerAuth
// @Param       id   path  string true  "Instrument ID"
// @Param       days query int    false "Days back (default 30)"
// @Success     200 {file} file "CSV file"
// @Failure     404 {object} ErrorResponse "Instrument not found"
// @Router      /instruments/{id}/prices/export [get]
func (h *InstrumentHandler) ExportPriceHistory(c *gin.Context) {
	instrumentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	days, err := daysQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	inst, err := h.instrumentService.GetInstrumentByID(instrumentID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	samples, err := h.instrumentService.GetRecentHistory(instrumentID, days)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := reports.WritePriceHistoryCSV(&buf, inst, samples); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	sendFile(c, inst.Symbol+"_prices_"+time.Now().Format("20060102")+".csv", "text/csv", buf.Bytes())
}

// SeedDefaults handles creating the default bond universe when no instrument
// exists yet.
// @Summary     Seed default bonds
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]interface{} "Created instruments"
// @Router      /instruments/seed-defaults [post]
func (h *InstrumentHandler) SeedDefaults(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	created, err := h.instrumentService.SeedDefaultBonds()
	if err != nil {
		respondWithError(c, err)
		return
	}

	if len(created) > 0 {
		h.activityService.Log(userID, services.ActionCreate, "instrument", "", "default bonds", c.ClientIP(),
			map[string]interface{}{"count": len(created)})
	}

	c.JSON(http.StatusOK, gin.H{"created": len(created), "instruments": created})
}

// RefreshPrices handles an on-demand refresh of every instrument's price.
// @Summary     Refresh prices now
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.RefreshResult "Refresh outcome"
// @Failure     401 {object} ErrorResponse "Quote provider authentication failed"
// @Failure     503 {object} ErrorResponse "Quote provider not configured"
// @Router      /instruments/refresh [post]
func (h *InstrumentHandler) RefreshPrices(c *gin.Context) {
	result, err := h.pricingService.RefreshPrices(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// InstrumentHistory is one instrument's recent samples for charting.
type InstrumentHistory struct {
	InstrumentID string               `json:"instrument_id"`
	Symbol       string               `json:"symbol"`
	Name         string               `json:"name"`
	Samples      []models.PriceSample `json:"samples"`
}

// GetAllHistory handles returning the recent samples of every instrument.
// @Summary     Recent price history of all instruments
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Param       days query int false "Days back (default 30)"
// @Success     200 {array} InstrumentHistory "Chart data"
// @Router      /instruments/history [get]
func (h *InstrumentHandler) GetAllHistory(c *gin.Context) {
	days, err := daysQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	instruments, err := h.instrumentService.ListAllInstruments()
	if err != nil {
		respondWithError(c, err)
		return
	}

	history := make([]InstrumentHistory, 0, len(instruments))
	for _, inst := range instruments {
		samples, err := h.instrumentService.GetRecentHistory(inst.ID, days)
		if err != nil {
			respondWithError(c, err)
			return
		}
		history = append(history, InstrumentHistory{
			InstrumentID: inst.ID,
			Symbol:       inst.Symbol,
			Name:         inst.Name,
			Samples:      samples,
		})
	}

	c.JSON(http.StatusOK, gin.H{"days": days, "instruments": history})
}

// daysQuery reads the optional days parameter.
func daysQuery(c *gin.Context) (int, error) {
	v := c.Query("days")
	if v == "" {
		return defaultHistoryDays, nil
	}
	days, err := strconv.Atoi(v)
	if err != nil || days < 1 || days > maxHistoryDays {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "days must be between 1 and 3650")
	}
	return days, nil
}

// dateRange reads from/to query parameters. A missing to means now and a
// missing from means defaultDays before to.
func dateRange(c *gin.Context, defaultDays int) (time.Time, time.Time, error) {
	from, err := optionalTimeQuery(c, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := optionalTimeQuery(c, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	end := time.Now()
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -defaultDays)
	if from != nil {
		start = *from
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "from must not be after to")
	}
	return start, end, nil
}

// sendFile writes data as a download.
func sendFile(c *gin.Context, name, contentType string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, contentType, data)
}
