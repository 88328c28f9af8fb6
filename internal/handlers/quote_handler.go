package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"brokerfolio/internal/services"
)

// QuoteHandler exposes the quote provider directly.
type QuoteHandler struct {
	pricingService services.PricingServicer
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(pricingService services.PricingServicer) *QuoteHandler {
	return &QuoteHandler{pricingService: pricingService}
}

// TestConnection handles checking the provider credentials with a fresh login.
// @Summary     Test quote provider connection
// @Tags        quotes
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]interface{} "Connected"
// @Failure     401 {object} ErrorResponse "Authentication failed"
// @Failure     503 {object} ErrorResponse "Not configured"
// @Router      /quotes/test-connection [get]
func (h *QuoteHandler) TestConnection(c *gin.Context) {
	result, err := h.pricingService.TestConnection(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"connected": true, "quote": result})
}

// GetQuote handles one live price lookup.
// @Summary     Live quote
// @Tags        quotes
// @Produce     json
// @Security    BearerAuth
// @Param       symbol path string true "Ticker symbol"
// @Success     200 {object} quote.Result "Quote"
// @Failure     401 {object} ErrorResponse "Authentication failed"
// @Failure     404 {object} ErrorResponse "Price not available"
// @Router      /quotes/{symbol} [get]
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	result, err := h.pricingService.Quote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quote": result})
}
