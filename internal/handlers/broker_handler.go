package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
	"brokerfolio/internal/services"
)

// BrokerHandler handles broker and rating requests.
type BrokerHandler struct {
	brokerService   services.BrokerServicer
	activityService services.ActivityServicer
}

// NewBrokerHandler creates a new BrokerHandler.
func NewBrokerHandler(brokerService services.BrokerServicer, activityService services.ActivityServicer) *BrokerHandler {
	return &BrokerHandler{brokerService: brokerService, activityService: activityService}
}

// BrokerRequest represents the payload for creating or updating a broker.
type BrokerRequest struct {
	Name           string          `json:"name" binding:"required,min=1,max=100"`
	Description    string          `json:"description" binding:"max=1000"`
	Website        string          `json:"website" binding:"omitempty,url,max=255"`
	Phone          string          `json:"phone" binding:"max=50"`
	Email          string          `json:"email" binding:"omitempty,email,max=255"`
	LogoURL        string          `json:"logo_url" binding:"omitempty,url,max=255"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
}

func (r BrokerRequest) input() services.BrokerInput {
	return services.BrokerInput{
		Name:           r.Name,
		Description:    r.Description,
		Website:        r.Website,
		Phone:          r.Phone,
		Email:          r.Email,
		LogoURL:        r.LogoURL,
		CommissionRate: r.CommissionRate,
	}
}

// RateBrokerRequest represents the payload for rating a broker.
type RateBrokerRequest struct {
	Category models.RatingCategory `json:"category" binding:"required,rating_category"`
	Score    int                   `json:"score" binding:"required,min=1,max=5"`
	Comment  string                `json:"comment" binding:"max=1000"`
}

// CreateBroker handles broker creation.
// @Summary     Create broker
// @Description Register a new brokerage firm
// @Tags        brokers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BrokerRequest true "Broker details"
// @Success     201 {object} models.Broker "Broker created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "Duplicate broker name"
// @Router      /brokers [post]
func (h *BrokerHandler) CreateBroker(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BrokerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	broker, err := h.brokerService.CreateBroker(userID, req.input())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionCreate, "broker", broker.ID, broker.Name, c.ClientIP(), nil)

	c.JSON(http.StatusCreated, gin.H{"broker": broker})
}

// ListBrokers handles listing brokers.
// @Summary     List brokers
// @Description Get a paginated list of brokers, optionally filtered by name
// @Tags        brokers
// @Produce     json
// @Security    BearerAuth
// @Param       search    query string false "Name contains"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Broker] "Paginated brokers"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /brokers [get]
func (h *BrokerHandler) ListBrokers(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.brokerService.ListBrokers(c.Query("search"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBroker handles retrieving one broker with its rating summary.
// @Summary     Get broker by ID
// @Tags        brokers
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Broker ID"
// @Success     200 {object} models.Broker "Broker details"
// @Failure     400 {object} ErrorResponse "Invalid broker ID"
// @Failure     404 {object} ErrorResponse "Broker not found"
// @Router      /brokers/{id} [get]
func (h *BrokerHandler) GetBroker(c *gin.Context) {
	brokerID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	broker, err := h.brokerService.GetBrokerByID(brokerID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	summary, err := h.brokerService.GetRatingSummary(brokerID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"broker": broker, "ratings": summary})
}

// UpdateBroker handles updating a broker.
// @Summary     Update broker
// @Tags        brokers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string        true "Broker ID"
// @Param       request body BrokerRequest true "Broker details"
// @Success     200 {object} models.Broker "Updated broker"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Broker not found"
// @Failure     409 {object} ErrorResponse "Duplicate broker name"
// @Router      /brokers/{id} [put]
func (h *BrokerHandler) UpdateBroker(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	brokerID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BrokerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	broker, err := h.brokerService.UpdateBroker(brokerID, req.input())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionUpdate, "broker", broker.ID, broker.Name, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"broker": broker})
}

// DeleteBroker handles deleting a broker that holds nothing.
// @Summary     Delete broker
// @Tags        brokers
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Broker ID"
// @Success     200 {object} map[string]string "Broker deleted"
// @Failure     404 {object} ErrorResponse "Broker not found"
// @Failure     409 {object} ErrorResponse "Broker in use"
// @Router      /brokers/{id} [delete]
func (h *BrokerHandler) DeleteBroker(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	brokerID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	broker, err := h.brokerService.GetBrokerByID(brokerID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.brokerService.DeleteBroker(brokerID); err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionDelete, "broker", brokerID, broker.Name, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Broker deleted successfully"})
}

// RateBroker handles creating or replacing the caller's rating.
// @Summary     Rate broker
// @Description Score a broker 1-5 in one category; rating again replaces the previous score
// @Tags        brokers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Broker ID"
// @Param       request body RateBrokerRequest true "Rating"
// @Success     200 {object} models.BrokerRating "Stored rating"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Broker not found"
// @Router      /brokers/{id}/ratings [post]
func (h *BrokerHandler) RateBroker(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	brokerID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RateBrokerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	rating, err := h.brokerService.RateBroker(brokerID, userID, req.Category, req.Score, req.Comment)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionRate, "broker", brokerID, "", c.ClientIP(),
		map[string]interface{}{"category": string(req.Category), "score": req.Score})

	c.JSON(http.StatusOK, gin.H{"rating": rating})
}

// GetRatings handles listing a broker's ratings with their summary.
// @Summary     Get broker ratings
// @Tags        brokers
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Broker ID"
// @Success     200 {array}  models.BrokerRating "Ratings"
// @Failure     404 {object} ErrorResponse "Broker not found"
// @Router      /brokers/{id}/ratings [get]
func (h *BrokerHandler) GetRatings(c *gin.Context) {
	brokerID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	ratings, err := h.brokerService.GetRatings(brokerID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	summary, err := h.brokerService.GetRatingSummary(brokerID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ratings": ratings, "summary": summary})
}
