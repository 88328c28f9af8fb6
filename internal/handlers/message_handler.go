package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
	"brokerfolio/internal/services"
)

// MessageHandler handles threaded team messages.
type MessageHandler struct {
	messageService  services.MessageServicer
	activityService services.ActivityServicer
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(messageService services.MessageServicer, activityService services.ActivityServicer) *MessageHandler {
	return &MessageHandler{messageService: messageService, activityService: activityService}
}

// PostMessageRequest represents the payload for posting a message. At most
// one of broker_id, investment_id and portfolio_id may be set; parent_id
// makes the message a reply.
type PostMessageRequest struct {
	Content      string             `json:"content" binding:"required,min=1,max=5000"`
	Kind         models.MessageKind `json:"kind" binding:"omitempty,message_kind"`
	BrokerID     *string            `json:"broker_id" binding:"omitempty,uuid"`
	InvestmentID *string            `json:"investment_id" binding:"omitempty,uuid"`
	PortfolioID  *string            `json:"portfolio_id" binding:"omitempty,uuid"`
	ParentID     *string            `json:"parent_id" binding:"omitempty,uuid"`
}

// PostMessage handles posting a thread or a reply.
// @Summary     Post message
// @Tags        messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PostMessageRequest true "Message"
// @Success     201 {object} models.Message "Message posted"
// @Failure     400 {object} ErrorResponse "Invalid input or parent"
// @Failure     404 {object} ErrorResponse "Target not found"
// @Router      /messages [post]
func (h *MessageHandler) PostMessage(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	targets := 0
	for _, id := range []*string{req.BrokerID, req.InvestmentID, req.PortfolioID} {
		if id != nil && *id != "" {
			targets++
		}
	}
	if targets > 1 {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "a message can be attached to one record only"))
		return
	}

	msg, err := h.messageService.PostMessage(userID, services.MessageInput{
		Content:      req.Content,
		Kind:         req.Kind,
		BrokerID:     req.BrokerID,
		InvestmentID: req.InvestmentID,
		PortfolioID:  req.PortfolioID,
		ParentID:     req.ParentID,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionCreate, "message", msg.ID, string(msg.Kind), c.ClientIP(), nil)

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// ListMessages handles listing threads with their replies.
// @Summary     List message threads
// @Tags        messages
// @Produce     json
// @Security    BearerAuth
// @Param       kind          query string false "Filter by kind"
// @Param       broker_id     query string false "Filter by broker"
// @Param       investment_id query string false "Filter by investment"
// @Param       portfolio_id  query string false "Filter by portfolio"
// @Param       page          query int    false "Page number (default 1)"
// @Param       page_size     query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Message] "Paginated threads"
// @Router      /messages [get]
func (h *MessageHandler) ListMessages(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.messageService.ListThreads(services.MessageFilter{
		Kind:         models.MessageKind(c.Query("kind")),
		BrokerID:     c.Query("broker_id"),
		InvestmentID: c.Query("investment_id"),
		PortfolioID:  c.Query("portfolio_id"),
	}, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetMessage handles retrieving one message.
// @Summary     Get message by ID
// @Tags        messages
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Message ID"
// @Success     200 {object} models.Message "Message"
// @Failure     404 {object} ErrorResponse "Message not found"
// @Router      /messages/{id} [get]
func (h *MessageHandler) GetMessage(c *gin.Context) {
	messageID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	msg, err := h.messageService.GetMessageByID(messageID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// DeleteMessage handles deleting a message and its replies. Only the author
// or an admin may delete.
// @Summary     Delete message
// @Tags        messages
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Message ID"
// @Success     200 {object} map[string]string "Message deleted"
// @Failure     403 {object} ErrorResponse "Not the author"
// @Failure     404 {object} ErrorResponse "Message not found"
// @Router      /messages/{id} [delete]
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	messageID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.messageService.DeleteMessage(messageID, userID, isAdmin(c)); err != nil {
		respondWithError(c, err)
		return
	}

	h.activityService.Log(userID, services.ActionDelete, "message", messageID, "", c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
}
