package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/pagination"
	"brokerfolio/internal/services"
)

// ActivityHandler handles the activity log and notification feed.
type ActivityHandler struct {
	activityService services.ActivityServicer
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activityService services.ActivityServicer) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

// ListActivity handles listing the activity log.
// @Summary     List activity
// @Tags        activity
// @Produce     json
// @Security    BearerAuth
// @Param       user_id     query string false "Filter by user"
// @Param       entity_type query string false "Filter by entity type"
// @Param       action      query string false "Filter by action"
// @Param       from        query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to          query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.ActivityLog] "Paginated activity"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /activity [get]
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.ActivityFilter{
		UserID:     c.Query("user_id"),
		EntityType: c.Query("entity_type"),
		Action:     c.Query("action"),
	}
	var err error
	if filter.From, err = optionalTimeQuery(c, "from"); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.To, err = optionalTimeQuery(c, "to"); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.activityService.ListActivity(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Notifications handles the caller's unread feed: activity by other users
// since the caller last marked notifications read.
// @Summary     Notifications
// @Tags        activity
// @Produce     json
// @Security    BearerAuth
// @Param       limit query int false "Maximum items (default 20, max 100)"
// @Success     200 {object} services.Notifications "Unread feed"
// @Router      /notifications [get]
func (h *ActivityHandler) Notifications(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	feed, err := h.activityService.Notifications(userID, limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, feed)
}

// MarkNotificationsRead handles clearing the caller's unread feed.
// @Summary     Mark notifications read
// @Tags        activity
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]string "Marked read"
// @Router      /notifications/read [post]
func (h *ActivityHandler) MarkNotificationsRead(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	now := time.Now()
	if err := h.activityService.MarkNotificationsRead(userID, now); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"read_at": now.UTC()})
}
