package services

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/logger"
	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
)

// Activity actions.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionRate    = "rate"
	ActionRefresh = "refresh"
)

// activityService records the team activity log.
type activityService struct {
	db *gorm.DB
}

// NewActivityService creates a new ActivityServicer.
func NewActivityService(db *gorm.DB) ActivityServicer {
	return &activityService{db: db}
}

// Log records an activity entry. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *activityService) Log(userID, action, entityType, entityID, entityName, ipAddress string, details map[string]interface{}) {
	var detailsJSON string
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			logger.Get().Errorw("failed to marshal activity details", "error", err, "action", action)
			detailsJSON = "{}"
		} else {
			detailsJSON = string(data)
		}
	}

	entry := &models.ActivityLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		IPAddress:  ipAddress,
		Details:    detailsJSON,
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create activity log entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
		)
	}
}

// ListActivity returns a page of activity, newest first.
func (s *activityService) ListActivity(filter ActivityFilter, page pagination.PageRequest) (*pagination.PageResponse[models.ActivityLog], error) {
	query := s.db.Model(&models.ActivityLog{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	resp, err := pagination.Fetch[models.ActivityLog](query, page, "created_at DESC", "User")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp, nil
}

// ActivityBetween returns every entry created in [from, to], oldest first.
func (s *activityService) ActivityBetween(from, to time.Time) ([]models.ActivityLog, error) {
	var logs []models.ActivityLog
	if err := s.db.Preload("User").
		Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at ASC").
		Find(&logs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return logs, nil
}

// Notifications returns activity by other users since userID last marked
// notifications read.
func (s *activityService) Notifications(userID string, limit int) (*Notifications, error) {
	var user models.User
	if err := s.db.Select("id", "last_notification_read_at").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if limit <= 0 {
		limit = 20
	}

	query := s.db.Model(&models.ActivityLog{}).Where("user_id <> ?", userID)
	if user.LastNotificationReadAt != nil {
		query = query.Where("created_at > ?", *user.LastNotificationReadAt)
	}

	var unread int64
	if err := query.Session(&gorm.Session{}).Count(&unread).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	items := []models.ActivityLog{}
	if err := query.Preload("User").Order("created_at DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &Notifications{Unread: unread, Items: items}, nil
}

// MarkNotificationsRead moves the user's read marker to at.
func (s *activityService) MarkNotificationsRead(userID string, at time.Time) error {
	result := s.db.Model(&models.User{}).Where("id = ?", userID).Update("last_notification_read_at", at)
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}
