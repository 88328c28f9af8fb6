package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
)

// messageService handles threaded team messages.
type messageService struct {
	db *gorm.DB
}

// NewMessageService creates a new MessageServicer.
func NewMessageService(db *gorm.DB) MessageServicer {
	return &messageService{db: db}
}

func repliesOldestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// PostMessage posts a new thread or a reply. Replies join the root of the
// thread they answer and inherit its target; a new thread's kind follows
// from the record it is attached to.
func (s *messageService) PostMessage(authorID string, in MessageInput) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "content is required")
	}

	msg := &models.Message{Content: content, AuthorID: authorID}

	if in.ParentID != nil && *in.ParentID != "" {
		var parent models.Message
		if err := s.db.Where("id = ?", *in.ParentID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrInvalidParent
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		rootID := parent.ID
		if parent.ParentID != nil {
			rootID = *parent.ParentID
		}
		msg.ParentID = &rootID
		msg.Kind = parent.Kind
		msg.BrokerID = parent.BrokerID
		msg.InvestmentID = parent.InvestmentID
		msg.PortfolioID = parent.PortfolioID
	} else {
		if err := s.attachTarget(msg, in); err != nil {
			return nil, err
		}
	}

	if err := s.db.Create(msg).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetMessageByID(msg.ID)
}

// ListThreads returns root messages with their replies, newest thread first.
func (s *messageService) ListThreads(filter MessageFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Message], error) {
	page.Defaults()

	query := s.db.Model(&models.Message{}).Where("parent_id IS NULL")
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.BrokerID != "" {
		query = query.Where("broker_id = ?", filter.BrokerID)
	}
	if filter.InvestmentID != "" {
		query = query.Where("investment_id = ?", filter.InvestmentID)
	}
	if filter.PortfolioID != "" {
		query = query.Where("portfolio_id = ?", filter.PortfolioID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var threads []models.Message
	if err := query.Preload("Author").
		Preload("Replies", repliesOldestFirst).
		Preload("Replies.Author").
		Order("created_at DESC").
		Scopes(pagination.Paginate(page)).
		Find(&threads).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(threads, page.Page, page.PageSize, total)
	return &resp, nil
}

// GetMessageByID retrieves a message with its author and replies.
func (s *messageService) GetMessageByID(id string) (*models.Message, error) {
	var msg models.Message
	err := s.db.Preload("Author").
		Preload("Replies", repliesOldestFirst).
		Preload("Replies.Author").
		Where("id = ?", id).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrMessageNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &msg, nil
}

// DeleteMessage removes a message and its replies. Only the author or an
// administrator may delete.
func (s *messageService) DeleteMessage(id, userID string, isAdmin bool) error {
	var msg models.Message
	if err := s.db.Where("id = ?", id).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrMessageNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if msg.AuthorID != userID && !isAdmin {
		return apperrors.WithMessage(apperrors.ErrForbidden, "only the author can delete this message")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// MessagesBetween returns every message posted in [from, to], oldest first.
func (s *messageService) MessagesBetween(from, to time.Time) ([]models.Message, error) {
	msgs := []models.Message{}
	if err := s.db.Preload("Author").
		Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return msgs, nil
}

// attachTarget sets the single record a new thread refers to and derives
// its kind. With no target the thread is general.
func (s *messageService) attachTarget(msg *models.Message, in MessageInput) error {
	switch {
	case nonEmpty(in.InvestmentID):
		var count int64
		if err := s.db.Model(&models.Investment{}).Where("id = ?", *in.InvestmentID).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count == 0 {
			return apperrors.ErrInvestmentNotFound
		}
		msg.Kind = models.MessageKindInvestment
		msg.InvestmentID = in.InvestmentID
	case nonEmpty(in.PortfolioID):
		var count int64
		if err := s.db.Model(&models.Portfolio{}).Where("id = ?", *in.PortfolioID).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count == 0 {
			return apperrors.ErrPortfolioNotFound
		}
		msg.Kind = models.MessageKindPortfolio
		msg.PortfolioID = in.PortfolioID
	case nonEmpty(in.BrokerID):
		if err := requireBroker(s.db, *in.BrokerID); err != nil {
			return err
		}
		msg.Kind = models.MessageKindBroker
		msg.BrokerID = in.BrokerID
	default:
		msg.Kind = models.MessageKindGeneral
	}
	return nil
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
