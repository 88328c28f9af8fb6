package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
	"brokerfolio/internal/valuation"
)

// brokerService handles brokers and their ratings.
type brokerService struct {
	db *gorm.DB
}

// NewBrokerService creates a new BrokerServicer.
func NewBrokerService(db *gorm.DB) BrokerServicer {
	return &brokerService{db: db}
}

// CreateBroker creates a broker with a unique name.
func (s *brokerService) CreateBroker(userID string, in BrokerInput) (*models.Broker, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "broker name is required")
	}
	if in.CommissionRate.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "commission rate must not be negative")
	}

	var count int64
	if err := s.db.Model(&models.Broker{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateBroker
	}

	broker := &models.Broker{CreatedByID: userID}
	applyBrokerInput(broker, in)
	broker.Name = name

	if err := s.db.Create(broker).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrDuplicateBroker
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return broker, nil
}

// ListBrokers returns brokers ordered by name, optionally filtered by a
// case-insensitive name search.
func (s *brokerService) ListBrokers(search string, page pagination.PageRequest) (*pagination.PageResponse[models.Broker], error) {
	query := s.db.Model(&models.Broker{})
	if search = strings.TrimSpace(search); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	resp, err := pagination.Fetch[models.Broker](query, page, "name ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp, nil
}

// GetBrokerByID retrieves a broker by ID.
func (s *brokerService) GetBrokerByID(id string) (*models.Broker, error) {
	var broker models.Broker
	if err := s.db.Where("id = ?", id).First(&broker).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBrokerNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &broker, nil
}

// UpdateBroker replaces the editable fields of a broker.
func (s *brokerService) UpdateBroker(id string, in BrokerInput) (*models.Broker, error) {
	broker, err := s.GetBrokerByID(id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "broker name is required")
	}
	if in.CommissionRate.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "commission rate must not be negative")
	}
	if name != broker.Name {
		var count int64
		if err := s.db.Model(&models.Broker{}).Where("name = ? AND id <> ?", name, id).Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return nil, apperrors.ErrDuplicateBroker
		}
	}

	applyBrokerInput(broker, in)
	broker.Name = name
	if err := s.db.Save(broker).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrDuplicateBroker
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return broker, nil
}

// DeleteBroker removes a broker that holds no portfolios and no active
// fixed-term records. Its ratings go with it; closed records are detached.
func (s *brokerService) DeleteBroker(id string) error {
	if _, err := s.GetBrokerByID(id); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var portfolios, active int64
		if err := tx.Model(&models.Portfolio{}).Where("broker_id = ?", id).Count(&portfolios).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Model(&models.Investment{}).
			Where("broker_id = ? AND status = ?", id, models.InvestmentStatusActive).
			Count(&active).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if portfolios > 0 || active > 0 {
			return apperrors.ErrBrokerInUse
		}

		if err := tx.Where("broker_id = ?", id).Delete(&models.BrokerRating{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Model(&models.Investment{}).Where("broker_id = ?", id).Update("broker_id", nil).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		// Hard delete so the name can be reused.
		if err := tx.Unscoped().Where("id = ?", id).Delete(&models.Broker{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// RateBroker stores userID's score for one category, overwriting any
// earlier score for the same category.
func (s *brokerService) RateBroker(brokerID, userID string, category models.RatingCategory, score int, comment string) (*models.BrokerRating, error) {
	if !knownRatingCategory(category) {
		return nil, apperrors.ErrInvalidRatingCat
	}
	if score < 1 || score > 5 {
		return nil, apperrors.ErrInvalidRating
	}
	if _, err := s.GetBrokerByID(brokerID); err != nil {
		return nil, err
	}

	rating := &models.BrokerRating{
		BrokerID: brokerID,
		UserID:   userID,
		Category: category,
		Score:    score,
		Comment:  strings.TrimSpace(comment),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "broker_id"}, {Name: "user_id"}, {Name: "category"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"score":      score,
			"comment":    rating.Comment,
			"updated_at": time.Now(),
		}),
	}).Create(rating).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var stored models.BrokerRating
	if err := s.db.Where("broker_id = ? AND user_id = ? AND category = ?", brokerID, userID, category).
		First(&stored).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &stored, nil
}

// GetRatings lists every rating of a broker, most recent first.
func (s *brokerService) GetRatings(brokerID string) ([]models.BrokerRating, error) {
	if _, err := s.GetBrokerByID(brokerID); err != nil {
		return nil, err
	}
	ratings := []models.BrokerRating{}
	if err := s.db.Where("broker_id = ?", brokerID).Order("updated_at DESC").Find(&ratings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return ratings, nil
}

// GetRatingSummary averages a broker's ratings overall and per category.
func (s *brokerService) GetRatingSummary(brokerID string) (*valuation.RatingSummary, error) {
	ratings, err := s.GetRatings(brokerID)
	if err != nil {
		return nil, err
	}
	summary := valuation.SummarizeRatings(ratings)
	return &summary, nil
}

func applyBrokerInput(b *models.Broker, in BrokerInput) {
	b.Description = strings.TrimSpace(in.Description)
	b.Website = strings.TrimSpace(in.Website)
	b.Phone = strings.TrimSpace(in.Phone)
	b.Email = strings.TrimSpace(in.Email)
	b.LogoURL = strings.TrimSpace(in.LogoURL)
	b.CommissionRate = in.CommissionRate
}

func knownRatingCategory(c models.RatingCategory) bool {
	for _, known := range models.RatingCategories {
		if c == known {
			return true
		}
	}
	return false
}

// isUniqueConstraintError checks if a GORM error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // SQLite
		strings.Contains(msg, "duplicate key value violates unique constraint") // PostgreSQL
}
