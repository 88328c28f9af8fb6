package models

import (
	"time"

	"brokerfolio/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Broker is a brokerage firm that holds portfolios and fixed-term records.
type Broker struct {
	Base
	Name           string          `gorm:"not null;uniqueIndex" json:"name"`
	Description    string          `json:"description,omitempty"`
	Website        string          `json:"website,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Email          string          `json:"email,omitempty"`
	LogoURL        string          `json:"logo_url,omitempty"`
	CommissionRate decimal.Decimal `gorm:"type:numeric(10,4);not null;default:0" json:"commission_rate"`
	CreatedByID    string          `gorm:"type:uuid" json:"created_by_id,omitempty"`
}

// RatingCategory is one of the aspects a broker can be rated on.
type RatingCategory string

const (
	RatingCategoryService  RatingCategory = "service"
	RatingCategoryFees     RatingCategory = "fees"
	RatingCategoryPlatform RatingCategory = "platform"
	RatingCategorySpeed    RatingCategory = "speed"
	RatingCategoryVariety  RatingCategory = "variety"
	RatingCategoryOverall  RatingCategory = "overall"
)

// RatingCategories lists every category in display order.
var RatingCategories = []RatingCategory{
	RatingCategoryService,
	RatingCategoryFees,
	RatingCategoryPlatform,
	RatingCategorySpeed,
	RatingCategoryVariety,
	RatingCategoryOverall,
}

// BrokerRating is one user's 1-5 score for one category of one broker.
// Ratings are overwritten in place, so there is no soft delete.
type BrokerRating struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	BrokerID  string         `gorm:"type:uuid;not null;uniqueIndex:uq_broker_ratings_broker_user_category" json:"broker_id"`
	UserID    string         `gorm:"type:uuid;not null;uniqueIndex:uq_broker_ratings_broker_user_category" json:"user_id"`
	Category  RatingCategory `gorm:"not null;uniqueIndex:uq_broker_ratings_broker_user_category" json:"category"`
	Score     int            `gorm:"not null" json:"score"`
	Comment   string         `json:"comment,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (r *BrokerRating) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New()
	}
	return nil
}
