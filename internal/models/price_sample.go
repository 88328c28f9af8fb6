package models

import (
	"time"

	"brokerfolio/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceSample is the price of one instrument on one calendar day.
// Rows are overwritten in place for the same day, so there is no soft delete.
type PriceSample struct {
	ID           string          `gorm:"type:uuid;primaryKey" json:"id"`
	InstrumentID string          `gorm:"type:uuid;not null;uniqueIndex:uq_price_samples_instrument_date" json:"instrument_id"`
	Date         time.Time       `gorm:"type:date;not null;uniqueIndex:uq_price_samples_instrument_date" json:"date"`
	Price        decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"price"`
	Volume       *int64          `json:"volume,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (s *PriceSample) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New()
	}
	return nil
}
