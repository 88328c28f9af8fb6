package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentCategory classifies a tradable instrument.
type InstrumentCategory string

const (
	InstrumentCategoryEquity InstrumentCategory = "equity"
	InstrumentCategoryBond   InstrumentCategory = "bond"
	InstrumentCategoryCEDEAR InstrumentCategory = "cedear"
	InstrumentCategoryOther  InstrumentCategory = "other"
)

// DefaultMarket is the venue instruments trade on unless told otherwise.
const DefaultMarket = "BCBA"

// Instrument is a tradable symbol tracked for pricing.
type Instrument struct {
	Base
	Symbol       string              `gorm:"not null;uniqueIndex" json:"symbol"`
	Name         string              `gorm:"not null" json:"name"`
	Category     InstrumentCategory  `gorm:"not null;default:'equity'" json:"category"`
	Market       string              `gorm:"not null;default:'BCBA'" json:"market"`
	Currency     string              `gorm:"not null;default:'ARS'" json:"currency"`
	CurrentPrice decimal.NullDecimal `gorm:"type:numeric(20,6)" json:"current_price"`
	LastUpdated  *time.Time          `json:"last_updated,omitempty"`
}

// Price returns the latest known price, or zero when none has been fetched.
func (i *Instrument) Price() decimal.Decimal {
	if !i.CurrentPrice.Valid {
		return decimal.Zero
	}
	return i.CurrentPrice.Decimal
}
