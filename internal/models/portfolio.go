package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is a named set of holdings kept at one broker.
type Portfolio struct {
	Base
	Name        string `gorm:"not null" json:"name"`
	BrokerID    string `gorm:"type:uuid;not null;index" json:"broker_id"`
	Description string `json:"description,omitempty"`
	CreatedByID string `gorm:"type:uuid" json:"created_by_id,omitempty"`

	Broker *Broker `gorm:"foreignKey:BrokerID" json:"broker,omitempty"`
}

// Holding is a quantity of one instrument bought into a portfolio at a price.
type Holding struct {
	Base
	PortfolioID   string          `gorm:"type:uuid;not null;index" json:"portfolio_id"`
	InstrumentID  string          `gorm:"type:uuid;not null;index" json:"instrument_id"`
	Quantity      decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"quantity"`
	PurchasePrice decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"purchase_price"`
	PurchaseDate  time.Time       `gorm:"type:date;not null" json:"purchase_date"`
	Notes         string          `json:"notes,omitempty"`

	Instrument *Instrument `gorm:"foreignKey:InstrumentID" json:"instrument,omitempty"`
}
