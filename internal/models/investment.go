package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentType tags a fixed-term record.
type InvestmentType string

const (
	InvestmentTypeFixedTerm InvestmentType = "fixed_term"
	InvestmentTypeBond      InvestmentType = "bond"
	InvestmentTypeEquity    InvestmentType = "equity"
	InvestmentTypeFund      InvestmentType = "fund"
	InvestmentTypeCrypto    InvestmentType = "crypto"
	InvestmentTypeOther     InvestmentType = "other"
)

// InvestmentStatus is the lifecycle state of a fixed-term record.
type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusCompleted InvestmentStatus = "completed"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
)

// Investment is a fixed-term record: a principal placed at a rate for a term,
// or a non-market position tracked by amount only.
type Investment struct {
	Base
	Name         string              `gorm:"not null" json:"name"`
	Type         InvestmentType      `gorm:"not null;index" json:"type"`
	Principal    decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"amount"`
	Currency     string              `gorm:"not null;default:'ARS'" json:"currency"`
	InterestRate decimal.NullDecimal `gorm:"type:numeric(10,4)" json:"interest_rate"`
	StartDate    *time.Time          `gorm:"type:date" json:"start_date,omitempty"`
	EndDate      *time.Time          `gorm:"type:date;index" json:"end_date,omitempty"`
	Status       InvestmentStatus    `gorm:"not null;default:'active';index" json:"status"`
	BrokerID     *string             `gorm:"type:uuid;index" json:"broker_id,omitempty"`
	CreatedByID  string              `gorm:"type:uuid" json:"created_by_id,omitempty"`
	Notes        string              `json:"notes,omitempty"`

	Broker *Broker `gorm:"foreignKey:BrokerID" json:"broker,omitempty"`
}
