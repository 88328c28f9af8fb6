package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"brokerfolio/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Dec parses a decimal literal and panics on bad input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Day returns midnight UTC of the given date.
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithEmail(t, db, fmt.Sprintf("user%d@test.com", nextID()))
}

// CreateTestUserWithEmail creates a user with the given email and password "password123".
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Username: fmt.Sprintf("user%d", nextID()),
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestBroker creates a broker with a unique name.
func CreateTestBroker(t *testing.T, db *gorm.DB, createdBy string) *models.Broker {
	t.Helper()

	broker := &models.Broker{
		Name:           fmt.Sprintf("Broker %d", nextID()),
		CommissionRate: Dec("0.5"),
		CreatedByID:    createdBy,
	}
	if err := db.Create(broker).Error; err != nil {
		t.Fatalf("failed to create test broker: %v", err)
	}
	return broker
}

// CreateTestInstrument creates an equity instrument with the given symbol and
// current price. An empty price leaves the price unknown.
func CreateTestInstrument(t *testing.T, db *gorm.DB, symbol, price string) *models.Instrument {
	t.Helper()

	inst := &models.Instrument{
		Symbol:   symbol,
		Name:     symbol + " SA",
		Category: models.InstrumentCategoryEquity,
		Market:   models.DefaultMarket,
		Currency: "ARS",
	}
	if price != "" {
		now := time.Now().UTC()
		inst.CurrentPrice = decimal.NewNullDecimal(Dec(price))
		inst.LastUpdated = &now
	}
	if err := db.Create(inst).Error; err != nil {
		t.Fatalf("failed to create test instrument: %v", err)
	}
	return inst
}

// CreateTestPortfolio creates an empty portfolio at the given broker.
func CreateTestPortfolio(t *testing.T, db *gorm.DB, brokerID, createdBy string) *models.Portfolio {
	t.Helper()

	p := &models.Portfolio{
		Name:        fmt.Sprintf("Portfolio %d", nextID()),
		BrokerID:    brokerID,
		CreatedByID: createdBy,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create test portfolio: %v", err)
	}
	return p
}

// CreateTestHolding adds a holding of instrumentID to portfolioID.
func CreateTestHolding(t *testing.T, db *gorm.DB, portfolioID, instrumentID, quantity, purchasePrice string) *models.Holding {
	t.Helper()

	h := &models.Holding{
		PortfolioID:   portfolioID,
		InstrumentID:  instrumentID,
		Quantity:      Dec(quantity),
		PurchasePrice: Dec(purchasePrice),
		PurchaseDate:  models.DateOf(time.Now()),
	}
	if err := db.Create(h).Error; err != nil {
		t.Fatalf("failed to create test holding: %v", err)
	}
	return h
}

// CreateTestPriceSample stores a price for instrumentID on day.
func CreateTestPriceSample(t *testing.T, db *gorm.DB, instrumentID string, day time.Time, price string) *models.PriceSample {
	t.Helper()

	s := &models.PriceSample{InstrumentID: instrumentID, Date: models.DateOf(day), Price: Dec(price)}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("failed to create test price sample: %v", err)
	}
	return s
}

// CreateTestFixedTerm creates an active fixed-term deposit at brokerID.
func CreateTestFixedTerm(t *testing.T, db *gorm.DB, brokerID, createdBy, principal, rate string, start, end time.Time) *models.Investment {
	t.Helper()

	inv := &models.Investment{
		Name:         fmt.Sprintf("Plazo fijo %d", nextID()),
		Type:         models.InvestmentTypeFixedTerm,
		Principal:    Dec(principal),
		Currency:     "ARS",
		InterestRate: decimal.NewNullDecimal(Dec(rate)),
		StartDate:    &start,
		EndDate:      &end,
		Status:       models.InvestmentStatusActive,
		CreatedByID:  createdBy,
	}
	if brokerID != "" {
		inv.BrokerID = &brokerID
	}
	if err := db.Create(inv).Error; err != nil {
		t.Fatalf("failed to create test fixed term: %v", err)
	}
	return inv
}
