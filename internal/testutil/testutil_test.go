package testutil_test

import (
	"testing"
	"time"

	"brokerfolio/internal/errors"
	"brokerfolio/internal/models"
	"brokerfolio/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	// Verify all tables exist by doing a simple count query on each model.
	var count int64
	for _, table := range []string{"users", "brokers", "broker_ratings", "instruments", "price_samples", "portfolios", "holdings", "investments", "messages", "activity_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDB_Isolated(t *testing.T) {
	first := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, first)
	second := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, second)

	testutil.CreateTestUser(t, first)

	var count int64
	second.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("expected second database to be empty, found %d users", count)
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	if user.ID == "" {
		t.Fatal("user should have an ID")
	}

	broker := testutil.CreateTestBroker(t, db, user.ID)
	inst := testutil.CreateTestInstrument(t, db, "GGAL", "3125.5")
	if !inst.Price().Equal(testutil.Dec("3125.5")) {
		t.Errorf("expected price 3125.5, got %s", inst.Price())
	}

	portfolio := testutil.CreateTestPortfolio(t, db, broker.ID, user.ID)
	holding := testutil.CreateTestHolding(t, db, portfolio.ID, inst.ID, "10", "3000")
	if !holding.Quantity.Equal(testutil.Dec("10")) {
		t.Errorf("expected quantity 10, got %s", holding.Quantity)
	}

	sample := testutil.CreateTestPriceSample(t, db, inst.ID, time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC), "3100")
	if !sample.Date.Equal(testutil.Day(2024, 1, 2)) {
		t.Errorf("expected sample date truncated to day, got %v", sample.Date)
	}

	ft := testutil.CreateTestFixedTerm(t, db, broker.ID, user.ID, "100000", "40", testutil.Day(2024, 1, 1), testutil.Day(2024, 7, 1))
	if ft.Status != models.InvestmentStatusActive {
		t.Errorf("expected active fixed term, got %s", ft.Status)
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrBrokerNotFound, "custom message")
	testutil.AssertAppError(t, err, "BROKER_NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
