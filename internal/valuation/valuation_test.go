package valuation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerfolio/internal/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pos(symbol, qty, purchase, current string) Position {
	return Position{
		InstrumentID:  "id-" + symbol,
		Symbol:        symbol,
		Category:      models.InstrumentCategoryEquity,
		Quantity:      d(qty),
		PurchasePrice: d(purchase),
		CurrentPrice:  d(current),
	}
}

func TestHoldingFigures(t *testing.T) {
	p := pos("GGAL", "10", "100", "125.5")

	assert.Equal(t, "1255", HoldingValue(p).String())
	assert.Equal(t, "1000", HoldingCost(p).String())
	assert.Equal(t, "255", HoldingGainLoss(p).String())
	assert.Equal(t, "25.5", HoldingGainLossPct(p).String())
}

func TestHoldingValue_UnknownPrice(t *testing.T) {
	p := pos("YPFD", "3", "50", "0")

	assert.True(t, HoldingValue(p).IsZero())
	assert.Equal(t, "-150", HoldingGainLoss(p).String())
	assert.Equal(t, "-100", HoldingGainLossPct(p).String())
}

func TestHoldingGainLossPct_ZeroCost(t *testing.T) {
	cases := []Position{
		pos("A", "0", "100", "120"),
		pos("B", "10", "0", "120"),
		pos("C", "0", "0", "0"),
	}
	for _, p := range cases {
		t.Run(p.Symbol, func(t *testing.T) {
			assert.True(t, HoldingGainLossPct(p).IsZero())
		})
	}
}

func TestHoldingValueIdentity(t *testing.T) {
	cases := []Position{
		pos("A", "10", "100", "120"),
		pos("B", "0.5", "3000", "2500.25"),
		pos("C", "7", "12.34", "0"),
		pos("D", "1234.5678", "0.99", "1.01"),
	}
	for _, p := range cases {
		t.Run(p.Symbol, func(t *testing.T) {
			assert.True(t, HoldingValue(p).Equal(HoldingGainLoss(p).Add(HoldingCost(p))))
		})
	}
}

func TestPortfolioValue(t *testing.T) {
	positions := []Position{
		pos("A", "10", "100", "110"),
		pos("B", "5", "50", "40"),
		pos("C", "2", "10", "0"),
	}

	assert.Equal(t, "1300", PortfolioValue(positions).String())
	assert.Equal(t, "1270", PortfolioCost(positions).String())
	assert.True(t, PortfolioValue(nil).IsZero())
}

func TestBrokerTotals_FixedTermInBothInvestedAndCurrent(t *testing.T) {
	book := BrokerBook{
		Portfolios: [][]Position{
			{pos("A", "10", "100", "110")},
			{pos("B", "4", "25", "20")},
		},
		FixedTermPrincipals: []decimal.Decimal{d("5000")},
	}

	got := BrokerTotals(book)

	assert.Equal(t, "6100", got.Invested.String())
	assert.Equal(t, "6180", got.Current.String())
	assert.Equal(t, "80", got.GainLoss.String())
}

func TestBrokerTotals_Empty(t *testing.T) {
	got := BrokerTotals(BrokerBook{})
	assert.True(t, got.Invested.IsZero())
	assert.True(t, got.Current.IsZero())
	assert.True(t, got.GainLossPct().IsZero())
}

func TestSnapshotBroker(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	broker := &models.Broker{Base: models.Base{ID: "b1"}, Name: "Balanz"}

	bond := pos("AL30", "100", "50", "60")
	bond.Category = models.InstrumentCategoryBond
	portfolios := []PortfolioPositions{
		{ID: "p1", Name: "Core", BrokerID: "b1", Positions: []Position{pos("GGAL", "10", "100", "90"), bond}},
	}
	investments := []models.Investment{
		{
			Base:         models.Base{ID: "i1"},
			Name:         "Plazo fijo",
			Type:         models.InvestmentTypeFixedTerm,
			Status:       models.InvestmentStatusActive,
			Principal:    d("100000"),
			InterestRate: decimal.NewNullDecimal(d("40")),
			StartDate:    &start,
			EndDate:      &end,
		},
		{
			Base:      models.Base{ID: "i2"},
			Type:      models.InvestmentTypeFixedTerm,
			Status:    models.InvestmentStatusCompleted,
			Principal: d("999999"),
		},
	}

	snap := SnapshotBroker(broker, RatingSummary{}, portfolios, investments)

	require.Len(t, snap.Portfolios, 1)
	require.Len(t, snap.FixedTerms, 1)
	assert.Equal(t, "19945.21", snap.FixedTerms[0].AccruedReturn.StringFixed(2))
	assert.Equal(t, 182, snap.FixedTerms[0].Days)

	// portfolio: cost 1000 + 5000, value 900 + 6000
	assert.Equal(t, "106000", snap.Totals.Invested.String())
	assert.Equal(t, "106900", snap.Totals.Current.String())
	assert.Equal(t, "900", snap.Totals.GainLoss.String())

	assert.Equal(t, "5000", snap.ByCategory[models.InstrumentCategoryBond].Invested.String())
	assert.Equal(t, "900", snap.ByCategory[models.InstrumentCategoryEquity].Current.String())
	assert.Equal(t, "15", snap.Portfolios[0].GainLossPct.String())
}

func TestSortByInvested(t *testing.T) {
	snaps := []BrokerSnapshot{
		{Name: "small", Totals: Totals{Invested: d("10")}},
		{Name: "large", Totals: Totals{Invested: d("1000")}},
		{Name: "mid", Totals: Totals{Invested: d("100")}},
	}

	SortByInvested(snaps)

	assert.Equal(t, []string{"large", "mid", "small"}, []string{snaps[0].Name, snaps[1].Name, snaps[2].Name})
}

func TestSummarizeRatings(t *testing.T) {
	ratings := []models.BrokerRating{
		{UserID: "u1", Category: models.RatingCategoryFees, Score: 4},
		{UserID: "u2", Category: models.RatingCategoryFees, Score: 5},
		{UserID: "u1", Category: models.RatingCategoryPlatform, Score: 2},
	}

	s := SummarizeRatings(ratings)

	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 3.67, s.Average, 0.001)
	assert.InDelta(t, 4.5, s.CategoryAverage(models.RatingCategoryFees), 0.001)
	assert.InDelta(t, 2.0, s.CategoryAverage(models.RatingCategoryPlatform), 0.001)
	assert.Zero(t, s.CategoryAverage(models.RatingCategorySpeed))
	assert.Len(t, s.ByCategory, len(models.RatingCategories))
}

func TestSummarizeRatings_None(t *testing.T) {
	s := SummarizeRatings(nil)
	assert.Zero(t, s.Average)
	assert.Zero(t, s.Count)
}
