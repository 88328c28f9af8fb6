package fixedterm

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"brokerfolio/internal/models"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func rate(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestAccruedReturn_FixedTermDeposit(t *testing.T) {
	terms := Terms{
		Type:      models.InvestmentTypeFixedTerm,
		Principal: decimal.NewFromInt(100000),
		Rate:      rate("40"),
		Start:     date(2024, 1, 1),
		End:       date(2024, 7, 1),
	}

	assert.Equal(t, 182, Days(terms))
	assert.Equal(t, "19945.21", AccruedReturn(terms).Round(2).StringFixed(2))
	assert.Equal(t, "119945.21", TotalAtMaturity(terms).Round(2).StringFixed(2))
}

func TestAccruedReturn_Zero(t *testing.T) {
	base := Terms{
		Type:      models.InvestmentTypeFixedTerm,
		Principal: decimal.NewFromInt(50000),
		Rate:      rate("30"),
		Start:     date(2024, 3, 1),
		End:       date(2024, 4, 1),
	}

	tests := []struct {
		name   string
		mutate func(*Terms)
	}{
		{"bond_type", func(t *Terms) { t.Type = models.InvestmentTypeBond }},
		{"equity_type", func(t *Terms) { t.Type = models.InvestmentTypeEquity }},
		{"missing_rate", func(t *Terms) { t.Rate = decimal.NullDecimal{} }},
		{"missing_start", func(t *Terms) { t.Start = nil }},
		{"missing_end", func(t *Terms) { t.End = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := base
			tt.mutate(&terms)
			assert.True(t, AccruedReturn(terms).IsZero())
			assert.True(t, TotalAtMaturity(terms).Equal(terms.Principal))
		})
	}
}

func TestDays_IgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 30, Days(Terms{Start: &start, End: &end}))
	assert.Equal(t, 0, Days(Terms{Start: &start}))
}

func TestFromInvestment(t *testing.T) {
	inv := &models.Investment{
		Type:         models.InvestmentTypeFixedTerm,
		Principal:    decimal.NewFromInt(1000),
		InterestRate: rate("36.5"),
		StartDate:    date(2024, 1, 1),
		EndDate:      date(2024, 1, 11),
	}

	terms := FromInvestment(inv)
	assert.True(t, terms.Accrues())
	// 1000 × 0.365 × 10/365 = 10
	assert.Equal(t, "10.00", AccruedReturn(terms).StringFixed(2))
}
