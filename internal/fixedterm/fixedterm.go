// Package fixedterm computes simple-interest returns for fixed-rate,
// fixed-term records such as time deposits.
package fixedterm

import (
	"time"

	"github.com/shopspring/decimal"

	"brokerfolio/internal/models"
)

var (
	hundred    = decimal.NewFromInt(100)
	daysInYear = decimal.NewFromInt(365)
)

// Terms is the subset of a fixed-term record the calculator needs.
type Terms struct {
	Type      models.InvestmentType
	Principal decimal.Decimal
	Rate      decimal.NullDecimal // annual, percent
	Start     *time.Time
	End       *time.Time
}

// FromInvestment extracts Terms from a stored record.
func FromInvestment(inv *models.Investment) Terms {
	return Terms{
		Type:      inv.Type,
		Principal: inv.Principal,
		Rate:      inv.InterestRate,
		Start:     inv.StartDate,
		End:       inv.EndDate,
	}
}

// Accrues reports whether the record earns interest computed here.
func (t Terms) Accrues() bool {
	return t.Type == models.InvestmentTypeFixedTerm && t.Rate.Valid && t.Start != nil && t.End != nil
}

// Days returns the calendar days between start and end, or 0 when either is missing.
func Days(t Terms) int {
	if t.Start == nil || t.End == nil {
		return 0
	}
	start, end := models.DateOf(*t.Start), models.DateOf(*t.End)
	return int(end.Sub(start).Hours() / 24)
}

// AccruedReturn is principal × rate/100 × days/365 for fixed-term deposits
// and zero for every other record.
func AccruedReturn(t Terms) decimal.Decimal {
	if !t.Accrues() {
		return decimal.Zero
	}
	days := decimal.NewFromInt(int64(Days(t)))
	return t.Principal.Mul(t.Rate.Decimal).Div(hundred).Mul(days).Div(daysInYear)
}

// TotalAtMaturity is principal plus AccruedReturn.
func TotalAtMaturity(t Terms) decimal.Decimal {
	return t.Principal.Add(AccruedReturn(t))
}
