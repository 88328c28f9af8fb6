// Package valuation holds the pure arithmetic behind holding, portfolio and
// broker figures. Nothing here touches the database: callers load positions
// through explicit queries and pass plain values in.
package valuation

import (
	"github.com/shopspring/decimal"

	"brokerfolio/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Position is one holding joined with its instrument's latest price.
type Position struct {
	HoldingID     string
	InstrumentID  string
	Symbol        string
	Name          string
	Category      models.InstrumentCategory
	Quantity      decimal.Decimal
	PurchasePrice decimal.Decimal
	CurrentPrice  decimal.Decimal // zero when unknown
}

// HoldingValue is quantity × current price.
func HoldingValue(p Position) decimal.Decimal {
	if p.CurrentPrice.Sign() <= 0 {
		return decimal.Zero
	}
	return p.Quantity.Mul(p.CurrentPrice)
}

// HoldingCost is quantity × purchase price.
func HoldingCost(p Position) decimal.Decimal {
	return p.Quantity.Mul(p.PurchasePrice)
}

// HoldingGainLoss is value minus cost.
func HoldingGainLoss(p Position) decimal.Decimal {
	return HoldingValue(p).Sub(HoldingCost(p))
}

// HoldingGainLossPct is gain/loss as a percentage of cost, 0 when cost is 0.
func HoldingGainLossPct(p Position) decimal.Decimal {
	return Pct(HoldingGainLoss(p), HoldingCost(p))
}

// PortfolioValue sums HoldingValue over positions.
func PortfolioValue(positions []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(HoldingValue(p))
	}
	return total
}

// PortfolioCost sums HoldingCost over positions.
func PortfolioCost(positions []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(HoldingCost(p))
	}
	return total
}

// Pct returns part ÷ whole × 100, or 0 when whole is 0.
func Pct(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// Totals is an invested / current / gain-loss triple.
type Totals struct {
	Invested decimal.Decimal `json:"invested"`
	Current  decimal.Decimal `json:"current"`
	GainLoss decimal.Decimal `json:"gain_loss"`
}

// Add returns the element-wise sum.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Invested: t.Invested.Add(o.Invested),
		Current:  t.Current.Add(o.Current),
		GainLoss: t.GainLoss.Add(o.GainLoss),
	}
}

// GainLossPct is gain/loss over invested, 0 when nothing is invested.
func (t Totals) GainLossPct() decimal.Decimal {
	return Pct(t.GainLoss, t.Invested)
}

// Rounded returns the totals rounded to cents.
func (t Totals) Rounded() Totals {
	return Totals{Invested: t.Invested.Round(2), Current: t.Current.Round(2), GainLoss: t.GainLoss.Round(2)}
}

// PositionTotals returns the totals of a set of positions.
func PositionTotals(positions []Position) Totals {
	invested, current := PortfolioCost(positions), PortfolioValue(positions)
	return Totals{Invested: invested, Current: current, GainLoss: current.Sub(invested)}
}

// BrokerBook is everything held at one broker.
type BrokerBook struct {
	Portfolios [][]Position
	// Principals of active fixed-term records.
	FixedTermPrincipals []decimal.Decimal
}

// BrokerTotals sums portfolio totals and adds each active fixed-term
// principal to both invested and current. Accrued interest is not part of
// current, so fixed-term records never move gain/loss.
func BrokerTotals(b BrokerBook) Totals {
	total := Totals{Invested: decimal.Zero, Current: decimal.Zero, GainLoss: decimal.Zero}
	for _, positions := range b.Portfolios {
		total = total.Add(PositionTotals(positions))
	}
	for _, principal := range b.FixedTermPrincipals {
		total.Invested = total.Invested.Add(principal)
		total.Current = total.Current.Add(principal)
	}
	return total
}
