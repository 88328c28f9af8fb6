package valuation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"brokerfolio/internal/fixedterm"
	"brokerfolio/internal/models"
)

// HoldingSnapshot is the computed view of one position.
type HoldingSnapshot struct {
	HoldingID     string                    `json:"holding_id,omitempty"`
	InstrumentID  string                    `json:"instrument_id"`
	Symbol        string                    `json:"symbol"`
	Name          string                    `json:"name"`
	Category      models.InstrumentCategory `json:"category"`
	Quantity      decimal.Decimal           `json:"quantity"`
	PurchasePrice decimal.Decimal           `json:"purchase_price"`
	CurrentPrice  decimal.Decimal           `json:"current_price"`
	Invested      decimal.Decimal           `json:"invested"`
	Current       decimal.Decimal           `json:"current"`
	GainLoss      decimal.Decimal           `json:"gain_loss"`
	GainLossPct   decimal.Decimal           `json:"gain_loss_pct"`
}

// PortfolioSnapshot is the computed view of one portfolio.
type PortfolioSnapshot struct {
	ID          string                                `json:"id"`
	Name        string                                `json:"name"`
	BrokerID    string                                `json:"broker_id,omitempty"`
	Totals      Totals                                `json:"totals"`
	GainLossPct decimal.Decimal                       `json:"gain_loss_pct"`
	Holdings    []HoldingSnapshot                     `json:"holdings"`
	ByCategory  map[models.InstrumentCategory]Totals `json:"by_category"`
}

// FixedTermSnapshot is the computed view of one fixed-term record.
type FixedTermSnapshot struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	Type            models.InvestmentType   `json:"type"`
	Status          models.InvestmentStatus `json:"status"`
	Currency        string                  `json:"currency"`
	Principal       decimal.Decimal         `json:"amount"`
	InterestRate    decimal.NullDecimal     `json:"interest_rate"`
	StartDate       *time.Time              `json:"start_date,omitempty"`
	EndDate         *time.Time              `json:"end_date,omitempty"`
	Days            int                     `json:"days"`
	AccruedReturn   decimal.Decimal         `json:"calculated_return"`
	TotalAtMaturity decimal.Decimal         `json:"total_at_maturity"`
}

// BrokerSnapshot is the computed view of a broker and everything it holds.
type BrokerSnapshot struct {
	ID          string                                `json:"id"`
	Name        string                                `json:"name"`
	Description string                                `json:"description,omitempty"`
	Ratings     RatingSummary                         `json:"ratings"`
	Portfolios  []PortfolioSnapshot                   `json:"portfolios"`
	FixedTerms  []FixedTermSnapshot                   `json:"fixed_terms"`
	Totals      Totals                                `json:"totals"`
	GainLossPct decimal.Decimal                       `json:"gain_loss_pct"`
	ByCategory  map[models.InstrumentCategory]Totals `json:"by_category"`
}

// PortfolioPositions names a portfolio together with its loaded positions.
type PortfolioPositions struct {
	ID        string
	Name      string
	BrokerID  string
	Positions []Position
}

// SnapshotHolding computes the view of one position.
func SnapshotHolding(p Position) HoldingSnapshot {
	return HoldingSnapshot{
		HoldingID:     p.HoldingID,
		InstrumentID:  p.InstrumentID,
		Symbol:        p.Symbol,
		Name:          p.Name,
		Category:      categoryOf(p),
		Quantity:      p.Quantity,
		PurchasePrice: p.PurchasePrice,
		CurrentPrice:  p.CurrentPrice,
		Invested:      HoldingCost(p).Round(2),
		Current:       HoldingValue(p).Round(2),
		GainLoss:      HoldingGainLoss(p).Round(2),
		GainLossPct:   HoldingGainLossPct(p).Round(2),
	}
}

// SnapshotPortfolio computes the view of one portfolio.
func SnapshotPortfolio(pp PortfolioPositions) PortfolioSnapshot {
	holdings := make([]HoldingSnapshot, 0, len(pp.Positions))
	for _, p := range pp.Positions {
		holdings = append(holdings, SnapshotHolding(p))
	}
	totals := PositionTotals(pp.Positions)
	return PortfolioSnapshot{
		ID:          pp.ID,
		Name:        pp.Name,
		BrokerID:    pp.BrokerID,
		Totals:      totals.Rounded(),
		GainLossPct: totals.GainLossPct().Round(2),
		Holdings:    holdings,
		ByCategory:  roundAll(byCategory(pp.Positions, nil)),
	}
}

// SnapshotFixedTerm computes the view of one fixed-term record.
func SnapshotFixedTerm(inv *models.Investment) FixedTermSnapshot {
	terms := fixedterm.FromInvestment(inv)
	return FixedTermSnapshot{
		ID:              inv.ID,
		Name:            inv.Name,
		Type:            inv.Type,
		Status:          inv.Status,
		Currency:        inv.Currency,
		Principal:       inv.Principal,
		InterestRate:    inv.InterestRate,
		StartDate:       inv.StartDate,
		EndDate:         inv.EndDate,
		Days:            fixedterm.Days(terms),
		AccruedReturn:   fixedterm.AccruedReturn(terms).Round(2),
		TotalAtMaturity: fixedterm.TotalAtMaturity(terms).Round(2),
	}
}

// SnapshotBroker computes the view of a broker. Only active fixed-term
// records are included in the snapshot and its totals.
func SnapshotBroker(broker *models.Broker, ratings RatingSummary, portfolios []PortfolioPositions, investments []models.Investment) BrokerSnapshot {
	book := BrokerBook{Portfolios: make([][]Position, 0, len(portfolios))}
	snap := BrokerSnapshot{
		ID:          broker.ID,
		Name:        broker.Name,
		Description: broker.Description,
		Ratings:     ratings,
		Portfolios:  make([]PortfolioSnapshot, 0, len(portfolios)),
		FixedTerms:  []FixedTermSnapshot{},
	}

	cats := map[models.InstrumentCategory]Totals{}
	for _, pp := range portfolios {
		book.Portfolios = append(book.Portfolios, pp.Positions)
		snap.Portfolios = append(snap.Portfolios, SnapshotPortfolio(pp))
		byCategory(pp.Positions, cats)
	}
	for i := range investments {
		inv := &investments[i]
		if inv.Status != models.InvestmentStatusActive {
			continue
		}
		book.FixedTermPrincipals = append(book.FixedTermPrincipals, inv.Principal)
		snap.FixedTerms = append(snap.FixedTerms, SnapshotFixedTerm(inv))
	}

	totals := BrokerTotals(book)
	snap.Totals = totals.Rounded()
	snap.GainLossPct = totals.GainLossPct().Round(2)
	snap.ByCategory = roundAll(cats)
	return snap
}

// SortByInvested orders snapshots by invested total, largest first.
func SortByInvested(snaps []BrokerSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Totals.Invested.GreaterThan(snaps[j].Totals.Invested)
	})
}

func categoryOf(p Position) models.InstrumentCategory {
	if p.Category == "" {
		return models.InstrumentCategoryOther
	}
	return p.Category
}

func byCategory(positions []Position, into map[models.InstrumentCategory]Totals) map[models.InstrumentCategory]Totals {
	if into == nil {
		into = map[models.InstrumentCategory]Totals{}
	}
	for _, p := range positions {
		cat := categoryOf(p)
		into[cat] = into[cat].Add(PositionTotals([]Position{p}))
	}
	return into
}

func roundAll(m map[models.InstrumentCategory]Totals) map[models.InstrumentCategory]Totals {
	for k, v := range m {
		m[k] = v.Rounded()
	}
	return m
}
