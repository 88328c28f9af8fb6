// Package timeseries reconstructs day-by-day portfolio value from stored
// price samples.
//
// A day's total only includes instruments that have a sample on that day.
// Prices are not carried forward, so on days where some instruments lack a
// sample the total is a lower bound rather than the true portfolio value.
package timeseries

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"brokerfolio/internal/models"
	"brokerfolio/internal/valuation"
)

// Sample is one stored price for one instrument on one day.
type Sample struct {
	InstrumentID string
	Date         time.Time
	Price        decimal.Decimal
}

// Window is an inclusive date range.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls on a day within the window.
func (w Window) Contains(t time.Time) bool {
	day := models.DateOf(t)
	return !day.Before(models.DateOf(w.From)) && !day.After(models.DateOf(w.To))
}

// Point is the portfolio's value on one date.
type Point struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// Series is an ascending list of points with its extremes.
type Series struct {
	Points []Point         `json:"points"`
	Max    decimal.Decimal `json:"max_value"`
	Min    decimal.Decimal `json:"min_value"`
}

// Quantities maps instrument id to total quantity held. An instrument held
// through several holdings contributes the sum of their quantities.
func Quantities(positions []valuation.Position) map[string]decimal.Decimal {
	qty := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		qty[p.InstrumentID] = qty[p.InstrumentID].Add(p.Quantity)
	}
	return qty
}

// PortfolioHistory builds the value series for positions over window from
// samples. Samples outside the window or for instruments not held are
// ignored. Days whose total is not positive are dropped. When no day
// survives and live is positive, the series is a single point at today
// carrying live.
func PortfolioHistory(positions []valuation.Position, samples []Sample, window Window, live decimal.Decimal, today time.Time) Series {
	qty := Quantities(positions)

	totals := map[time.Time]decimal.Decimal{}
	for _, s := range samples {
		q, ok := qty[s.InstrumentID]
		if !ok || !window.Contains(s.Date) {
			continue
		}
		day := models.DateOf(s.Date)
		totals[day] = totals[day].Add(q.Mul(s.Price))
	}

	points := make([]Point, 0, len(totals))
	for day, total := range totals {
		total = total.Round(2)
		if total.Sign() <= 0 {
			continue
		}
		points = append(points, Point{Date: day, Value: total})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	if len(points) == 0 && live.Sign() > 0 {
		points = append(points, Point{Date: models.DateOf(today), Value: live.Round(2)})
	}

	series := Series{Points: points, Max: live.Round(2), Min: live.Round(2)}
	for i, p := range points {
		if i == 0 || p.Value.GreaterThan(series.Max) {
			series.Max = p.Value
		}
		if i == 0 || p.Value.LessThan(series.Min) {
			series.Min = p.Value
		}
	}
	return series
}

// Metrics summarizes a portfolio's history against what was paid for it.
type Metrics struct {
	InitialInvestment decimal.Decimal `json:"initial_investment"`
	CurrentValue      decimal.Decimal `json:"current_value"`
	GainLoss          decimal.Decimal `json:"gain_loss"`
	GainLossPct       decimal.Decimal `json:"gain_loss_pct"`
	MaxValue          decimal.Decimal `json:"max_value"`
	MinValue          decimal.Decimal `json:"min_value"`
}

// Summarize derives metrics from positions and their series. Current value is
// the live portfolio value, not the last point of the series.
func Summarize(positions []valuation.Position, series Series) Metrics {
	totals := valuation.PositionTotals(positions)
	return Metrics{
		InitialInvestment: totals.Invested.Round(2),
		CurrentValue:      totals.Current.Round(2),
		GainLoss:          totals.GainLoss.Round(2),
		GainLossPct:       totals.GainLossPct().Round(2),
		MaxValue:          series.Max,
		MinValue:          series.Min,
	}
}

// DefaultWindow spans from the portfolio's creation to today, or the last
// lookback days when the creation date is unknown.
func DefaultWindow(createdAt time.Time, today time.Time, lookback int) Window {
	from := createdAt
	if from.IsZero() {
		from = today.AddDate(0, 0, -lookback)
	}
	return Window{From: models.DateOf(from), To: models.DateOf(today)}
}
