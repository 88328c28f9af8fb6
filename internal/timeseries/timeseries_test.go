package timeseries

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerfolio/internal/valuation"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func num(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func holding(instrumentID, qty string) valuation.Position {
	return valuation.Position{InstrumentID: instrumentID, Quantity: num(qty), PurchasePrice: num("1")}
}

func values(s Series) []string {
	out := make([]string, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Date.Format("01-02") + "=" + p.Value.StringFixed(2)
	}
	return out
}

func TestPortfolioHistory_SparseDaysAreLowerBound(t *testing.T) {
	positions := []valuation.Position{holding("A", "10"), holding("B", "5")}
	samples := []Sample{
		{InstrumentID: "A", Date: day(1, 2), Price: num("110")},
		{InstrumentID: "A", Date: day(1, 1), Price: num("100")},
		{InstrumentID: "B", Date: day(1, 1), Price: num("50")},
	}

	s := PortfolioHistory(positions, samples, Window{From: day(1, 1), To: day(1, 31)}, num("1350"), day(1, 31))

	assert.Equal(t, []string{"01-01=1250.00", "01-02=1100.00"}, values(s))
	assert.Equal(t, "1250", s.Max.String())
	assert.Equal(t, "1100", s.Min.String())
}

func TestPortfolioHistory_FiltersWindowAndUnknownInstruments(t *testing.T) {
	positions := []valuation.Position{holding("A", "2")}
	samples := []Sample{
		{InstrumentID: "A", Date: day(2, 28), Price: num("1")},
		{InstrumentID: "A", Date: day(3, 1), Price: num("10")},
		{InstrumentID: "Z", Date: day(3, 1), Price: num("1000")},
		{InstrumentID: "A", Date: day(3, 2).Add(15 * time.Hour), Price: num("12")},
		{InstrumentID: "A", Date: day(3, 3), Price: num("99")},
	}

	s := PortfolioHistory(positions, samples, Window{From: day(3, 1), To: day(3, 2)}, num("0"), day(3, 2))

	assert.Equal(t, []string{"03-01=20.00", "03-02=24.00"}, values(s))
}

func TestPortfolioHistory_DropsNonPositiveDays(t *testing.T) {
	positions := []valuation.Position{holding("A", "1")}
	samples := []Sample{
		{InstrumentID: "A", Date: day(1, 1), Price: num("0")},
		{InstrumentID: "A", Date: day(1, 2), Price: num("5")},
	}

	s := PortfolioHistory(positions, samples, Window{From: day(1, 1), To: day(1, 2)}, num("5"), day(1, 2))

	assert.Equal(t, []string{"01-02=5.00"}, values(s))
}

func TestPortfolioHistory_LiveFallback(t *testing.T) {
	positions := []valuation.Position{holding("A", "3")}
	today := time.Date(2024, 5, 10, 18, 45, 0, 0, time.UTC)

	s := PortfolioHistory(positions, nil, Window{From: day(5, 1), To: day(5, 10)}, num("450.456"), today)

	require.Len(t, s.Points, 1)
	assert.Equal(t, day(5, 10), s.Points[0].Date)
	assert.Equal(t, "450.46", s.Points[0].Value.String())
	assert.Equal(t, "450.46", s.Max.String())
	assert.Equal(t, "450.46", s.Min.String())
}

func TestPortfolioHistory_Empty(t *testing.T) {
	s := PortfolioHistory(nil, nil, Window{From: day(1, 1), To: day(1, 2)}, decimal.Zero, day(1, 2))

	assert.Empty(t, s.Points)
	assert.True(t, s.Max.IsZero())
	assert.True(t, s.Min.IsZero())
}

func TestQuantities_SumsRepeatedInstrument(t *testing.T) {
	qty := Quantities([]valuation.Position{holding("A", "1.5"), holding("A", "2"), holding("B", "1")})

	assert.Equal(t, "3.5", qty["A"].String())
	assert.Equal(t, "1", qty["B"].String())
}

func TestSummarize(t *testing.T) {
	positions := []valuation.Position{
		{InstrumentID: "A", Quantity: num("10"), PurchasePrice: num("100"), CurrentPrice: num("120")},
	}
	series := Series{Max: num("1300"), Min: num("900")}

	m := Summarize(positions, series)

	assert.Equal(t, "1000", m.InitialInvestment.String())
	assert.Equal(t, "1200", m.CurrentValue.String())
	assert.Equal(t, "200", m.GainLoss.String())
	assert.Equal(t, "20", m.GainLossPct.String())
	assert.Equal(t, "1300", m.MaxValue.String())
}

func TestDefaultWindow(t *testing.T) {
	today := time.Date(2024, 6, 30, 14, 0, 0, 0, time.UTC)

	w := DefaultWindow(time.Time{}, today, 90)
	assert.Equal(t, day(4, 1), w.From)
	assert.Equal(t, day(6, 30), w.To)

	w = DefaultWindow(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), today, 90)
	assert.Equal(t, day(6, 1), w.From)
}
