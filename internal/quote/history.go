package quote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"brokerfolio/internal/models"
)

// HistoryPoint is one daily record from the historical series endpoint.
type HistoryPoint struct {
	Date   time.Time
	Price  decimal.Decimal
	Volume *int64
}

type historyRecord struct {
	DateTime  string           `json:"fechaHora"`
	Date      string           `json:"fecha"`
	LastPrice *decimal.Decimal `json:"ultimoPrecio"`
	Open      *decimal.Decimal `json:"apertura"`
	Close     *decimal.Decimal `json:"cierre"`
	Volume    *decimal.Decimal `json:"volumen"`
}

// price picks the last traded price, then the open, then the close.
func (r historyRecord) price() (decimal.Decimal, bool) {
	for _, p := range []*decimal.Decimal{r.LastPrice, r.Open, r.Close} {
		if p != nil && p.Sign() > 0 {
			return *p, true
		}
	}
	return decimal.Zero, false
}

func (r historyRecord) date() (time.Time, bool) {
	raw := r.DateTime
	if raw == "" {
		raw = r.Date
	}
	if len(raw) > 10 && raw[4] == '-' {
		raw = raw[:10]
	}
	t, ok := parseTimestamp(raw)
	if !ok {
		return time.Time{}, false
	}
	return models.DateOf(t), true
}

// History fetches the adjusted daily series for symbol between from and to.
// Records without a usable date or price are skipped.
func (c *Client) History(ctx context.Context, symbol string, from, to time.Time) ([]HistoryPoint, error) {
	token, err := c.validToken(ctx)
	if err != nil {
		return nil, err
	}

	path := c.titlePath(symbol, "Cotizacion", "seriehistorica",
		from.Format("2006-01-02"), to.Format("2006-01-02"), "ajustada")

	var records []historyRecord
	if err := c.get(ctx, token, path, &records); err != nil {
		return nil, err
	}

	points := make([]HistoryPoint, 0, len(records))
	for _, rec := range records {
		day, ok := rec.date()
		if !ok {
			continue
		}
		price, ok := rec.price()
		if !ok {
			continue
		}
		points = append(points, HistoryPoint{Date: day, Price: price, Volume: wholeVolume(rec.Volume)})
	}
	return points, nil
}
