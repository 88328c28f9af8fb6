package reports

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"brokerfolio/internal/models"
	"brokerfolio/internal/valuation"
)

// HoldingRecord is one CSV row of a portfolio's holdings.
type HoldingRecord struct {
	Symbol        string `csv:"symbol"`
	Name          string `csv:"name"`
	Category      string `csv:"category"`
	Quantity      string `csv:"quantity"`
	PurchasePrice string `csv:"purchase_price"`
	CurrentPrice  string `csv:"current_price"`
	Invested      string `csv:"invested"`
	Current       string `csv:"current"`
	GainLoss      string `csv:"gain_loss"`
	GainLossPct   string `csv:"gain_loss_pct"`
}

// PriceRecord is one CSV row of price history. The same layout is accepted
// back by the price ingestion endpoint.
type PriceRecord struct {
	Symbol string `csv:"symbol"`
	Date   string `csv:"date"`
	Price  string `csv:"price"`
	Volume string `csv:"volume"`
}

// WriteHoldingsCSV writes the holdings of snap, header first.
func WriteHoldingsCSV(w io.Writer, snap valuation.PortfolioSnapshot) error {
	records := make([]*HoldingRecord, 0, len(snap.Holdings))
	for _, h := range snap.Holdings {
		records = append(records, &HoldingRecord{
			Symbol:        h.Symbol,
			Name:          h.Name,
			Category:      string(h.Category),
			Quantity:      h.Quantity.String(),
			PurchasePrice: h.PurchasePrice.StringFixed(2),
			CurrentPrice:  h.CurrentPrice.StringFixed(2),
			Invested:      h.Invested.StringFixed(2),
			Current:       h.Current.StringFixed(2),
			GainLoss:      h.GainLoss.StringFixed(2),
			GainLossPct:   h.GainLossPct.StringFixed(2),
		})
	}
	return gocsv.Marshal(records, w)
}

// WritePriceHistoryCSV writes the samples of one instrument, header first.
func WritePriceHistoryCSV(w io.Writer, inst *models.Instrument, samples []models.PriceSample) error {
	records := make([]*PriceRecord, 0, len(samples))
	for _, s := range samples {
		rec := &PriceRecord{
			Symbol: inst.Symbol,
			Date:   s.Date.UTC().Format("2006-01-02"),
			Price:  s.Price.String(),
		}
		if s.Volume != nil {
			rec.Volume = strconv.FormatInt(*s.Volume, 10)
		}
		records = append(records, rec)
	}
	return gocsv.Marshal(records, w)
}

// ReadPriceRecords parses a price CSV with a symbol,date,price,volume header.
func ReadPriceRecords(r io.Reader) ([]*PriceRecord, error) {
	var records []*PriceRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, err
	}
	return records, nil
}
