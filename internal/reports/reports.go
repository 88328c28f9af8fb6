package reports

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"brokerfolio/internal/models"
	"brokerfolio/internal/valuation"
)

const reportCurrency = "ARS"

// Renderer builds report documents with timestamps in one timezone.
type Renderer struct {
	loc *time.Location
	now func() time.Time
}

// NewRenderer loads timezone, defaulting to DefaultTimezone when empty.
func NewRenderer(timezone string) (*Renderer, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load report timezone %q: %w", timezone, err)
	}
	return &Renderer{loc: loc, now: time.Now}, nil
}

// Location returns the timezone reports are rendered in.
func (r *Renderer) Location() *time.Location { return r.loc }

// Now returns the current time in the report timezone.
func (r *Renderer) Now() time.Time { return r.now().In(r.loc) }

func (r *Renderer) period(from, to time.Time) string {
	return fmt.Sprintf("Period %s to %s", from.In(r.loc).Format("02/01/2006"), to.In(r.loc).Format("02/01/2006"))
}

// Activities lays out the activity log between from and to.
func (r *Renderer) Activities(from, to time.Time, items []models.ActivityLog) *Document {
	counts := map[string]int{}
	rows := make([][]string, 0, len(items))
	for _, a := range items {
		counts[a.Action]++
		rows = append(rows, []string{
			FormatDateTime(a.CreatedAt, r.loc),
			userName(a.User),
			a.Action,
			a.EntityType,
			dash(a.EntityName),
			detailsText(a.Details),
		})
	}

	return &Document{
		Title:       "Activity report",
		Period:      r.period(from, to),
		GeneratedAt: FormatDateTime(r.now(), r.loc),
		Summary: []string{
			"Total entries: " + humanize.Comma(int64(len(items))),
			"By action: " + countsText(counts),
		},
		Sections: []Section{{
			Sheet:   "Activity",
			Headers: []string{"Date/time", "User", "Action", "Entity", "Name", "Details"},
			Widths:  []float64{28, 28, 20, 24, 40, 40},
			Rows:    rows,
			Empty:   "No activity in the selected period.",
		}},
	}
}

// Messages lays out the messages posted between from and to.
func (r *Renderer) Messages(from, to time.Time, items []models.Message) *Document {
	counts := map[string]int{}
	rows := make([][]string, 0, len(items))
	for _, m := range items {
		counts[string(m.Kind)]++
		thread := "root"
		if m.ParentID != nil {
			thread = "reply"
		}
		rows = append(rows, []string{
			FormatDateTime(m.CreatedAt, r.loc),
			userName(m.Author),
			string(m.Kind),
			thread,
			strings.Join(strings.Fields(m.Content), " "),
		})
	}

	return &Document{
		Title:       "Message report",
		Period:      r.period(from, to),
		GeneratedAt: FormatDateTime(r.now(), r.loc),
		Summary: []string{
			"Total messages: " + humanize.Comma(int64(len(items))),
			"By kind: " + countsText(counts),
		},
		Sections: []Section{{
			Sheet:   "Messages",
			Headers: []string{"Date/time", "Author", "Kind", "Thread", "Content"},
			Widths:  []float64{28, 28, 22, 16, 86},
			Rows:    rows,
			Empty:   "No messages in the selected period.",
		}},
	}
}

// Executive lays out every broker's holdings and fixed-term records, largest
// invested first, after a grand-total summary.
func (r *Renderer) Executive(brokers []valuation.BrokerSnapshot, totals valuation.Totals, pct decimal.Decimal) *Document {
	portfolios, fixedTerms := 0, 0
	overview := make([][]string, 0, len(brokers))
	for _, b := range brokers {
		portfolios += len(b.Portfolios)
		fixedTerms += len(b.FixedTerms)
		overview = append(overview, []string{
			b.Name,
			stars(b.Ratings.Average),
			FormatMoney(b.Totals.Invested, reportCurrency),
			FormatMoney(b.Totals.Current, reportCurrency),
			FormatMoney(b.Totals.GainLoss, reportCurrency),
			FormatPct(b.GainLossPct),
		})
	}

	doc := &Document{
		Title:       "Executive broker report",
		GeneratedAt: FormatDateTime(r.now(), r.loc),
		Summary: []string{
			fmt.Sprintf("Brokers: %s  Portfolios: %s  Fixed-term records: %s",
				humanize.Comma(int64(len(brokers))), humanize.Comma(int64(portfolios)), humanize.Comma(int64(fixedTerms))),
			"Total invested: " + FormatMoney(totals.Invested, reportCurrency),
			"Current value: " + FormatMoney(totals.Current, reportCurrency),
			fmt.Sprintf("Result: %s (%s)", FormatMoney(totals.GainLoss, reportCurrency), FormatPct(pct)),
		},
		Sections: []Section{{
			Title:   "By broker",
			Sheet:   "Summary",
			Headers: []string{"Broker", "Rating", "Invested", "Current", "Result", "%"},
			Widths:  []float64{50, 24, 30, 30, 28, 18},
			Rows:    overview,
			Empty:   "No brokers registered.",
		}},
	}

	for _, b := range brokers {
		doc.Sections = append(doc.Sections, brokerHoldings(b), brokerFixedTerms(b))
	}
	return doc
}

func brokerHoldings(b valuation.BrokerSnapshot) Section {
	lines := []string{
		fmt.Sprintf("Rating %.1f/5 from %d ratings", b.Ratings.Average, b.Ratings.Count),
		fmt.Sprintf("Invested %s, current %s, result %s (%s)",
			FormatMoney(b.Totals.Invested, reportCurrency),
			FormatMoney(b.Totals.Current, reportCurrency),
			FormatMoney(b.Totals.GainLoss, reportCurrency),
			FormatPct(b.GainLossPct)),
	}
	categories := make([]string, 0, len(b.ByCategory))
	for cat := range b.ByCategory {
		categories = append(categories, string(cat))
	}
	sort.Strings(categories)
	for _, cat := range categories {
		t := b.ByCategory[models.InstrumentCategory(cat)]
		lines = append(lines, fmt.Sprintf("  %s: %s invested, %s current", cat,
			FormatMoney(t.Invested, reportCurrency), FormatMoney(t.Current, reportCurrency)))
	}

	var rows [][]string
	for _, p := range b.Portfolios {
		for _, h := range p.Holdings {
			rows = append(rows, []string{
				p.Name,
				h.Symbol,
				h.Quantity.String(),
				FormatMoney(h.PurchasePrice, reportCurrency),
				FormatMoney(h.CurrentPrice, reportCurrency),
				FormatMoney(h.Current, reportCurrency),
				FormatMoney(h.GainLoss, reportCurrency),
				FormatPct(h.GainLossPct),
			})
		}
	}

	return Section{
		Title:   b.Name,
		Sheet:   b.Name,
		NewPage: true,
		Lines:   lines,
		Headers: []string{"Portfolio", "Symbol", "Qty", "Purchase", "Price", "Value", "Result", "%"},
		Widths:  []float64{34, 18, 16, 24, 24, 24, 24, 16},
		Rows:    rows,
		Empty:   "No holdings.",
	}
}

func brokerFixedTerms(b valuation.BrokerSnapshot) Section {
	rows := make([][]string, 0, len(b.FixedTerms))
	for _, ft := range b.FixedTerms {
		rate := "-"
		if ft.InterestRate.Valid {
			rate = ft.InterestRate.Decimal.StringFixed(2) + "%"
		}
		rows = append(rows, []string{
			ft.Name,
			string(ft.Type),
			FormatMoney(ft.Principal, ft.Currency),
			rate,
			FormatDate(ft.StartDate),
			FormatDate(ft.EndDate),
			humanize.Comma(int64(ft.Days)),
			FormatMoney(ft.AccruedReturn, ft.Currency),
			FormatMoney(ft.TotalAtMaturity, ft.Currency),
		})
	}
	return Section{
		Title:   "Active fixed-term records",
		Sheet:   b.Name + " terms",
		Headers: []string{"Name", "Type", "Amount", "Rate", "Start", "End", "Days", "Return", "At maturity"},
		Widths:  []float64{30, 18, 24, 14, 18, 18, 12, 23, 23},
		Rows:    rows,
		Empty:   "No active fixed-term records.",
	}
}

func userName(u *models.User) string {
	if u == nil {
		return "-"
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// detailsText flattens a JSON object into "key: value" pairs sorted by key.
func detailsText(raw string) string {
	if raw == "" {
		return "-"
	}
	var details map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return raw
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", strings.ReplaceAll(k, "_", " "), details[k]))
	}
	return dash(strings.Join(parts, ", "))
}

// countsText renders "a (2), b (1)" ordered by key.
func countsText(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s (%d)", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

// stars renders an average rating as five filled or empty stars.
func stars(avg float64) string {
	full := int(avg)
	if full > 5 {
		full = 5
	}
	return strings.Repeat("*", full) + strings.Repeat("-", 5-full) + fmt.Sprintf(" %.1f", avg)
}
