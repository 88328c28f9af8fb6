// Package reports renders activity, message and executive reports as PDF or
// Excel documents, and holdings and price history as CSV.
package reports

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // report timezone must resolve on hosts without zoneinfo

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	apperrors "brokerfolio/internal/errors"
)

// DefaultTimezone is where the team reads its reports.
const DefaultTimezone = "America/Argentina/Buenos_Aires"

// Format is an output document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts pdf, xlsx and excel, case-insensitively. An empty
// string means PDF.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pdf":
		return FormatPDF, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", apperrors.WithMessage(apperrors.ErrUnsupportedFormat, "format must be pdf or xlsx")
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/pdf"
}

// FileName builds a download name such as activities_20240601_1530.pdf.
func FileName(base string, f Format, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", base, at.Format("20060102_1504"), f)
}

// FormatMoney renders an amount with its currency's symbol and separators.
// Unknown currencies fall back to "CODE 1234.56".
func FormatMoney(amount decimal.Decimal, currency string) string {
	code := strings.ToUpper(currency)
	cur := money.GetCurrency(code)
	if cur == nil {
		return code + " " + amount.StringFixed(2)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

// FormatPct renders a signed percentage with two decimals.
func FormatPct(pct decimal.Decimal) string {
	s := pct.StringFixed(2) + "%"
	if pct.Sign() > 0 {
		return "+" + s
	}
	return s
}

// FormatDateTime renders t in loc as dd/mm/yyyy hh:mm.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("02/01/2006 15:04")
}

// FormatDate renders a calendar date as dd/mm/yyyy.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format("02/01/2006")
}
