package reports

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

// Document is a report laid out as a title block followed by sections.
// Both renderers consume the same Document.
type Document struct {
	Title       string
	Period      string
	GeneratedAt string
	Summary     []string
	Sections    []Section
}

// Section is an optional heading, some text lines and an optional table.
type Section struct {
	Title   string
	Sheet   string // worksheet name; sections without one are not exported to Excel
	NewPage bool
	Lines   []string
	Headers []string
	Widths  []float64 // column widths in mm, PDF only
	Rows    [][]string
	Empty   string // shown instead of the table when there are no rows
}

// Write renders the document in format f.
func (d *Document) Write(w io.Writer, f Format) error {
	if f == FormatXLSX {
		return d.WriteXLSX(w)
	}
	return d.WritePDF(w)
}

const (
	pdfMargin    = 15.0
	pdfRowHeight = 6.0
)

var (
	headerFill = [3]int{31, 58, 95}
	stripeFill = [3]int{241, 245, 249}
)

// WritePDF renders the document as an A4 portrait PDF.
func (d *Document) WritePDF(w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s - page %d/{nb}", d.Title, pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.CellFormat(0, 9, tr(d.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(80, 80, 80)
	if d.Period != "" {
		pdf.CellFormat(0, 5, tr(d.Period), "", 1, "L", false, 0, "")
	}
	if d.GeneratedAt != "" {
		pdf.CellFormat(0, 5, tr("Generated "+d.GeneratedAt), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range d.Summary {
		pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
	}

	for _, s := range d.Sections {
		if s.NewPage {
			pdf.AddPage()
		} else {
			pdf.Ln(4)
		}
		if s.Title != "" {
			pdf.SetFont("Helvetica", "B", 12)
			pdf.SetTextColor(headerFill[0], headerFill[1], headerFill[2])
			pdf.CellFormat(0, 8, tr(s.Title), "", 1, "L", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.SetFont("Helvetica", "", 9)
		for _, line := range s.Lines {
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
		if len(s.Headers) == 0 {
			continue
		}
		if len(s.Rows) == 0 {
			if s.Empty != "" {
				pdf.SetFont("Helvetica", "I", 9)
				pdf.CellFormat(0, 6, tr(s.Empty), "", 1, "L", false, 0, "")
			}
			continue
		}
		writePDFTable(pdf, tr, s)
	}

	return pdf.Output(w)
}

func writePDFTable(pdf *fpdf.Fpdf, tr func(string) string, s Section) {
	widths := columnWidths(pdf, s)
	header := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
		pdf.SetTextColor(255, 255, 255)
		for i, h := range s.Headers {
			pdf.CellFormat(widths[i], pdfRowHeight+1, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", 8)
	}

	header()
	_, pageHeight := pdf.GetPageSize()
	for n, row := range s.Rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-pdfMargin-5 {
			pdf.AddPage()
			header()
		}
		fill := n%2 == 1
		pdf.SetFillColor(stripeFill[0], stripeFill[1], stripeFill[2])
		for i := range s.Headers {
			cell := ""
			if i < len(row) {
				cell = tr(row[i])
			}
			pdf.CellFormat(widths[i], pdfRowHeight, fit(pdf, cell, widths[i]-2), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}
}

// columnWidths uses the section's widths when they match the headers, and
// splits the printable width evenly otherwise.
func columnWidths(pdf *fpdf.Fpdf, s Section) []float64 {
	if len(s.Widths) == len(s.Headers) {
		return s.Widths
	}
	pageWidth, _ := pdf.GetPageSize()
	each := (pageWidth - 2*pdfMargin) / float64(len(s.Headers))
	widths := make([]float64, len(s.Headers))
	for i := range widths {
		widths[i] = each
	}
	return widths
}

// fit truncates s with an ellipsis until it fits width.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

const infoSheet = "Info"

// WriteXLSX renders the document as a workbook: one sheet per section that
// names one, plus an Info sheet with the title block.
func (d *Document) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F3A5F"}},
	})
	if err != nil {
		return err
	}

	first := true
	for _, s := range d.Sections {
		if s.Sheet == "" {
			continue
		}
		name := sheetName(f, s.Sheet)
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}
		if err := writeSheet(f, name, s, headerStyle); err != nil {
			return err
		}
	}

	if first {
		if err := f.SetSheetName("Sheet1", infoSheet); err != nil {
			return err
		}
	} else if _, err := f.NewSheet(infoSheet); err != nil {
		return err
	}
	info := [][]string{{d.Title}}
	if d.Period != "" {
		info = append(info, []string{d.Period})
	}
	if d.GeneratedAt != "" {
		info = append(info, []string{"Generated " + d.GeneratedAt})
	}
	for _, line := range d.Summary {
		info = append(info, []string{line})
	}
	for i, row := range info {
		if err := setRow(f, infoSheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(infoSheet, "A", "A", 60); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSheet(f *excelize.File, name string, s Section, headerStyle int) error {
	row := 1
	for _, line := range s.Lines {
		if err := setRow(f, name, row, []string{line}); err != nil {
			return err
		}
		row++
	}
	if len(s.Headers) == 0 {
		return nil
	}
	if len(s.Lines) > 0 {
		row++
	}

	if err := setRow(f, name, row, s.Headers); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(s.Headers), row)
	if err := f.SetCellStyle(name, first, last, headerStyle); err != nil {
		return err
	}

	widths := make([]int, len(s.Headers))
	for i, h := range s.Headers {
		widths[i] = len([]rune(h))
	}
	for _, r := range s.Rows {
		row++
		if err := setRow(f, name, row, r); err != nil {
			return err
		}
		for i := 0; i < len(r) && i < len(widths); i++ {
			if n := len([]rune(r[i])); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i, n := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(name, col, col, float64(min(n+2, 60))); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

var sheetNameReplacer = strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")")

// sheetName strips characters Excel rejects, trims name to the 31-character
// limit and makes it unique.
func sheetName(f *excelize.File, name string) string {
	const maxLen = 31
	r := []rune(sheetNameReplacer.Replace(name))
	if len(r) > maxLen {
		r = r[:maxLen]
	}
	base := string(r)
	candidate := base
	for n := 2; ; n++ {
		if idx, _ := f.GetSheetIndex(candidate); idx == -1 && candidate != infoSheet {
			return candidate
		}
		suffix := fmt.Sprintf(" (%d)", n)
		br := []rune(base)
		if len(br)+len(suffix) > maxLen {
			br = br[:maxLen-len(suffix)]
		}
		candidate = string(br) + suffix
	}
}
