package pdf

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/ona79/facturation-app/pkg/domain"
)

const (
	margin    = 20.0
	rowHeight = 7.0
)

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// Renderer lays out a finalized invoice as an A4 PDF.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render writes inv as a PDF document to w. It only formats; totals are
// printed as stored.
func (r *Renderer) Render(w io.Writer, inv *domain.Invoice) error {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(true, 30)
	doc.SetTitle(inv.Number, true)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	pageWidth, _ := doc.GetPageSize()
	contentWidth := pageWidth - 2*margin

	// Issuer header
	if inv.Issuer.Name != "" {
		doc.SetFont("Helvetica", "B", 24)
		doc.SetTextColor(37, 99, 235)
		doc.CellFormat(contentWidth, 12, tr(inv.Issuer.Name), "", 1, "L", false, 0, "")
	}
	doc.SetFont("Helvetica", "", 10)
	doc.SetTextColor(0, 0, 0)
	for _, line := range issuerLines(inv.Issuer) {
		doc.CellFormat(contentWidth, 5, tr(line), "", 1, "L", false, 0, "")
	}
	doc.Ln(6)
	doc.SetDrawColor(200, 200, 200)
	doc.Line(margin, doc.GetY(), pageWidth-margin, doc.GetY())
	doc.Ln(8)

	// Title, number and date
	doc.SetFont("Helvetica", "B", 20)
	doc.CellFormat(contentWidth, 10, "FACTURE", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(contentWidth, 7, tr("N°: "+inv.Number), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 12)
	doc.CellFormat(contentWidth, 7, tr("Date: "+FormatDate(inv)), "", 1, "L", false, 0, "")
	doc.Ln(8)

	// Lines table
	cols := []float64{contentWidth * 0.46, contentWidth * 0.12, contentWidth * 0.21, contentWidth * 0.21}
	doc.SetFillColor(245, 245, 245)
	doc.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"Produit", "Qté", "Prix", "Total"} {
		align := "R"
		if i == 0 {
			align = "L"
		} else if i == 1 {
			align = "C"
		}
		doc.CellFormat(cols[i], 8, tr(h), "", 0, align, true, 0, "")
	}
	doc.Ln(-1)

	for _, l := range inv.Lines {
		doc.SetFont("Helvetica", "", 10)
		doc.CellFormat(cols[0], rowHeight, tr(truncate(l.Name, 30)), "", 0, "L", false, 0, "")
		doc.CellFormat(cols[1], rowHeight, fmt.Sprint(l.Quantity), "", 0, "C", false, 0, "")
		doc.CellFormat(cols[2], rowHeight, tr(FormatMoney(l.UnitPrice, inv.Currency)), "", 0, "R", false, 0, "")
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(cols[3], rowHeight, tr(FormatMoney(l.LineTotal, inv.Currency)), "", 1, "R", false, 0, "")
		if l.Description != "" {
			doc.SetFont("Helvetica", "", 8)
			doc.SetTextColor(100, 100, 100)
			doc.CellFormat(contentWidth, 5, tr("   "+truncate(l.Description, 35)), "", 1, "L", false, 0, "")
			doc.SetTextColor(0, 0, 0)
		}
	}
	doc.Ln(4)
	doc.Line(pageWidth-margin-80, doc.GetY(), pageWidth-margin, doc.GetY())
	doc.Ln(4)

	// Totals
	labelWidth := contentWidth - cols[3]
	total := func(label string, amount decimal.Decimal, size float64) {
		doc.SetFont("Helvetica", "", size)
		doc.CellFormat(labelWidth, 8, tr(label), "", 0, "R", false, 0, "")
		doc.SetFont("Helvetica", "B", size)
		doc.CellFormat(cols[3], 8, tr(FormatMoney(amount, inv.Currency)), "", 1, "R", false, 0, "")
	}
	total("Sous-total:", inv.Subtotal, 12)
	if inv.Tax.Rate.IsPositive() {
		total(fmt.Sprintf("TVA (%s%%):", inv.Tax.Rate.String()), inv.Tax.Amount, 12)
	}
	doc.SetTextColor(37, 99, 235)
	total("TOTAL:", inv.GrandTotal, 14)
	doc.SetTextColor(0, 0, 0)

	if inv.Notes != "" {
		doc.Ln(10)
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(contentWidth, 6, "Remarques:", "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.MultiCell(contentWidth, 5, tr(inv.Notes), "", "L", false)
	}

	doc.SetFooterFunc(func() {
		doc.SetY(-15)
		doc.SetFont("Helvetica", "I", 8)
		doc.SetTextColor(150, 150, 150)
		doc.CellFormat(0, 10, tr("Merci pour votre confiance"), "", 0, "C", false, 0, "")
	})

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("render invoice %s: %w", inv.Number, err)
	}
	return nil
}

func issuerLines(is domain.Issuer) []string {
	var lines []string
	if is.Address != "" {
		lines = append(lines, is.Address)
	}
	if is.Phone != "" {
		lines = append(lines, "Tél: "+is.Phone)
	}
	if is.Email != "" {
		lines = append(lines, "Email: "+is.Email)
	}
	return lines
}

// FormatDate renders the issue date as "14 octobre 2026".
func FormatDate(inv *domain.Invoice) string {
	t := inv.IssuedAt
	return fmt.Sprintf("%d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}

// FormatMoney groups thousands with spaces and drops zero cents:
// 5901.31 -> "5 901,31 FCFA", 3000 -> "3 000 FCFA".
func FormatMoney(d decimal.Decimal, currency string) string {
	s := domain.Round2(d).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	if frac != "00" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	if currency != "" {
		b.WriteByte(' ')
		b.WriteString(currency)
	}
	return b.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
