package documents

import (
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	pageMargin   = 20.0
	footerHeight = 15.0
	bodySize     = 10.5
	bodyLine     = 5.5
	headingSize  = 12.0
	headingLine  = 7.0
	bulletIndent = 6.0
	blockGap     = 2.5
)

// page tracks the running cursor. Every block is measured with SplitLines
// before it is written and starts a new page when it would cross bottom.
type page struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	width  float64
	bottom float64
}

func newPage(pdf *fpdf.Fpdf) *page {
	w, h := pdf.GetPageSize()
	return &page{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		width:  w - 2*pageMargin,
		bottom: h - pageMargin - footerHeight,
	}
}

func (p *page) remaining() float64 {
	return p.bottom - p.pdf.GetY()
}

// reserve starts a new page unless h fits below the cursor.
func (p *page) reserve(h float64) {
	if h > p.remaining() {
		p.pdf.AddPage()
	}
}

func (p *page) measure(text string, width float64) float64 {
	lines := p.pdf.SplitLines([]byte(p.tr(text)), width)
	if len(lines) == 0 {
		return bodyLine
	}
	return float64(len(lines)) * bodyLine
}

func (p *page) title(text string) {
	p.pdf.SetFont("Helvetica", "B", 16)
	p.reserve(10)
	p.pdf.CellFormat(p.width, 10, p.tr(text), "", 1, "C", false, 0, "")
	p.pdf.Ln(blockGap)
}

// heading keeps the clause title on the same page as its first line.
func (p *page) heading(number int, text string) {
	p.pdf.SetFont("Helvetica", "B", headingSize)
	p.reserve(headingLine + bodyLine + blockGap)
	p.pdf.CellFormat(p.width, headingLine, p.tr(fmt.Sprintf("%d. %s", number, text)), "", 1, "L", false, 0, "")
}

func (p *page) paragraph(text string) {
	p.pdf.SetFont("Helvetica", "", bodySize)
	p.reserve(p.measure(text, p.width))
	p.pdf.MultiCell(p.width, bodyLine, p.tr(text), "", "L", false)
	p.pdf.Ln(blockGap)
}

func (p *page) bullets(items []string) {
	p.pdf.SetFont("Helvetica", "", bodySize)
	textWidth := p.width - bulletIndent
	for _, item := range items {
		p.reserve(p.measure(item, textWidth))
		y := p.pdf.GetY()
		p.pdf.SetX(pageMargin)
		p.pdf.CellFormat(bulletIndent, bodyLine, p.tr("•"), "", 0, "C", false, 0, "")
		p.pdf.SetXY(pageMargin+bulletIndent, y)
		p.pdf.MultiCell(textWidth, bodyLine, p.tr(item), "", "L", false)
	}
	p.pdf.Ln(blockGap)
}

func (p *page) labelLine(label, value string) {
	p.pdf.SetFont("Helvetica", "", bodySize)
	text := label + ": " + value
	p.reserve(p.measure(text, p.width))
	p.pdf.MultiCell(p.width, bodyLine, p.tr(text), "", "L", false)
}

func (p *page) footer() {
	p.pdf.SetY(-footerHeight)
	p.pdf.SetFont("Helvetica", "I", 8)
	p.pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", p.pdf.PageNo()), "", 0, "C", false, 0, "")
}
