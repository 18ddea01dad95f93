package report

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/hl-compare/hl-compare/internal/format"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/view"
)

// Landscape A4 geometry in millimetres.
const (
	pdfMargin      = 12.0
	pdfPageWidth   = 297.0
	pdfContentW    = pdfPageWidth - 2*pdfMargin
	pdfRowH        = 6.5
	pdfLabelColW   = 62.0
	pdfNarrLines   = 9
	pdfNarrLineH   = 4.6
	pdfInsightMaxC = 420

	// Confidence chart on the title slide.
	pdfChartBottom = 186.0
	pdfChartMinH   = 24.0
	pdfChartMaxH   = 46.0
	pdfChartAxisW  = 10.0
)

var (
	brandBlue = [3]int{0, 119, 204}
	winGreen  = [3]int{40, 167, 69}
	stripe    = [3]int{244, 247, 251}

	barColors = [][3]int{brandBlue, winGreen, {253, 126, 20}, {111, 66, 193}, {220, 53, 69}}
)

// PDF renders a fixed-size landscape slide deck, one slide per page.
type PDF struct{}

// NewPDF returns a PDF exporter.
func NewPDF() *PDF { return &PDF{} }

func (*PDF) Format() string      { return "pdf" }
func (*PDF) ContentType() string { return "application/pdf" }
func (*PDF) Extension() string   { return ".pdf" }

// Export renders doc. A failing page aborts the export with a *PageError.
func (e *PDF) Export(ctx context.Context, doc *Document) ([]byte, error) {
	return render(ctx, doc, newPDFRenderer(doc))
}

type pdfRenderer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newPDFRenderer(doc *Document) *pdfRenderer {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	// Slides are fixed-size: content is truncated rather than flowing onto
	// an extra page.
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Investment Comparison Analysis", true)
	pdf.SetAuthor(Brand, true)
	if doc != nil {
		pdf.SetCreationDate(doc.Report.Title.GeneratedAt)
		pdf.SetModificationDate(doc.Report.Title.GeneratedAt)
	}
	enc := pdf.UnicodeTranslatorFromDescriptor("")
	r := &pdfRenderer{pdf: pdf, tr: func(s string) string { return enc(latin1(s)) }}
	pdf.SetFooterFunc(r.footer)
	return r
}

func (r *pdfRenderer) footer() {
	p := r.pdf
	p.SetY(-12)
	p.SetFont("Helvetica", "B", 9)
	p.SetTextColor(brandBlue[0], brandBlue[1], brandBlue[2])
	p.CellFormat(pdfContentW/2, 6, Brand, "", 0, "L", false, 0, "")
	if n := p.PageNo(); n > 1 {
		p.SetFont("Helvetica", "", 9)
		p.SetTextColor(120, 120, 120)
		p.CellFormat(pdfContentW/2, 6, fmt.Sprintf("Page %d", n-1), "", 0, "R", false, 0, "")
	}
}

func (r *pdfRenderer) Title(doc *Document) error {
	p := r.pdf
	t := doc.Report.Title
	p.AddPage()

	p.SetY(45)
	p.SetFont("Helvetica", "B", 30)
	p.SetTextColor(brandBlue[0], brandBlue[1], brandBlue[2])
	p.CellFormat(pdfContentW, 14, Brand, "", 1, "C", false, 0, "")
	p.SetFont("Helvetica", "B", 16)
	p.CellFormat(pdfContentW, 10, "INVESTMENT COMPARISON ANALYSIS", "", 1, "C", false, 0, "")
	p.Ln(10)

	p.SetTextColor(30, 30, 30)
	p.SetFont("Helvetica", "B", 18)
	p.MultiCell(pdfContentW, 9, r.tr(joinVs(t.Entities)), "", "C", false)
	p.Ln(6)

	p.SetFont("Helvetica", "", 12)
	p.CellFormat(pdfContentW, 7, "Generated: "+t.Date, "", 1, "C", false, 0, "")
	p.CellFormat(pdfContentW, 7, fmt.Sprintf("Documents analyzed: %d", t.DocumentCount), "", 1, "C", false, 0, "")
	if t.Query != "" {
		p.CellFormat(pdfContentW, 7, r.tr("Focus: "+truncate(t.Query, 120)), "", 1, "C", false, 0, "")
	}
	p.Ln(8)
	p.SetFont("Helvetica", "B", 12)
	p.CellFormat(pdfContentW, 7, r.tr("Key Recommendation: "+doc.Summary.Recommendation), "", 1, "C", false, 0, "")
	r.confidenceChart(doc.Summary)
	return p.Error()
}

// confidenceChart draws grouped bars, one group per category and one bar per
// entity, into the space left below the title block. It is skipped when
// that space is too small.
func (r *pdfRenderer) confidenceChart(s Summary) {
	p := r.pdf
	if len(s.Confidence) == 0 || len(s.Scores) == 0 {
		return
	}
	top := p.GetY() + 6
	h := math.Min(pdfChartBottom-top-10, pdfChartMaxH)
	if h < pdfChartMinH {
		return
	}

	p.SetFont("Helvetica", "", 8)
	p.SetTextColor(30, 30, 30)
	p.SetXY(pdfMargin+pdfChartAxisW, top)
	for i, e := range s.Scores {
		c := barColor(i)
		p.SetFillColor(c[0], c[1], c[2])
		p.Rect(p.GetX(), top+1, 3, 3, "F")
		p.SetX(p.GetX() + 4)
		label := r.tr(truncate(e.Entity, 28))
		p.CellFormat(p.GetStringWidth(label)+6, 5, label, "", 0, "L", false, 0, "")
	}

	left := pdfMargin + pdfChartAxisW
	width := pdfContentW - pdfChartAxisW
	base := top + 5 + h
	p.SetDrawColor(190, 190, 190)
	p.SetLineWidth(0.2)
	p.SetFont("Helvetica", "", 7)
	for _, tick := range []int{0, 50, 100} {
		y := base - barHeight(tick, h)
		p.Line(left, y, left+width, y)
		p.SetXY(pdfMargin, y-2)
		p.CellFormat(pdfChartAxisW-1, 4, strconv.Itoa(tick), "", 0, "R", false, 0, "")
	}

	groupW := width / float64(len(s.Confidence))
	barW := groupW * 0.8 / float64(len(s.Scores))
	for g, cs := range s.Confidence {
		gx := left + float64(g)*groupW
		for i, score := range cs.Scores {
			bh := barHeight(score, h)
			if bh == 0 {
				continue
			}
			c := barColor(i)
			p.SetFillColor(c[0], c[1], c[2])
			p.Rect(gx+groupW*0.1+float64(i)*barW, base-bh, barW, bh, "F")
		}
		p.SetXY(gx, base+0.5)
		p.CellFormat(groupW, 4, r.tr(shortLabel(cs.Category)), "", 0, "C", false, 0, "")
	}
}

// barHeight scales a 0-100 confidence onto a bar at most maxH tall.
func barHeight(score int, maxH float64) float64 {
	score = min(max(score, 0), 100)
	return maxH * float64(score) / 100
}

func barColor(i int) [3]int {
	return barColors[i%len(barColors)]
}

// shortLabel is the first word of the category label.
func shortLabel(c model.Category) string {
	label := c.Label()
	if i := strings.IndexByte(label, ' '); i > 0 {
		return label[:i]
	}
	return label
}

func (r *pdfRenderer) Page(_ *Document, pg view.Page) error {
	p := r.pdf
	p.AddPage()

	p.SetFont("Helvetica", "B", 18)
	p.SetTextColor(brandBlue[0], brandBlue[1], brandBlue[2])
	p.CellFormat(pdfContentW, 10, r.tr(pg.Label), "", 1, "L", false, 0, "")
	p.SetDrawColor(brandBlue[0], brandBlue[1], brandBlue[2])
	p.Line(pdfMargin, p.GetY(), pdfPageWidth-pdfMargin, p.GetY())
	p.Ln(3)

	if len(pg.Table.Rows) > 0 {
		r.table(pg.Table)
		p.Ln(4)
	}
	r.narratives(pg.Narratives, len(pg.Table.Rows) == 0)

	p.Ln(3)
	p.SetFont("Helvetica", "B", 11)
	p.SetTextColor(brandBlue[0], brandBlue[1], brandBlue[2])
	p.CellFormat(pdfContentW, 6, "Deeper Insight", "", 1, "L", false, 0, "")
	p.SetFont("Helvetica", "I", 10)
	p.SetTextColor(50, 50, 50)
	p.MultiCell(pdfContentW, 5, r.tr(truncate(pg.Insight, pdfInsightMaxC)), "", "L", false)
	return p.Error()
}

func (r *pdfRenderer) table(t view.Table) {
	p := r.pdf
	n := len(t.Entities)
	colW := pdfContentW - pdfLabelColW
	if n > 0 {
		colW /= float64(n)
	}

	p.SetFont("Helvetica", "B", 10)
	p.SetFillColor(brandBlue[0], brandBlue[1], brandBlue[2])
	p.SetTextColor(255, 255, 255)
	p.CellFormat(pdfLabelColW, pdfRowH, "Metric", "1", 0, "L", true, 0, "")
	for _, e := range t.Entities {
		p.CellFormat(colW, pdfRowH, r.tr(truncate(e, 32)), "1", 0, "C", true, 0, "")
	}
	p.Ln(-1)

	for i, row := range t.Rows {
		fill := i%2 == 1
		p.SetFillColor(stripe[0], stripe[1], stripe[2])
		p.SetFont("Helvetica", "", 9)
		p.SetTextColor(30, 30, 30)
		p.CellFormat(pdfLabelColW, pdfRowH, r.tr(row.Label), "1", 0, "L", fill, 0, "")
		for _, c := range row.Cells {
			txt := truncate(c.Value, 36)
			if c.Winner {
				p.SetFont("Helvetica", "B", 9)
				p.SetTextColor(winGreen[0], winGreen[1], winGreen[2])
				txt += " *"
			} else {
				p.SetFont("Helvetica", "", 9)
				p.SetTextColor(30, 30, 30)
			}
			p.CellFormat(colW, pdfRowH, r.tr(txt), "1", 0, "C", fill, 0, "")
		}
		p.Ln(-1)
	}
}

func (r *pdfRenderer) narratives(ns []view.Narrative, roomy bool) {
	p := r.pdf
	if len(ns) == 0 {
		return
	}
	lines := pdfNarrLines
	if roomy {
		lines *= 2
	}
	colW := pdfContentW / float64(len(ns))
	top := p.GetY()
	bottom := top
	for i, n := range ns {
		x := pdfMargin + float64(i)*colW
		p.SetXY(x, top)
		p.SetFont("Helvetica", "B", 10)
		p.SetTextColor(brandBlue[0], brandBlue[1], brandBlue[2])
		p.CellFormat(colW-2, 6, r.tr(truncate(narrativeHeader(n), 60)), "", 2, "L", false, 0, "")

		p.SetFont("Helvetica", "", 9)
		p.SetTextColor(30, 30, 30)
		// SplitText measures runes, so it gets the Latin-1 text and each
		// line is translated to the font encoding afterwards.
		split := p.SplitText(latin1(n.Analysis), colW-2)
		if len(split) > lines {
			split = split[:lines]
			split[lines-1] += "..."
		}
		for _, line := range split {
			p.SetX(x)
			p.CellFormat(colW-2, pdfNarrLineH, r.tr(line), "", 2, "L", false, 0, "")
		}
		if y := p.GetY(); y > bottom {
			bottom = y
		}
	}
	p.SetXY(pdfMargin, bottom)
}

func (r *pdfRenderer) Finish(buf *bytes.Buffer) error {
	return r.pdf.Output(buf)
}

var latin1Replacer = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'",
	"\u201c", "\"", "\u201d", "\"",
	"\u2013", "-", "\u2014", "-",
	"\u2022", "*", "\u2026", "...",
	"\u26a0\ufe0f", "!", "\u2705", "",
)

// latin1 maps text onto runes the core PDF fonts can measure and encode.
func latin1(s string) string {
	s = latin1Replacer.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch {
		case c == '\ufe0f':
		case c > 0xff:
			b.WriteByte('?')
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func joinVs(entities []string) string {
	if len(entities) == 0 {
		return format.Placeholder
	}
	out := entities[0]
	for _, e := range entities[1:] {
		out += " vs " + e
	}
	return out
}
