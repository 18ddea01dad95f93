package report

import (
	"bytes"
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/hl-compare/hl-compare/internal/view"
)

// XLSX renders the report as a workbook with one sheet per page.
type XLSX struct{}

// NewXLSX returns an XLSX exporter.
func NewXLSX() *XLSX { return &XLSX{} }

func (*XLSX) Format() string { return "xlsx" }
func (*XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (*XLSX) Extension() string { return ".xlsx" }

// Export renders doc.
func (e *XLSX) Export(ctx context.Context, doc *Document) ([]byte, error) {
	return render(ctx, doc, &xlsxRenderer{file: xlsx.NewFile()})
}

type xlsxRenderer struct {
	file *xlsx.File
}

// Excel caps sheet names at 31 characters.
const maxSheetName = 31

func (r *xlsxRenderer) Title(doc *Document) error {
	sheet, err := r.file.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	t := doc.Report.Title
	addRow(sheet, true, Brand)
	addRow(sheet, false, "Investment Comparison Analysis")
	addRow(sheet, false)
	addRow(sheet, false, "Generated", t.Date)
	addRow(sheet, false, "Documents Analyzed", strconv.Itoa(t.DocumentCount))
	if t.Query != "" {
		addRow(sheet, false, "Focus", t.Query)
	}
	addRow(sheet, false, "Key Recommendation", doc.Summary.Recommendation)
	addRow(sheet, false)
	addRow(sheet, true, "Entity", "Average Confidence")
	for _, s := range doc.Summary.Scores {
		row := sheet.AddRow()
		row.AddCell().SetString(s.Entity)
		row.AddCell().SetFloat(s.Score)
	}
	return nil
}

func (r *xlsxRenderer) Page(_ *Document, p view.Page) error {
	name := p.Label
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	sheet, err := r.file.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "report: add sheet %q", name)
	}

	if len(p.Table.Rows) > 0 {
		addRow(sheet, true, append([]string{"Metric"}, p.Table.Entities...)...)
		for _, row := range p.Table.Rows {
			vals := []string{row.Label}
			for _, c := range row.Cells {
				v := c.Value
				if c.Winner {
					v += " ✓"
				}
				vals = append(vals, v)
			}
			addRow(sheet, false, vals...)
		}
		addRow(sheet, false)
	}

	addRow(sheet, true, "Entity", "Confidence", "Analysis")
	for _, n := range p.Narratives {
		addRow(sheet, false, n.Entity, n.Confidence, n.Analysis)
	}
	addRow(sheet, false)
	addRow(sheet, true, "Deeper Insight")
	addRow(sheet, false, p.Insight)
	return nil
}

func (r *xlsxRenderer) Finish(buf *bytes.Buffer) error {
	return r.file.Write(buf)
}

func addRow(sheet *xlsx.Sheet, bold bool, vals ...string) {
	row := sheet.AddRow()
	for _, v := range vals {
		c := row.AddCell()
		c.SetString(v)
		if bold {
			c.GetStyle().Font.Bold = true
		}
	}
}
