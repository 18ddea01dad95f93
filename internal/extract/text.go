package extract

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// readText returns the file as a single page. Invalid UTF-8 is dropped.
func readText(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read %s", path)
	}
	return []string{strings.ToValidUTF8(string(b), "")}, nil
}

// readDelimited renders a CSV or TSV file as one page of text rows.
func readDelimited(ctx context.Context, path string, delim rune) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	lineCh, errCh := tableLines(ctx, f, delim)
	var lines []string
	for line := range lineCh {
		lines = append(lines, line)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return []string{strings.Join(lines, "\n")}, nil
}

// readWorkbook renders every sheet of an XLSX workbook as its own page.
func readWorkbook(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "extract: open xlsx")
	}
	pages := make([]string, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		rows := make([][]string, 0, len(sheet.Rows))
		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			rows = append(rows, rowToStrings(row))
		}
		body := renderRows(rows)
		if sheet.Name != "" {
			body = sheet.Name + "\n" + body
		}
		pages = append(pages, body)
	}
	return pages, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

// renderRows turns a sheet into lines: the header row first, then each
// later row through labelRow.
func renderRows(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	header := rows[0]
	lines := make([]string, 0, len(rows))
	lines = append(lines, joinNonEmpty(header, " | "))
	for _, row := range rows[1:] {
		if line := labelRow(header, row); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func joinNonEmpty(cells []string, sep string) string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		if c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, sep)
}
