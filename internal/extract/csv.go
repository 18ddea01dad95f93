package extract

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// tableLines parses delimited text and streams it as rendered lines. The
// first record is the header; every later record is labelled by it (see
// labelRow) and dropped when no cell survives. Both channels close once the
// input is exhausted, the context ends or a parse error is reported.
func tableLines(ctx context.Context, r io.Reader, delim rune) (<-chan string, <-chan error) {
	lineCh := make(chan string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(lineCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.Comma = delim
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		var header []string
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "extract: table cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "extract: parse table row")
				return
			}
			for i := range record {
				record[i] = strings.TrimSpace(record[i])
			}

			var line string
			if header == nil {
				header = record
				line = joinNonEmpty(header, " | ")
			} else {
				line = labelRow(header, record)
				if line == "" {
					continue
				}
			}

			select {
			case lineCh <- line:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "extract: table cancelled")
				return
			}
		}
	}()

	return lineCh, errCh
}

// labelRow renders a data row as "first | header: cell | header: cell" so
// that labels stay next to their values. Empty cells are skipped.
func labelRow(header, row []string) string {
	parts := make([]string, 0, len(row))
	for i, cell := range row {
		if cell == "" {
			continue
		}
		if i == 0 || i >= len(header) || header[i] == "" {
			parts = append(parts, cell)
			continue
		}
		parts = append(parts, header[i]+": "+cell)
	}
	return strings.Join(parts, " | ")
}
