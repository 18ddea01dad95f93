// Package report renders a comparison into downloadable documents. Every
// format shares one page sequence: a title page followed by one page per
// category, rendered strictly in order.
package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/view"
)

// Brand is printed on the title page and in page footers.
const Brand = "HARDING LOEVNER"

// Document is everything an exporter needs to render a comparison.
type Document struct {
	Report  view.Report
	Summary Summary
}

// Build assembles a Document from a response.
func Build(resp *model.CompareResponse, generatedAt time.Time) *Document {
	return &Document{
		Report:  view.BuildReport(resp, generatedAt),
		Summary: ExecutiveSummary(resp, generatedAt),
	}
}

// PageError reports the page whose rendering failed. Page 1 is the title.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("report: render page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// Exporter renders a Document into one file format.
type Exporter interface {
	Format() string
	ContentType() string
	Extension() string
	Export(ctx context.Context, doc *Document) ([]byte, error)
}

// ForFormat returns the exporter for name ("pdf", "md" or "xlsx").
func ForFormat(name string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pdf":
		return NewPDF(), nil
	case "md", "markdown":
		return NewMarkdown(), nil
	case "xlsx", "excel":
		return NewXLSX(), nil
	default:
		return nil, eris.Errorf("report: unknown format %q", name)
	}
}

// Filename builds a download name such as
// "comparison_apple-inc_meta-platforms-inc_20260304.pdf".
func Filename(doc *Document, ext string) string {
	parts := []string{"comparison"}
	for _, e := range doc.Report.Title.Entities {
		parts = append(parts, slug(e))
	}
	parts = append(parts, doc.Report.Title.GeneratedAt.Format("20060102"))
	return strings.Join(parts, "_") + ext
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// pageRenderer is one output format's page sink. The driver calls Title once,
// Page once per category in order and Finish exactly once on success.
type pageRenderer interface {
	Title(doc *Document) error
	Page(doc *Document, p view.Page) error
	Finish(buf *bytes.Buffer) error
}

// render drives r through every page in sequence. No bytes are returned
// unless every page succeeds.
func render(ctx context.Context, doc *Document, r pageRenderer) ([]byte, error) {
	if doc == nil {
		return nil, eris.New("report: nil document")
	}
	if err := ctx.Err(); err != nil {
		return nil, &PageError{Page: 1, Err: err}
	}
	if err := r.Title(doc); err != nil {
		return nil, &PageError{Page: 1, Err: err}
	}
	for _, p := range doc.Report.Pages {
		if err := ctx.Err(); err != nil {
			return nil, &PageError{Page: p.Number, Err: err}
		}
		if err := r.Page(doc, p); err != nil {
			return nil, &PageError{Page: p.Number, Err: err}
		}
	}
	var buf bytes.Buffer
	if err := r.Finish(&buf); err != nil {
		return nil, eris.Wrap(err, "report: finish document")
	}
	return buf.Bytes(), nil
}

func narrativeHeader(n view.Narrative) string {
	return fmt.Sprintf("%s (confidence %s)", n.Entity, n.Confidence)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
