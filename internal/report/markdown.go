package report

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/hl-compare/hl-compare/internal/view"
)

// Markdown renders the report as a single Markdown document with one section
// per page.
type Markdown struct{}

// NewMarkdown returns a Markdown exporter.
func NewMarkdown() *Markdown { return &Markdown{} }

func (*Markdown) Format() string      { return "md" }
func (*Markdown) ContentType() string { return "text/markdown; charset=utf-8" }
func (*Markdown) Extension() string   { return ".md" }

// Export renders doc.
func (e *Markdown) Export(ctx context.Context, doc *Document) ([]byte, error) {
	return render(ctx, doc, &markdownRenderer{})
}

type markdownRenderer struct {
	buf bytes.Buffer
	md  *markdown.Markdown
}

func (r *markdownRenderer) Title(doc *Document) error {
	r.md = markdown.NewMarkdown(&r.buf)
	t := doc.Report.Title

	r.md.H1(Brand)
	r.md.H2("Investment Comparison Analysis")
	r.md.PlainText("")
	r.md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Entities", cell(strings.Join(t.Entities, ", "))},
			{"Generated", t.Date},
			{"Documents Analyzed", strconv.Itoa(t.DocumentCount)},
			{"Focus", cell(orDash(t.Query))},
		},
	})
	r.md.PlainText("")

	r.md.H2("Executive Summary")
	r.md.PlainText("")
	r.md.PlainText(doc.Summary.Overview)
	r.md.PlainText("")
	r.md.PlainText("**Key Recommendation:** " + doc.Summary.Recommendation)
	r.md.PlainText("")
	scores := make([]string, len(doc.Summary.Scores))
	for i, s := range doc.Summary.Scores {
		scores[i] = fmt.Sprintf("%s: %.1f%% average confidence", s.Entity, s.Score)
	}
	if len(scores) > 0 {
		r.md.BulletList(scores...)
		r.md.PlainText("")
	}
	return nil
}

func (r *markdownRenderer) Page(_ *Document, p view.Page) error {
	r.md.PlainText("---")
	r.md.PlainText("")
	r.md.H2(fmt.Sprintf("%d. %s", p.Number-1, p.Label))
	r.md.PlainText("")

	if len(p.Table.Rows) > 0 {
		header := append([]string{"Metric"}, p.Table.Entities...)
		rows := make([][]string, len(p.Table.Rows))
		for i, row := range p.Table.Rows {
			cells := []string{cell(row.Label)}
			for _, c := range row.Cells {
				v := cell(c.Value)
				if c.Winner {
					v = "**" + v + "** ✓"
				}
				cells = append(cells, v)
			}
			rows[i] = cells
		}
		r.md.Table(markdown.TableSet{Header: header, Rows: rows})
		r.md.PlainText("")
	}

	for _, n := range p.Narratives {
		r.md.H3(narrativeHeader(n))
		r.md.PlainText("")
		r.md.PlainText(n.Analysis)
		r.md.PlainText("")
	}

	if p.HasInsight {
		r.md.Note(p.Insight)
	} else {
		r.md.PlainText("_" + p.Insight + "_")
	}
	r.md.PlainText("")
	return nil
}

func (r *markdownRenderer) Finish(buf *bytes.Buffer) error {
	r.md.PlainText("---")
	r.md.PlainText("")
	r.md.PlainText("_" + Brand + ". This analysis is for institutional use only._")
	if err := r.md.Build(); err != nil {
		return err
	}
	_, err := buf.Write(r.buf.Bytes())
	return err
}

// cell escapes a value for use inside a Markdown table.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
