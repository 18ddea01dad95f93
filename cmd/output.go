package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/report"
	"github.com/hl-compare/hl-compare/internal/store"
	"github.com/hl-compare/hl-compare/internal/view"
)

// printComparison writes the executive summary and the key-metrics table of
// each category (or only category, when set). Winning cells get a trailing
// star, as in the browser table.
func printComparison(w io.Writer, resp *model.CompareResponse, category string) error {
	cats := model.Categories()
	if category != "" {
		c, ok := model.ParseCategory(category)
		if !ok {
			return eris.Errorf("unknown category %q", category)
		}
		cats = []model.Category{c}
	}

	at := resp.GeneratedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	sum := report.ExecutiveSummary(resp, at)

	if resp.ComparisonID != "" {
		fmt.Fprintf(w, "Comparison:     %s\n", resp.ComparisonID)
	}
	fmt.Fprintf(w, "Entities:       %s\n", strings.Join(view.Entities(resp), ", "))
	fmt.Fprintf(w, "Documents:      %d\n", resp.DocumentsAnalyzed)
	fmt.Fprintf(w, "Recommendation: %s\n", sum.Recommendation)
	for _, s := range sum.Scores {
		fmt.Fprintf(w, "  %-20s %.1f\n", s.Entity, s.Score)
	}

	for _, c := range cats {
		fmt.Fprintf(w, "\n== %s ==\n", c.Label())
		if c.IsNarrative() {
			printNarratives(w, resp, c)
			continue
		}
		printTable(w, view.BuildTable(resp, c))
		if insight, ok := view.Insight(resp, c); ok {
			fmt.Fprintf(w, "Insight: %s\n", insight)
		}
	}
	return nil
}

func printTable(w io.Writer, t view.Table) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := append([]string{"METRIC"}, t.Entities...)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range t.Rows {
		cols := make([]string, 0, len(r.Cells)+1)
		cols = append(cols, r.Label)
		for _, cell := range r.Cells {
			v := cell.Value
			if cell.Winner {
				v += " *"
			}
			cols = append(cols, v)
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	tw.Flush()
}

func printNarratives(w io.Writer, resp *model.CompareResponse, c model.Category) {
	for _, n := range view.BuildNarratives(resp, c) {
		fmt.Fprintf(w, "%s (%s): %s\n", n.Entity, n.Confidence, n.Analysis)
	}
}

// printSummaries writes one line per stored comparison.
func printSummaries(w io.Writer, list []store.ComparisonSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENTITIES\tDOCS\tCREATED\tQUERY")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			s.ID,
			strings.Join(s.Entities, ", "),
			s.DocumentsAnalyzed,
			s.CreatedAt.Format(time.RFC3339),
			truncateText(s.Query, 40),
		)
	}
	tw.Flush()
}

func truncateText(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
