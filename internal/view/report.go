package view

import (
	"time"

	"github.com/hl-compare/hl-compare/internal/model"
)

// DateLayout is the generation date format printed on the title page.
const DateLayout = "January 2, 2006"

// TitlePage is the first page of an exported report.
type TitlePage struct {
	Entities      []string  `json:"entities"`
	GeneratedAt   time.Time `json:"generated_at"`
	Date          string    `json:"date"`
	DocumentCount int       `json:"document_count"`
	Query         string    `json:"query,omitempty"`
}

// Page is one category page of an exported report.
type Page struct {
	Number     int            `json:"number"`
	Category   model.Category `json:"category"`
	Label      string         `json:"label"`
	Table      Table          `json:"table"`
	Narratives []Narrative    `json:"narratives"`
	Insight    string         `json:"insight"`
	HasInsight bool           `json:"has_insight"`
}

// Report is the paginated projection used by the exporters.
type Report struct {
	Title TitlePage `json:"title"`
	Pages []Page    `json:"pages"`
}

// PageCount is the title page plus one page per category.
func (r Report) PageCount() int {
	return 1 + len(r.Pages)
}

// BuildReport builds the title page and one page per fixed category, in
// display order, whether or not the category has data.
func BuildReport(resp *model.CompareResponse, generatedAt time.Time) Report {
	schema := model.DefaultSchema()
	r := Report{
		Title: TitlePage{
			Entities:    Entities(resp),
			GeneratedAt: generatedAt,
			Date:        generatedAt.Format(DateLayout),
		},
	}
	if resp != nil {
		r.Title.DocumentCount = resp.DocumentsAnalyzed
		r.Title.Query = resp.Query
	}

	cats := model.Categories()
	r.Pages = make([]Page, 0, len(cats))
	for i, c := range cats {
		p := Page{
			Number:     i + 2,
			Category:   c,
			Label:      c.Label(),
			Table:      buildTable(schema, resp, c),
			Narratives: BuildNarratives(resp, c),
		}
		p.Insight, p.HasInsight = Insight(resp, c)
		r.Pages = append(r.Pages, p)
	}
	return r
}
