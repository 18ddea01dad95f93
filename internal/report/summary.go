package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/view"
)

// Recommendation margin: the leader must beat the runner-up by more than
// this many confidence points to be overweighted.
const overweightMargin = 5.0

// NeutralWeighting is the recommendation when no entity leads clearly.
const NeutralWeighting = "NEUTRAL WEIGHTING"

// EntityScore is one entity's average confidence across all categories.
type EntityScore struct {
	Entity string  `json:"entity"`
	Score  float64 `json:"score"`
}

// CategoryScores holds every entity's confidence in one category, in entity
// order. A missing score is zero.
type CategoryScores struct {
	Category model.Category `json:"category"`
	Scores   []int          `json:"scores"`
}

// Summary is the executive summary of a comparison.
type Summary struct {
	Overview       string           `json:"overview"`
	Recommendation string           `json:"key_recommendation"`
	Scores         []EntityScore    `json:"scores"`
	Confidence     []CategoryScores `json:"confidence_by_category"`
	AnalysisDate   string           `json:"analysis_date"`
}

// ExecutiveSummary averages each entity's category confidence, counting a
// missing score as zero, and recommends overweighting the leader when it
// beats the runner-up by more than five points.
func ExecutiveSummary(resp *model.CompareResponse, at time.Time) Summary {
	entities := view.Entities(resp)
	s := Summary{
		Overview:       overview(entities),
		Recommendation: NeutralWeighting,
		AnalysisDate:   at.Format(view.DateLayout),
		Scores:         make([]EntityScore, len(entities)),
	}

	cats := model.Categories()
	s.Confidence = make([]CategoryScores, len(cats))
	for ci, c := range cats {
		s.Confidence[ci] = CategoryScores{Category: c, Scores: make([]int, len(entities))}
		if resp == nil {
			continue
		}
		for i, name := range entities {
			if f := resp.Comparison.Facts(c, name); f != nil && f.Confidence != nil {
				s.Confidence[ci].Scores[i] = *f.Confidence
			}
		}
	}
	for i, name := range entities {
		total := 0
		for _, cs := range s.Confidence {
			total += cs.Scores[i]
		}
		avg := float64(total) / float64(len(cats))
		s.Scores[i] = EntityScore{Entity: name, Score: math.Round(avg*10) / 10}
	}

	if len(s.Scores) >= 2 {
		ranked := append([]EntityScore(nil), s.Scores...)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
		if ranked[0].Score > ranked[1].Score+overweightMargin {
			s.Recommendation = "OVERWEIGHT " + ranked[0].Entity
		}
	}
	return s
}

func overview(entities []string) string {
	if len(entities) == 0 {
		return "No entities analyzed."
	}
	if len(entities) == 2 {
		return fmt.Sprintf("Comprehensive analysis of %s versus %s across investment criteria.", entities[0], entities[1])
	}
	return fmt.Sprintf("Comprehensive analysis of %s across investment criteria.", strings.Join(entities, ", "))
}

// Memo renders an email-ready investment memo.
func Memo(doc *Document) string {
	entities := doc.Report.Title.Entities
	vs := strings.Join(entities, " vs ")

	var b strings.Builder
	fmt.Fprintf(&b, "Subject: Investment Analysis - %s Comparison\n\n", vs)
	b.WriteString("Dear Team,\n\n")
	fmt.Fprintf(&b, "Please find below our comprehensive investment analysis comparing %s.\n\n", joinAnd(entities))
	b.WriteString("EXECUTIVE SUMMARY\n=================\n")
	b.WriteString(doc.Summary.Overview + "\n\n")
	fmt.Fprintf(&b, "RECOMMENDATION: %s\n\n", doc.Summary.Recommendation)
	b.WriteString("OVERALL SCORES\n==============\n")
	for _, s := range doc.Summary.Scores {
		fmt.Fprintf(&b, "• %s: %.1f%% confidence\n", s.Entity, s.Score)
	}
	b.WriteString("\n")

	var insights []string
	for _, p := range doc.Report.Pages {
		if p.HasInsight {
			insights = append(insights, fmt.Sprintf("• %s: %s", p.Label, p.Insight))
		}
	}
	if len(insights) > 0 {
		b.WriteString("KEY INSIGHTS\n============\n")
		b.WriteString(strings.Join(insights, "\n"))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "This analysis was generated on %s using our HL Compare platform.\n\n", doc.Summary.AnalysisDate)
	b.WriteString("Best regards,\nHarding Loevner Investment Team\n\n---\nThis analysis is for institutional use only.\n")
	return b.String()
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
