package view

import (
	"strings"

	"github.com/hl-compare/hl-compare/internal/format"
	"github.com/hl-compare/hl-compare/internal/model"
)

// Placeholders rendered for missing narrative content.
const (
	NoAnalysis = "No analysis available"
	NoInsight  = "No deeper insight available for this category."
)

// OpenSet tracks which accordion categories are expanded. Each category
// toggles independently.
type OpenSet map[model.Category]bool

// ParseOpenSet builds an OpenSet from category keys, ignoring unknown ones.
func ParseOpenSet(keys ...string) OpenSet {
	o := OpenSet{}
	for _, raw := range keys {
		for _, k := range strings.Split(raw, ",") {
			if c, ok := model.ParseCategory(strings.TrimSpace(k)); ok {
				o[c] = true
			}
		}
	}
	return o
}

// Toggle flips the state of c and returns a new set.
func (o OpenSet) Toggle(c model.Category) OpenSet {
	out := make(OpenSet, len(o)+1)
	for k, v := range o {
		if v {
			out[k] = true
		}
	}
	if out[c] {
		delete(out, c)
	} else {
		out[c] = true
	}
	return out
}

// Keys returns the open categories in display order.
func (o OpenSet) Keys() []string {
	var out []string
	for _, c := range model.Categories() {
		if o[c] {
			out = append(out, string(c))
		}
	}
	return out
}

// Narrative is one entity's free-text analysis in a category.
type Narrative struct {
	Entity      string          `json:"entity"`
	Analysis    string          `json:"analysis"`
	HasAnalysis bool            `json:"has_analysis"`
	Confidence  string          `json:"confidence"`
	Evidence    *model.Evidence `json:"evidence,omitempty"`
}

// AccordionItem is one collapsible category section.
type AccordionItem struct {
	Category   model.Category `json:"category"`
	Label      string         `json:"label"`
	Open       bool           `json:"open"`
	Narrative  bool           `json:"narrative"`
	Table      *Table         `json:"table,omitempty"`
	Narratives []Narrative    `json:"narratives,omitempty"`
	Insight    string         `json:"insight"`
	HasInsight bool           `json:"has_insight"`
}

// BuildAccordion lists every category in display order. Categories absent
// from resp are still listed with placeholder content.
func BuildAccordion(resp *model.CompareResponse, open OpenSet) []AccordionItem {
	schema := model.DefaultSchema()
	cats := model.Categories()
	items := make([]AccordionItem, 0, len(cats))
	for _, c := range cats {
		item := AccordionItem{
			Category:  c,
			Label:     c.Label(),
			Open:      open[c],
			Narrative: c.IsNarrative(),
		}
		if item.Narrative {
			item.Narratives = BuildNarratives(resp, c)
		} else {
			t := buildTable(schema, resp, c)
			item.Table = &t
		}
		item.Insight, item.HasInsight = Insight(resp, c)
		items = append(items, item)
	}
	return items
}

// BuildNarratives returns one narrative per entity in submission order.
func BuildNarratives(resp *model.CompareResponse, c model.Category) []Narrative {
	entities := Entities(resp)
	var result model.ComparisonResult
	if resp != nil {
		result = resp.Comparison
	}
	out := make([]Narrative, len(entities))
	for i, name := range entities {
		n := Narrative{Entity: name, Analysis: NoAnalysis, Confidence: format.Placeholder}
		if facts := result.Facts(c, name); facts != nil {
			if facts.Analysis != nil && strings.TrimSpace(*facts.Analysis) != "" {
				n.Analysis = *facts.Analysis
				n.HasAnalysis = true
			}
			n.Confidence = format.Confidence(facts.Confidence)
			n.Evidence = facts.Evidence
		}
		out[i] = n
	}
	return out
}

// Insight returns the category conclusion, or the placeholder and false.
func Insight(resp *model.CompareResponse, c model.Category) (string, bool) {
	if resp == nil {
		return NoInsight, false
	}
	cr := resp.Comparison.Category(c)
	if cr == nil || cr.Conclusion == nil || strings.TrimSpace(*cr.Conclusion) == "" {
		return NoInsight, false
	}
	return *cr.Conclusion, true
}
