package model

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// ConclusionKey is the reserved key holding a category-level conclusion
// alongside the entity keys of a CategoryResult on the wire.
const ConclusionKey = "conclusion"

// EntityKey normalizes an entity display name into its canonical lookup key.
// A Caser is stateful, so a fresh one is built per call.
func EntityKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Evidence is the provenance record backing a metric or an analysis.
type Evidence struct {
	Filename           string   `json:"filename"`
	Page               *int     `json:"page,omitempty"`
	Excerpt            *string  `json:"excerpt,omitempty"`
	DownloadURL        *string  `json:"download_url,omitempty"`
	Confidence         *int     `json:"confidence,omitempty"`
	AdjustedConfidence *int     `json:"adjusted_confidence,omitempty"`
	QualityRating      *string  `json:"quality_rating,omitempty"`
	QualityScore       *float64 `json:"evidence_quality_score,omitempty"`
	ReliabilityFlags   []string `json:"reliability_flags,omitempty"`
}

// EffectiveConfidence prefers the quality-adjusted confidence over the raw one.
func (e *Evidence) EffectiveConfidence() *int {
	if e == nil {
		return nil
	}
	if e.AdjustedConfidence != nil {
		return e.AdjustedConfidence
	}
	return e.Confidence
}

// MetricValue is a single extracted key fact for one entity.
type MetricValue struct {
	Value      *Value    `json:"value"`
	Evidence   *Evidence `json:"evidence,omitempty"`
	Definition *string   `json:"definition,omitempty"`
	Unit       *string   `json:"unit,omitempty"`
}

// EntityCategoryFacts holds everything known about one entity in one category.
type EntityCategoryFacts struct {
	Analysis   *string                 `json:"analysis,omitempty"`
	Confidence *int                    `json:"confidence,omitempty"`
	KeyFacts   map[string]*MetricValue `json:"key_facts,omitempty"`
	Evidence   *Evidence               `json:"evidence,omitempty"`
}

// Metric returns the metric for key, or nil.
func (f *EntityCategoryFacts) Metric(key string) *MetricValue {
	if f == nil {
		return nil
	}
	return f.KeyFacts[key]
}

// CategoryResult maps entity keys to their facts, plus an optional
// conclusion that applies to the whole category.
type CategoryResult struct {
	Entities   map[string]*EntityCategoryFacts
	Conclusion *string
}

// Entity returns the facts for the given display name or key, or nil.
func (c *CategoryResult) Entity(name string) *EntityCategoryFacts {
	if c == nil {
		return nil
	}
	return c.Entities[EntityKey(name)]
}

// MarshalJSON flattens entities and the conclusion into one object.
func (c CategoryResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Entities)+1)
	for k, v := range c.Entities {
		out[k] = v
	}
	if c.Conclusion != nil {
		out[ConclusionKey] = *c.Conclusion
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flattened wire shape. Entries that are not objects
// (other than the conclusion) are ignored.
func (c *CategoryResult) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Entities = make(map[string]*EntityCategoryFacts, len(raw))
	c.Conclusion = nil
	for k, msg := range raw {
		if k == ConclusionKey {
			var s string
			if err := json.Unmarshal(msg, &s); err == nil && s != "" {
				c.Conclusion = &s
			}
			continue
		}
		var facts EntityCategoryFacts
		if err := json.Unmarshal(msg, &facts); err != nil {
			continue
		}
		c.Entities[EntityKey(k)] = &facts
	}
	return nil
}

// ComparisonResult maps each category to its per-entity results.
type ComparisonResult map[Category]*CategoryResult

// Category returns the result for c, or nil.
func (r ComparisonResult) Category(c Category) *CategoryResult {
	if r == nil {
		return nil
	}
	return r[c]
}

// Facts returns the facts for entity in category c, or nil.
func (r ComparisonResult) Facts(c Category, entity string) *EntityCategoryFacts {
	return r.Category(c).Entity(entity)
}

// Metric returns the metric for entity in category c, or nil.
func (r ComparisonResult) Metric(c Category, entity, key string) *MetricValue {
	return r.Facts(c, entity).Metric(key)
}

// DocumentSummary describes one analyzed upload.
type DocumentSummary struct {
	Filename         string  `json:"filename"`
	Size             int64   `json:"size"`
	Pages            int     `json:"pages"`
	Characters       int     `json:"characters"`
	DownloadURL      string  `json:"download_url,omitempty"`
	QualityRating    string  `json:"quality_rating,omitempty"`
	CredibilityScore float64 `json:"credibility_score,omitempty"`
}

// CompareResponse is the envelope returned for a successful submission.
type CompareResponse struct {
	ComparisonID      string            `json:"comparison_id,omitempty"`
	Comparison        ComparisonResult  `json:"comparison"`
	DocumentsAnalyzed int               `json:"documents_analyzed"`
	Entities          []string          `json:"entities"`
	Query             string            `json:"query,omitempty"`
	GeneratedAt       time.Time         `json:"generated_at"`
	Documents         []DocumentSummary `json:"documents,omitempty"`
}
