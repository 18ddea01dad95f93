// Package analysis derives per-category, per-entity comparison results from
// extracted document text and scores the evidence behind each finding.
package analysis

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/hl-compare/hl-compare/internal/config"
	"github.com/hl-compare/hl-compare/internal/extract"
	"github.com/hl-compare/hl-compare/internal/model"
)

// Analyzer extracts metrics and commentary for each entity.
type Analyzer struct {
	schema       *model.Schema
	maxSentences int
	excerptMax   int
}

// New creates an Analyzer over the default metric schema.
func New(cfg config.AnalysisConfig) *Analyzer {
	return NewWithSchema(model.DefaultSchema(), cfg)
}

// NewWithSchema creates an Analyzer over a custom schema.
func NewWithSchema(schema *model.Schema, cfg config.AnalysisConfig) *Analyzer {
	a := &Analyzer{schema: schema, maxSentences: cfg.MaxSentences, excerptMax: cfg.ExcerptMaxChars}
	if a.maxSentences <= 0 {
		a.maxSentences = 3
	}
	if a.excerptMax <= 0 {
		a.excerptMax = 280
	}
	return a
}

// Analyze builds a comparison result for entities from docs. Missing data is
// never an error: categories and entities without findings are left out. If
// ctx is cancelled the documents scanned so far are still analyzed.
func (a *Analyzer) Analyze(ctx context.Context, docs []*extract.Document, entities []string, query string) model.ComparisonResult {
	result := make(model.ComparisonResult)
	ents := newEntities(entities)
	if len(ents) == 0 {
		return result
	}

	sources := make([]Source, len(docs))
	credibility := make([]float64, len(docs))
	for i, d := range docs {
		sources[i] = Source{Filename: d.Filename, Size: d.Size}
		credibility[i] = SourceCredibility(sources[i : i+1])
	}

	scanner := newMetricScanner(a.schema, ents, a.excerptMax)
	var sents []sentence
	for i, d := range docs {
		if ctx.Err() != nil {
			zap.L().Warn("analysis: context cancelled, using partial documents",
				zap.Int("scanned", i),
				zap.Int("total", len(docs)),
			)
			docs = docs[:i]
			break
		}
		scanner.scanDocument(i, d.Pages, d.Paged, documentEntity(ents, d.Filename, d.Pages))
		sents = append(sents, splitSentences(i, d.Pages, d.Paged)...)
	}

	terms := queryTerms(query, ents)
	for _, c := range model.Categories() {
		cr := &model.CategoryResult{Entities: make(map[string]*model.EntityCategoryFacts)}
		for ei, e := range ents {
			facts := a.metrics(scanner, ei, c, docs, sources, credibility)
			if n := pickNarrative(sents, ents, ei, c, terms, a.maxSentences); n != nil {
				if facts == nil {
					facts = &model.EntityCategoryFacts{}
				}
				a.applyNarrative(facts, n, c, docs, sources)
			} else if facts != nil {
				facts.Confidence = meanConfidence(facts.KeyFacts)
			}
			if facts != nil {
				cr.Entities[e.key] = facts
			}
		}
		if len(cr.Entities) == 0 {
			continue
		}
		cr.Conclusion = conclude(a.schema, cr, entityNames(ents), c)
		result[c] = cr
	}

	zap.L().Debug("analysis: complete",
		zap.Int("documents", len(docs)),
		zap.Int("entities", len(ents)),
		zap.Int("categories", len(result)),
	)
	return result
}

// metrics assembles the key facts of one entity in one category.
func (a *Analyzer) metrics(s *metricScanner, ent int, c model.Category, docs []*extract.Document, sources []Source, credibility []float64) *model.EntityCategoryFacts {
	var facts *model.EntityCategoryFacts
	for _, spec := range a.schema.Metrics(c) {
		cands := s.found[factKey{entity: ent, metric: spec.Key}]
		if len(cands) == 0 {
			continue
		}
		pick := best(cands, credibility)
		q := EvidenceQuality(c, sourcesOf(supporting(cands), sources), pick.base)

		ev := evidenceFor(docs[pick.doc], pick.page, pick.excerpt, pick.base)
		q.Apply(ev)

		mv := &model.MetricValue{Value: pick.value, Evidence: ev}
		if spec.Definition != "" {
			def := spec.Definition
			mv.Definition = &def
		}
		if spec.Unit != "" {
			unit := spec.Unit
			mv.Unit = &unit
		}
		if facts == nil {
			facts = &model.EntityCategoryFacts{KeyFacts: make(map[string]*model.MetricValue)}
		}
		facts.KeyFacts[spec.Key] = mv
	}
	return facts
}

func sourcesOf(docIdx []int, all []Source) []Source {
	out := make([]Source, len(docIdx))
	for i, d := range docIdx {
		out[i] = all[d]
	}
	return out
}

func (a *Analyzer) applyNarrative(facts *model.EntityCategoryFacts, n *narrative, c model.Category, docs []*extract.Document, sources []Source) {
	seen := make(map[int]bool)
	var support []Source
	for _, s := range n.sentences {
		if !seen[s.doc] {
			seen[s.doc] = true
			support = append(support, sources[s.doc])
		}
	}
	q := EvidenceQuality(c, support, confidenceNarrative)

	text := n.text
	conf := q.AdjustedConfidence
	facts.Analysis = &text
	facts.Confidence = &conf

	first := n.sentences[0]
	ev := evidenceFor(docs[first.doc], first.page, truncateWords(first.text, a.excerptMax), confidenceNarrative)
	q.Apply(ev)
	facts.Evidence = ev
}

func evidenceFor(d *extract.Document, page int, excerpt string, base int) *model.Evidence {
	ev := &model.Evidence{Filename: d.Filename, Confidence: &base}
	if page > 0 {
		p := page
		ev.Page = &p
	}
	if excerpt != "" {
		ev.Excerpt = &excerpt
	}
	if d.DownloadURL != "" {
		u := d.DownloadURL
		ev.DownloadURL = &u
	}
	return ev
}

func meanConfidence(facts map[string]*model.MetricValue) *int {
	var sum, n int
	for _, mv := range facts {
		if c := mv.Evidence.EffectiveConfidence(); c != nil {
			sum += *c
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := int(math.Round(float64(sum) / float64(n)))
	return &mean
}

func entityNames(ents []entity) []string {
	out := make([]string, len(ents))
	for i, e := range ents {
		out[i] = e.name
	}
	return out
}
