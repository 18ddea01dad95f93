package analysis

import (
	"sort"
	"strings"

	"github.com/hl-compare/hl-compare/internal/model"
)

// Base confidence of a metric by how its entity was identified.
const (
	confidenceMention  = 85
	confidenceSection  = 80
	confidenceDocument = 70
)

// candidate is one extracted value for an entity's metric.
type candidate struct {
	value   *model.Value
	doc     int
	page    int // 1-based; 0 when the document has no pages
	pos     int
	excerpt string
	base    int
}

type factKey struct {
	entity int
	metric string
}

// label is one metric label found in a text unit.
type label struct {
	spec       *model.MetricSpec
	start, end int
}

// segment is the span of a text unit that belongs to one entity. Body
// starts after the entity mention.
type segment struct {
	entity           int
	start, body, end int
}

// metricScanner collects metric candidates across documents.
type metricScanner struct {
	ents       []entity
	specs      []*model.MetricSpec
	excerptMax int
	found      map[factKey][]candidate
}

func newMetricScanner(schema *model.Schema, ents []entity, excerptMax int) *metricScanner {
	s := &metricScanner{ents: ents, excerptMax: excerptMax, found: make(map[factKey][]candidate)}
	for _, c := range model.Categories() {
		for _, m := range schema.Metrics(c) {
			s.specs = append(s.specs, schema.ByKey(m.Key))
		}
	}
	return s
}

// labels returns the metric labels in text, longest first at each position
// and without overlaps.
func (s *metricScanner) labels(text string) []label {
	var ls []label
	for _, spec := range s.specs {
		for _, re := range spec.Regexes {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				if !wordEndsAt(text, loc[1]) {
					continue
				}
				ls = append(ls, label{spec: spec, start: loc[0], end: loc[1]})
			}
		}
	}
	sort.Slice(ls, func(i, j int) bool {
		if ls[i].start != ls[j].start {
			return ls[i].start < ls[j].start
		}
		return ls[i].end > ls[j].end
	})
	out := ls[:0]
	last := -1
	for _, l := range ls {
		if l.start < last {
			continue
		}
		out = append(out, l)
		last = l.end
	}
	return out
}

// scanDocument extracts candidates from every page of a document, first line
// by line and then paragraph by paragraph to catch values that wrap.
func (s *metricScanner) scanDocument(docIdx int, pages []string, paged bool, docEntity int) {
	section := -1
	for p, text := range pages {
		page := 0
		if paged {
			page = p + 1
		}
		pos := 0
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			pos++
			if line == "" {
				continue
			}
			ms := findMentions(s.ents, line)
			if ents := distinctEntities(ms); len(ents) == 1 && len(findNumbers(line)) == 0 && len(s.labels(line)) == 0 {
				section = ents[0]
				continue
			}
			switch {
			case len(ms) > 0:
				s.scanUnit(line, ms, -1, confidenceMention, docIdx, page, pos)
			case section >= 0:
				s.scanUnit(line, nil, section, confidenceSection, docIdx, page, pos)
			case docEntity >= 0:
				s.scanUnit(line, nil, docEntity, confidenceDocument, docIdx, page, pos)
			}
		}

		for _, para := range paragraphs(text) {
			pos++
			if !strings.Contains(para, "\n") {
				continue
			}
			joined := strings.Join(strings.Fields(para), " ")
			ms := findMentions(s.ents, joined)
			if len(ms) > 0 {
				s.scanUnit(joined, ms, -1, confidenceSection, docIdx, page, pos)
			}
		}
	}
}

func paragraphs(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, strings.TrimSpace(line))
	}
	flush()
	return out
}

// scanUnit splits text at entity mentions and reads the labelled values of
// each entity's segment. A label before the first mention applies to every
// segment; a segment with no label of its own reuses the single label of the
// segment before it, as in "Apple's P/E is 28 while Meta's is 22".
func (s *metricScanner) scanUnit(text string, ms []mention, fallback, base, doc, page, pos int) {
	var segs []segment
	preamble := ""
	if len(ms) == 0 {
		segs = []segment{{entity: fallback, start: 0, body: 0, end: len(text)}}
	} else {
		preamble = text[:ms[0].start]
		for i, m := range ms {
			end := len(text)
			if i+1 < len(ms) {
				end = ms[i+1].start
			}
			segs = append(segs, segment{entity: m.entity, start: m.start, body: m.end, end: end})
		}
	}

	var pre *model.MetricSpec
	if ls := s.labels(preamble); len(ls) == 1 {
		pre = ls[0].spec
	}

	var carry *model.MetricSpec
	for _, seg := range segs {
		body := text[seg.body:seg.end]
		ls := s.labels(body)
		excerpt := s.excerpt(text, seg.start)

		switch {
		case len(ls) > 0:
			for i, l := range ls {
				stop := len(body)
				if i+1 < len(ls) {
					stop = ls[i+1].start
				}
				s.add(seg.entity, l.spec, valueFor(l.spec, body[l.end:stop]), candidate{doc: doc, page: page, pos: pos, excerpt: excerpt, base: base})
			}
		case pre != nil:
			s.add(seg.entity, pre, valueFor(pre, body), candidate{doc: doc, page: page, pos: pos, excerpt: excerpt, base: base})
		case carry != nil:
			s.add(seg.entity, carry, valueFor(carry, body), candidate{doc: doc, page: page, pos: pos, excerpt: excerpt, base: base})
		}

		carry = nil
		if len(ls) == 1 {
			carry = ls[0].spec
		}
	}
}

func (s *metricScanner) add(ent int, spec *model.MetricSpec, v *model.Value, c candidate) {
	if v == nil || ent < 0 {
		return
	}
	c.value = v
	k := factKey{entity: ent, metric: spec.Key}
	s.found[k] = append(s.found[k], c)
}

// excerpt returns the unit text, starting at from when the whole unit does
// not fit.
func (s *metricScanner) excerpt(text string, from int) string {
	if s.excerptMax <= 0 || len([]rune(text)) <= s.excerptMax {
		return text
	}
	r := []rune(text[from:])
	if len(r) <= s.excerptMax {
		return string(r)
	}
	return strings.TrimSpace(string(r[:s.excerptMax])) + "..."
}

// best picks the candidate to report: explicit mentions over inferred ones,
// then the more credible source, then the earliest occurrence.
func best(cands []candidate, credibility []float64) candidate {
	sorted := append([]candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.base != b.base {
			return a.base > b.base
		}
		if credibility[a.doc] != credibility[b.doc] {
			return credibility[a.doc] > credibility[b.doc]
		}
		if a.doc != b.doc {
			return a.doc < b.doc
		}
		return a.pos < b.pos
	})
	return sorted[0]
}

// supporting returns the distinct documents of cands in document order.
func supporting(cands []candidate) []int {
	seen := make(map[int]bool)
	var out []int
	for _, c := range cands {
		if !seen[c.doc] {
			seen[c.doc] = true
			out = append(out, c.doc)
		}
	}
	sort.Ints(out)
	return out
}
