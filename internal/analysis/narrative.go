package analysis

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/hl-compare/hl-compare/internal/model"
)

// confidenceNarrative is the base confidence of a sentence-level finding.
const confidenceNarrative = 75

var categoryKeywords = map[model.Category][]string{
	model.CategoryInvestmentThesis:        {"thesis", "invest", "opportunit", "outlook", "upside", "catalyst", "recommend", "long-term", "compounder", "durable"},
	model.CategoryValuationMetrics:        {"valuation", "valued", "price", "multiple", "market cap", "p/e", "dividend", "undervalued", "overvalued", "premium", "discount"},
	model.CategoryFinancialPerformance:    {"revenue", "income", "margin", "earnings", "cash flow", "profit", "sales", "return on"},
	model.CategoryCompetitivePosition:     {"compet", "market share", "moat", "brand", "leader", "rival", "dominan"},
	model.CategoryRiskFactors:             {"risk", "regulat", "litigation", "lawsuit", "volatil", "uncertain", "supply chain", "antitrust"},
	model.CategoryGrowthDrivers:           {"growth", "expan", "new market", "pipeline", "innovat", "r&d", "launch", "user"},
	model.CategoryMacroContext:            {"macro", "interest rate", "inflation", "currenc", "fx", "gdp", "econom", "recession", "tariff"},
	model.CategoryESGFactors:              {"esg", "carbon", "emission", "sustainab", "diversity", "climate", "governance", "renewable"},
	model.CategoryManagementQuality:       {"ceo", "management", "leadership", "executive", "board", "succession", "insider", "founder"},
	model.CategoryPortfolioRecommendation: {"portfolio", "allocation", "overweight", "underweight", "holding", "horizon", "buy", "sell", "hold"},
}

var keywordPatterns = func() map[model.Category]*regexp.Regexp {
	out := make(map[model.Category]*regexp.Regexp, len(categoryKeywords))
	for c, kws := range categoryKeywords {
		quoted := make([]string, len(kws))
		for i, k := range kws {
			quoted[i] = regexp.QuoteMeta(k)
		}
		out[c] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)`)
	}
	return out
}()

var queryStopwords = map[string]bool{
	"compare": true, "comparison": true, "these": true, "those": true, "entities": true,
	"entity": true, "across": true, "available": true, "metrics": true, "metric": true,
	"with": true, "from": true, "that": true, "this": true, "what": true, "which": true,
	"their": true, "about": true, "between": true, "versus": true, "should": true,
	"companies": true, "company": true, "focus": true, "analysis": true,
}

// minSentenceWords drops table rows and fragments from narratives.
const minSentenceWords = 6

// sentence is one prose sentence of a document.
type sentence struct {
	text string
	doc  int
	page int
	pos  int
}

// splitSentences breaks page text into sentences. Lines inside a paragraph
// are joined first because PDF text wraps mid-sentence.
func splitSentences(doc int, pages []string, paged bool) []sentence {
	var out []sentence
	pos := 0
	for p, text := range pages {
		page := 0
		if paged {
			page = p + 1
		}
		for _, para := range paragraphs(text) {
			if strings.Contains(para, "|") {
				continue
			}
			joined := strings.Join(strings.Fields(para), " ")
			for _, s := range cutSentences(joined) {
				if len(strings.Fields(s)) < minSentenceWords {
					continue
				}
				pos++
				out = append(out, sentence{text: s, doc: doc, page: page, pos: pos})
			}
		}
	}
	return out
}

func cutSentences(s string) []string {
	var out []string
	runes := []rune(s)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		// Keep decimals and abbreviations such as "Inc." mid-sentence.
		if i+2 < len(runes) && unicode.IsLower(runes[i+2]) {
			continue
		}
		out = append(out, strings.TrimSpace(string(runes[start:i+1])))
		start = i + 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

// queryTerms returns the distinctive words of a focus query.
func queryTerms(query string, ents []entity) []string {
	skip := make(map[string]bool)
	for _, e := range ents {
		for _, a := range e.aliases {
			for _, w := range strings.Fields(strings.ToLower(a)) {
				skip[w] = true
			}
		}
	}
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '&' && r != '/'
	}) {
		if len([]rune(w)) < 4 || queryStopwords[w] || skip[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// narrative is the selected commentary for one entity in one category.
type narrative struct {
	text      string
	sentences []sentence
}

// pickNarrative selects up to max sentences that mention ent and speak to
// category c. Sentences naming query terms rank higher, sentences about
// other entities rank lower. The chosen sentences keep document order.
func pickNarrative(sents []sentence, ents []entity, ent int, c model.Category, terms []string, max int) *narrative {
	kw := keywordPatterns[c]
	if kw == nil || max <= 0 {
		return nil
	}

	type scored struct {
		sentence
		score int
	}
	var picks []scored
	for _, s := range sents {
		ms := findMentions(ents, s.text)
		mentioned, others := false, false
		for _, m := range ms {
			if m.entity == ent {
				mentioned = true
			} else {
				others = true
			}
		}
		if !mentioned {
			continue
		}
		hits := len(kw.FindAllStringIndex(s.text, -1))
		if hits == 0 {
			continue
		}
		score := hits
		lower := strings.ToLower(s.text)
		for _, t := range terms {
			if strings.Contains(lower, t) {
				score += 2
			}
		}
		if others {
			score--
		}
		picks = append(picks, scored{sentence: s, score: score})
	}
	if len(picks) == 0 {
		return nil
	}

	sort.SliceStable(picks, func(i, j int) bool { return picks[i].score > picks[j].score })
	if len(picks) > max {
		picks = picks[:max]
	}
	sort.SliceStable(picks, func(i, j int) bool {
		if picks[i].doc != picks[j].doc {
			return picks[i].doc < picks[j].doc
		}
		return picks[i].pos < picks[j].pos
	})

	n := &narrative{}
	texts := make([]string, len(picks))
	for i, p := range picks {
		texts[i] = p.text
		n.sentences = append(n.sentences, p.sentence)
	}
	n.text = strings.Join(texts, " ")
	return n
}
