package analysis

import (
	"math"
	"strings"

	"github.com/hl-compare/hl-compare/internal/model"
)

// Source document types.
const (
	DocOfficial = "official"
	DocAnalyst  = "analyst"
	DocNews     = "news"
	DocOther    = "other"
)

// Reliability flags attached to scored evidence.
const (
	FlagLowCredibility  = "⚠️ Low source credibility"
	FlagInconsistent    = "⚠️ Inconsistent information across sources"
	FlagLimitedConfirm  = "⚠️ Limited independent confirmation"
	FlagNoMajorConcerns = "✅ No major reliability concerns"
)

// overallCategory scores a document set without a category modifier.
const overallCategory model.Category = "overall"

// Composite weights of the evidence quality score.
const (
	weightCredibility   = 0.25
	weightConsistency   = 0.30
	weightTriangulation = 0.20
	weightTemporal      = 0.15
	weightDiversity     = 0.10
)

// Source is the metadata scored for one document.
type Source struct {
	Filename string
	Size     int64
}

// Breakdown holds the individual quality factors, each rounded to one decimal.
type Breakdown struct {
	SourceCredibility        float64 `json:"source_credibility"`
	CrossDocumentConsistency float64 `json:"cross_document_consistency"`
	EvidenceTriangulation    float64 `json:"evidence_triangulation"`
	TemporalReliability      float64 `json:"temporal_reliability"`
	EvidenceDiversity        float64 `json:"evidence_diversity"`
}

// Quality is the evidence quality of one finding.
type Quality struct {
	Score              float64   `json:"evidence_quality_score"`
	AdjustedConfidence int       `json:"adjusted_confidence"`
	Breakdown          Breakdown `json:"quality_breakdown"`
	Rating             string    `json:"quality_rating"`
	Flags              []string  `json:"reliability_flags"`
}

// Overall is the quality of a whole document set.
type Overall struct {
	Score         float64 `json:"overall_score"`
	Rating        string  `json:"rating"`
	DocumentCount int     `json:"document_count"`
	Credibility   float64 `json:"credibility_score"`
	Consistency   float64 `json:"consistency_score"`
	Triangulation float64 `json:"triangulation_score"`
	Temporal      float64 `json:"temporal_score"`
}

var (
	officialTerms = []string{"10-k", "10k", "annual", "quarterly"}
	analystTerms  = []string{"analyst", "research"}
	newsTerms     = []string{"news", "press"}
)

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// DocType classifies a source by its filename.
func DocType(filename string) string {
	name := strings.ToLower(filename)
	switch {
	case containsAny(name, officialTerms):
		return DocOfficial
	case containsAny(name, analystTerms):
		return DocAnalyst
	case containsAny(name, newsTerms):
		return DocNews
	default:
		return DocOther
	}
}

// SourceCredibility averages a per-document score derived from the filename
// and size. Official filings score highest and small files are penalised.
func SourceCredibility(docs []Source) float64 {
	if len(docs) == 0 {
		return 50
	}

	var sum float64
	for _, d := range docs {
		name := strings.ToLower(d.Filename)
		var base float64
		switch {
		case containsAny(name, []string{"10-k", "10k", "annual", "quarterly", "10-q", "10q"}):
			base = 90
		case containsAny(name, []string{"analyst", "research", "morgan", "goldman", "jp", "citi"}):
			base = 80
		case containsAny(name, []string{"whitepaper", "study", "analysis", "report"}):
			base = 70
		case containsAny(name, []string{"press", "news", "release"}):
			base = 60
		default:
			base = 65
		}

		var bonus float64
		switch {
		case d.Size > 5_000_000:
			bonus = 10
		case d.Size > 1_000_000:
			bonus = 5
		case d.Size < 100_000:
			bonus = -15
		}
		sum += clamp(base+bonus, 40, 95)
	}
	return sum / float64(len(docs))
}

var consistencyModifiers = map[model.Category]float64{
	model.CategoryFinancialPerformance: 1.1,
	model.CategoryValuationMetrics:     1.1,
	model.CategoryManagementQuality:    0.9,
	model.CategoryESGFactors:           0.85,
	model.CategoryCompetitivePosition:  0.95,
}

// Consistency estimates cross-document agreement from the number and variety
// of sources. Subjective categories are scaled down.
func Consistency(c model.Category, docs []Source) float64 {
	if len(docs) <= 1 {
		return 60
	}
	base := math.Min(85, 50+float64(len(docs))*8)

	types := make(map[string]struct{})
	for _, d := range docs {
		types[DocType(d.Filename)] = struct{}{}
	}
	bonus := float64(len(types)) * 5

	modifier, ok := consistencyModifiers[c]
	if !ok {
		modifier = 1
	}
	return math.Min(95, (base+bonus)*modifier)
}

// Triangulation scores how many independent sources back a finding.
func Triangulation(docs []Source) float64 {
	switch n := len(docs); n {
	case 1:
		return 45
	case 2:
		return 65
	case 3:
		return 80
	default:
		// An empty set lands here as well and scores 71.
		return math.Min(95, 80+float64(n-3)*3)
	}
}

// TemporalReliability rewards several sources and penalises small files.
func TemporalReliability(docs []Source) float64 {
	if len(docs) == 0 {
		return 60
	}
	base := 70.0
	switch {
	case len(docs) >= 3:
		base += 10
	case len(docs) >= 2:
		base += 5
	}

	var penalty float64
	for _, d := range docs {
		if d.Size < 100_000 {
			penalty += 5
		}
	}
	return clamp(base-penalty, 40, 90)
}

// Diversity scores the mix of sources. Quantitative categories reward
// official filings; qualitative ones reward distinct source types.
func Diversity(c model.Category, docs []Source) float64 {
	if len(docs) == 0 {
		return 50
	}
	base := math.Min(80, 50+float64(len(docs))*7)

	switch c {
	case model.CategoryFinancialPerformance, model.CategoryValuationMetrics:
		for _, d := range docs {
			if containsAny(strings.ToLower(d.Filename), officialTerms) {
				base += 8
			}
		}
	case model.CategoryManagementQuality, model.CategoryESGFactors, model.CategoryCompetitivePosition:
		types := make(map[string]struct{})
		for _, d := range docs {
			types[DocType(d.Filename)] = struct{}{}
		}
		base += float64(len(types)) * 6
	}
	return math.Min(95, base)
}

// Rating buckets a quality score.
func Rating(score float64) string {
	switch {
	case score >= 85:
		return "Excellent"
	case score >= 75:
		return "Good"
	case score >= 65:
		return "Moderate"
	case score >= 55:
		return "Limited"
	default:
		return "Poor"
	}
}

// ReliabilityFlags warns about weak credibility, consistency or confirmation.
func ReliabilityFlags(credibility, consistency, triangulation float64) []string {
	var flags []string
	if credibility < 60 {
		flags = append(flags, FlagLowCredibility)
	}
	if consistency < 65 {
		flags = append(flags, FlagInconsistent)
	}
	if triangulation < 60 {
		flags = append(flags, FlagLimitedConfirm)
	}
	if len(flags) == 0 {
		flags = append(flags, FlagNoMajorConcerns)
	}
	return flags
}

// EvidenceQuality scores the sources behind a finding in category c and
// adjusts base by up to 0.3 points per point of quality above or below 70.
// The adjusted confidence is clamped to [40, 99].
func EvidenceQuality(c model.Category, docs []Source, base int) Quality {
	cred := SourceCredibility(docs)
	cons := Consistency(c, docs)
	tri := Triangulation(docs)
	temp := TemporalReliability(docs)
	div := Diversity(c, docs)

	score := cred*weightCredibility +
		cons*weightConsistency +
		tri*weightTriangulation +
		temp*weightTemporal +
		div*weightDiversity

	adjusted := clamp(float64(base)+(score-70)*0.3, 40, 99)

	return Quality{
		Score:              round1(score),
		AdjustedConfidence: int(math.RoundToEven(adjusted)),
		Breakdown: Breakdown{
			SourceCredibility:        round1(cred),
			CrossDocumentConsistency: round1(cons),
			EvidenceTriangulation:    round1(tri),
			TemporalReliability:      round1(temp),
			EvidenceDiversity:        round1(div),
		},
		Rating: Rating(score),
		Flags:  ReliabilityFlags(cred, cons, tri),
	}
}

// OverallQuality averages credibility, consistency, triangulation and
// temporal reliability over the whole document set.
func OverallQuality(docs []Source) Overall {
	if len(docs) == 0 {
		return Overall{Score: 50, Rating: "Limited"}
	}
	cred := SourceCredibility(docs)
	cons := Consistency(overallCategory, docs)
	tri := Triangulation(docs)
	temp := TemporalReliability(docs)
	score := (cred + cons + tri + temp) / 4

	return Overall{
		Score:         round1(score),
		Rating:        Rating(score),
		DocumentCount: len(docs),
		Credibility:   round1(cred),
		Consistency:   round1(cons),
		Triangulation: round1(tri),
		Temporal:      round1(temp),
	}
}

// ScoreDocuments fills the quality rating and credibility of each summary,
// scoring every document on its own.
func ScoreDocuments(docs []model.DocumentSummary) {
	for i := range docs {
		src := []Source{{Filename: docs[i].Filename, Size: docs[i].Size}}
		o := OverallQuality(src)
		docs[i].QualityRating = o.Rating
		docs[i].CredibilityScore = o.Credibility
	}
}

// Apply copies the quality fields onto ev.
func (q Quality) Apply(ev *model.Evidence) {
	if ev == nil {
		return
	}
	adj := q.AdjustedConfidence
	rating := q.Rating
	score := q.Score
	ev.AdjustedConfidence = &adj
	ev.QualityRating = &rating
	ev.QualityScore = &score
	ev.ReliabilityFlags = append([]string(nil), q.Flags...)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round1(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}
