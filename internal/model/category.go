package model

// Category is one fixed analysis dimension of a comparison.
type Category string

const (
	CategoryInvestmentThesis        Category = "investment_thesis"
	CategoryValuationMetrics        Category = "valuation_metrics"
	CategoryFinancialPerformance    Category = "financial_performance"
	CategoryCompetitivePosition     Category = "competitive_position"
	CategoryRiskFactors             Category = "risk_factors"
	CategoryGrowthDrivers           Category = "growth_drivers"
	CategoryMacroContext            Category = "macro_context"
	CategoryESGFactors              Category = "esg_factors"
	CategoryManagementQuality       Category = "management_quality"
	CategoryPortfolioRecommendation Category = "portfolio_recommendation"
)

// NarrativeCategory renders free-text analysis per entity instead of a metrics table.
const NarrativeCategory = CategoryInvestmentThesis

var categoryOrder = []Category{
	CategoryInvestmentThesis,
	CategoryValuationMetrics,
	CategoryFinancialPerformance,
	CategoryCompetitivePosition,
	CategoryRiskFactors,
	CategoryGrowthDrivers,
	CategoryMacroContext,
	CategoryESGFactors,
	CategoryManagementQuality,
	CategoryPortfolioRecommendation,
}

var categoryLabels = map[Category]string{
	CategoryInvestmentThesis:        "Investment Thesis",
	CategoryValuationMetrics:        "Valuation Metrics",
	CategoryFinancialPerformance:    "Financial Performance",
	CategoryCompetitivePosition:     "Competitive Position",
	CategoryRiskFactors:             "Risk Factors",
	CategoryGrowthDrivers:           "Growth Drivers",
	CategoryMacroContext:            "Macro Context",
	CategoryESGFactors:              "ESG Factors",
	CategoryManagementQuality:       "Management Quality",
	CategoryPortfolioRecommendation: "Portfolio Recommendation",
}

// Categories returns all categories in display order. The returned slice is a copy.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// Label returns the display label, or the raw key for unknown categories.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// IsNarrative reports whether c is the distinguished narrative category.
func (c Category) IsNarrative() bool {
	return c == NarrativeCategory
}

// ParseCategory returns the category for key and whether it is known.
func ParseCategory(key string) (Category, bool) {
	c := Category(key)
	return c, c.Valid()
}
