// Package winner decides which entity's metric value is preferred.
package winner

import (
	"math"
	"strconv"
	"strings"

	"github.com/hl-compare/hl-compare/internal/model"
)

// Outcome is the result of comparing two values of one metric.
type Outcome int

const (
	Tie Outcome = iota
	A
	B
)

func (o Outcome) String() string {
	switch o {
	case A:
		return "A"
	case B:
		return "B"
	default:
		return "tie"
	}
}

// lowerIsBetter lists metrics where a smaller value is preferred. Every other
// key is higher-is-better.
var lowerIsBetter = map[string]bool{
	"pe_ratio":                  true,
	"pb_ratio":                  true,
	"ps_ratio":                  true,
	"ev_ebitda":                 true,
	"peg_ratio":                 true,
	"debt_to_equity":            true,
	"regulatory_risk":           true,
	"supply_chain_risk":         true,
	"market_volatility":         true,
	"litigation_risk":           true,
	"fx_sensitivity":            true,
	"interest_rate_sensitivity": true,
	"inflation_impact":          true,
	"carbon_footprint":          true,
	"beta":                      true,
}

// LowerIsBetter reports whether a smaller value wins for key.
func LowerIsBetter(key string) bool {
	return lowerIsBetter[key]
}

// Compare returns which of a and b wins for key. Absent or non-numeric
// values and equal values yield Tie.
func Compare(key string, a, b *model.Value) Outcome {
	fa, ok := Numeric(a)
	if !ok {
		return Tie
	}
	fb, ok := Numeric(b)
	if !ok {
		return Tie
	}
	if fa == fb {
		return Tie
	}
	aLess := fa < fb
	if lowerIsBetter[key] == aLess {
		return A
	}
	return B
}

// Leaders marks the winning columns of one metric row. The first value is
// the baseline: column i>0 is marked when it beats the first value, and the
// first column is marked only when it beats every other value. Fewer than two
// values never produce a winner.
func Leaders(key string, values []*model.Value) []bool {
	out := make([]bool, len(values))
	if len(values) < 2 {
		return out
	}
	firstBeatsAll := true
	for i := 1; i < len(values); i++ {
		switch Compare(key, values[0], values[i]) {
		case B:
			out[i] = true
			firstBeatsAll = false
		case Tie:
			firstBeatsAll = false
		}
	}
	out[0] = firstBeatsAll
	return out
}

var suffixes = map[byte]float64{
	'K': 1e3, 'k': 1e3,
	'M': 1e6, 'm': 1e6,
	'B': 1e9, 'b': 1e9,
	'T': 1e12, 't': 1e12,
}

// Numeric extracts a float from v. Strings such as "$1,234", "12.5%" and
// "$2.50T" are parsed; anything else is non-numeric.
func Numeric(v *model.Value) (float64, bool) {
	if f, ok := v.Float(); ok {
		return f, !math.IsNaN(f)
	}
	s, ok := v.Str()
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0, false
	}

	mult := 1.0
	if m, ok := suffixes[s[len(s)-1]]; ok {
		mult = m
		s = s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f * mult, true
}
