// Package format renders raw metric values as unit-annotated display strings.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hl-compare/hl-compare/internal/model"
)

// Placeholder is rendered for any absent value.
const Placeholder = "-"

var (
	currencyKeys = map[string]bool{
		"price":        true,
		"week_52_high": true,
		"week_52_low":  true,
		"eps":          true,
	}
	percentKeys = map[string]bool{
		"dividend_yield":  true,
		"total_return_1y": true,
		"total_return_5y": true,
	}
)

// Metric formats v for display under metric key. It never fails and is
// idempotent: formatting an already formatted string returns it unchanged.
func Metric(key string, v *model.Value) string {
	if v == nil {
		return Placeholder
	}

	f, ok := v.Float()
	if !ok {
		s, _ := v.Str()
		if strings.TrimSpace(s) == "" {
			return Placeholder
		}
		if percentKeys[key] && strings.HasSuffix(strings.TrimSpace(s), "%") {
			return s
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return s
		}
		f = parsed
	}

	switch {
	case key == "market_cap":
		return marketCap(f)
	case currencyKeys[key]:
		return fmt.Sprintf("$%.2f", f)
	case percentKeys[key]:
		return fmt.Sprintf("%.2f%%", f)
	case key == "volume":
		return volume(f)
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

type unit struct {
	size   float64
	suffix string
}

var (
	capUnits    = []unit{{1e6, "M"}, {1e9, "B"}, {1e12, "T"}}
	volumeUnits = []unit{{1e3, "K"}, {1e6, "M"}}
)

// pickUnit returns the index of the largest unit not above abs, promoted
// while the two-decimal mantissa would round up to 1000. It returns -1 when
// abs is below the smallest unit.
func pickUnit(abs float64, units []unit) int {
	i := -1
	for j, u := range units {
		if abs >= u.size {
			i = j
		}
	}
	for i >= 0 && i+1 < len(units) && math.Round(abs/units[i].size*100) >= 100000 {
		i++
	}
	return i
}

func marketCap(f float64) string {
	abs := math.Abs(f)
	i := pickUnit(abs, capUnits)
	if i < 0 && math.Round(abs) >= capUnits[0].size {
		i = 0
	}
	if i < 0 {
		return message.NewPrinter(language.English).Sprintf("$%d", int64(math.Round(f)))
	}
	return fmt.Sprintf("$%.2f%s", f/capUnits[i].size, capUnits[i].suffix)
}

func volume(f float64) string {
	i := pickUnit(math.Abs(f), volumeUnits)
	if i < 0 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprintf("%.2f%s", f/volumeUnits[i].size, volumeUnits[i].suffix)
}

// Confidence renders a 0-100 score as a percentage, or the placeholder.
func Confidence(c *int) string {
	if c == nil {
		return Placeholder
	}
	return strconv.Itoa(*c) + "%"
}

// Flags joins reliability flags with commas, or returns the placeholder.
func Flags(flags []string) string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return Placeholder
	}
	return strings.Join(out, ", ")
}

// Text renders an optional string, or the placeholder when absent or blank.
func Text(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return Placeholder
	}
	return *s
}
