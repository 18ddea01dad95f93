package analysis

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hl-compare/hl-compare/internal/model"
)

// maxValueDistance bounds how far after a label a value may appear.
const maxValueDistance = 120

var numberRe = regexp.MustCompile(`(?i)(-)?(\$\s?)?(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)(\s?(?:%|percent\b|trillion\b|tn\b|t\b|billion\b|bn\b|b\b|million\b|mm\b|m\b|thousand\b|k\b|x\b))?`)

var scales = map[string]float64{
	"trillion": 1e12, "tn": 1e12, "t": 1e12,
	"billion": 1e9, "bn": 1e9, "b": 1e9,
	"million": 1e6, "mm": 1e6, "m": 1e6,
	"thousand": 1e3, "k": 1e3,
}

// unitScales stores metrics of these units in the unit's magnitude when the
// source states one, so "$383 billion" of revenue becomes 383.
var unitScales = map[string]float64{
	"B":  1e9,
	"MT": 1e6,
}

// number is one numeric token found in text.
type number struct {
	value      float64
	scale      float64
	dollar     bool
	percent    bool
	start, end int
}

// findNumbers returns the numeric tokens of s in order. Tokens glued to
// letters ("Q3", "10-K") and bare years are skipped.
func findNumbers(s string) []number {
	var out []number
	for _, loc := range numberRe.FindAllStringSubmatchIndex(s, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && s[start] != '$' {
			r, _ := utf8.DecodeLastRuneInString(s[:start])
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '/' {
				continue
			}
		}
		if glued(s, end) {
			continue
		}

		digits := strings.ReplaceAll(s[loc[6]:loc[7]], ",", "")
		v, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			continue
		}
		n := number{value: v, scale: 1, dollar: loc[4] >= 0, start: start, end: end}
		if loc[2] >= 0 {
			n.value = -n.value
		}
		if loc[8] >= 0 {
			suffix := strings.ToLower(strings.TrimSpace(s[loc[8]:loc[9]]))
			switch suffix {
			case "%", "percent":
				n.percent = true
			case "x":
			default:
				n.scale = scales[suffix]
			}
		}
		if n.isYear(digits) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// glued reports whether the token ending at i runs into a word, as in "3rd"
// or "10-K".
func glued(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, size := utf8.DecodeRuneInString(s[i:])
	if unicode.IsLetter(r) {
		return true
	}
	if r == '-' && i+size < len(s) {
		next, _ := utf8.DecodeRuneInString(s[i+size:])
		return unicode.IsLetter(next)
	}
	return false
}

func (n number) isYear(digits string) bool {
	if n.dollar || n.percent || n.scale != 1 || strings.Contains(digits, ".") {
		return false
	}
	return n.value >= 1900 && n.value <= 2099
}

// normalize converts n into the stored value for spec.
func normalize(spec *model.MetricSpec, n number) *model.Value {
	v := n.value
	if unit, ok := unitScales[spec.Unit]; ok {
		if n.scale != 1 {
			v = v * n.scale / unit
		}
		return model.Number(v)
	}
	return model.Number(v * n.scale)
}

// firstNumber returns the first value in s within maxValueDistance bytes.
func firstNumber(spec *model.MetricSpec, s string) *model.Value {
	ns := findNumbers(s)
	if len(ns) == 0 || ns[0].start > maxValueDistance {
		return nil
	}
	return normalize(spec, ns[0])
}

var textSeparator = regexp.MustCompile(`(?i)^(?:['’]s)?\s*(?:[:=|\-–—]|\bis\b|\bare\b|\bwas\b|\bincludes?\b|\binclude\b)\s*`)

const maxTextValue = 60

// textAfter returns the text value following a label in s. A separator such
// as ":" or "is" must introduce it.
func textAfter(s string) *model.Value {
	loc := textSeparator.FindStringIndex(s)
	if loc == nil {
		return nil
	}
	rest := s[loc[1]:]
	if i := strings.IndexAny(rest, ";|\n"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.Index(rest, ". "); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.Trim(strings.TrimSpace(rest), `."'“”`)
	if len([]rune(rest)) < 2 {
		return nil
	}
	return model.Text(truncateWords(rest, maxTextValue))
}

// truncateWords cuts s to at most n runes on a word boundary.
func truncateWords(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

// valueFor extracts the value of spec from s, the text following its label.
func valueFor(spec *model.MetricSpec, s string) *model.Value {
	if spec.IsText() {
		return textAfter(s)
	}
	return firstNumber(spec, s)
}
