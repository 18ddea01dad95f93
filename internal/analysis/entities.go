package analysis

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hl-compare/hl-compare/internal/model"
)

var corporateSuffix = regexp.MustCompile(`(?i)[\s,]+(?:inc|incorporated|corp|corporation|co|company|ltd|limited|plc|llc|lp|ag|sa|nv|holdings|group)\.?$`)

var aliasStopwords = map[string]bool{
	"the": true, "and": true, "new": true, "first": true, "general": true,
	"american": true, "united": true, "national": true, "global": true,
}

// entity is one submitted entity and the patterns that find it in text.
type entity struct {
	name    string
	key     string
	aliases []string
	re      *regexp.Regexp
}

// mention is one occurrence of an entity in a text unit.
type mention struct {
	entity     int
	start, end int
}

// newEntities builds matchers for names, skipping blank ones. An alias shared by two entities is
// dropped from both so that a match is never ambiguous.
func newEntities(names []string) []entity {
	var kept []string
	for _, n := range names {
		if strings.TrimSpace(n) != "" {
			kept = append(kept, n)
		}
	}
	names = kept

	all := make([][]string, len(names))
	owners := make(map[string]int)
	for i, n := range names {
		all[i] = aliases(n)
		for _, a := range all[i] {
			owners[model.EntityKey(a)]++
		}
	}

	out := make([]entity, 0, len(names))
	for i, n := range names {
		e := entity{name: strings.TrimSpace(n), key: model.EntityKey(n)}
		for _, a := range all[i] {
			if owners[model.EntityKey(a)] == 1 || model.EntityKey(a) == e.key {
				e.aliases = append(e.aliases, a)
			}
		}
		e.re = aliasPattern(e.aliases)
		out = append(out, e)
	}
	return out
}

// aliases returns the full name, the name without a corporate suffix and the
// first word when it is distinctive enough to stand alone.
func aliases(name string) []string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return nil
	}
	out := []string{name}
	short := strings.TrimSpace(corporateSuffix.ReplaceAllString(name, ""))
	if short != "" && short != name {
		out = append(out, short)
	}
	if words := strings.Fields(short); len(words) > 1 {
		first := strings.Trim(words[0], ".,")
		if len([]rune(first)) >= 3 && !aliasStopwords[strings.ToLower(first)] {
			out = append(out, first)
		}
	}
	// Longest first so the alternation prefers the fullest match.
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func aliasPattern(aliases []string) *regexp.Regexp {
	if len(aliases) == 0 {
		return nil
	}
	quoted := make([]string, len(aliases))
	for i, a := range aliases {
		quoted[i] = regexp.QuoteMeta(a)
	}
	// Boundaries are Unicode-aware so names such as "Apple Inc." still match
	// before punctuation. The trailing boundary is checked by the caller.
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + strings.Join(quoted, "|") + `)`)
}

func wordEndsAt(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// findMentions returns non-overlapping entity mentions in text order.
func findMentions(ents []entity, text string) []mention {
	var ms []mention
	for i, e := range ents {
		if e.re == nil {
			continue
		}
		for _, loc := range e.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2], loc[3]
			if !wordEndsAt(text, end) {
				continue
			}
			ms = append(ms, mention{entity: i, start: start, end: end})
		}
	}
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].start != ms[j].start {
			return ms[i].start < ms[j].start
		}
		return ms[i].end > ms[j].end
	})

	out := ms[:0]
	last := -1
	for _, m := range ms {
		if m.start < last {
			continue
		}
		out = append(out, m)
		last = m.end
	}
	return out
}

func distinctEntities(ms []mention) []int {
	seen := make(map[int]bool)
	var out []int
	for _, m := range ms {
		if !seen[m.entity] {
			seen[m.entity] = true
			out = append(out, m.entity)
		}
	}
	return out
}

var filenameSeparators = strings.NewReplacer("_", " ", "-", " ", ".", " ")

// documentEntity picks the entity a document is about: the single entity
// named in its filename, else the entity mentioned most often. It returns -1
// when neither is decisive.
func documentEntity(ents []entity, filename string, pages []string) int {
	name := filenameSeparators.Replace(filename)
	var named []int
	for i, e := range ents {
		if e.re != nil && len(findMentions([]entity{e}, name)) > 0 {
			named = append(named, i)
		}
	}
	if len(named) == 1 {
		return named[0]
	}

	counts := make([]int, len(ents))
	for _, p := range pages {
		for _, m := range findMentions(ents, p) {
			counts[m.entity]++
		}
	}
	best, bestN, tie := -1, 0, false
	for i, n := range counts {
		switch {
		case n > bestN:
			best, bestN, tie = i, n, false
		case n == bestN && n > 0:
			tie = true
		}
	}
	if tie {
		return -1
	}
	return best
}
