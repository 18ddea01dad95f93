package analysis

import (
	"fmt"
	"strings"

	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/winner"
)

// conclude summarises which entity leads on each comparable metric of c.
// It returns nil when the category holds no metric data.
func conclude(schema *model.Schema, cr *model.CategoryResult, names []string, c model.Category) *string {
	if cr == nil || c.IsNarrative() {
		return nil
	}

	leads := make([][]string, len(names))
	reported := make([]bool, len(names))
	found := false
	for _, spec := range schema.Metrics(c) {
		values := make([]*model.Value, len(names))
		present := 0
		for i, n := range names {
			if mv := cr.Entity(n).Metric(spec.Key); mv != nil && mv.Value != nil {
				values[i] = mv.Value
				reported[i] = true
				present++
				found = true
			}
		}
		if present < 2 {
			continue
		}
		for i, win := range winner.Leaders(spec.Key, values) {
			if win {
				leads[i] = append(leads[i], spec.Label)
			}
		}
	}
	if !found {
		return nil
	}

	var parts []string
	for i, labels := range leads {
		if len(labels) > 0 {
			parts = append(parts, fmt.Sprintf("%s leads on %s.", names[i], joinAnd(labels)))
		}
	}
	if len(parts) == 0 {
		var who []string
		for i, ok := range reported {
			if ok {
				who = append(who, names[i])
			}
		}
		if len(who) == 1 {
			parts = append(parts, fmt.Sprintf("Limited comparable data: only %s reported figures in %s.", who[0], c.Label()))
		} else {
			parts = append(parts, fmt.Sprintf("No clear leader in %s on the figures reported.", c.Label()))
		}
	}
	s := strings.Join(parts, " ")
	return &s
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
