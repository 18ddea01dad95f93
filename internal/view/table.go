// Package view projects a comparison response into display-ready structures:
// a per-category metrics table, an accordion and a paginated report. All
// projections are read-only and tolerate missing data at every level.
package view

import (
	"github.com/hl-compare/hl-compare/internal/format"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/winner"
)

// Cell is one entity's value for one metric row.
type Cell struct {
	Entity      string          `json:"entity"`
	Value       string          `json:"value"`
	Raw         *model.Value    `json:"raw,omitempty"`
	Winner      bool            `json:"winner"`
	HasEvidence bool            `json:"has_evidence"`
	Evidence    *model.Evidence `json:"evidence,omitempty"`
}

// Row is one metric across all entities.
type Row struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Definition string `json:"definition,omitempty"`
	Unit       string `json:"unit,omitempty"`
	Cells      []Cell `json:"cells"`
}

// Table is the key-metrics projection of one category.
type Table struct {
	Category model.Category `json:"category"`
	Label    string         `json:"label"`
	Entities []string       `json:"entities"`
	Rows     []Row          `json:"rows"`
}

// Empty reports whether no cell in the table holds a value.
func (t Table) Empty() bool {
	for _, r := range t.Rows {
		for _, c := range r.Cells {
			if c.Raw != nil {
				return false
			}
		}
	}
	return true
}

// Entities returns the display names of resp in submission order.
func Entities(resp *model.CompareResponse) []string {
	if resp == nil {
		return nil
	}
	out := make([]string, len(resp.Entities))
	copy(out, resp.Entities)
	return out
}

// BuildTable projects category c of resp into a metrics table. Rows follow
// the fixed metric schema and columns follow submission order. The narrative
// category has no rows.
func BuildTable(resp *model.CompareResponse, c model.Category) Table {
	return buildTable(model.DefaultSchema(), resp, c)
}

func buildTable(schema *model.Schema, resp *model.CompareResponse, c model.Category) Table {
	entities := Entities(resp)
	t := Table{
		Category: c,
		Label:    c.Label(),
		Entities: entities,
	}
	var result model.ComparisonResult
	if resp != nil {
		result = resp.Comparison
	}

	specs := schema.Metrics(c)
	t.Rows = make([]Row, 0, len(specs))
	for i := range specs {
		spec := &specs[i]
		row := Row{
			Key:        spec.Key,
			Label:      spec.Label,
			Definition: spec.Definition,
			Unit:       spec.Unit,
			Cells:      make([]Cell, len(entities)),
		}
		raw := make([]*model.Value, len(entities))
		for j, name := range entities {
			mv := result.Metric(c, name, spec.Key)
			cell := Cell{Entity: name, Value: format.Placeholder}
			if mv != nil {
				raw[j] = mv.Value
				cell.Raw = mv.Value
				cell.Value = format.Metric(spec.Key, mv.Value)
				if mv.Value != nil && mv.Evidence != nil {
					cell.HasEvidence = true
					cell.Evidence = mv.Evidence
				}
			}
			row.Cells[j] = cell
		}
		for j, won := range winner.Leaders(spec.Key, raw) {
			row.Cells[j].Winner = won
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
