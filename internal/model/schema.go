package model

import (
	_ "embed"
	"regexp"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var schemaYAML []byte

// Metric value kinds.
const (
	KindNumber = "number"
	KindText   = "text"
)

// MetricSpec describes one fixed metric row of a category table.
type MetricSpec struct {
	Key        string           `yaml:"key"`
	Label      string           `yaml:"label"`
	Kind       string           `yaml:"kind"`
	Unit       string           `yaml:"unit"`
	Definition string           `yaml:"definition"`
	Patterns   []string         `yaml:"patterns"`
	Regexes    []*regexp.Regexp `yaml:"-"` // pre-compiled from Patterns at load
	Category   Category         `yaml:"-"`
}

// IsText reports whether the metric holds a text value rather than a number.
func (m *MetricSpec) IsText() bool {
	return m.Kind == KindText
}

// Schema is an indexed collection of metric specs per category.
type Schema struct {
	metrics map[Category][]MetricSpec
	byKey   map[string]*MetricSpec
}

type schemaFile struct {
	Schema map[string][]MetricSpec `yaml:"schema"`
}

// LoadSchema parses a schema document. Every key must belong to a known
// category and every metric key must be unique across the schema.
func LoadSchema(data []byte) (*Schema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "model: parse schema")
	}

	s := &Schema{
		metrics: make(map[Category][]MetricSpec, len(f.Schema)),
		byKey:   make(map[string]*MetricSpec),
	}
	for name, specs := range f.Schema {
		c, ok := ParseCategory(name)
		if !ok {
			return nil, eris.Errorf("model: schema has unknown category %q", name)
		}
		for i := range specs {
			m := &specs[i]
			if m.Key == "" {
				return nil, eris.Errorf("model: schema category %q has metric without key", name)
			}
			if m.Kind == "" {
				m.Kind = KindNumber
			}
			if m.Label == "" {
				m.Label = m.Key
			}
			m.Category = c
			for _, p := range m.Patterns {
				re, err := regexp.Compile(`(?i)\b(?:` + p + `)`)
				if err != nil {
					return nil, eris.Wrapf(err, "model: compile pattern for %q", m.Key)
				}
				m.Regexes = append(m.Regexes, re)
			}
		}
		s.metrics[c] = specs
	}

	// Index after all slices are final so pointers stay valid.
	for c := range s.metrics {
		specs := s.metrics[c]
		for i := range specs {
			if _, dup := s.byKey[specs[i].Key]; dup {
				return nil, eris.Errorf("model: duplicate metric key %q", specs[i].Key)
			}
			s.byKey[specs[i].Key] = &specs[i]
		}
	}
	return s, nil
}

var defaultSchema = sync.OnceValues(func() (*Schema, error) {
	return LoadSchema(schemaYAML)
})

// DefaultSchema returns the embedded metric schema. The embedded document is
// validated by tests, so a load failure is a build defect and panics.
func DefaultSchema() *Schema {
	s, err := defaultSchema()
	if err != nil {
		panic(err)
	}
	return s
}

// Metrics returns the ordered metric specs for c. Narrative and unknown
// categories return nil.
func (s *Schema) Metrics(c Category) []MetricSpec {
	return s.metrics[c]
}

// Keys returns the ordered metric keys for c.
func (s *Schema) Keys(c Category) []string {
	specs := s.metrics[c]
	out := make([]string, len(specs))
	for i := range specs {
		out[i] = specs[i].Key
	}
	return out
}

// ByKey returns the metric spec for key, or nil if not found.
func (s *Schema) ByKey(key string) *MetricSpec {
	return s.byKey[key]
}

// Label returns the display label for key, falling back to the key itself.
func (s *Schema) Label(key string) string {
	if m := s.byKey[key]; m != nil {
		return m.Label
	}
	return key
}
