package session

import (
	"strings"

	"github.com/hl-compare/hl-compare/internal/evidence"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/view"
)

// Form is the submission form: ordered entity fields, an optional focus
// query and the chosen files.
type Form struct {
	Entities []string       `json:"entities"`
	Query    string         `json:"query,omitempty"`
	Files    []model.Upload `json:"-"`
}

// NewForm returns a form with the minimum number of empty entity fields.
func NewForm() Form {
	return Form{Entities: make([]string, model.MinEntities)}
}

// Ready reports whether the submit action should be enabled.
func (f Form) Ready() bool {
	return model.ReadyToSubmit(f.Entities, len(f.Files))
}

// FileNames returns the names of the chosen files in order.
func (f Form) FileNames() []string {
	out := make([]string, len(f.Files))
	for i, u := range f.Files {
		out[i] = u.Filename
	}
	return out
}

// AddEntity appends an empty entity field.
func (f Form) AddEntity() Form {
	out := f.clone()
	out.Entities = append(out.Entities, "")
	return out
}

// RemoveEntity drops the field at i unless that would leave fewer than the
// minimum number of fields.
func (f Form) RemoveEntity(i int) Form {
	out := f.clone()
	if len(out.Entities) <= model.MinEntities || i < 0 || i >= len(out.Entities) {
		return out
	}
	out.Entities = append(out.Entities[:i], out.Entities[i+1:]...)
	return out
}

// SetEntity replaces the name at i, growing the form if needed.
func (f Form) SetEntity(i int, name string) Form {
	out := f.clone()
	for len(out.Entities) <= i {
		out.Entities = append(out.Entities, "")
	}
	out.Entities[i] = strings.TrimLeft(name, " \t")
	return out
}

func (f Form) clone() Form {
	out := Form{Query: f.Query}
	out.Entities = append([]string(nil), f.Entities...)
	out.Files = append([]model.Upload(nil), f.Files...)
	return out
}

// State is the serializable view state of one browser session.
type State struct {
	Form       Form                   `json:"form"`
	Loading    bool                   `json:"loading"`
	Error      string                 `json:"error,omitempty"`
	Validation []string               `json:"validation,omitempty"`
	Result     *model.CompareResponse `json:"result,omitempty"`
	Selected   model.Category         `json:"selected,omitempty"`
	Open       view.OpenSet           `json:"open,omitempty"`
	Evidence   *evidence.Ref          `json:"evidence,omitempty"`
}

// HasResult reports whether a comparison is loaded.
func (s State) HasResult() bool {
	return s.Result != nil
}

func (s State) clone() State {
	out := s
	out.Form = s.Form.clone()
	out.Validation = append([]string(nil), s.Validation...)
	out.Open = make(view.OpenSet, len(s.Open))
	for k, v := range s.Open {
		out.Open[k] = v
	}
	if s.Evidence != nil {
		r := *s.Evidence
		out.Evidence = &r
	}
	return out
}
