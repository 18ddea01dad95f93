package web

import (
	"html/template"
	"strings"

	"github.com/hl-compare/hl-compare/internal/evidence"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/session"
	"github.com/hl-compare/hl-compare/internal/view"
)

type tab struct {
	Key      model.Category
	Label    string
	Selected bool
}

type narrative struct {
	Entity     string
	Confidence string
	Analysis   template.HTML
}

type accordionItem struct {
	Category   model.Category
	Label      string
	Open       bool
	Narrative  bool
	Table      *view.Table
	Narratives []narrative
	Insight    template.HTML
}

type pageData struct {
	Base         string
	State        session.State
	Busy         bool
	CanSubmit    bool
	CanRemove    bool
	MinEntities  int
	Accept       string
	Entities     []string
	Tabs         []tab
	Table        view.Table
	Accordion    []accordionItem
	Evidence     evidence.View
	EvidenceOpen bool
}

func (h *Handler) pageData(ctrl *session.Controller, busy bool) pageData {
	st := ctrl.State()
	d := pageData{
		Base:        h.base,
		State:       st,
		Busy:        busy,
		CanSubmit:   ctrl.CanSubmit(st.Form),
		CanRemove:   len(st.Form.Entities) > model.MinEntities,
		MinEntities: model.MinEntities,
		Accept:      strings.Join(model.AllowedExtensions(), ","),
	}
	if st.Result == nil {
		return d
	}

	d.Entities = view.Entities(st.Result)
	for _, c := range model.Categories() {
		d.Tabs = append(d.Tabs, tab{Key: c, Label: c.Label(), Selected: c == st.Selected})
	}
	d.Table = ctrl.Table()
	for _, it := range ctrl.Accordion() {
		item := accordionItem{
			Category:  it.Category,
			Label:     it.Label,
			Open:      it.Open,
			Narrative: it.Narrative,
			Table:     it.Table,
			Insight:   h.sanitize(it.Insight),
		}
		for _, n := range it.Narratives {
			item.Narratives = append(item.Narratives, narrative{
				Entity:     n.Entity,
				Confidence: n.Confidence,
				Analysis:   h.sanitize(n.Analysis),
			})
		}
		d.Accordion = append(d.Accordion, item)
	}
	d.Evidence, d.EvidenceOpen = ctrl.Evidence()
	return d
}

// sanitize renders analysis text through the allow-list policy.
func (h *Handler) sanitize(s string) template.HTML {
	return template.HTML(h.policy.Sanitize(s)) //nolint:gosec
}
