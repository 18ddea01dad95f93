// Package session owns the browser view state: the submission form, the
// single in-flight submission, the loaded result and the evidence panel.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hl-compare/hl-compare/internal/evidence"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/view"
)

// ErrInFlight is returned when a submission is attempted while another one
// is still running.
var ErrInFlight = eris.New("session: a submission is already in progress")

// ReachabilityGuidance prefixes every user-visible submission failure.
const ReachabilityGuidance = "Unable to reach the comparison service. Please verify the backend is running."

// Submitter performs a comparison. It is either the in-process service or a
// remote client.
type Submitter interface {
	Submit(ctx context.Context, entities []string, files []model.Upload, query string) (*model.CompareResponse, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, entities []string, files []model.Upload, query string) (*model.CompareResponse, error)

// Submit calls f.
func (f SubmitterFunc) Submit(ctx context.Context, entities []string, files []model.Upload, query string) (*model.CompareResponse, error) {
	return f(ctx, entities, files, query)
}

// Controller serializes submissions for one browser session and owns its
// view state.
type Controller struct {
	mu        sync.Mutex
	submitter Submitter
	state     State
	panel     evidence.Panel
}

// NewController returns a controller with an empty two-entity form.
func NewController(s Submitter) *Controller {
	return &Controller{
		submitter: s,
		state: State{
			Form: NewForm(),
			Open: view.OpenSet{},
		},
	}
}

// State returns a snapshot of the current view state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// CanSubmit mirrors the submit button: enabled when the form is complete and
// nothing is in flight.
func (c *Controller) CanSubmit(f Form) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.state.Loading && f.Ready()
}

// UpdateForm stores the form fields without submitting.
func (c *Controller) UpdateForm(f Form) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Form = f.clone()
}

// Submit validates f, runs the submitter and switches the state to either
// the result or the error in one step. Validation failures never reach the
// submitter. A call while one is running fails with ErrInFlight and leaves
// the in-flight form untouched.
func (c *Controller) Submit(ctx context.Context, f Form) error {
	c.mu.Lock()
	if c.state.Loading {
		c.mu.Unlock()
		return ErrInFlight
	}
	c.state.Form = f.clone()
	if err := model.ValidateSubmission(f.Entities, f.FileNames()); err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			c.state.Validation = append([]string(nil), ve.Problems...)
		}
		c.mu.Unlock()
		return err
	}
	c.state.Validation = nil
	c.state.Loading = true
	c.mu.Unlock()

	entities := model.CleanEntities(f.Entities)
	resp, err := c.submitter.Submit(ctx, entities, f.Files, strings.TrimSpace(f.Query))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Loading = false
	c.panel.Close()
	c.state.Evidence = nil
	if err != nil {
		zap.L().Warn("session: submission failed", zap.Error(err))
		c.state.Result = nil
		c.state.Error = UserMessage(err)
		return eris.Wrap(err, "session: submit")
	}
	c.state.Result = resp
	c.state.Error = ""
	c.state.Selected = defaultSelection()
	c.state.Open = view.OpenSet{}
	return nil
}

// UserMessage renders err as the flat string shown to the user. It always
// starts with the reachability guidance.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "Unable to reach the comparison service.") {
		return msg
	}
	return ReachabilityGuidance + " " + msg
}

func defaultSelection() model.Category {
	for _, c := range model.Categories() {
		if !c.IsNarrative() {
			return c
		}
	}
	return model.NarrativeCategory
}

// Select makes c the category shown in the metrics table. Unknown categories
// are ignored.
func (c *Controller) Select(cat model.Category) bool {
	if !cat.Valid() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Selected = cat
	return true
}

// Toggle flips one accordion section independently of the others.
func (c *Controller) Toggle(cat model.Category) {
	if !cat.Valid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Open = c.state.Open.Toggle(cat)
}

// Table projects the selected category of the current result.
func (c *Controller) Table() view.Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	return view.BuildTable(c.state.Result, c.state.Selected)
}

// Accordion projects all categories of the current result.
func (c *Controller) Accordion() []view.AccordionItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return view.BuildAccordion(c.state.Result, c.state.Open)
}

// OpenEvidence opens the evidence panel for a cell. It is a no-op returning
// false when the cell has no value or no evidence. When prober is non-nil
// the inline preview is probed and a failure is recorded on the view.
func (c *Controller) OpenEvidence(ctx context.Context, ref evidence.Ref, prober evidence.Prober) bool {
	c.mu.Lock()
	mv := evidence.LookupRef(c.state.Result, ref)
	var p evidence.Panel
	if !p.OpenMetric(ref.Metric, mv) {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	p.ProbePreview(ctx, prober)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.panel = p
	r := ref
	c.state.Evidence = &r
	return true
}

// CloseEvidence hides the evidence panel.
func (c *Controller) CloseEvidence() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panel.Close()
	c.state.Evidence = nil
}

// Evidence returns the panel content and whether it is open.
func (c *Controller) Evidence() (evidence.View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panel.View()
}
