// Package evidence resolves metric provenance and drives the evidence side
// panel shown when a user clicks an evidence badge.
package evidence

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/hl-compare/hl-compare/internal/format"
	"github.com/hl-compare/hl-compare/internal/model"
)

// previewExtensions are document types the panel can embed inline.
var previewExtensions = map[string]bool{
	".pdf": true,
}

// View is the rendered content of an open evidence panel.
type View struct {
	Filename      string `json:"filename"`
	Page          string `json:"page,omitempty"`
	Excerpt       string `json:"excerpt,omitempty"`
	Confidence    string `json:"confidence"`
	QualityRating string `json:"quality_rating"`
	Flags         string `json:"reliability_flags"`
	DownloadURL   string `json:"download_url,omitempty"`
	Preview       bool   `json:"preview"`
	PreviewError  string `json:"preview_error,omitempty"`
	Value         string `json:"value,omitempty"`
}

// NewView renders ev for display. Absent fields render as placeholders or
// are omitted.
func NewView(ev *model.Evidence) View {
	if ev == nil {
		return View{}
	}
	v := View{
		Filename:      ev.Filename,
		Confidence:    format.Confidence(ev.EffectiveConfidence()),
		QualityRating: format.Text(ev.QualityRating),
		Flags:         format.Flags(ev.ReliabilityFlags),
	}
	if v.Filename == "" {
		v.Filename = format.Placeholder
	}
	if ev.Page != nil {
		v.Page = strconv.Itoa(*ev.Page)
	}
	if ev.Excerpt != nil {
		v.Excerpt = strings.TrimSpace(*ev.Excerpt)
	}
	if ev.DownloadURL != nil {
		v.DownloadURL = *ev.DownloadURL
		v.Preview = Previewable(v.DownloadURL)
	}
	return v
}

// Previewable reports whether rawURL points at a document type that can be
// embedded inline.
func Previewable(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return previewExtensions[strings.ToLower(path.Ext(p))]
}

// Panel is the evidence side panel. The zero value is closed.
type Panel struct {
	open   bool
	metric string
	ev     *model.Evidence
	value  *model.Value
	view   View
}

// Open shows the evidence of m. It is a no-op returning false when m, its
// value or its evidence is nil.
func (p *Panel) Open(m *model.MetricValue) bool {
	if m == nil {
		return false
	}
	return p.OpenEvidence(m.Evidence, m.Value)
}

// OpenEvidence shows ev for the given companion value. Nothing happens when
// either is nil: a metric without an extracted value offers no drill-down.
func (p *Panel) OpenEvidence(ev *model.Evidence, value *model.Value) bool {
	if ev == nil || value == nil {
		return false
	}
	p.open = true
	p.ev = ev
	p.value = value
	p.view = NewView(ev)
	p.view.Value = value.String()
	return true
}

// OpenMetric is Open with the metric key recorded for display formatting.
func (p *Panel) OpenMetric(key string, m *model.MetricValue) bool {
	if !p.Open(m) {
		return false
	}
	p.metric = key
	p.view.Value = format.Metric(key, m.Value)
	return true
}

// Close hides the panel.
func (p *Panel) Close() {
	*p = Panel{}
}

// IsOpen reports whether the panel is showing.
func (p *Panel) IsOpen() bool {
	return p.open
}

// View returns the panel content and whether the panel is open.
func (p *Panel) View() (View, bool) {
	return p.view, p.open
}

// SetPreviewError records that the inline preview could not be loaded. The
// remaining metadata stays renderable.
func (p *Panel) SetPreviewError(err error) {
	if !p.open || err == nil {
		return
	}
	p.view.PreviewError = err.Error()
}
