package evidence

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hl-compare/hl-compare/internal/model"
)

// Ref addresses one metric cell of a comparison.
type Ref struct {
	Category model.Category `json:"category"`
	Entity   string         `json:"entity"`
	Metric   string         `json:"metric"`
}

// Lookup resolves a cell to its metric through normalized entity keys. It
// returns nil when any level is missing.
func Lookup(resp *model.CompareResponse, c model.Category, entity, metric string) *model.MetricValue {
	if resp == nil {
		return nil
	}
	return resp.Comparison.Metric(c, entity, metric)
}

// LookupRef is Lookup addressed by a Ref.
func LookupRef(resp *model.CompareResponse, ref Ref) *model.MetricValue {
	return Lookup(resp, ref.Category, ref.Entity, ref.Metric)
}

// Prober checks whether a preview URL can be fetched.
type Prober interface {
	Probe(ctx context.Context, rawURL string) error
}

// HTTPProber probes preview URLs with a HEAD request. Relative URLs are
// resolved against BaseURL.
type HTTPProber struct {
	Client  *http.Client
	BaseURL string
}

// NewHTTPProber returns a prober with a short timeout.
func NewHTTPProber(baseURL string) *HTTPProber {
	return &HTTPProber{
		Client:  &http.Client{Timeout: 5 * time.Second},
		BaseURL: baseURL,
	}
}

// Probe issues a HEAD request and fails on transport errors or non-2xx
// responses.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) error {
	target, err := p.resolve(rawURL)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return eris.Wrap(err, "evidence: build preview request")
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "evidence: preview unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("evidence: preview returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *HTTPProber) resolve(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "evidence: parse preview url")
	}
	if u.IsAbs() || p.BaseURL == "" {
		return u.String(), nil
	}
	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", eris.Wrap(err, "evidence: parse base url")
	}
	return base.ResolveReference(u).String(), nil
}

// ProbePreview probes the open panel's preview, if any, and records a failure
// on the view. It never closes the panel.
func (p *Panel) ProbePreview(ctx context.Context, prober Prober) {
	if !p.open || !p.view.Preview || prober == nil {
		return
	}
	if err := prober.Probe(ctx, p.view.DownloadURL); err != nil {
		p.SetPreviewError(err)
	}
}
