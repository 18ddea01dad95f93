// Package client submits comparisons to a remote hl-compare backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hl-compare/hl-compare/internal/config"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/store"
)

// ValidationError lists problems found before any request is sent.
type ValidationError = model.ValidationError

// SubmitError is the single flat error for transport failures and non-2xx
// responses. No retry is attempted.
type SubmitError struct {
	BaseURL string
	Status  int
	Detail  string
	Err     error
}

func (e *SubmitError) Error() string {
	msg := fmt.Sprintf("Unable to reach the comparison service. Please verify the backend is running at %s.", e.BaseURL)
	if e.Detail != "" {
		msg += " " + e.Detail
	}
	return msg
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// Client talks to the backend HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client from config.
func New(cfg config.ClientConfig, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// SubmitComparison uploads files and entities to /compare/. Validation runs
// first and a failure sends nothing.
func (c *Client) SubmitComparison(ctx context.Context, entities []string, files []model.Upload, query string) (*model.CompareResponse, error) {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}
	if err := model.ValidateSubmission(entities, names); err != nil {
		return nil, err
	}

	body, contentType, err := encodeForm(model.CleanEntities(entities), files, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compare/", body)
	if err != nil {
		return nil, eris.Wrap(err, "client: build request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	var out model.CompareResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	zap.L().Debug("client: comparison submitted",
		zap.String("comparison_id", out.ComparisonID),
		zap.Int("documents", out.DocumentsAnalyzed),
	)
	return &out, nil
}

// Submit adapts SubmitComparison to the session submitter contract.
func (c *Client) Submit(ctx context.Context, entities []string, files []model.Upload, query string) (*model.CompareResponse, error) {
	return c.SubmitComparison(ctx, entities, files, query)
}

// GetComparison fetches a stored comparison. An unknown id wraps
// store.ErrNotFound.
func (c *Client) GetComparison(ctx context.Context, id string) (*model.CompareResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/results/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, eris.Wrap(err, "client: build request")
	}
	var out model.CompareResponse
	if err := c.do(req, &out); err != nil {
		var se *SubmitError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return nil, eris.Wrapf(store.ErrNotFound, "client: comparison %s", id)
		}
		return nil, err
	}
	return &out, nil
}

// ListComparisons fetches recent comparisons, newest first.
func (c *Client) ListComparisons(ctx context.Context, limit int) ([]store.ComparisonSummary, error) {
	u := c.baseURL + "/results"
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "client: build request")
	}
	var out []store.ComparisonSummary
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &SubmitError{BaseURL: c.baseURL, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return &SubmitError{BaseURL: c.baseURL, Status: resp.StatusCode, Detail: err.Error(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SubmitError{BaseURL: c.baseURL, Status: resp.StatusCode, Detail: errorDetail(resp.StatusCode, data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &SubmitError{BaseURL: c.baseURL, Status: resp.StatusCode, Detail: "invalid response: " + err.Error(), Err: err}
	}
	return nil
}

// errorDetail prefers the backend's {"detail": "..."} message.
func errorDetail(status int, body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil && s != "" {
			return fmt.Sprintf("HTTP %d: %s", status, s)
		}
		return fmt.Sprintf("HTTP %d: %s", status, string(payload.Detail))
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		text = http.StatusText(status)
	}
	return fmt.Sprintf("HTTP %d: %s", status, text)
}

func encodeForm(entities []string, files []model.Upload, query string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, e := range entities {
		if err := w.WriteField("entities", e); err != nil {
			return nil, "", eris.Wrap(err, "client: write entities")
		}
	}
	if query != "" {
		if err := w.WriteField("query", query); err != nil {
			return nil, "", eris.Wrap(err, "client: write query")
		}
	}
	for _, f := range files {
		if err := writeFile(w, f); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", eris.Wrap(err, "client: close form")
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, f model.Upload) error {
	if f.Open == nil {
		return eris.Errorf("client: upload %q has no content", f.Filename)
	}
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "client: open %q", f.Filename)
	}
	defer rc.Close() //nolint:errcheck

	part, err := w.CreateFormFile("files", f.Filename)
	if err != nil {
		return eris.Wrap(err, "client: create form file")
	}
	if _, err := io.Copy(part, rc); err != nil {
		return eris.Wrapf(err, "client: copy %q", f.Filename)
	}
	return nil
}
