package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl-compare/hl-compare/internal/config"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/store"
)

func upload(name, body string) model.Upload {
	return model.Upload{
		Filename: name,
		Size:     int64(len(body)),
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}

func newTestClient(srv *httptest.Server) *Client {
	return New(config.ClientConfig{BaseURL: srv.URL + "/", TimeoutSecs: 5})
}

func TestSubmitComparison_SendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/compare/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, []string{"Apple", "Meta", "Tesla"}, r.MultipartForm.Value["entities"])
		assert.Equal(t, "valuation", r.FormValue("query"))

		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "a.pdf", files[0].Filename)
		assert.Equal(t, "b.txt", files[1].Filename)
		f, err := files[1].Open()
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "bravo", string(data))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"comparison_id":      "cmp-1",
			"comparison":         map[string]any{"valuation_metrics": map[string]any{"apple": map[string]any{"key_facts": map[string]any{"pe_ratio": map[string]any{"value": 28.5}}}}},
			"documents_analyzed": 2,
			"entities":           []string{"Apple", "Meta", "Tesla"},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	resp, err := c.SubmitComparison(context.Background(), []string{" Apple", "Meta", "Tesla "},
		[]model.Upload{upload("a.pdf", "alpha"), upload("b.txt", "bravo")}, " valuation ")
	require.NoError(t, err)
	assert.Equal(t, "cmp-1", resp.ComparisonID)
	assert.Equal(t, 2, resp.DocumentsAnalyzed)
	assert.NotNil(t, resp.Comparison.Metric(model.CategoryValuationMetrics, "Apple", "pe_ratio"))
}

func TestSubmitComparison_ValidationMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.SubmitComparison(context.Background(), []string{"Apple", ""}, nil, "")
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Problems, "Entity 2 name is required")
	assert.Contains(t, ve.Problems, "No files uploaded")
	assert.Zero(t, calls.Load())
}

func TestSubmitComparison_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"Comparison failed: boom"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.SubmitComparison(context.Background(), []string{"Apple", "Meta"}, []model.Upload{upload("a.txt", "x")}, "")
	require.Error(t, err)

	var se *SubmitError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, "Unable to reach the comparison service. Please verify the backend is running at "+srv.URL+". HTTP 500: Comparison failed: boom", err.Error())
}

func TestSubmitComparison_PlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).SubmitComparison(context.Background(), []string{"Apple", "Meta"}, []model.Upload{upload("a.txt", "x")}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502: bad gateway")
}

func TestSubmitComparison_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := New(config.ClientConfig{BaseURL: base, TimeoutSecs: 2})
	_, err := c.SubmitComparison(context.Background(), []string{"Apple", "Meta"}, []model.Upload{upload("a.txt", "x")}, "")
	require.Error(t, err)

	var se *SubmitError
	require.True(t, errors.As(err, &se))
	assert.Zero(t, se.Status)
	assert.True(t, strings.HasPrefix(err.Error(), "Unable to reach the comparison service. Please verify the backend is running at "+base+"."))
	assert.NotNil(t, errors.Unwrap(se))
}

func TestSubmitComparison_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(config.ClientConfig{BaseURL: srv.URL, TimeoutSecs: 5}, WithTimeout(50*time.Millisecond))
	_, err := c.SubmitComparison(context.Background(), []string{"Apple", "Meta"}, []model.Upload{upload("a.txt", "x")}, "")
	require.Error(t, err)

	var se *SubmitError
	assert.True(t, errors.As(err, &se))
}

func TestSubmitComparison_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json")) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := newTestClient(srv).SubmitComparison(context.Background(), []string{"Apple", "Meta"}, []model.Upload{upload("a.txt", "x")}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid response")
}

func TestGetComparison(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/results/cmp-1":
			w.Write([]byte(`{"comparison_id":"cmp-1","comparison":{},"documents_analyzed":1,"entities":["Apple","Meta"]}`)) //nolint:errcheck
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Result not found"}`)) //nolint:errcheck
		}
	}))
	defer srv.Close()

	c := newTestClient(srv)
	resp, err := c.GetComparison(context.Background(), "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple", "Meta"}, resp.Entities)

	_, err = c.GetComparison(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListComparisons(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/results", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`[{"id":"cmp-1","entities":["Apple","Meta"],"documents_analyzed":2,"created_at":"2025-01-02T03:04:05Z"}]`)) //nolint:errcheck
	}))
	defer srv.Close()

	list, err := newTestClient(srv).ListComparisons(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "cmp-1", list[0].ID)
	assert.Equal(t, 2, list[0].DocumentsAnalyzed)
}

func TestNew_Defaults(t *testing.T) {
	c := New(config.ClientConfig{BaseURL: "http://localhost:8000/"})
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
	assert.Equal(t, 120*time.Second, c.http.Timeout)
}
