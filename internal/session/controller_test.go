package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl-compare/hl-compare/internal/evidence"
	"github.com/hl-compare/hl-compare/internal/model"
)

func upload(name string) model.Upload {
	return model.Upload{
		Filename: name,
		Size:     4,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("data")), nil
		},
	}
}

func validForm() Form {
	return Form{
		Entities: []string{" Apple Inc. ", "Meta Platforms Inc."},
		Files:    []model.Upload{upload("apple.pdf")},
	}
}

func sampleResponse(t *testing.T) *model.CompareResponse {
	t.Helper()
	var resp model.CompareResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"comparison": {"valuation_metrics": {
			"apple inc.": {"key_facts": {"pe_ratio": {"value": 15, "evidence": {"filename": "apple.pdf", "download_url": "/files/apple.pdf"}}}},
			"meta platforms inc.": {"key_facts": {"pe_ratio": {"value": 22}}}
		}},
		"documents_analyzed": 1,
		"entities": ["Apple Inc.", "Meta Platforms Inc."]
	}`), &resp))
	return &resp
}

func TestSubmitValidationSkipsSubmitter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := NewController(SubmitterFunc(func(context.Context, []string, []model.Upload, string) (*model.CompareResponse, error) {
		calls.Add(1)
		return nil, nil
	}))

	err := c.Submit(context.Background(), Form{Entities: []string{"Apple", ""}})
	require.Error(t, err)
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, int32(0), calls.Load())

	st := c.State()
	assert.Contains(t, st.Validation, "Entity 2 name is required")
	assert.Contains(t, st.Validation, "No files uploaded")
	assert.False(t, st.Loading)
}

func TestSubmitSuccess(t *testing.T) {
	t.Parallel()

	resp := sampleResponse(t)
	var gotEntities []string
	c := NewController(SubmitterFunc(func(_ context.Context, entities []string, files []model.Upload, query string) (*model.CompareResponse, error) {
		gotEntities = entities
		assert.Len(t, files, 1)
		assert.Empty(t, query)
		return resp, nil
	}))

	require.NoError(t, c.Submit(context.Background(), validForm()))
	assert.Equal(t, []string{"Apple Inc.", "Meta Platforms Inc."}, gotEntities)

	st := c.State()
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
	assert.True(t, st.HasResult())
	assert.Equal(t, model.CategoryValuationMetrics, st.Selected)

	tbl := c.Table()
	assert.Equal(t, []string{"Apple Inc.", "Meta Platforms Inc."}, tbl.Entities)
}

func TestSubmitFailureClearsResult(t *testing.T) {
	t.Parallel()

	resp := sampleResponse(t)
	fail := false
	c := NewController(SubmitterFunc(func(context.Context, []string, []model.Upload, string) (*model.CompareResponse, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return resp, nil
	}))

	require.NoError(t, c.Submit(context.Background(), validForm()))
	fail = true
	require.Error(t, c.Submit(context.Background(), validForm()))

	st := c.State()
	assert.False(t, st.Loading)
	assert.Nil(t, st.Result)
	assert.True(t, strings.HasPrefix(st.Error, "Unable to reach the comparison service."))
	assert.Contains(t, st.Error, "connection refused")
}

func TestSubmitSingleInFlight(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	resp := sampleResponse(t)
	c := NewController(SubmitterFunc(func(context.Context, []string, []model.Upload, string) (*model.CompareResponse, error) {
		close(started)
		<-release
		return resp, nil
	}))

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), validForm()) }()
	<-started

	st := c.State()
	assert.True(t, st.Loading)
	assert.Nil(t, st.Result)
	assert.Empty(t, st.Error)
	assert.False(t, c.CanSubmit(validForm()))

	assert.ErrorIs(t, c.Submit(context.Background(), validForm()), ErrInFlight)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("submission did not finish")
	}

	st = c.State()
	assert.False(t, st.Loading)
	assert.NotNil(t, st.Result)
	assert.True(t, c.CanSubmit(validForm()))
}

func TestSubmitInFlightKeepsForm(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	c := NewController(SubmitterFunc(func(context.Context, []string, []model.Upload, string) (*model.CompareResponse, error) {
		close(started)
		<-release
		return nil, nil
	}))

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), validForm()) }()
	<-started

	err := c.Submit(context.Background(), Form{Entities: []string{"Apple", ""}})
	assert.ErrorIs(t, err, ErrInFlight)

	st := c.State()
	assert.Equal(t, validForm().Entities, st.Form.Entities)
	assert.Empty(t, st.Validation)
	assert.True(t, st.Loading)

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("submission did not finish")
	}
}

func TestCanSubmit(t *testing.T) {
	t.Parallel()
	c := NewController(nil)
	assert.False(t, c.CanSubmit(NewForm()))
	assert.True(t, c.CanSubmit(validForm()))
}

func TestEvidenceFlow(t *testing.T) {
	t.Parallel()

	resp := sampleResponse(t)
	c := NewController(SubmitterFunc(func(context.Context, []string, []model.Upload, string) (*model.CompareResponse, error) {
		return resp, nil
	}))
	require.NoError(t, c.Submit(context.Background(), validForm()))

	ok := c.OpenEvidence(context.Background(), evidence.Ref{
		Category: model.CategoryValuationMetrics, Entity: "Meta Platforms Inc.", Metric: "pe_ratio",
	}, nil)
	assert.False(t, ok, "metric without evidence stays closed")
	_, open := c.Evidence()
	assert.False(t, open)

	ok = c.OpenEvidence(context.Background(), evidence.Ref{
		Category: model.CategoryValuationMetrics, Entity: "apple inc.", Metric: "pe_ratio",
	}, nil)
	require.True(t, ok)
	v, open := c.Evidence()
	assert.True(t, open)
	assert.Equal(t, "apple.pdf", v.Filename)
	assert.True(t, v.Preview)
	require.NotNil(t, c.State().Evidence)

	c.CloseEvidence()
	_, open = c.Evidence()
	assert.False(t, open)
	assert.Nil(t, c.State().Evidence)
}

func TestToggleAndSelect(t *testing.T) {
	t.Parallel()

	c := NewController(nil)
	c.Toggle(model.CategoryRiskFactors)
	c.Toggle(model.CategoryESGFactors)
	c.Toggle("bogus")
	assert.Equal(t, []string{"risk_factors", "esg_factors"}, c.State().Open.Keys())

	items := c.Accordion()
	assert.True(t, items[4].Open)
	assert.True(t, items[7].Open)
	assert.False(t, items[1].Open)

	assert.True(t, c.Select(model.CategoryGrowthDrivers))
	assert.False(t, c.Select("bogus"))
	assert.Equal(t, model.CategoryGrowthDrivers, c.State().Selected)
}

func TestFormEditing(t *testing.T) {
	t.Parallel()

	f := NewForm()
	assert.Len(t, f.Entities, 2)
	f = f.RemoveEntity(0)
	assert.Len(t, f.Entities, 2, "minimum two fields")

	f = f.AddEntity().SetEntity(2, "Google")
	assert.Equal(t, []string{"", "", "Google"}, f.Entities)
	f = f.RemoveEntity(0)
	assert.Equal(t, []string{"", "Google"}, f.Entities)
}

func TestStateIsSerializable(t *testing.T) {
	t.Parallel()

	c := NewController(nil)
	c.Toggle(model.CategoryRiskFactors)
	b, err := json.Marshal(c.State())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"risk_factors":true`)
}

func TestUserMessage(t *testing.T) {
	t.Parallel()
	assert.Empty(t, UserMessage(nil))
	msg := "Unable to reach the comparison service. Please verify the backend is running at http://x. boom"
	assert.Equal(t, msg, UserMessage(errors.New(msg)))
	assert.Equal(t, ReachabilityGuidance+" boom", UserMessage(errors.New("boom")))
}
