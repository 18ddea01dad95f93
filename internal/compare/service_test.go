package compare

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl-compare/hl-compare/internal/analysis"
	"github.com/hl-compare/hl-compare/internal/blob"
	"github.com/hl-compare/hl-compare/internal/config"
	"github.com/hl-compare/hl-compare/internal/extract"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/store"
)

const appleMetaText = "Apple Inc. trades at a P/E ratio of 28.5 with a market cap of $2.5 trillion.\n" +
	"Meta Platforms has a P/E ratio of 22.1 and a market cap of $1.2 trillion.\n" +
	"Apple's ROE is 147% while Meta's is 33%.\n"

type fixture struct {
	svc     *Service
	blobDir string
	store   *store.SQLiteStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	blobs, err := blob.NewLocal(filepath.Join(dir, "uploads"), "/files")
	require.NoError(t, err)

	st, err := store.NewSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	ex, err := extract.New(config.ExtractConfig{PDFProvider: "native"})
	require.NoError(t, err)

	svc := New(blobs, st, ex, analysis.New(config.AnalysisConfig{}), 2)
	svc.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	return fixture{svc: svc, blobDir: blobs.Dir(), store: st}
}

func textUpload(name, body string) model.Upload {
	return model.Upload{
		Filename: name,
		Size:     int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func TestCompare_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Compare(ctx, Request{
		Entities: []string{" Apple ", "Meta"},
		Files: []model.Upload{
			textUpload("apple_meta_analyst_research.txt", appleMetaText),
			textUpload("notes.txt", "Meta\n\nSector: Communication Services\nBeta: 1.25\n"),
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ComparisonID)
	assert.Equal(t, []string{"Apple", "Meta"}, resp.Entities)
	assert.Equal(t, 2, resp.DocumentsAnalyzed)
	assert.Equal(t, DefaultQuery, resp.Query)
	assert.Equal(t, time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC), resp.GeneratedAt)

	pe := resp.Comparison.Metric(model.CategoryValuationMetrics, "Apple", "pe_ratio")
	require.NotNil(t, pe)
	v, ok := pe.Value.Float()
	require.True(t, ok)
	assert.Equal(t, 28.5, v)
	require.NotNil(t, pe.Evidence)
	require.NotNil(t, pe.Evidence.DownloadURL)
	assert.True(t, strings.HasPrefix(*pe.Evidence.DownloadURL, "/files/"))

	require.Len(t, resp.Documents, 2)
	assert.Equal(t, "apple_meta_analyst_research.txt", resp.Documents[0].Filename)
	assert.Equal(t, int64(len(appleMetaText)), resp.Documents[0].Size)
	assert.Equal(t, 1, resp.Documents[0].Pages)
	assert.NotEmpty(t, resp.Documents[0].QualityRating)

	entries, err := os.ReadDir(f.blobDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	stored, err := f.svc.Get(ctx, resp.ComparisonID)
	require.NoError(t, err)
	assert.Equal(t, resp.ComparisonID, stored.ComparisonID)
	assert.NotNil(t, stored.Comparison.Metric(model.CategoryFinancialPerformance, "apple", "roe"))

	list, err := f.svc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, resp.ComparisonID, list[0].ID)
}

func TestCompare_StoredBytesMatchUpload(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Compare(context.Background(), Request{
		Entities: []string{"Apple", "Meta"},
		Files:    []model.Upload{textUpload("apple.txt", appleMetaText)},
		Query:    "valuation",
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(f.blobDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_apple.txt"))

	data, err := os.ReadFile(filepath.Join(f.blobDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, appleMetaText, string(data))
}

func TestCompare_ValidationSkipsWork(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		problem string
	}{
		{
			name:    "one entity",
			req:     Request{Entities: []string{"Apple"}, Files: []model.Upload{textUpload("a.txt", "x")}},
			problem: "At least two entities must be specified",
		},
		{
			name:    "blank entity",
			req:     Request{Entities: []string{"Apple", "  "}, Files: []model.Upload{textUpload("a.txt", "x")}},
			problem: "Entity 2 name is required",
		},
		{
			name:    "no files",
			req:     Request{Entities: []string{"Apple", "Meta"}},
			problem: "No files uploaded",
		},
		{
			name:    "bad extension",
			req:     Request{Entities: []string{"Apple", "Meta"}, Files: []model.Upload{textUpload("deck.pptx", "x")}},
			problem: "Unsupported file type: deck.pptx",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Compare(context.Background(), tt.req)
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Contains(t, ve.Problems, tt.problem)

			list, err := f.svc.List(context.Background(), 10)
			require.NoError(t, err)
			assert.Empty(t, list)
			entries, err := os.ReadDir(f.blobDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestCompare_UploadOpenFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Compare(context.Background(), Request{
		Entities: []string{"Apple", "Meta"},
		Files: []model.Upload{{
			Filename: "a.txt",
			Open:     func() (io.ReadCloser, error) { return nil, errors.New("gone") },
		}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `compare: open upload "a.txt"`)
}

func TestCompare_UnreadableDocumentStillCompletes(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Compare(context.Background(), Request{
		Entities: []string{"Apple", "Meta"},
		Files: []model.Upload{
			textUpload("broken.pdf", "not a pdf"),
			textUpload("apple.txt", appleMetaText),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.DocumentsAnalyzed)
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, 0, resp.Documents[0].Characters)
	assert.NotNil(t, resp.Comparison.Metric(model.CategoryValuationMetrics, "Meta", "pe_ratio"))
}

func TestSubmit_DelegatesToCompare(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Submit(context.Background(), []string{"Apple", "Meta"},
		[]model.Upload{textUpload("apple.txt", appleMetaText)}, "  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultQuery, resp.Query)
	assert.NotEmpty(t, resp.ComparisonID)
}

func TestSummarize(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.Summarize(context.Background(), []model.Upload{
		textUpload("apple_10k_annual.txt", appleMetaText),
		textUpload("notes.csv", "Company,Beta\nApple,1.2\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.DocumentsProcessed)
	require.Len(t, out.Summaries, 2)
	assert.Equal(t, "apple_10k_annual.txt", out.Summaries[0].Filename)
	assert.Greater(t, out.Summaries[0].Characters, 0)
	assert.Equal(t, 2, out.Overall.DocumentCount)

	entries, err := os.ReadDir(f.blobDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "summaries are not persisted")
}

func TestSummarize_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Summarize(context.Background(), nil)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"No files uploaded"}, ve.Problems)

	_, err = f.svc.Summarize(context.Background(), []model.Upload{textUpload("x.exe", "")})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"Unsupported file type: x.exe"}, ve.Problems)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUploadNames(t *testing.T) {
	names := uploadNames([]model.Upload{textUpload("b.pdf", "x"), textUpload("a.csv", "y")})
	assert.Equal(t, []string{"b.pdf", "a.csv"}, names)
	assert.Empty(t, uploadNames(nil))
}
