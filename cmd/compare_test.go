package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl-compare/hl-compare/internal/config"
	"github.com/hl-compare/hl-compare/internal/model"
)

const appleMetaText = "Apple Inc. trades at a P/E ratio of 28.5 with a market cap of $2.5 trillion.\n" +
	"Meta Platforms has a P/E ratio of 22.1 and a market cap of $1.2 trillion.\n"

// useTestConfig points the global config at a temp SQLite database and
// upload directory for the duration of the test.
func useTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	oldCfg := cfg
	t.Cleanup(func() { cfg = oldCfg })

	cfg = &config.Config{
		Server: config.ServerConfig{
			Port:             8000,
			CORSOrigins:      []string{"http://localhost:3000"},
			MaxUploadMB:      5,
			SubmitRatePerMin: 30,
			SubmitBurst:      5,
		},
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "test.db")},
		Storage: config.StorageConfig{
			Provider: "local",
			Dir:      filepath.Join(dir, "uploads"),
			BaseURL:  "/files",
		},
		Extract:  config.ExtractConfig{PDFProvider: "native", MaxConcurrency: 2},
		Analysis: config.AnalysisConfig{MaxSentences: 3, ExcerptMaxChars: 280},
		Client:   config.ClientConfig{BaseURL: "http://localhost:8000", TimeoutSecs: 5},
		Log:      config.LogConfig{Level: "info", Format: "console"},
	}
	return dir
}

func writeDoc(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

// seedComparison runs one in-process comparison and returns it.
func seedComparison(t *testing.T, dir string) *model.CompareResponse {
	t.Helper()
	ctx := context.Background()

	env, err := initApp(ctx, "compare")
	require.NoError(t, err)
	defer env.Close()

	uploads, err := fileUploads([]string{writeDoc(t, dir, "apple_meta_research.txt", appleMetaText)})
	require.NoError(t, err)

	resp, err := runComparison(ctx, env.Service, []string{"Apple", "Meta"}, uploads, "")
	require.NoError(t, err)
	return resp
}

func TestRunComparison_InProcess(t *testing.T) {
	dir := useTestConfig(t)

	resp := seedComparison(t, dir)
	assert.NotEmpty(t, resp.ComparisonID)
	assert.Equal(t, []string{"Apple", "Meta"}, resp.Entities)
	assert.Equal(t, 1, resp.DocumentsAnalyzed)

	pe := resp.Comparison.Metric(model.CategoryValuationMetrics, "Apple", "pe_ratio")
	require.NotNil(t, pe)
	v, ok := pe.Value.Float()
	require.True(t, ok)
	assert.Equal(t, 28.5, v)

	// The upload is kept in the local blob directory.
	entries, err := os.ReadDir(cfg.Storage.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunComparison_ValidationError(t *testing.T) {
	dir := useTestConfig(t)
	ctx := context.Background()

	env, err := initApp(ctx, "compare")
	require.NoError(t, err)
	defer env.Close()

	uploads, err := fileUploads([]string{writeDoc(t, dir, "notes.txt", "x")})
	require.NoError(t, err)

	_, err = runComparison(ctx, env.Service, []string{"Apple"}, uploads, "")
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.Problems)
}

func TestInitApp_InvalidConfig(t *testing.T) {
	useTestConfig(t)
	cfg.Store.Driver = "mysql"

	_, err := initApp(context.Background(), "compare")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql" is not supported`)
}

func TestFileUploads(t *testing.T) {
	dir := t.TempDir()
	p := writeDoc(t, dir, "a.txt", "hello")

	uploads, err := fileUploads([]string{p})
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "a.txt", uploads[0].Filename)
	assert.Equal(t, int64(5), uploads[0].Size)

	rc, err := uploads[0].Open()
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck
	var buf bytes.Buffer
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())
}

func TestFileUploads_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := fileUploads([]string{filepath.Join(dir, "missing.pdf")})
	require.Error(t, err)

	_, err = fileUploads([]string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestPrintComparison(t *testing.T) {
	dir := useTestConfig(t)
	resp := seedComparison(t, dir)

	var buf bytes.Buffer
	require.NoError(t, printComparison(&buf, resp, ""))
	out := buf.String()

	assert.Contains(t, out, "Entities:       Apple, Meta")
	assert.Contains(t, out, "== Valuation Metrics ==")
	assert.Contains(t, out, "== Investment Thesis ==")
	assert.Contains(t, out, "P/E Ratio")
	assert.Contains(t, out, "28.5")
}

func TestPrintComparison_SingleCategory(t *testing.T) {
	dir := useTestConfig(t)
	resp := seedComparison(t, dir)

	var buf bytes.Buffer
	require.NoError(t, printComparison(&buf, resp, "valuation_metrics"))
	assert.Contains(t, buf.String(), "== Valuation Metrics ==")
	assert.NotContains(t, buf.String(), "== Risk Factors ==")

	err := printComparison(&buf, resp, "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown category "bogus"`)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 10))
	assert.Equal(t, "abcdefg...", truncateText("abcdefghijklmnop", 10))
}
