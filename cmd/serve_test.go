package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, withUI bool) *httptest.Server {
	t.Helper()
	useTestConfig(t)

	env, err := initApp(context.Background(), "serve")
	require.NoError(t, err)
	t.Cleanup(env.Close)

	srv, ui, err := buildServer(env, cfg.Server.Port, withUI)
	require.NoError(t, err)
	assert.Equal(t, withUI, ui != nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestBuildServer_Health(t *testing.T) {
	ts := newTestServer(t, true)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestBuildServer_MountsUI(t *testing.T) {
	ts := newTestServer(t, true)

	resp, err := http.Get(ts.URL + "/ui/")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `id="submit"`)
}

func TestBuildServer_NoUI(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/ui/")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBuildServer_EmptyResults(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/results")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(body))
}

func TestInitApp_ServeRequiresPort(t *testing.T) {
	useTestConfig(t)
	cfg.Server.Port = 0

	_, err := initApp(context.Background(), "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}
