package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, settingsFile string) *Server {
	t.Helper()
	s, err := New(Config{
		Host:         "localhost",
		Port:         "0",
		DataDir:      t.TempDir(),
		SettingsFile: settingsFile,
		DisableDB:    true,
		Version:      "test",
		Log:          zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_ReadyWithDefaults(t *testing.T) {
	s := newTestServer(t, "")

	assert.True(t, s.Controller().Ready())
	rec := get(s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Values("Link"), `</api/v1/info>; rel="info"`)
}

func TestServer_SettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("heatmap:\n  show: true\n"), 0o644))

	s := newTestServer(t, path)

	assert.True(t, s.Controller().Settings().Heatmap.Show)
	st := s.Controller().State()
	assert.Contains(t, st.StyleOrder, "heatmap")
}

func TestServer_BadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("circle:\n  bogus: 1\n"), 0o644))

	_, err := New(Config{DataDir: t.TempDir(), SettingsFile: path, DisableDB: true, Log: zerolog.Nop()})
	assert.Error(t, err)
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t, "")

	rec := get(s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "geostyle_build_info"))
	assert.Contains(t, body, `version="test"`)
}

func TestServer_LayersActions(t *testing.T) {
	s := newTestServer(t, "")

	rec := get(s, "/api/v1/layers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Values("Link"), `</api/v1/layers/reorder>; rel="reorder"; method="POST"; title="Restack layers"`)
}

func TestServer_OpenAPI(t *testing.T) {
	s := newTestServer(t, "")
	oapi := s.OpenAPI()
	require.NotNil(t, oapi)
	assert.Contains(t, oapi.Paths, "/api/v1/settings")
	assert.Contains(t, oapi.Paths, "/api/v1/map/ops")
}
