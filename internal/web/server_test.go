package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainops/launchgate/internal/domain"
	"github.com/chainops/launchgate/internal/telemetry"
)

func newTestServer(t *testing.T) (*Server, string, string) {
	t.Helper()
	root := t.TempDir()
	outDir := filepath.Join(root, "out")
	cacheDir := filepath.Join(root, "cache")
	srv := NewServer(DefaultServerConfig(), outDir, cacheDir, telemetry.NewMetrics())
	return srv, outDir, cacheDir
}

func writeSummary(t *testing.T, outDir, date string, rec domain.Recommendation) {
	t.Helper()
	dir := filepath.Join(outDir, "decisions", date)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.json"), raw, 0o644))
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestLatestDecisionPicksNewestDate(t *testing.T) {
	srv, outDir, _ := newTestServer(t)
	writeSummary(t, outDir, "2026-08-20", domain.Recommendation{RunID: "old", Action: domain.ActionProceed, GeneratedAt: time.Now().UTC()})
	writeSummary(t, outDir, "2026-08-25", domain.Recommendation{RunID: "new", Action: domain.ActionProceedCaution, GeneratedAt: time.Now().UTC()})

	rr := get(t, srv, "/decisions/latest")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Date           string                `json:"date"`
		Recommendation domain.Recommendation `json:"recommendation"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "2026-08-25", body.Date)
	assert.Equal(t, "new", body.Recommendation.RunID)
}

func TestLatestDecisionEmpty(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := get(t, srv, "/decisions/latest")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDecisionByDateValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/decisions/not-a-date").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/decisions/2026-01-01").Code)
}

func TestListArtifacts(t *testing.T) {
	srv, _, cacheDir := newTestServer(t)
	dir := filepath.Join(cacheDir, "gas")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gas_genesis-drop_h168_20260826.csv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gas_genesis-drop_h168_20260826.meta.json"), []byte("{}"), 0o644))

	rr := get(t, srv, "/artifacts/gas")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Pillar    string   `json:"pillar"`
		Artifacts []string `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, []string{"gas_genesis-drop_h168_20260826.csv"}, body.Artifacts)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/artifacts/nope").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := get(t, srv, "/runs")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
