package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensampa/outage-map/internal/domain"
	"github.com/opensampa/outage-map/internal/observability"
	"github.com/opensampa/outage-map/internal/service"
	"github.com/opensampa/outage-map/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := domain.NewResolver(domain.SaoPauloTable(), nil, nil, logger)
	st := store.New(time.Hour, 30*time.Second, clockwork.NewFakeClock())
	svc := service.New(resolver, st, nil, nil, logger, observability.NewMetricsForTesting())
	return NewServer(":0", svc, logger)
}

func doRequest(t *testing.T, srv *Server, method, path, body, session string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestServer_SubmitReport(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/reports", `{"cep": "01310-930", "incident_type": "no_power"}`, "s1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "01310930", report.CEP)
	assert.Equal(t, "Bela Vista", report.District)
	assert.Equal(t, "Centro", report.Zone)
	assert.Equal(t, domain.NoPower, report.IncidentType)
	assert.NotEmpty(t, report.ID)
}

func TestServer_SubmitReportErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"malformed json", `{"cep": `, http.StatusBadRequest},
		{"invalid cep", `{"cep": "123", "incident_type": "no_power"}`, http.StatusBadRequest},
		{"invalid incident type", `{"cep": "01310930", "incident_type": "no_gas"}`, http.StatusBadRequest},
		{"no coverage", `{"cep": "99999999", "incident_type": "no_power"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			rec := doRequest(t, srv, http.MethodPost, "/api/reports", tt.body, "s1")
			assert.Equal(t, tt.wantCode, rec.Code)

			var payload map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
			assert.NotEmpty(t, payload["error"])
		})
	}
}

func TestServer_SubmitReportRateLimited(t *testing.T) {
	srv := newTestServer(t)
	body := `{"cep": "01310930", "incident_type": "no_power"}`

	rec := doRequest(t, srv, http.MethodPost, "/api/reports", body, "same-session")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/reports", body, "same-session")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different session is still accepted.
	rec = doRequest(t, srv, http.MethodPost, "/api/reports", body, "other-session")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestServer_SessionFallsBackToRemoteHost(t *testing.T) {
	srv := newTestServer(t)
	body := `{"cep": "01310930", "incident_type": "no_power"}`

	// httptest requests share a RemoteAddr, so without a session header the
	// second submission trips the per-host limit.
	rec := doRequest(t, srv, http.MethodPost, "/api/reports", body, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(t, srv, http.MethodPost, "/api/reports", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestServer_Districts(t *testing.T) {
	srv := newTestServer(t)

	doRequest(t, srv, http.MethodPost, "/api/reports", `{"cep": "01310930", "incident_type": "no_power"}`, "s1")
	doRequest(t, srv, http.MethodPost, "/api/reports", `{"cep": "02100000", "incident_type": "no_water"}`, "s2")

	rec := doRequest(t, srv, http.MethodGet, "/api/districts", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Districts []store.DistrictCount `json:"districts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Districts, 2)
	assert.Equal(t, "Bela Vista", payload.Districts[0].District)
	assert.Equal(t, "Santana", payload.Districts[1].District)
}

func TestServer_Choropleth(t *testing.T) {
	srv := newTestServer(t)
	doRequest(t, srv, http.MethodPost, "/api/reports", `{"cep": "01310930", "incident_type": "no_power"}`, "s1")

	rec := doRequest(t, srv, http.MethodGet, "/api/choropleth", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Point", fc.Features[0].Geometry.Type)
	assert.Equal(t, "Bela Vista", fc.Features[0].Properties["district"])
}

func TestServer_HealthAndReadiness(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/reports", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
