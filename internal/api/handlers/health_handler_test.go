package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/obstetric-locator/internal/api/handlers"
	"github.com/zatekoja/obstetric-locator/internal/application/services"
)

type fixedHealth services.HealthReport

func (f fixedHealth) Health(context.Context) services.HealthReport {
	return services.HealthReport(f)
}

type fixedSnapshot string

func (f fixedSnapshot) SnapshotUsed() string { return string(f) }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		report     services.HealthReport
		wantStatus int
	}{
		{
			name:       "ok",
			report:     services.HealthReport{Status: "ok", Count: 1200, Source: "/data/establishments.parquet", AgeHours: 3.5},
			wantStatus: http.StatusOK,
		},
		{
			name:       "degraded",
			report:     services.HealthReport{Status: "degraded", Reasons: []string{"count 0 below minimum 1"}},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.NewHealthHandler(fixedHealth(tt.report), nil, handlers.VersionInfo{})

			rec := httptest.NewRecorder()
			handler.Health(rec, httptest.NewRequest(http.MethodGet, "/api/v1/facilities/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body services.HealthReport
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.report.Status, body.Status)
			assert.Equal(t, tt.report.Reasons, body.Reasons)
		})
	}
}

func TestHealthHandler_Version(t *testing.T) {
	handler := handlers.NewHealthHandler(
		fixedHealth{Status: "ok"},
		fixedSnapshot("/data/raw/tbEstabelecimento202403.csv"),
		handlers.VersionInfo{Version: "1.4.0", Commit: "a1b2c3d", BuildTime: "2026-03-01T00:00:00Z", Snapshot: "202403"},
	)

	rec := httptest.NewRecorder()
	handler.Version(rec, httptest.NewRequest(http.MethodGet, "/api/v1/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"version": "1.4.0",
		"commit": "a1b2c3d",
		"build_time": "2026-03-01T00:00:00Z",
		"snapshot": "202403",
		"overrides_snapshot": "/data/raw/tbEstabelecimento202403.csv"
	}`, rec.Body.String())
}
