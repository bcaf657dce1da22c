package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/obstetric-locator/internal/api/handlers"
	"github.com/zatekoja/obstetric-locator/internal/api/middleware"
	"github.com/zatekoja/obstetric-locator/internal/api/routes"
	"github.com/zatekoja/obstetric-locator/internal/application/services"
	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/overrides"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

type stubService struct {
	reloads atomic.Int32
}

func (s *stubService) Search(_ context.Context, q entities.SearchQuery) (*entities.SearchOutcome, error) {
	return &entities.SearchOutcome{
		Response: entities.SearchResponse{
			Results:         []entities.Facility{},
			NearbyConfirmed: []entities.FacilityLite{},
			Banner192:       true,
			GeneratedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		Meta: entities.SearchMeta{
			Source:   "/data/establishments_hot.parquet",
			Mtime:    time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC),
			Count:    0,
			QueryLat: q.Lat,
			QueryLon: q.Lon,
			RadiusKm: q.RadiusKm,
		},
	}, nil
}

func (s *stubService) Reload(context.Context) (*services.ReloadResult, error) {
	s.reloads.Add(1)
	return &services.ReloadResult{Count: 0, Source: "/data/establishments_hot.parquet"}, nil
}

func (s *stubService) GetEstablishment(_ context.Context, id string) (*entities.Facility, error) {
	if id != "2077485" {
		return nil, apperrors.NewNotFoundError("establishment not found")
	}
	return &entities.Facility{CNESID: id, Convenios: []string{}}, nil
}

func (s *stubService) GetEvidence(context.Context, string) ([]entities.Evidence, error) {
	return []entities.Evidence{}, nil
}

func (s *stubService) Health(context.Context) services.HealthReport {
	return services.HealthReport{Status: "ok", Count: 1}
}

type stubOverrides struct{}

func (stubOverrides) Coverage() overrides.Coverage { return overrides.Coverage{Count: 7} }

func (stubOverrides) Boot(context.Context, string, bool) (overrides.Coverage, error) {
	return overrides.Coverage{Count: 8}, nil
}

func (stubOverrides) SnapshotUsed() string { return "" }

func newTestServer(t *testing.T, adminToken string) (*httptest.Server, *stubService) {
	t.Helper()
	svc := &stubService{}
	router := routes.NewRouter(
		handlers.NewEmergencyHandler(svc, nil),
		handlers.NewEstablishmentHandler(svc),
		handlers.NewHealthHandler(svc, stubOverrides{}, handlers.VersionInfo{Version: "test"}),
		handlers.NewAdminHandler(stubOverrides{}, svc, nil),
		routes.RouterOptions{AdminToken: adminToken},
	)
	server := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(server.Close)
	return server, svc
}

func do(t *testing.T, method, url string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRouter_SearchCarriesDataHeaders(t *testing.T) {
	server, _ := newTestServer(t, "")

	resp := do(t, http.MethodGet, server.URL+routes.APIPrefix+"/emergency/search?lat=-23.5&lon=-46.6", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/data/establishments_hot.parquet", resp.Header.Get(handlers.HeaderDataSource))
	assert.Equal(t, "2026-02-28T23:00:00Z", resp.Header.Get(handlers.HeaderDataMtime))
	assert.Equal(t, "0", resp.Header.Get(handlers.HeaderDataCount))
	assert.Equal(t, "25", resp.Header.Get(handlers.HeaderQueryRadius))
	assert.Equal(t, "private, no-cache", resp.Header.Get("Cache-Control"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["banner_192"])
}

func TestRouter_PublicEndpoints(t *testing.T) {
	server, svc := newTestServer(t, "")

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, routes.APIPrefix + "/version", http.StatusOK},
		{http.MethodGet, routes.APIPrefix + "/facilities/health", http.StatusOK},
		{http.MethodGet, routes.APIPrefix + "/establishments/2077485", http.StatusOK},
		{http.MethodGet, routes.APIPrefix + "/establishments/9999999", http.StatusNotFound},
		{http.MethodGet, routes.APIPrefix + "/establishments/2077485/evidence", http.StatusOK},
		{http.MethodPost, routes.APIPrefix + "/emergency/reload", http.StatusOK},
		{http.MethodGet, routes.APIPrefix + "/emergency/reload", http.StatusMethodNotAllowed},
		{http.MethodGet, routes.APIPrefix + "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := do(t, tt.method, server.URL+tt.path, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
	assert.Equal(t, int32(1), svc.reloads.Load())
}

func TestRouter_DebugEndpointsAreGated(t *testing.T) {
	t.Run("token unset", func(t *testing.T) {
		server, svc := newTestServer(t, "")
		resp := do(t, http.MethodPost, server.URL+routes.APIPrefix+"/debug/geo/refresh",
			map[string]string{middleware.AdminTokenHeader: ""})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Zero(t, svc.reloads.Load())
	})

	t.Run("token set", func(t *testing.T) {
		server, svc := newTestServer(t, "s3cret")
		header := map[string]string{middleware.AdminTokenHeader: "s3cret"}

		resp := do(t, http.MethodGet, server.URL+routes.APIPrefix+"/debug/overrides/coverage", header)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = do(t, http.MethodPost, server.URL+routes.APIPrefix+"/debug/overrides/refresh", header)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = do(t, http.MethodPost, server.URL+routes.APIPrefix+"/debug/geo/refresh", header)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(1), svc.reloads.Load())

		resp = do(t, http.MethodGet, server.URL+routes.APIPrefix+"/debug/overrides/coverage",
			map[string]string{middleware.AdminTokenHeader: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
