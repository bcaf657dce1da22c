package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/obstetric-locator/internal/application/services"
)

// HealthChecker reports the state of the served table.
type HealthChecker interface {
	Health(ctx context.Context) services.HealthReport
}

// SnapshotReporter names the override source currently loaded.
type SnapshotReporter interface {
	SnapshotUsed() string
}

// VersionInfo is the body of the version endpoint.
type VersionInfo struct {
	Version           string `json:"version"`
	Commit            string `json:"commit"`
	BuildTime         string `json:"build_time"`
	Snapshot          string `json:"snapshot"`
	OverridesSnapshot string `json:"overrides_snapshot"`
}

// HealthHandler serves liveness and version metadata.
type HealthHandler struct {
	checker   HealthChecker
	overrides SnapshotReporter
	version   VersionInfo
}

// NewHealthHandler creates the handler. overrides may be nil.
func NewHealthHandler(checker HealthChecker, overrides SnapshotReporter, version VersionInfo) *HealthHandler {
	return &HealthHandler{checker: checker, overrides: overrides, version: version}
}

// Health handles GET /facilities/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.checker.Health(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	respondWithJSON(w, status, report)
}

// Version handles GET /version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	info := h.version
	if h.overrides != nil {
		info.OverridesSnapshot = h.overrides.SnapshotUsed()
	}
	respondWithJSON(w, http.StatusOK, info)
}
