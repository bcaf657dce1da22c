package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/obstetric-locator/internal/application/services"
	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/overrides"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

// OverridesAdmin is the management side of the override store.
type OverridesAdmin interface {
	Coverage() overrides.Coverage
	Boot(ctx context.Context, snapshot string, force bool) (overrides.Coverage, error)
}

// TableReloader drops the table caches and rereads the table.
type TableReloader interface {
	Reload(ctx context.Context) (*services.ReloadResult, error)
}

// AdminHandler serves the token-gated debug endpoints.
type AdminHandler struct {
	overrides OverridesAdmin
	tables    TableReloader
	sync      DatasetAnnouncer
}

// NewAdminHandler creates a new admin handler. sync may be nil.
func NewAdminHandler(overrides OverridesAdmin, tables TableReloader, sync DatasetAnnouncer) *AdminHandler {
	return &AdminHandler{overrides: overrides, tables: tables, sync: sync}
}

// OverridesCoverage handles GET /debug/overrides/coverage
func (h *AdminHandler) OverridesCoverage(w http.ResponseWriter, r *http.Request) {
	if h.overrides == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("overrides are not configured"))
		return
	}
	respondWithJSON(w, http.StatusOK, h.overrides.Coverage())
}

// RefreshOverrides handles POST /debug/overrides/refresh. An optional
// snapshot query parameter switches the source.
func (h *AdminHandler) RefreshOverrides(w http.ResponseWriter, r *http.Request) {
	if h.overrides == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("overrides are not configured"))
		return
	}
	snapshot := strings.TrimSpace(r.URL.Query().Get("snapshot"))
	coverage, err := h.overrides.Boot(r.Context(), snapshot, true)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if h.sync != nil {
		h.sync.Announce(r.Context(), entities.DatasetEventOverridesRefresh, coverage.Snapshot)
	}
	respondWithJSON(w, http.StatusOK, coverage)
}

// RefreshGeo handles POST /debug/geo/refresh
func (h *AdminHandler) RefreshGeo(w http.ResponseWriter, r *http.Request) {
	result, err := h.tables.Reload(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if h.sync != nil {
		h.sync.Announce(r.Context(), entities.DatasetEventReload, result.Source)
	}
	respondWithJSON(w, http.StatusOK, result)
}
