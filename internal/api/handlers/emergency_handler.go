package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/obstetric-locator/internal/application/services"
	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

// Response headers describing the table that served a search.
const (
	HeaderDataSource  = "X-Data-Source"
	HeaderDataMtime   = "X-Data-Mtime"
	HeaderDataCount   = "X-Data-Count"
	HeaderQueryLat    = "X-Query-Lat"
	HeaderQueryLon    = "X-Query-Lon"
	HeaderQueryRadius = "X-Query-Radius"
)

// EmergencySearcher is the search side of EmergencySearchService.
type EmergencySearcher interface {
	Search(ctx context.Context, q entities.SearchQuery) (*entities.SearchOutcome, error)
	Reload(ctx context.Context) (*services.ReloadResult, error)
}

// DatasetAnnouncer tells the other replicas about a local reload or refresh.
type DatasetAnnouncer interface {
	Announce(ctx context.Context, eventType entities.DatasetEventType, source string)
}

// EmergencyHandler serves the emergency search and reload endpoints.
type EmergencyHandler struct {
	service EmergencySearcher
	sync    DatasetAnnouncer
}

// NewEmergencyHandler creates the handler. sync may be nil on a single replica.
func NewEmergencyHandler(service EmergencySearcher, sync DatasetAnnouncer) *EmergencyHandler {
	return &EmergencyHandler{service: service, sync: sync}
}

// Search handles GET /emergency/search
func (h *EmergencyHandler) Search(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearchQuery(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	outcome, err := h.service.Search(r.Context(), q)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	setDataHeaders(w, outcome.Meta)
	respondWithJSON(w, http.StatusOK, outcome.Response)
}

// Reload handles POST /emergency/reload
func (h *EmergencyHandler) Reload(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Reload(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if h.sync != nil {
		h.sync.Announce(r.Context(), entities.DatasetEventReload, result.Source)
	}
	respondWithJSON(w, http.StatusOK, result)
}

func setDataHeaders(w http.ResponseWriter, meta entities.SearchMeta) {
	h := w.Header()
	h.Set(HeaderDataSource, meta.Source)
	h.Set(HeaderDataMtime, meta.Mtime.UTC().Format(time.RFC3339))
	h.Set(HeaderDataCount, strconv.Itoa(meta.Count))
	if meta.QueryLat != nil && meta.QueryLon != nil {
		h.Set(HeaderQueryLat, formatFloat(*meta.QueryLat))
		h.Set(HeaderQueryLon, formatFloat(*meta.QueryLon))
	}
	h.Set(HeaderQueryRadius, formatFloat(meta.RadiusKm))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseSearchQuery reads the query string on top of the documented
// defaults. Range checks happen in the service.
func parseSearchQuery(r *http.Request) (entities.SearchQuery, error) {
	values := r.URL.Query()
	q := services.NewSearchQuery()

	var err error
	if q.Lat, err = optionalFloat(values.Get("lat"), "lat"); err != nil {
		return q, err
	}
	if q.Lon, err = optionalFloat(values.Get("lon"), "lon"); err != nil {
		return q, err
	}
	if raw := strings.TrimSpace(values.Get("sus")); raw != "" {
		v, err := parseBool(raw, "sus")
		if err != nil {
			return q, err
		}
		q.SUS = &v
	}
	if raw := strings.TrimSpace(values.Get("radius_km")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, apperrors.NewValidationError("radius_km must be a number")
		}
		q.RadiusKm = v
	}
	if raw := strings.TrimSpace(values.Get("expand")); raw != "" {
		if q.Expand, err = parseBool(raw, "expand"); err != nil {
			return q, err
		}
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		if q.Limit, err = parseInt(raw, "limit"); err != nil {
			return q, err
		}
	}
	if raw := strings.TrimSpace(values.Get("min_results")); raw != "" {
		if q.MinResults, err = parseInt(raw, "min_results"); err != nil {
			return q, err
		}
	}
	if raw := strings.TrimSpace(values.Get("debug")); raw != "" {
		if q.Debug, err = parseBool(raw, "debug"); err != nil {
			return q, err
		}
	}
	q.UF = strings.TrimSpace(values.Get("uf"))
	q.City = strings.TrimSpace(values.Get("city"))
	return q, nil
}

func optionalFloat(raw, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%s must be a number", name))
	}
	return &v, nil
}

func parseBool(raw, name string) (bool, error) {
	v, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return false, apperrors.NewValidationError(fmt.Sprintf("%s must be true or false", name))
	}
	return v, nil
}

func parseInt(raw, name string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}
