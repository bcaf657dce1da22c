package services

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/obstetric-locator/internal/classifier"
	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	"github.com/zatekoja/obstetric-locator/internal/domain/repositories"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
	"github.com/zatekoja/obstetric-locator/pkg/textutil"
	"github.com/zatekoja/obstetric-locator/pkg/uf"
)

// Search parameter defaults and bounds.
const (
	DefaultRadiusKm   = 25.0
	MinRadiusKm       = 0.1
	MaxRadiusKm       = 50.0
	DefaultLimit      = 10
	MaxLimit          = 50
	DefaultMinResults = 3
	MaxMinResults     = 50

	nearbyConfirmedRadiusKm = 100.0
	nearbyConfirmedMax      = 3
	regionalRadiusKm        = 5000.0
	regionalCap             = 500
)

// expansionRadii follow the requested radius when expand is set.
var expansionRadii = []float64{50, 100}

// OverrideLookup is the read side of the override store.
type OverrideLookup interface {
	Get(ctx context.Context, cnesID string) (entities.OverrideRecord, bool)
	Count(ctx context.Context) int
	SnapshotUsed() string
}

// EmergencySearchOptions wires the optional collaborators of the search service.
type EmergencySearchOptions struct {
	Bounds geo.BoundingBox
	// Classifier labels group C hospitals and carries the blacklist.
	Classifier *classifier.Classifier
	Strict     *classifier.StrictFilter
	// TravelTime is nil unless travel-time ranking is enabled and a token is configured.
	TravelTime    providers.TravelTimeProvider
	TravelTimeout time.Duration
	// Details serves the detail and evidence endpoints from the canonical
	// table; nil falls back to the search repository.
	Details        repositories.EstablishmentRepository
	HealthMinCount int
	HealthMaxAge   time.Duration
	Metrics        *observability.Metrics
}

// EmergencySearchService runs the three-tier radius-expanding search.
type EmergencySearchService struct {
	repo      repositories.EstablishmentRepository
	overrides OverrideLookup
	tracker   *SearchTracker
	opts      EmergencySearchOptions
	logger    zerolog.Logger
	now       func() time.Time
}

// NewEmergencySearchService creates the search service. overrides and tracker may be nil.
func NewEmergencySearchService(
	repo repositories.EstablishmentRepository,
	overrides OverrideLookup,
	tracker *SearchTracker,
	opts EmergencySearchOptions,
	logger zerolog.Logger,
) *EmergencySearchService {
	if opts.TravelTimeout <= 0 {
		opts.TravelTimeout = 3 * time.Second
	}
	if opts.Bounds == (geo.BoundingBox{}) {
		opts.Bounds = geo.Brazil
	}
	return &EmergencySearchService{
		repo:      repo,
		overrides: overrides,
		tracker:   tracker,
		opts:      opts,
		logger:    logger.With().Str("component", "emergency_search").Logger(),
		now:       time.Now,
	}
}

// NewSearchQuery returns a query carrying the documented defaults.
func NewSearchQuery() entities.SearchQuery {
	return entities.SearchQuery{
		RadiusKm:   DefaultRadiusKm,
		Expand:     true,
		Limit:      DefaultLimit,
		MinResults: DefaultMinResults,
	}
}

// ValidateQuery checks ranges and normalizes the regional filter in place.
func ValidateQuery(q *entities.SearchQuery) error {
	if q.UF != "" {
		sigla := uf.Normalize(q.UF)
		if sigla == "" {
			return apperrors.NewValidationError("uf must be a two-letter state or its IBGE code")
		}
		q.UF = sigla
	}
	q.City = textutil.CollapseSpaces(q.City)

	if (q.Lat == nil) != (q.Lon == nil) {
		return apperrors.NewValidationError("lat and lon must be given together")
	}
	if q.Lat == nil && !q.Regional() {
		return apperrors.NewValidationError("lat and lon are required without a uf or city filter")
	}
	if q.Lat != nil {
		if math.IsNaN(*q.Lat) || *q.Lat < -90 || *q.Lat > 90 {
			return apperrors.NewValidationError("lat must be between -90 and 90")
		}
		if math.IsNaN(*q.Lon) || *q.Lon < -180 || *q.Lon > 180 {
			return apperrors.NewValidationError("lon must be between -180 and 180")
		}
	}
	if q.Regional() {
		return nil
	}
	if math.IsNaN(q.RadiusKm) || q.RadiusKm < MinRadiusKm || q.RadiusKm > MaxRadiusKm {
		return apperrors.NewValidationError("radius_km must be between 0.1 and 50")
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return apperrors.NewValidationError("limit must be between 1 and 50")
	}
	if q.MinResults < 1 || q.MinResults > MaxMinResults {
		return apperrors.NewValidationError("min_results must be between 1 and 50")
	}
	return nil
}

// Search answers one emergency search.
func (s *EmergencySearchService) Search(ctx context.Context, q entities.SearchQuery) (*entities.SearchOutcome, error) {
	ctx, span := observability.StartSpan(ctx, "EmergencySearchService.Search")
	defer span.End()
	start := time.Now()

	if err := ValidateQuery(&q); err != nil {
		return nil, err
	}

	ds, err := s.repo.Load(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	prepared := s.prepare(ds, q)

	var sel selection
	if q.Regional() {
		sel = s.selectRegional(prepared)
	} else {
		sel = s.selectNearby(ctx, prepared, q)
	}

	origin := queryOrigin(q)
	results := make([]entities.Facility, 0, len(sel.picked))
	hits := 0
	for _, c := range sel.picked {
		f, reason := s.buildFacility(ctx, c, origin)
		if reason == entities.OverrideApplied {
			hits++
		}
		if q.Debug {
			hit := reason == entities.OverrideApplied
			f.OverrideHit = &hit
			f.OverrideReason = reason
		}
		results = append(results, f)
	}

	nearby := []entities.FacilityLite{}
	if origin != nil && !sel.hasConfirmed() {
		nearby = s.nearbyConfirmed(prepared.a, *origin)
	}

	sel.stats.OverrideHits = hits
	sel.stats.OverrideTotal = len(results)
	if len(results) > 0 {
		sel.stats.OverrideCoveragePct = geo.Round(float64(hits)*100/float64(len(results)), 1)
	}
	if s.overrides != nil && q.Debug {
		sel.stats.OverridesSnapshot = s.overrides.SnapshotUsed()
	}

	resp := entities.SearchResponse{
		Results:         results,
		NearbyConfirmed: nearby,
		Banner192:       sel.banner,
		GeneratedAt:     s.now().UTC(),
	}
	if q.Debug {
		dbg := sel.stats
		resp.Debug = &dbg
	}

	outcome := &entities.SearchOutcome{
		Response: resp,
		Meta: entities.SearchMeta{
			Source:   ds.Source,
			Mtime:    ds.Mtime,
			Count:    ds.Len(),
			QueryLat: q.Lat,
			QueryLon: q.Lon,
			RadiusKm: sel.stats.RadiusUsed,
		},
		Stats: sel.stats,
	}

	latency := time.Since(start)
	observability.SetSpanAttributes(span,
		attribute.Float64("search.radius_used", sel.stats.RadiusUsed),
		attribute.Int("search.results", len(results)),
		attribute.Bool("search.banner_192", sel.banner),
	)
	observability.RecordSearch(ctx, s.opts.Metrics, hits, sel.stats.CompletedWithGroupC)
	observability.LoggerFromContext(ctx).Debug().
		Float64("radius_requested", sel.stats.RadiusRequested).
		Float64("radius_used", sel.stats.RadiusUsed).
		Int("found_a", sel.stats.FoundA).
		Int("found_b", sel.stats.FoundB).
		Int("results", len(results)).
		Bool("banner_192", sel.banner).
		Dur("latency", latency).
		Msg("emergency search")

	s.tracker.TrackSearch(ctx, s.searchEvent(q, outcome, latency))
	return outcome, nil
}

func (s *EmergencySearchService) searchEvent(q entities.SearchQuery, out *entities.SearchOutcome, latency time.Duration) *entities.SearchEvent {
	sus := "any"
	if q.SUS != nil {
		sus = strconv.FormatBool(*q.SUS)
	}
	st := out.Stats
	return &entities.SearchEvent{
		Timestamp:       out.Response.GeneratedAt,
		UserLatitude:    q.Lat,
		UserLongitude:   q.Lon,
		RadiusRequested: st.RadiusRequested,
		RadiusUsed:      st.RadiusUsed,
		Expanded:        st.Expanded,
		FoundA:          st.FoundA,
		FoundB:          st.FoundB,
		Banner192:       out.Response.Banner192,
		SUSFilter:       sus,
		UF:              q.UF,
		ResultCount:     len(out.Response.Results),
		LatencyMs:       int(latency.Milliseconds()),
		UsedTravelTime:  st.UsedTravelTime,
		CompletedGroupC: st.CompletedWithGroupC,
	}
}

// queryOrigin returns the user location, or nil for a regional listing.
func queryOrigin(q entities.SearchQuery) *providers.Coordinates {
	if q.Lat == nil || q.Lon == nil {
		return nil
	}
	return &providers.Coordinates{Latitude: *q.Lat, Longitude: *q.Lon}
}

// tiers holds the prepared candidates of one search.
type tiers struct {
	a, b, c []candidate
}

// prepare drops rows without usable coordinates, applies the region, SUS,
// blacklist and strict filters, and partitions the rest into A, B and C.
func (s *EmergencySearchService) prepare(ds *entities.Dataset, q entities.SearchQuery) tiers {
	var t tiers
	origin := queryOrigin(q)
	city := textutil.Normalize(q.City)

	for i := range ds.Rows {
		row := &ds.Rows[i]
		if !row.HasCoordinates(s.opts.Bounds) {
			continue
		}
		if q.UF != "" && uf.Normalize(row.UF) != q.UF {
			continue
		}
		if city != "" && textutil.Normalize(row.Cidade) != city {
			continue
		}
		if q.SUS != nil {
			esfera, _ := entities.NormalizeEsfera(string(row.Esfera), row.Nome)
			want := entities.SUSLabelNo
			if *q.SUS {
				want = entities.SUSLabelYes
			}
			if entities.EffectiveSUSLabel(row.AtendeSUSLabel, esfera) != want {
				continue
			}
		}

		tier := s.effectiveTier(row)
		if tier != entities.TierOther && !s.opts.Strict.Keep(row.Nome, tier == entities.TierConfirmed) {
			continue
		}

		c := candidate{row: row, tier: tier}
		if origin != nil {
			c.distance = geo.HaversineKm(origin.Latitude, origin.Longitude, *row.Lat, *row.Lon)
		}
		switch tier {
		case entities.TierConfirmed:
			t.a = append(t.a, c)
		case entities.TierProbable:
			t.b = append(t.b, c)
		default:
			t.c = append(t.c, c)
		}
	}
	return t
}

// selection is the outcome of the tier state machine.
type selection struct {
	picked []candidate
	stats  entities.SearchDebug
	banner bool
}

func (s selection) hasConfirmed() bool {
	for _, c := range s.picked {
		if c.tier == entities.TierConfirmed {
			return true
		}
	}
	return false
}

// selectNearby walks the radius sequence until A or B yields a candidate,
// then falls back to C with the 192 banner.
func (s *EmergencySearchService) selectNearby(ctx context.Context, t tiers, q entities.SearchQuery) selection {
	origin := *queryOrigin(q)
	limit := max(q.Limit, q.MinResults)
	radii := radiusSequence(q.RadiusKm, q.Expand)

	sel := selection{stats: entities.SearchDebug{RadiusRequested: q.RadiusKm}}
	for _, r := range radii {
		a := within(t.a, r)
		b := within(t.b, r)
		if len(a)+len(b) == 0 {
			continue
		}
		pool := append(a, b...)
		ranked, usedTT := s.rank(ctx, origin, pool)
		sel.picked = dedupe(ranked, limit)
		sel.stats.RadiusUsed = r
		sel.stats.Expanded = r > q.RadiusKm
		sel.stats.FoundA = len(a)
		sel.stats.FoundB = len(b)
		sel.stats.UsedTravelTime = usedTT
		return sel
	}

	sel.stats.RadiusUsed = radii[len(radii)-1]
	sel.stats.Expanded = sel.stats.RadiusUsed > q.RadiusKm
	if len(t.c) == 0 {
		return sel
	}
	sel.banner = true
	ranked, usedTT := s.rank(ctx, origin, t.c)
	sel.picked = dedupe(ranked, limit)
	sel.stats.UsedTravelTime = usedTT
	sel.stats.CompletedWithGroupC = true
	return sel
}

// selectRegional lists A and B (or C as fallback) inside the state/city
// filter, ordered by city then name.
func (s *EmergencySearchService) selectRegional(t tiers) selection {
	sel := selection{stats: entities.SearchDebug{
		RadiusRequested: regionalRadiusKm,
		RadiusUsed:      regionalRadiusKm,
		Regional:        true,
		FoundA:          len(t.a),
		FoundB:          len(t.b),
	}}

	pool := append(append([]candidate{}, t.a...), t.b...)
	if len(pool) == 0 {
		if len(t.c) == 0 {
			return sel
		}
		sel.banner = true
		pool = append(pool, t.c...)
		sel.stats.CompletedWithGroupC = true
	}
	sortRegional(pool)
	sel.picked = dedupe(pool, regionalCap)
	return sel
}

// nearbyConfirmed returns up to three confirmed maternities within 100 km.
func (s *EmergencySearchService) nearbyConfirmed(a []candidate, origin providers.Coordinates) []entities.FacilityLite {
	pool := within(a, nearbyConfirmedRadiusKm)
	sortByDistance(pool)
	picked := dedupe(pool, nearbyConfirmedMax)

	out := make([]entities.FacilityLite, 0, len(picked))
	for _, c := range picked {
		out = append(out, entities.FacilityLite{
			CNESID:      c.row.CNESID,
			Nome:        c.row.Nome,
			Cidade:      c.row.Cidade,
			Estado:      c.row.UF,
			Lat:         *c.row.Lat,
			Lon:         *c.row.Lon,
			DistanciaKm: geo.Round(c.distance, 2),
			RotasURL:    RoutingURL(&origin, *c.row.Lat, *c.row.Lon),
		})
	}
	return out
}
