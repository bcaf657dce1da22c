package services

import (
	"context"
	"sort"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/observability"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// maxTravelTimeDestinations matches the Matrix API limit.
const maxTravelTimeDestinations = 24

type candidate struct {
	row      *entities.Establishment
	tier     entities.Tier
	distance float64
	travel   *float64
}

// radiusSequence returns [requested, 50, 100] when expanding, skipping
// steps that do not grow the radius.
func radiusSequence(requested float64, expand bool) []float64 {
	radii := []float64{requested}
	if !expand {
		return radii
	}
	for _, r := range expansionRadii {
		if r > radii[len(radii)-1] {
			radii = append(radii, r)
		}
	}
	return radii
}

func within(pool []candidate, radiusKm float64) []candidate {
	out := make([]candidate, 0, len(pool))
	for _, c := range pool {
		if c.distance <= radiusKm {
			out = append(out, c)
		}
	}
	return out
}

// lessByDistance orders by distance to the meter, then confirmed before
// probable, then score, then cnes_id so equal inputs always rank the same way.
func lessByDistance(a, b candidate) bool {
	if da, db := geo.Round(a.distance, 3), geo.Round(b.distance, 3); da != db {
		return da < db
	}
	if a.tier != b.tier {
		return a.tier < b.tier
	}
	if a.row.Score != b.row.Score {
		return a.row.Score > b.row.Score
	}
	return a.row.CNESID < b.row.CNESID
}

func sortByDistance(pool []candidate) {
	sort.SliceStable(pool, func(i, j int) bool {
		return lessByDistance(pool[i], pool[j])
	})
}

func sortRegional(pool []candidate) {
	sort.SliceStable(pool, func(i, j int) bool {
		ci, cj := textutil.Normalize(pool[i].row.Cidade), textutil.Normalize(pool[j].row.Cidade)
		if ci != cj {
			return ci < cj
		}
		ni, nj := textutil.Normalize(pool[i].row.Nome), textutil.Normalize(pool[j].row.Nome)
		if ni != nj {
			return ni < nj
		}
		return pool[i].row.CNESID < pool[j].row.CNESID
	})
}

// rank sorts the pool by distance and, when a travel-time provider is
// configured, reorders the nearest candidates by driving time. Any provider
// failure keeps the distance order.
func (s *EmergencySearchService) rank(ctx context.Context, origin providers.Coordinates, pool []candidate) ([]candidate, bool) {
	sortByDistance(pool)
	if s.opts.TravelTime == nil || len(pool) == 0 {
		return pool, false
	}

	head := pool[:min(len(pool), maxTravelTimeDestinations)]
	dests := make([]providers.Coordinates, len(head))
	for i, c := range head {
		dests[i] = providers.Coordinates{Latitude: *c.row.Lat, Longitude: *c.row.Lon}
	}

	ttCtx, cancel := context.WithTimeout(ctx, s.opts.TravelTimeout)
	defer cancel()
	durations, err := s.opts.TravelTime.Durations(ttCtx, origin, dests)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("travel time unavailable, ranking by distance")
		return pool, false
	}
	if len(durations) != len(head) {
		observability.LoggerFromContext(ctx).Warn().
			Int("expected", len(head)).
			Int("got", len(durations)).
			Msg("travel time response shape mismatch, ranking by distance")
		return pool, false
	}

	for i := range head {
		head[i].travel = durations[i]
	}
	sort.SliceStable(head, func(i, j int) bool {
		ti, tj := head[i].travel, head[j].travel
		switch {
		case ti != nil && tj != nil && *ti != *tj:
			return *ti < *tj
		case ti != nil && tj == nil:
			return true
		case ti == nil && tj != nil:
			return false
		}
		return lessByDistance(head[i], head[j])
	})
	return pool, true
}

// dedupe keeps the first candidate per rounded coordinate pair, up to limit.
func dedupe(ranked []candidate, limit int) []candidate {
	seen := make(map[string]struct{}, min(len(ranked), limit))
	out := make([]candidate, 0, min(len(ranked), limit))
	for _, c := range ranked {
		if len(out) >= limit {
			break
		}
		key := geo.CoordinateKey(*c.row.Lat, *c.row.Lon)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
