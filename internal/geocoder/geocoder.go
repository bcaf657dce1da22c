// Package geocoder fills missing coordinates in the canonical table.
package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// Modes accepted by Run.
const (
	ModeCopy    = "copy"
	ModeGeocode = "geocode"
)

// PartialSuffix names the checkpoint written next to the output after each batch.
const PartialSuffix = ".partial"

// Store reads and writes the canonical table.
type Store interface {
	ReadCanonical(path string) ([]entities.Establishment, error)
	WriteCanonical(ctx context.Context, path string, rows []entities.Establishment) error
	WriteTrimmed(ctx context.Context, path string, rows []entities.Establishment) error
}

// Options controls one run.
type Options struct {
	Mode          string
	Input         string
	Output        string
	TrimmedOutput string // optional
	BatchSize     int
	// Refresh ignores cached answers and overwrites them.
	Refresh bool
	// Limit caps the number of rows looked up; zero means no cap.
	Limit int
}

// Stats reports what a run did.
type Stats struct {
	Mode        string        `json:"mode"`
	Provider    string        `json:"provider"`
	Total       int           `json:"total"`
	Missing     int           `json:"missing"`
	Attempted   int           `json:"attempted"`
	CacheHits   int           `json:"cache_hits"`
	Requests    int           `json:"requests"`
	Filled      int           `json:"filled"`
	NotFound    int           `json:"not_found"`
	OutOfBounds int           `json:"out_of_bounds"`
	Errors      int           `json:"errors"`
	Checkpoints int           `json:"checkpoints"`
	Resumed     bool          `json:"resumed"`
	Duration    time.Duration `json:"duration_ns"`
}

// FailureRate is the share of looked-up rows that still lack coordinates.
func (s Stats) FailureRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return float64(s.Attempted-s.Filled) / float64(s.Attempted)
}

// cacheEntry is the JSON stored per query; misses are cached too.
type cacheEntry struct {
	Found    bool    `json:"found"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	Provider string  `json:"provider"`
	At       int64   `json:"at"`
}

// Geocoder looks up addresses through a cache, a rate limiter and a provider.
type Geocoder struct {
	provider providers.GeolocationProvider
	cache    providers.CacheProvider
	limiter  *rate.Limiter
	bounds   geo.BoundingBox
	store    Store
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// New creates a geocoder. rps <= 0 disables rate limiting.
func New(provider providers.GeolocationProvider, cache providers.CacheProvider, store Store, bounds geo.BoundingBox, rps float64, logger zerolog.Logger) *Geocoder {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Geocoder{
		provider: provider,
		cache:    cache,
		limiter:  rate.NewLimiter(limit, 1),
		bounds:   bounds,
		store:    store,
		logger:   logger.With().Str("component", "geocoder").Logger(),
	}
}

// WithMetrics attaches OpenTelemetry counters.
func (g *Geocoder) WithMetrics(m *observability.Metrics) *Geocoder {
	g.metrics = m
	return g
}

// ComposeQuery builds the free-text query for a row and makes sure it ends
// with the country name.
func ComposeQuery(e *entities.Establishment) string {
	q := strings.TrimSpace(e.Endereco)
	if q == "" {
		q = entities.ComposeAddress(entities.Address{
			Logradouro: e.Logradouro,
			Numero:     e.Numero,
			Bairro:     e.Bairro,
			Cidade:     e.Cidade,
			Estado:     e.UF,
			CEP:        e.CEP,
		})
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	if !strings.Contains(textutil.Normalize(q), "BRASIL") {
		q += ", Brasil"
	}
	return q
}

// Lookup resolves one query. cached is true when no provider request was made.
// The returned coordinates are nil for a miss; the bounding box is not applied here.
func (g *Geocoder) Lookup(ctx context.Context, query string, refresh bool) (coords *providers.Coordinates, cached bool, err error) {
	if g.cache != nil && !refresh {
		raw, err := g.cache.Get(ctx, query)
		if err != nil {
			g.logger.Warn().Err(err).Msg("geocode cache read failed")
		} else if raw != nil {
			var entry cacheEntry
			if err := json.Unmarshal(raw, &entry); err == nil {
				observability.RecordCacheHit(ctx, g.metrics, "geocode")
				if !entry.Found {
					return nil, true, nil
				}
				return &providers.Coordinates{Latitude: entry.Lat, Longitude: entry.Lon}, true, nil
			}
		}
		observability.RecordCacheMiss(ctx, g.metrics, "geocode")
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}
	coords, err = g.provider.Geocode(ctx, query)
	observability.RecordGeocodeRequest(ctx, g.metrics, g.provider.Name(), coords != nil)
	if err != nil {
		return nil, false, err
	}

	if g.cache != nil {
		entry := cacheEntry{Found: coords != nil, Provider: g.provider.Name(), At: time.Now().Unix()}
		if coords != nil {
			entry.Lat, entry.Lon = coords.Latitude, coords.Longitude
		}
		if payload, err := json.Marshal(entry); err == nil {
			if err := g.cache.Set(ctx, query, payload, 0); err != nil {
				g.logger.Warn().Err(err).Msg("geocode cache write failed")
			}
		}
	}
	return coords, false, nil
}

// Run executes copy or geocode mode.
func (g *Geocoder) Run(ctx context.Context, opts Options) (*Stats, error) {
	start := time.Now()
	if opts.Mode == "" {
		opts.Mode = ModeGeocode
	}
	if opts.Mode != ModeCopy && opts.Mode != ModeGeocode {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown geocode mode %q", opts.Mode))
	}
	if opts.Output == "" {
		opts.Output = opts.Input
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}

	stats := &Stats{Mode: opts.Mode}
	if g.provider != nil {
		stats.Provider = g.provider.Name()
	}

	rows, resumed, err := g.readInput(opts)
	if err != nil {
		return nil, err
	}
	stats.Total = len(rows)
	stats.Resumed = resumed

	if opts.Mode == ModeGeocode {
		if g.provider == nil {
			return nil, apperrors.NewConfigMissingError("geocode mode requires a provider")
		}
		if err := g.fill(ctx, rows, opts, stats); err != nil {
			return stats, err
		}
	}

	if err := g.store.WriteCanonical(ctx, opts.Output, rows); err != nil {
		return stats, err
	}
	if opts.TrimmedOutput != "" {
		if err := g.store.WriteTrimmed(ctx, opts.TrimmedOutput, rows); err != nil {
			return stats, err
		}
	}
	_ = os.Remove(opts.Output + PartialSuffix)

	stats.Duration = time.Since(start)
	g.logger.Info().
		Str("mode", stats.Mode).
		Int("total", stats.Total).
		Int("missing", stats.Missing).
		Int("filled", stats.Filled).
		Int("cache_hits", stats.CacheHits).
		Int("requests", stats.Requests).
		Int("errors", stats.Errors).
		Dur("duration", stats.Duration).
		Msg("geocode run finished")
	return stats, nil
}

// readInput prefers a checkpoint left by an interrupted run.
func (g *Geocoder) readInput(opts Options) ([]entities.Establishment, bool, error) {
	partial := opts.Output + PartialSuffix
	if opts.Mode == ModeGeocode {
		in, errIn := os.Stat(opts.Input)
		pt, errPt := os.Stat(partial)
		if errPt == nil && (errIn != nil || !pt.ModTime().Before(in.ModTime())) {
			rows, err := g.store.ReadCanonical(partial)
			if err == nil {
				g.logger.Info().Str("checkpoint", partial).Msg("resuming from checkpoint")
				return rows, true, nil
			}
			g.logger.Warn().Err(err).Str("checkpoint", partial).Msg("ignoring unreadable checkpoint")
		}
	}
	if _, err := os.Stat(opts.Input); errors.Is(err, os.ErrNotExist) {
		return nil, false, apperrors.NewDatasetUnavailableError("canonical table not found", err)
	}
	rows, err := g.store.ReadCanonical(opts.Input)
	if err != nil {
		return nil, false, err
	}
	return rows, false, nil
}

func (g *Geocoder) fill(ctx context.Context, rows []entities.Establishment, opts Options, stats *Stats) error {
	sinceCheckpoint := 0
	for i := range rows {
		row := &rows[i]
		if row.HasCoordinates(g.bounds) {
			continue
		}
		row.Lat, row.Lon = nil, nil
		stats.Missing++
		if opts.Limit > 0 && stats.Attempted >= opts.Limit {
			continue
		}

		query := ComposeQuery(row)
		if query == "" {
			continue
		}
		stats.Attempted++

		coords, cached, err := g.Lookup(ctx, query, opts.Refresh)
		if cached {
			stats.CacheHits++
		} else if ctx.Err() == nil {
			stats.Requests++
		}
		switch {
		case err != nil && ctx.Err() != nil:
			if cpErr := g.checkpoint(ctx, opts.Output, rows, stats); cpErr != nil {
				g.logger.Error().Err(cpErr).Msg("checkpoint on cancel failed")
			}
			return ctx.Err()
		case err != nil:
			stats.Errors++
			g.logger.Warn().Err(err).Str("cnes_id", row.CNESID).Msg("geocode failed")
		case coords == nil:
			stats.NotFound++
		case !row.SetCoordinates(coords.Latitude, coords.Longitude, g.bounds):
			stats.OutOfBounds++
			g.logger.Debug().Str("cnes_id", row.CNESID).Float64("lat", coords.Latitude).Float64("lon", coords.Longitude).Msg("geocode outside bounds discarded")
		default:
			stats.Filled++
		}

		sinceCheckpoint++
		if sinceCheckpoint >= opts.BatchSize {
			sinceCheckpoint = 0
			if err := g.checkpoint(ctx, opts.Output, rows, stats); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Geocoder) checkpoint(ctx context.Context, output string, rows []entities.Establishment, stats *Stats) error {
	// a cancelled ctx must not stop the checkpoint write
	if err := g.store.WriteCanonical(context.WithoutCancel(ctx), output+PartialSuffix, rows); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	stats.Checkpoints++
	g.logger.Debug().Int("attempted", stats.Attempted).Int("filled", stats.Filled).Msg("checkpoint written")
	return nil
}
