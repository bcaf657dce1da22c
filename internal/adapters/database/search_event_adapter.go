package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/domain/repositories"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

const searchEventsTable = "search_events"

// SearchEventAdapter mirrors search events into Postgres.
type SearchEventAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSearchEventAdapter creates a new search event adapter
func NewSearchEventAdapter(client *postgres.Client) *SearchEventAdapter {
	return &SearchEventAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.SearchEventRepository = (*SearchEventAdapter)(nil)

// LogEvent inserts one search event
func (a *SearchEventAdapter) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	query, args, err := insertEventQuery(a.db, event)
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to log search event", err)
	}
	return nil
}

func insertEventQuery(db *goqu.Database, event *entities.SearchEvent) (string, []interface{}, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	record := goqu.Record{
		"id":                     event.ID,
		"ts":                     event.Timestamp,
		"lat":                    event.UserLatitude,
		"lon":                    event.UserLongitude,
		"radius_requested":       event.RadiusRequested,
		"radius_used":            event.RadiusUsed,
		"expanded":               event.Expanded,
		"found_a":                event.FoundA,
		"found_b":                event.FoundB,
		"banner_192":             event.Banner192,
		"sus":                    event.SUSFilter,
		"uf":                     event.UF,
		"result_count":           event.ResultCount,
		"latency_ms":             event.LatencyMs,
		"used_travel_time":       event.UsedTravelTime,
		"completed_with_group_c": event.CompletedGroupC,
	}

	return db.Insert(searchEventsTable).Prepared(true).Rows(record).ToSQL()
}

// Aggregate summarizes events recorded at or after since
func (a *SearchEventAdapter) Aggregate(ctx context.Context, since time.Time) (entities.SearchEventAggregate, error) {
	query, args, err := aggregateQuery(a.db, since)
	if err != nil {
		return entities.SearchEventAggregate{}, apperrors.NewInternalError("failed to build aggregate query", err)
	}

	var agg entities.SearchEventAggregate
	var expansion, banner, fa, fb, lat sql.NullFloat64
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&agg.Total, &expansion, &banner, &fa, &fb, &lat,
	)
	if err != nil {
		return entities.SearchEventAggregate{}, apperrors.NewInternalError("failed to aggregate search events", err)
	}

	agg.ExpansionRate = expansion.Float64
	agg.BannerRate = banner.Float64
	agg.AvgFoundA = fa.Float64
	agg.AvgFoundB = fb.Float64
	agg.AvgLatencyMs = lat.Float64
	return agg, nil
}

func aggregateQuery(db *goqu.Database, since time.Time) (string, []interface{}, error) {
	return db.Select(
		goqu.COUNT(goqu.Star()),
		goqu.AVG(goqu.L("CASE WHEN expanded THEN 1.0 ELSE 0.0 END")),
		goqu.AVG(goqu.L("CASE WHEN banner_192 THEN 1.0 ELSE 0.0 END")),
		goqu.AVG(goqu.C("found_a")),
		goqu.AVG(goqu.C("found_b")),
		goqu.AVG(goqu.C("latency_ms")),
	).From(searchEventsTable).
		Where(goqu.C("ts").Gte(since)).
		Prepared(true).
		ToSQL()
}
