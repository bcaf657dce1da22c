package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/domain/repositories"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// ReloadResult describes the table served after a reload.
type ReloadResult struct {
	Count  int       `json:"count"`
	Source string    `json:"source"`
	Mtime  time.Time `json:"mtime"`
}

// HealthReport is the body of the health endpoint.
type HealthReport struct {
	Status   string    `json:"status"`
	Count    int       `json:"count"`
	Source   string    `json:"source,omitempty"`
	Mtime    time.Time `json:"mtime,omitzero"`
	AgeHours float64   `json:"age_hours"`
	Reasons  []string  `json:"reasons,omitempty"`
}

// Healthy reports whether the table passed every health check.
func (h HealthReport) Healthy() bool {
	return h.Status == "ok"
}

func (s *EmergencySearchService) details() repositories.EstablishmentRepository {
	if s.opts.Details != nil {
		return s.opts.Details
	}
	return s.repo
}

func (s *EmergencySearchService) find(ctx context.Context, cnesID string) (*entities.Establishment, error) {
	id := textutil.PadCNES(cnesID)
	if id == "" {
		return nil, apperrors.NewValidationError("cnes_id must have up to 7 digits")
	}
	ds, err := s.details().Load(ctx)
	if err != nil {
		return nil, err
	}
	row, ok := ds.Find(id)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("establishment %s not found", id))
	}
	return row, nil
}

// GetEstablishment returns one record normalized the same way search results are.
func (s *EmergencySearchService) GetEstablishment(ctx context.Context, cnesID string) (*entities.Facility, error) {
	row, err := s.find(ctx, cnesID)
	if err != nil {
		return nil, err
	}
	f, _ := s.buildFacility(ctx, candidate{row: row, tier: s.effectiveTier(row)}, nil)
	return &f, nil
}

// GetEvidence returns the evidence list of one record.
func (s *EmergencySearchService) GetEvidence(ctx context.Context, cnesID string) ([]entities.Evidence, error) {
	row, err := s.find(ctx, cnesID)
	if err != nil {
		return nil, err
	}
	ev := entities.DecodeEvidence(row.Evidence)
	if ev == nil {
		ev = []entities.Evidence{}
	}
	return ev, nil
}

// Reload drops the process caches and rereads the table.
func (s *EmergencySearchService) Reload(ctx context.Context) (*ReloadResult, error) {
	s.repo.Invalidate()
	if s.opts.Details != nil {
		s.opts.Details.Invalidate()
	}
	ds, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("source", ds.Source).Int("count", ds.Len()).Msg("canonical table reloaded on demand")
	return &ReloadResult{Count: ds.Len(), Source: ds.Source, Mtime: ds.Mtime}, nil
}

// Health checks that the table exists, is large enough and recent enough.
func (s *EmergencySearchService) Health(ctx context.Context) HealthReport {
	ds, err := s.repo.Load(ctx)
	if err != nil {
		return HealthReport{Status: "degraded", Reasons: []string{err.Error()}}
	}

	age := s.now().Sub(ds.Mtime)
	report := HealthReport{
		Status:   "ok",
		Count:    ds.Len(),
		Source:   ds.Source,
		Mtime:    ds.Mtime.UTC(),
		AgeHours: geo.Round(age.Hours(), 2),
	}
	if ds.Len() < s.opts.HealthMinCount {
		report.Reasons = append(report.Reasons, fmt.Sprintf("count %d below minimum %d", ds.Len(), s.opts.HealthMinCount))
	}
	if s.opts.HealthMaxAge > 0 && age > s.opts.HealthMaxAge {
		report.Reasons = append(report.Reasons, fmt.Sprintf("table is %.1f hours old, limit %.1f", age.Hours(), s.opts.HealthMaxAge.Hours()))
	}
	if len(report.Reasons) > 0 {
		report.Status = "degraded"
	}
	return report
}
