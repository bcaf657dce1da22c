package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/zatekoja/obstetric-locator/internal/domain/repositories"
)

// TableWarmingService loads the process caches ahead of the first request and
// keeps them loaded after each TTL expiry.
type TableWarmingService struct {
	tables    []repositories.EstablishmentRepository
	overrides OverrideBooter
	logger    zerolog.Logger
}

// NewTableWarmingService creates a warming service; overrides is nil unless
// eager override loading is configured.
func NewTableWarmingService(overrides OverrideBooter, logger zerolog.Logger, tables ...repositories.EstablishmentRepository) *TableWarmingService {
	return &TableWarmingService{
		tables:    tables,
		overrides: overrides,
		logger:    logger.With().Str("component", "table_warming").Logger(),
	}
}

// WarmCache loads every table and boots the overrides. All sources are
// attempted; the errors are joined.
func (s *TableWarmingService) WarmCache(ctx context.Context) error {
	start := time.Now()
	var errs []error
	rows := 0
	for _, t := range s.tables {
		ds, err := t.Load(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows += ds.Len()
	}
	if s.overrides != nil {
		if err := s.overrides.Boot(ctx, "", false); err != nil {
			errs = append(errs, fmt.Errorf("failed to boot overrides: %w", err))
		}
	}

	err := errors.Join(errs...)
	event := s.logger.Info()
	if err != nil {
		event = s.logger.Warn().Err(err)
	}
	event.Int("tables", len(s.tables)).Int("rows", rows).Dur("took", time.Since(start)).Msg("cache warming completed")
	return err
}

// StartPeriodicWarming warms once, then again every interval until ctx is done.
func (s *TableWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	_ = s.WarmCache(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("stopping cache warming")
				return
			case <-ticker.C:
				_ = s.WarmCache(ctx)
			}
		}
	}()
	s.logger.Info().Dur("interval", interval).Msg("started periodic cache warming")
}
