package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/domain/repositories"
)

// SearchTracker records search events off the request path.
type SearchTracker struct {
	repo    repositories.SearchEventRepository
	logger  zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewSearchTracker creates a tracker; a nil repo disables tracking.
func NewSearchTracker(repo repositories.SearchEventRepository, logger zerolog.Logger) *SearchTracker {
	return &SearchTracker{
		repo:    repo,
		logger:  logger.With().Str("component", "search_tracker").Logger(),
		timeout: 5 * time.Second,
	}
}

// TrackSearch logs the event in the background.
func (t *SearchTracker) TrackSearch(ctx context.Context, event *entities.SearchEvent) {
	if t == nil || t.repo == nil {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		// the request context is cancelled once the response is written
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()

		if err := t.repo.LogEvent(bgCtx, event); err != nil {
			t.logger.Warn().Err(err).Msg("failed to log search event")
		}
	}()
}

// Wait blocks until pending events are written.
func (t *SearchTracker) Wait() {
	if t == nil {
		return
	}
	t.wg.Wait()
}
