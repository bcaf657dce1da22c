package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
)

// Invalidator is anything holding a process-level copy of the table.
type Invalidator interface {
	Invalidate()
}

// OverrideBooter rebuilds the override map.
type OverrideBooter interface {
	Boot(ctx context.Context, snapshot string, force bool) error
}

// OverrideBooterFunc adapts a function to OverrideBooter.
type OverrideBooterFunc func(ctx context.Context, snapshot string, force bool) error

// Boot implements OverrideBooter
func (f OverrideBooterFunc) Boot(ctx context.Context, snapshot string, force bool) error {
	return f(ctx, snapshot, force)
}

// DatasetSyncService keeps replicas consistent: local reloads and override
// refreshes are announced on the event bus, and announcements from other
// replicas invalidate the local caches.
type DatasetSyncService struct {
	eventBus  providers.EventBus
	tables    []Invalidator
	overrides OverrideBooter
	origin    string
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	started   bool
}

// NewDatasetSyncService creates a sync service; overrides may be nil.
func NewDatasetSyncService(eventBus providers.EventBus, overrides OverrideBooter, logger zerolog.Logger, tables ...Invalidator) *DatasetSyncService {
	ctx, cancel := context.WithCancel(context.Background())
	return &DatasetSyncService{
		eventBus:  eventBus,
		tables:    tables,
		overrides: overrides,
		origin:    uuid.New().String(),
		logger:    logger.With().Str("component", "dataset_sync").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Origin identifies this replica in published events.
func (s *DatasetSyncService) Origin() string {
	return s.origin
}

// Start begins listening for dataset events
func (s *DatasetSyncService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelDataset)
	if err != nil {
		return fmt.Errorf("failed to subscribe to dataset events: %w", err)
	}

	s.started = true
	go s.processEvents(eventChan)
	s.logger.Info().Str("origin", s.origin).Msg("dataset sync started")
	return nil
}

// Stop stops listening and waits for the event loop to exit
func (s *DatasetSyncService) Stop() {
	s.cancel()
	if s.started {
		<-s.done
	}
	s.logger.Info().Msg("dataset sync stopped")
}

// Announce publishes a local change to the other replicas. Failures are
// logged; the local change has already happened.
func (s *DatasetSyncService) Announce(ctx context.Context, eventType entities.DatasetEventType, source string) {
	if s == nil {
		return
	}
	event := &entities.DatasetEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Origin:    s.origin,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
	if err := s.eventBus.Publish(ctx, providers.EventChannelDataset, event); err != nil {
		s.logger.Warn().Err(err).Str("type", string(eventType)).Msg("failed to announce dataset event")
	}
}

func (s *DatasetSyncService) processEvents(eventChan <-chan *entities.DatasetEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil || event.Origin == s.origin {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *DatasetSyncService) handleEvent(event *entities.DatasetEvent) {
	logger := s.logger.With().Str("event_id", event.ID).Str("type", string(event.Type)).Str("from", event.Origin).Logger()

	switch event.Type {
	case entities.DatasetEventReload:
		for _, t := range s.tables {
			t.Invalidate()
		}
		logger.Info().Str("source", event.Source).Msg("table cache invalidated by peer")
	case entities.DatasetEventOverridesRefresh:
		if s.overrides == nil {
			return
		}
		ctx, cancel := context.WithTimeout(s.ctx, 2*time.Minute)
		defer cancel()
		if err := s.overrides.Boot(ctx, "", true); err != nil {
			logger.Warn().Err(err).Msg("peer-triggered override refresh failed")
			return
		}
		logger.Info().Msg("overrides refreshed by peer")
	default:
		logger.Debug().Msg("ignoring unknown dataset event")
	}
}
