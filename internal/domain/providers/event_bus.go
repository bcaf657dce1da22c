package providers

import (
	"context"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
)

// EventBus fans dataset events out to every API replica
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.DatasetEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.DatasetEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelDataset carries table reloads and override refreshes.
const EventChannelDataset = "obstetric:dataset"
