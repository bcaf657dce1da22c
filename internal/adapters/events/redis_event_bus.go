package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	redisclient "github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/redis"
)

// RedisEventBus relays dataset events between replicas over Redis pub/sub.
// Each channel holds one Redis subscription for the life of the bus; local
// subscribers are fanned out through an in-process MemoryEventBus.
type RedisEventBus struct {
	client *redisclient.Client
	local  *MemoryEventBus
	logger zerolog.Logger

	mu     sync.Mutex
	relays map[string]*redis.PubSub
	closed bool
	wg     sync.WaitGroup
}

// NewRedisEventBus wraps a connected Redis client.
func NewRedisEventBus(client *redisclient.Client, logger zerolog.Logger) *RedisEventBus {
	return &RedisEventBus{
		client: client,
		local:  NewMemoryEventBus(),
		logger: logger.With().Str("component", "event_bus").Logger(),
		relays: map[string]*redis.PubSub{},
	}
}

var _ providers.EventBus = (*RedisEventBus)(nil)

// Publish sends event to every replica subscribed to channel, this one included.
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.DatasetEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode dataset event: %w", err)
	}
	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish dataset event on %s: %w", channel, err)
	}
	b.logger.Debug().Str("channel", channel).Str("event_id", event.ID).Str("type", string(event.Type)).Msg("dataset event published")
	return nil
}

// Subscribe returns a channel closed when ctx is done or the bus closes.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DatasetEvent, error) {
	if err := b.relay(ctx, channel); err != nil {
		return nil, err
	}
	return b.local.Subscribe(ctx, channel)
}

// relay opens the Redis subscription for channel once and waits for the
// server to confirm it, so events published right after Subscribe arrive.
func (b *RedisEventBus) relay(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("event bus closed")
	}
	if _, ok := b.relays[channel]; ok {
		return nil
	}

	pubsub := b.client.Client().Subscribe(context.Background(), channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe to %s: %w", channel, err)
	}
	b.relays[channel] = pubsub

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range pubsub.Channel() {
			var event entities.DatasetEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn().Err(err).Str("channel", channel).Msg("dropping malformed dataset event")
				continue
			}
			_ = b.local.Publish(context.Background(), channel, &event)
		}
	}()
	b.logger.Info().Str("channel", channel).Msg("relaying dataset events from redis")
	return nil
}

// Close ends every Redis subscription and closes the local subscribers.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	b.closed = true
	var errs []error
	for channel, pubsub := range b.relays {
		if err := pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscription %s: %w", channel, err))
		}
		delete(b.relays, channel)
	}
	b.mu.Unlock()

	b.wg.Wait()
	errs = append(errs, b.local.Close())
	return errors.Join(errs...)
}
