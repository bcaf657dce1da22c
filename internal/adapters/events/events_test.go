package events

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	redisclient "github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/redis"
	"github.com/zatekoja/obstetric-locator/pkg/config"
)

func TestJSONLSearchLog_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "search_events.jsonl")
	log, err := NewJSONLSearchLog(path)
	require.NoError(t, err)

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				ev := &entities.SearchEvent{
					RadiusRequested: 25,
					RadiusUsed:      25,
					FoundA:          w,
					SUSFilter:       "any",
				}
				assert.NoError(t, log.LogEvent(context.Background(), ev))
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, writers*perWriter)

	agg, err := Aggregate(path)
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, agg.Total)
	assert.Zero(t, agg.Malformed)
	assert.InDelta(t, 3.5, agg.AvgFoundA, 1e-9)
}

func TestJSONLSearchLog_ClosedRejectsWrites(t *testing.T) {
	log, err := NewJSONLSearchLog(filepath.Join(t.TempDir(), "ev.jsonl"))
	require.NoError(t, err)
	require.NoError(t, log.Close())
	require.NoError(t, log.Close())
	assert.Error(t, log.LogEvent(context.Background(), &entities.SearchEvent{}))
}

func TestAggregate_ToleratesMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ev.jsonl")
	content := strings.Join([]string{
		`{"expanded":true,"banner_192":false,"found_a":2,"found_b":0,"latency_ms":10}`,
		`not json`,
		``,
		`{"expanded":false,"banner_192":true,"found_a":0,"found_b":4,"latency_ms":30}`,
		`{"expanded":`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	agg, err := Aggregate(path)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Total)
	assert.Equal(t, 2, agg.Malformed)
	assert.InDelta(t, 0.5, agg.ExpansionRate, 1e-9)
	assert.InDelta(t, 0.5, agg.BannerRate, 1e-9)
	assert.InDelta(t, 1.0, agg.AvgFoundA, 1e-9)
	assert.InDelta(t, 2.0, agg.AvgFoundB, 1e-9)
	assert.InDelta(t, 20.0, agg.AvgLatencyMs, 1e-9)
}

func TestAggregate_MissingFile(t *testing.T) {
	agg, err := Aggregate(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, entities.SearchEventAggregate{}, agg)
}

type recordingRepo struct {
	mu     sync.Mutex
	events []*entities.SearchEvent
	err    error
}

func (r *recordingRepo) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func TestFanOut(t *testing.T) {
	primary := &recordingRepo{}
	broken := &recordingRepo{err: errors.New("db down")}
	mirror := &recordingRepo{}
	fan := NewFanOut(zerolog.Nop(), primary, broken, mirror)

	ev := &entities.SearchEvent{ID: "e1", Timestamp: time.Now()}
	require.NoError(t, fan.LogEvent(context.Background(), ev))
	assert.Len(t, primary.events, 1)
	assert.Len(t, mirror.events, 1)

	primary.err = errors.New("disk full")
	assert.Error(t, fan.LogEvent(context.Background(), ev))
	assert.Len(t, mirror.events, 1, "mirrors are skipped when the primary fails")
}

func TestMemoryEventBus(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, providers.EventChannelDataset)
	require.NoError(t, err)

	ev := &entities.DatasetEvent{ID: "1", Type: entities.DatasetEventReload, Origin: "replica-a"}
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelDataset, ev))
	require.NoError(t, bus.Publish(context.Background(), "other", ev))

	select {
	case got := <-ch:
		assert.Equal(t, "1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Close())
	closedCh, err := bus.Subscribe(context.Background(), providers.EventChannelDataset)
	require.NoError(t, err)
	_, open := <-closedCh
	assert.False(t, open)
}

func TestRedisEventBus(t *testing.T) {
	host := os.Getenv("REDIS_TEST_HOST")
	if host == "" {
		t.Skip("REDIS_TEST_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("REDIS_TEST_PORT"))
	if port == 0 {
		port = 6379
	}
	client, err := redisclient.NewClient(&config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	defer client.Close()

	channel := "test:dataset:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	replicaA := NewRedisEventBus(client, zerolog.Nop())
	replicaB := NewRedisEventBus(client, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chA, err := replicaA.Subscribe(ctx, channel)
	require.NoError(t, err)
	chB, err := replicaB.Subscribe(ctx, channel)
	require.NoError(t, err)

	ev := &entities.DatasetEvent{ID: "42", Type: entities.DatasetEventReload, Origin: "replica-a", Source: "trimmed"}
	require.NoError(t, replicaA.Publish(context.Background(), channel, ev))

	for name, ch := range map[string]<-chan *entities.DatasetEvent{"a": chA, "b": chB} {
		select {
		case got := <-ch:
			assert.Equal(t, "42", got.ID, name)
			assert.Equal(t, entities.DatasetEventReload, got.Type, name)
		case <-time.After(2 * time.Second):
			t.Fatalf("replica %s did not receive the event", name)
		}
	}

	require.NoError(t, replicaA.Close())
	_, open := <-chA
	assert.False(t, open)
	_, err = replicaA.Subscribe(context.Background(), channel)
	assert.Error(t, err)
	require.NoError(t, replicaB.Close())
}
