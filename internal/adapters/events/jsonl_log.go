package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/domain/repositories"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

// JSONLSearchLog appends one JSON object per line to a local file. Each
// event is written with a single Write call under a mutex so concurrent
// appends never interleave.
type JSONLSearchLog struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// NewJSONLSearchLog opens (creating if needed) the log at path
func NewJSONLSearchLog(path string) (*JSONLSearchLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.NewInternalError("failed to create search log directory", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to open search log", err)
	}
	return &JSONLSearchLog{path: path, file: f}, nil
}

var _ repositories.SearchEventRepository = (*JSONLSearchLog)(nil)

// Path returns the log location
func (l *JSONLSearchLog) Path() string { return l.path }

// LogEvent appends event as one line
func (l *JSONLSearchLog) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(event)
	if err != nil {
		return apperrors.NewInternalError("failed to encode search event", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return apperrors.NewInternalError("search log is closed", nil)
	}
	if _, err := l.file.Write(line); err != nil {
		return apperrors.NewInternalError("failed to append search event", err)
	}
	return nil
}

// Close closes the underlying file
func (l *JSONLSearchLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Aggregate reads the log at path and summarizes it. Lines that are not
// valid JSON objects are counted as malformed and skipped. A missing file
// yields an empty aggregate.
func Aggregate(path string) (entities.SearchEventAggregate, error) {
	var agg entities.SearchEventAggregate

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return agg, nil
	}
	if err != nil {
		return agg, fmt.Errorf("open search log: %w", err)
	}
	defer f.Close()

	var expanded, banner, foundA, foundB, latency int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev entities.SearchEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			agg.Malformed++
			continue
		}
		agg.Total++
		if ev.Expanded {
			expanded++
		}
		if ev.Banner192 {
			banner++
		}
		foundA += ev.FoundA
		foundB += ev.FoundB
		latency += ev.LatencyMs
	}
	if err := scanner.Err(); err != nil {
		return agg, fmt.Errorf("read search log: %w", err)
	}

	if agg.Total > 0 {
		n := float64(agg.Total)
		agg.ExpansionRate = float64(expanded) / n
		agg.BannerRate = float64(banner) / n
		agg.AvgFoundA = float64(foundA) / n
		agg.AvgFoundB = float64(foundB) / n
		agg.AvgLatencyMs = float64(latency) / n
	}
	return agg, nil
}

// FanOut writes each event to a primary repository and mirrors it to the
// others. Mirror failures are logged and do not fail the call.
type FanOut struct {
	primary repositories.SearchEventRepository
	mirrors []repositories.SearchEventRepository
	logger  zerolog.Logger
}

// NewFanOut creates a fan-out repository
func NewFanOut(logger zerolog.Logger, primary repositories.SearchEventRepository, mirrors ...repositories.SearchEventRepository) *FanOut {
	return &FanOut{primary: primary, mirrors: mirrors, logger: logger}
}

// LogEvent implements repositories.SearchEventRepository
func (f *FanOut) LogEvent(ctx context.Context, event *entities.SearchEvent) error {
	if err := f.primary.LogEvent(ctx, event); err != nil {
		return err
	}
	for _, m := range f.mirrors {
		if err := m.LogEvent(ctx, event); err != nil {
			f.logger.Warn().Err(err).Str("event_id", event.ID).Msg("search event mirror failed")
		}
	}
	return nil
}
