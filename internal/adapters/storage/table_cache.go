package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/quality"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
)

// TableCacheOptions configures a TableCache.
type TableCacheOptions struct {
	CanonicalPath string
	// TrimmedPath is preferred when present and at least as new as the canonical file.
	TrimmedPath string
	// TTL forces a reread after this long; zero relies on mtime changes only.
	TTL    time.Duration
	Bounds geo.BoundingBox
	// OnReload is called after every disk read.
	OnReload func(source string, rows int, elapsed time.Duration)
}

// TableCache is the process-level read-through cache of the canonical table.
// The mutex guards only the stat and the pointer swap; disk reads are
// collapsed through singleflight.
type TableCache struct {
	opts   TableCacheOptions
	store  *ParquetStore
	logger zerolog.Logger

	mu      sync.Mutex
	current *entities.Dataset
	group   singleflight.Group
	now     func() time.Time
}

// NewTableCache creates a new table cache
func NewTableCache(store *ParquetStore, opts TableCacheOptions, logger zerolog.Logger) *TableCache {
	return &TableCache{
		opts:   opts,
		store:  store,
		logger: logger.With().Str("component", "table_cache").Logger(),
		now:    time.Now,
	}
}

type fileVersion struct {
	path    string
	mtime   time.Time
	trimmed bool
}

// Load returns the cached dataset, rereading it when the file changed or the TTL expired.
func (c *TableCache) Load(ctx context.Context) (*entities.Dataset, error) {
	c.mu.Lock()
	version, err := c.resolve()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if ds := c.current; ds != nil && c.fresh(ds, version) {
		c.mu.Unlock()
		return ds, nil
	}
	c.mu.Unlock()

	key := fmt.Sprintf("%s@%d", version.path, version.mtime.UnixNano())
	ch := c.group.DoChan(key, func() (interface{}, error) {
		c.mu.Lock()
		if ds := c.current; ds != nil && c.fresh(ds, version) {
			c.mu.Unlock()
			return ds, nil
		}
		c.mu.Unlock()
		return c.read(version)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entities.Dataset), nil
	}
}

// Invalidate drops the cached dataset.
func (c *TableCache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// Current returns the cached dataset without touching the disk.
func (c *TableCache) Current() *entities.Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *TableCache) fresh(ds *entities.Dataset, v fileVersion) bool {
	if ds.Source != v.path || !ds.Mtime.Equal(v.mtime) {
		return false
	}
	return c.opts.TTL <= 0 || c.now().Sub(ds.LoadedAt) < c.opts.TTL
}

func (c *TableCache) resolve() (fileVersion, error) {
	canonical, cerr := os.Stat(c.opts.CanonicalPath)
	if c.opts.TrimmedPath != "" {
		if trimmed, err := os.Stat(c.opts.TrimmedPath); err == nil {
			if cerr != nil || !trimmed.ModTime().Before(canonical.ModTime()) {
				return fileVersion{path: c.opts.TrimmedPath, mtime: trimmed.ModTime(), trimmed: true}, nil
			}
		}
	}
	if cerr != nil {
		if errors.Is(cerr, fs.ErrNotExist) {
			return fileVersion{}, apperrors.NewDatasetUnavailableError("canonical table not found", cerr)
		}
		return fileVersion{}, apperrors.NewDatasetUnavailableError("canonical table unreadable", cerr)
	}
	return fileVersion{path: c.opts.CanonicalPath, mtime: canonical.ModTime()}, nil
}

func (c *TableCache) read(v fileVersion) (*entities.Dataset, error) {
	start := time.Now()
	var (
		rows []entities.Establishment
		err  error
	)
	if v.trimmed {
		rows, err = c.store.ReadTrimmed(v.path)
	} else {
		rows, err = c.store.ReadCanonical(v.path)
	}
	if err != nil {
		return nil, apperrors.NewDatasetUnavailableError("canonical table unreadable", err)
	}

	rows, violations := quality.SanitizeRows(rows, c.opts.Bounds)
	for _, viol := range violations {
		c.logger.Warn().
			Str("cnes_id", viol.CNESID).
			Str("field", viol.Field).
			Str("value", viol.Value).
			Str("action", viol.Action).
			Msg("invariant repaired at read time")
	}

	ds := entities.NewDataset(rows, v.path, v.mtime, v.trimmed)
	ds.LoadedAt = c.now()

	c.mu.Lock()
	c.current = ds
	c.mu.Unlock()

	elapsed := time.Since(start)
	c.logger.Info().
		Str("source", v.path).
		Int("rows", len(rows)).
		Dur("elapsed", elapsed).
		Msg("canonical table loaded")
	if c.opts.OnReload != nil {
		c.opts.OnReload(v.path, len(rows), elapsed)
	}
	return ds, nil
}
