// Package overrides patches sphere, SUS badge and convênios per establishment
// from the freshest raw snapshot without rerunning Prepare.
package overrides

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/etl"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

// Options locates the override sources.
type Options struct {
	DataDir string
	// Snapshot is a file path, a YYYYMM code, or empty for the newest file.
	Snapshot string
	// Convenios enables the convênio table.
	Convenios bool
	// ConveniosPath overrides convênio table discovery.
	ConveniosPath string
	CacheDir      string
}

// Coverage describes the loaded override map.
type Coverage struct {
	Snapshot  string    `json:"snapshot"`
	Count     int       `json:"count"`
	LoadedAt  time.Time `json:"loaded_at"`
	CacheFile string    `json:"cache_file"`
	FromCache bool      `json:"from_cache"`
	Error     string    `json:"error,omitempty"`
}

type state struct {
	records map[string]entities.OverrideRecord
	info    Coverage
}

// Store is loaded lazily on first access. The mutex guards the load only;
// reads after that go through an atomic pointer.
type Store struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	current atomic.Pointer[state]
}

// NewStore creates an unloaded store.
func NewStore(opts Options, logger zerolog.Logger) *Store {
	return &Store{
		opts:   opts,
		logger: logger.With().Str("component", "overrides").Logger(),
	}
}

// Get returns the override record for cnesID.
func (s *Store) Get(ctx context.Context, cnesID string) (entities.OverrideRecord, bool) {
	st := s.ensure(ctx)
	rec, ok := st.records[cnesID]
	return rec, ok
}

// Has reports whether cnesID has an override record.
func (s *Store) Has(ctx context.Context, cnesID string) bool {
	_, ok := s.Get(ctx, cnesID)
	return ok
}

// Count returns the number of override records, loading if needed.
func (s *Store) Count(ctx context.Context) int {
	return len(s.ensure(ctx).records)
}

// SnapshotUsed returns the source path of the loaded map, or "" when nothing is loaded yet.
func (s *Store) SnapshotUsed() string {
	if st := s.current.Load(); st != nil {
		return st.info.Snapshot
	}
	return ""
}

// Coverage reports the loaded state without triggering a load.
func (s *Store) Coverage() Coverage {
	if st := s.current.Load(); st != nil {
		return st.info
	}
	return Coverage{}
}

// Boot loads the map now. snapshot replaces the configured snapshot when
// set; force rebuilds even when a map is already loaded and skips the cache file.
func (s *Store) Boot(ctx context.Context, snapshot string, force bool) (Coverage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	configured := s.opts.Snapshot
	if snapshot != "" {
		s.opts.Snapshot = snapshot
	}
	prev := s.current.Load()
	if prev != nil && !force && snapshot == "" && prev.info.Error == "" {
		return prev.info, nil
	}
	st, err := s.load(ctx, force)
	if err != nil && prev != nil && prev.info.Error == "" {
		s.opts.Snapshot = configured
		s.logger.Error().Err(err).Msg("override refresh failed, keeping the previous map")
		return prev.info, err
	}
	s.current.Store(st)
	return st.info, err
}

// ensure loads on first access. A failed load is remembered as an empty map
// so requests do not retry it; Boot clears it.
func (s *Store) ensure(ctx context.Context) *state {
	if st := s.current.Load(); st != nil {
		return st
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.current.Load(); st != nil {
		return st
	}
	st, err := s.load(ctx, false)
	if err != nil {
		s.logger.Warn().Err(err).Msg("overrides unavailable, serving stored values")
	}
	s.current.Store(st)
	return st
}

func (s *Store) load(ctx context.Context, force bool) (*state, error) {
	start := time.Now()
	snapshot, err := s.resolveSnapshot()
	if err != nil {
		return failed(err), err
	}
	convenios := s.resolveConvenios(snapshot)

	cacheFile, err := s.cachePath(snapshot, convenios)
	if err != nil {
		return failed(err), err
	}

	info := Coverage{Snapshot: snapshot, CacheFile: cacheFile}
	if !force {
		if records, err := readCache(cacheFile); err == nil {
			info.Count, info.LoadedAt, info.FromCache = len(records), time.Now().UTC(), true
			s.logger.Info().Str("cache_file", cacheFile).Int("count", info.Count).Msg("overrides loaded from cache")
			return &state{records: records, info: info}, nil
		}
	}

	records, err := etl.ReadOverrides(ctx, snapshot, convenios, s.logger)
	if err != nil {
		err = apperrors.NewInternalError("failed to read override snapshot", err)
		return failed(err), err
	}
	if err := writeCache(cacheFile, records); err != nil {
		s.logger.Warn().Err(err).Str("cache_file", cacheFile).Msg("failed to write overrides cache")
	}

	info.Count, info.LoadedAt = len(records), time.Now().UTC()
	s.logger.Info().
		Str("snapshot", snapshot).
		Str("convenios", convenios).
		Int("count", info.Count).
		Dur("duration", time.Since(start)).
		Msg("overrides built")
	return &state{records: records, info: info}, nil
}

func failed(err error) *state {
	return &state{
		records: map[string]entities.OverrideRecord{},
		info:    Coverage{LoadedAt: time.Now().UTC(), Error: err.Error()},
	}
}

var snapshotCode = regexp.MustCompile(`^\d{6}$`)

func (s *Store) resolveSnapshot() (string, error) {
	snap := strings.TrimSpace(s.opts.Snapshot)
	switch {
	case snap == "":
		return etl.LatestEstablishmentFile(s.opts.DataDir)
	case snapshotCode.MatchString(snap):
		path := etl.FindTable(s.opts.DataDir, snap, etl.TableEstablishments)
		if path == "" {
			return "", apperrors.NewConfigMissingError(fmt.Sprintf("override snapshot %s not found under %s", snap, s.opts.DataDir))
		}
		return path, nil
	default:
		if _, err := os.Stat(snap); err != nil {
			return "", apperrors.NewConfigMissingError(fmt.Sprintf("override snapshot %s: %v", snap, err))
		}
		return snap, nil
	}
}

func (s *Store) resolveConvenios(snapshot string) string {
	if !s.opts.Convenios {
		return ""
	}
	if s.opts.ConveniosPath != "" {
		if _, err := os.Stat(s.opts.ConveniosPath); err == nil {
			return s.opts.ConveniosPath
		}
		return ""
	}
	code := etl.SnapshotOf(snapshot)
	if path := etl.FindTable(filepath.Dir(snapshot), code, etl.TableConvenios); path != "" {
		return path
	}
	return etl.FindTable(s.opts.DataDir, code, etl.TableConvenios)
}

// cachePath hashes the source paths and mtimes so a changed file gets a new cache name.
func (s *Store) cachePath(snapshot, convenios string) (string, error) {
	h := sha256.New()
	for _, p := range []string{snapshot, convenios} {
		if p == "" {
			fmt.Fprint(h, "-|")
			continue
		}
		st, err := os.Stat(p)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s|%d|%d|", p, st.ModTime().UnixNano(), st.Size())
	}
	code := etl.SnapshotOf(snapshot)
	if code == "" {
		code = "custom"
	}
	name := fmt.Sprintf("overrides_%s_%s.parquet", code, hex.EncodeToString(h.Sum(nil))[:16])
	return filepath.Join(s.opts.CacheDir, name), nil
}

type cachedRecord struct {
	CNESID    string   `parquet:"cnes_id"`
	Esfera    string   `parquet:"esfera"`
	SUSBadge  string   `parquet:"sus_badge"`
	Convenios []string `parquet:"convenios,list"`
}

func readCache(path string) (map[string]entities.OverrideRecord, error) {
	rows, err := parquet.ReadFile[cachedRecord](path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]entities.OverrideRecord, len(rows))
	for _, r := range rows {
		out[r.CNESID] = entities.OverrideRecord{Esfera: entities.Esfera(r.Esfera), SUSBadge: r.SUSBadge, Convenios: r.Convenios}
	}
	return out, nil
}

func writeCache(path string, records map[string]entities.OverrideRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	rows := make([]cachedRecord, 0, len(records))
	for id, r := range records {
		rows = append(rows, cachedRecord{CNESID: id, Esfera: string(r.Esfera), SUSBadge: r.SUSBadge, Convenios: r.Convenios})
	}
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
