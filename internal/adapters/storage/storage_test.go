package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
)

func ptr(v float64) *float64 { return &v }

func sampleRows() []entities.Establishment {
	return []entities.Establishment{
		{CNESID: "0000001", Nome: "Hospital Maternidade Alfa", Lat: ptr(-23.62), Lon: ptr(-46.64), HasMaternity: true, Esfera: entities.EsferaPrivado, Evidence: `[{"type":"leito","code":"10","source":"rlEstabComplementar"}]`, Convenios: []string{"UNIMED"}},
		{CNESID: "0000002", Nome: "Hospital Municipal Santa Maria", Esfera: "Desconhecido", Convenios: []string{}},
		{CNESID: "3", Nome: "Hospital Fora", Lat: ptr(40.7), Lon: ptr(-74.0), Esfera: entities.EsferaPublico, HasMaternity: true, IsProbable: true, Convenios: []string{}},
	}
}

func TestParquetStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewParquetStore()
	ctx := context.Background()

	canonical := filepath.Join(dir, "out", "establishments.parquet")
	trimmed := filepath.Join(dir, "out", "establishments_hot.parquet")
	require.NoError(t, store.WriteCanonical(ctx, canonical, sampleRows()))
	require.NoError(t, store.WriteTrimmed(ctx, trimmed, sampleRows()))

	_, err := os.Stat(canonical + ".tmp")
	assert.True(t, os.IsNotExist(err))

	rows, err := store.ReadCanonical(canonical)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Hospital Maternidade Alfa", rows[0].Nome)
	assert.Equal(t, -23.62, *rows[0].Lat)
	assert.Nil(t, rows[1].Lat)
	assert.Equal(t, []string{"UNIMED"}, rows[0].Convenios)
	assert.Contains(t, rows[0].Evidence, "leito")

	hot, err := store.ReadTrimmed(trimmed)
	require.NoError(t, err)
	require.Len(t, hot, 3)
	assert.Equal(t, "", hot[0].Evidence)
	assert.True(t, hot[0].HasMaternity)
}

func TestTableCache_SanitizesAndCaches(t *testing.T) {
	dir := t.TempDir()
	store := NewParquetStore()
	path := filepath.Join(dir, "establishments.parquet")
	require.NoError(t, store.WriteCanonical(context.Background(), path, sampleRows()))

	var reloads int32
	cache := NewTableCache(store, TableCacheOptions{
		CanonicalPath: path,
		TTL:           time.Minute,
		Bounds:        geo.Brazil,
		OnReload:      func(string, int, time.Duration) { atomic.AddInt32(&reloads, 1) },
	}, zerolog.Nop())

	ds, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, path, ds.Source)

	row, ok := ds.Find("0000002")
	require.True(t, ok)
	assert.Equal(t, entities.EsferaPublico, row.Esfera)

	row, ok = ds.Find("0000003")
	require.True(t, ok)
	assert.Nil(t, row.Lat)
	assert.False(t, row.IsProbable)

	again, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, ds, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reloads))
}

func TestTableCache_ReloadsOnMtimeAndTTL(t *testing.T) {
	dir := t.TempDir()
	store := NewParquetStore()
	path := filepath.Join(dir, "establishments.parquet")
	require.NoError(t, store.WriteCanonical(context.Background(), path, sampleRows()[:1]))

	cache := NewTableCache(store, TableCacheOptions{CanonicalPath: path, TTL: time.Minute, Bounds: geo.Brazil}, zerolog.Nop())
	first, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Len())

	require.NoError(t, store.WriteCanonical(context.Background(), path, sampleRows()))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	second, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, second.Len())

	cache.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	third, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, second, third)

	cache.Invalidate()
	assert.Nil(t, cache.Current())
}

func TestTableCache_PrefersNewerTrimmed(t *testing.T) {
	dir := t.TempDir()
	store := NewParquetStore()
	canonical := filepath.Join(dir, "establishments.parquet")
	trimmed := filepath.Join(dir, "establishments_hot.parquet")
	require.NoError(t, store.WriteCanonical(context.Background(), canonical, sampleRows()))
	require.NoError(t, store.WriteTrimmed(context.Background(), trimmed, sampleRows()))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(canonical, past, past))

	cache := NewTableCache(store, TableCacheOptions{CanonicalPath: canonical, TrimmedPath: trimmed, Bounds: geo.Brazil}, zerolog.Nop())
	ds, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ds.Trimmed)
	assert.Equal(t, trimmed, ds.Source)

	older := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(trimmed, older, older))
	ds, err = cache.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ds.Trimmed)
}

func TestTableCache_MissingFile(t *testing.T) {
	cache := NewTableCache(NewParquetStore(), TableCacheOptions{CanonicalPath: filepath.Join(t.TempDir(), "none.parquet"), Bounds: geo.Brazil}, zerolog.Nop())

	_, err := cache.Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDatasetUnavailable))
}

func TestTableCache_ConcurrentLoadsReadOnce(t *testing.T) {
	dir := t.TempDir()
	store := NewParquetStore()
	path := filepath.Join(dir, "establishments.parquet")
	require.NoError(t, store.WriteCanonical(context.Background(), path, sampleRows()))

	var reloads int32
	cache := NewTableCache(store, TableCacheOptions{
		CanonicalPath: path,
		Bounds:        geo.Brazil,
		OnReload:      func(string, int, time.Duration) { atomic.AddInt32(&reloads, 1) },
	}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, err := cache.Load(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 3, ds.Len())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&reloads))
}
