package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
)`

// SQLiteAdapter implements CacheProvider on a local sqlite file. It is the
// default geocoder cache: one file per process, one statement per lookup.
type SQLiteAdapter struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteAdapter opens (creating if needed) the cache file at path.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		sqliteSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialise sqlite cache: %w", err)
		}
	}

	return &SQLiteAdapter{db: db, now: time.Now}, nil
}

var _ providers.CacheProvider = (*SQLiteAdapter)(nil)

// Get retrieves a value; expired rows count as a miss
func (a *SQLiteAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt int64
	err := a.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM geocode_cache WHERE key = ?", key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	if expiresAt > 0 && a.now().Unix() >= expiresAt {
		return nil, nil
	}
	return value, nil
}

// Set stores a value; expirationSeconds <= 0 keeps it forever
func (a *SQLiteAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	now := a.now()
	var expiresAt int64
	if expirationSeconds > 0 {
		expiresAt = now.Add(time.Duration(expirationSeconds) * time.Second).Unix()
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (key, value, expires_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		key, value, expiresAt, now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// Delete removes a value from cache
func (a *SQLiteAdapter) Delete(ctx context.Context, key string) error {
	if _, err := a.db.ExecContext(ctx, "DELETE FROM geocode_cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Exists checks if a live key exists in cache
func (a *SQLiteAdapter) Exists(ctx context.Context, key string) (bool, error) {
	value, err := a.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check existence in cache: %w", err)
	}
	return value != nil, nil
}

// Len counts stored entries, expired or not.
func (a *SQLiteAdapter) Len(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM geocode_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Close closes the database handle
func (a *SQLiteAdapter) Close() error {
	return a.db.Close()
}
