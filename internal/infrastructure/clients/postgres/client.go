package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/obstetric-locator/pkg/config"
	"github.com/zatekoja/obstetric-locator/pkg/retry"
)

// Client represents a PostgreSQL database client
type Client struct {
	db *sql.DB
}

// NewClient creates a new PostgreSQL client with exponential backoff retry
func NewClient(cfg *config.DatabaseConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// The mirror only ever appends search events.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxAttempts = 5
	err = retry.DoWithLog(
		context.Background(),
		retryConfig,
		"PostgreSQL",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return classifyPingError(db.PingContext(ctx))
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("postgres ping failed")
		},
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("connected to PostgreSQL")
	return &Client{db: db}, nil
}

// classifyPingError stops the retry loop on errors a restart of the server
// will not fix: bad credentials, unknown database, missing privileges.
func classifyPingError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "28", "3D", "42":
			return retry.Permanent(err)
		}
	}
	return err
}

// NewFromDB wraps an already opened handle.
func NewFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping verifies the connection to the database
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

const searchEventsDDL = `
CREATE TABLE IF NOT EXISTS search_events (
	id                      UUID PRIMARY KEY,
	ts                      TIMESTAMPTZ NOT NULL,
	lat                     DOUBLE PRECISION,
	lon                     DOUBLE PRECISION,
	radius_requested        DOUBLE PRECISION NOT NULL,
	radius_used             DOUBLE PRECISION NOT NULL,
	expanded                BOOLEAN NOT NULL,
	found_a                 INTEGER NOT NULL,
	found_b                 INTEGER NOT NULL,
	banner_192              BOOLEAN NOT NULL,
	completed_with_group_c  BOOLEAN NOT NULL,
	used_travel_time        BOOLEAN NOT NULL,
	sus                     TEXT,
	uf                      TEXT,
	result_count            INTEGER NOT NULL,
	latency_ms              BIGINT NOT NULL
)`

// EnsureSchema creates the search_events table when it does not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, searchEventsDDL); err != nil {
		return fmt.Errorf("failed to create search_events: %w", err)
	}
	return nil
}
