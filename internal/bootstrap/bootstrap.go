// Package bootstrap builds the collaborators shared by the command-line
// entrypoints from the loaded configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zatekoja/obstetric-locator/internal/adapters/cache"
	"github.com/zatekoja/obstetric-locator/internal/adapters/providers/geolocation"
	"github.com/zatekoja/obstetric-locator/internal/adapters/storage"
	"github.com/zatekoja/obstetric-locator/internal/classifier"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	"github.com/zatekoja/obstetric-locator/internal/etl"
	"github.com/zatekoja/obstetric-locator/internal/geocoder"
	redisclient "github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/redis"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/observability"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/secrets"
	"github.com/zatekoja/obstetric-locator/pkg/config"
)

// geocodeKeyPrefix namespaces geocoder entries on a shared Redis server.
const geocodeKeyPrefix = "obstetric-locator:geocode:"

// Secrets exports the Vault secret into the environment when VAULT_ENABLED
// is set. It runs before config.Load so the keys it provides are picked up.
func Secrets() (secrets.VaultResult, error) {
	cfg := secrets.ConfigFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout+time.Second)
	defer cancel()
	return secrets.Apply(ctx, cfg)
}

// LogSecrets reports the outcome of Secrets once a logger exists.
func LogSecrets(logger zerolog.Logger, res secrets.VaultResult, err error) {
	if err != nil {
		logger.Warn().Err(err).Str("path", res.Path).Msg("vault secrets not loaded")
		return
	}
	if res.Enabled {
		logger.Info().Str("path", res.Path).Int("loaded", len(res.Loaded)).Int("skipped", len(res.Skipped)).Msg("vault secrets loaded")
	}
}

// Logger initializes the global logger for service and applies LOG_LEVEL.
func Logger(cfg *config.Config, service string) zerolog.Logger {
	observability.InitLogger(service, cfg.Log.Env)
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return *observability.GetLogger()
}

// Classifier builds the weighted classifier with its blacklist and the strict filter.
func Classifier(cfg *config.Config) (*classifier.Classifier, *classifier.StrictFilter, error) {
	blacklist, err := classifier.LoadBlacklist(cfg.Data.BlacklistPath)
	if err != nil {
		return nil, nil, err
	}
	return classifier.New(cfg.Classifier, blacklist), classifier.NewStrictFilter(cfg.Classifier.StrictObstetric), nil
}

// Preparer builds the ETL preparer writing through the parquet store.
func Preparer(cfg *config.Config, logger zerolog.Logger) (*etl.Preparer, error) {
	c, strict, err := Classifier(cfg)
	if err != nil {
		return nil, err
	}
	return etl.NewPreparer(c, strict, cfg.Bounds, storage.NewParquetStore(), logger), nil
}

// GeocodeCache opens the configured geocoder cache backend. The caller closes it.
func GeocodeCache(cfg *config.Config) (providers.CacheProvider, error) {
	switch cfg.Geocoder.CacheBackend {
	case "redis":
		client, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisAdapter(client, geocodeKeyPrefix), nil
	case "sqlite", "":
		adapter, err := cache.NewSQLiteAdapter(cfg.Geocoder.CachePath)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("unknown geocoder cache backend %q", cfg.Geocoder.CacheBackend)
	}
}

// Geocoder builds the batch geocoder over the configured provider chain.
// The returned cache must be closed by the caller.
func Geocoder(cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) (*geocoder.Geocoder, providers.CacheProvider, error) {
	provider, err := geolocation.NewFromConfig(cfg.Geocoder)
	if err != nil {
		return nil, nil, err
	}
	store, err := GeocodeCache(cfg)
	if err != nil {
		return nil, nil, err
	}
	g := geocoder.New(provider, store, storage.NewParquetStore(), cfg.Bounds, cfg.Geocoder.RPS, logger).WithMetrics(metrics)
	return g, store, nil
}
