package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/obstetric-locator/internal/adapters/database"
	"github.com/zatekoja/obstetric-locator/internal/adapters/events"
	"github.com/zatekoja/obstetric-locator/internal/adapters/providers/traveltime"
	"github.com/zatekoja/obstetric-locator/internal/adapters/storage"
	"github.com/zatekoja/obstetric-locator/internal/api/handlers"
	"github.com/zatekoja/obstetric-locator/internal/api/routes"
	"github.com/zatekoja/obstetric-locator/internal/application/services"
	"github.com/zatekoja/obstetric-locator/internal/bootstrap"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	"github.com/zatekoja/obstetric-locator/internal/domain/repositories"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/httpclient"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/redis"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/observability"
	"github.com/zatekoja/obstetric-locator/internal/overrides"
	"github.com/zatekoja/obstetric-locator/pkg/config"
)

func main() {
	vaultRes, vaultErr := bootstrap.Secrets()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := bootstrap.Logger(cfg, "api")
	bootstrap.LogSecrets(logger, vaultRes, vaultErr)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Table caches: the hot path reads the trimmed table, the detail
	// endpoints need the evidence columns of the canonical one.
	store := storage.NewParquetStore()
	onReload := func(source string, rows int, elapsed time.Duration) {
		observability.RecordTableReload(ctx, metrics, source)
	}
	searchTable := storage.NewTableCache(store, storage.TableCacheOptions{
		CanonicalPath: cfg.Data.CanonicalPath,
		TrimmedPath:   cfg.Data.TrimmedPath,
		TTL:           cfg.Emergency.CacheTTL,
		Bounds:        cfg.Bounds,
		OnReload:      onReload,
	}, logger)
	detailsTable := storage.NewTableCache(store, storage.TableCacheOptions{
		CanonicalPath: cfg.Data.CanonicalPath,
		TTL:           cfg.Emergency.CacheTTL,
		Bounds:        cfg.Bounds,
		OnReload:      onReload,
	}, logger)

	clf, strict, err := bootstrap.Classifier(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load classifier")
	}

	overrideStore := overrides.NewStore(overrides.Options{
		DataDir:       cfg.Data.Dir,
		Snapshot:      cfg.Overrides.Snapshot,
		Convenios:     cfg.Overrides.Convenios,
		ConveniosPath: cfg.Overrides.ConveniosPath,
		CacheDir:      cfg.Overrides.CacheDir,
	}, logger)
	bootOverrides := services.OverrideBooterFunc(func(ctx context.Context, snapshot string, force bool) error {
		_, err := overrideStore.Boot(ctx, snapshot, force)
		return err
	})

	// Search events: JSONL log, mirrored to Postgres when configured
	eventLog, err := events.NewJSONLSearchLog(cfg.Data.EventLogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open search event log")
	}
	defer eventLog.Close()

	var eventRepo repositories.SearchEventRepository = eventLog
	if cfg.Database.Enabled {
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			logger.Warn().Err(err).Msg("search event mirror disabled")
		} else {
			defer pgClient.Close()
			if err := pgClient.EnsureSchema(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to ensure search_events schema")
			}
			eventRepo = events.NewFanOut(logger, eventLog, database.NewSearchEventAdapter(pgClient))
			logger.Info().Msg("search events mirrored to PostgreSQL")
		}
	}
	tracker := services.NewSearchTracker(eventRepo, logger)

	var travelTime providers.TravelTimeProvider
	if cfg.TravelTime.Enabled {
		if cfg.Geocoder.MapboxToken == "" {
			logger.Warn().Msg("TRAVEL_TIME is on but MAPBOX_TOKEN is not set; ranking by distance")
		} else {
			client := httpclient.New(httpclient.Options{Timeout: cfg.TravelTime.Timeout, MaxAttempts: 1})
			travelTime = traveltime.NewMatrixProvider(cfg.Geocoder.MapboxToken, cfg.TravelTime.MatrixURL, client)
		}
	}

	searchService := services.NewEmergencySearchService(searchTable, overrideStore, tracker, services.EmergencySearchOptions{
		Bounds:         cfg.Bounds,
		Classifier:     clf,
		Strict:         strict,
		TravelTime:     travelTime,
		TravelTimeout:  cfg.TravelTime.Timeout,
		Details:        detailsTable,
		HealthMinCount: cfg.Emergency.HealthMinCount,
		HealthMaxAge:   time.Duration(cfg.Emergency.HealthMaxAgeHrs * float64(time.Hour)),
		Metrics:        metrics,
	}, logger)

	// Replica sync: Redis pub/sub when available, in-process otherwise
	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, reloads stay local")
		} else {
			defer redisClient.Close()
			eventBus = events.NewRedisEventBus(redisClient, logger)
		}
	}
	if eventBus == nil {
		eventBus = events.NewMemoryEventBus()
	}
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing event bus")
		}
	}()

	syncService := services.NewDatasetSyncService(eventBus, bootOverrides, logger, searchTable, detailsTable)
	if err := syncService.Start(); err != nil {
		logger.Warn().Err(err).Msg("failed to start dataset sync")
	}
	defer syncService.Stop()

	// The first warm-up runs before the listener opens
	var eagerOverrides services.OverrideBooter
	if cfg.Overrides.Eager {
		eagerOverrides = bootOverrides
	}
	warming := services.NewTableWarmingService(eagerOverrides, logger, searchTable, detailsTable)
	warming.StartPeriodicWarming(ctx, cfg.Emergency.CacheTTL)

	// Initialize handlers
	emergencyHandler := handlers.NewEmergencyHandler(searchService, syncService)
	establishmentHandler := handlers.NewEstablishmentHandler(searchService)
	healthHandler := handlers.NewHealthHandler(searchService, overrideStore, handlers.VersionInfo{
		Version:   cfg.Build.Version,
		Commit:    cfg.Build.Commit,
		BuildTime: cfg.Build.BuildTime,
		Snapshot:  cfg.Data.Snapshot,
	})
	adminHandler := handlers.NewAdminHandler(overrideStore, searchService, syncService)

	router := routes.NewRouter(emergencyHandler, establishmentHandler, healthHandler, adminHandler, routes.RouterOptions{
		AdminToken:     cfg.Admin.Token,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        metrics,
	})
	if cfg.Admin.Token == "" {
		logger.Warn().Msg("ADMIN_TOKEN is not set; debug endpoints will answer 401")
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", serverAddr).Str("prefix", routes.APIPrefix).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	waitForShutdown(logger)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}
	tracker.Wait()

	logger.Info().Msg("server stopped")
}

func waitForShutdown(logger zerolog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("server shutting down")
}
