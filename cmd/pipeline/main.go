package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zatekoja/obstetric-locator/internal/adapters/storage"
	"github.com/zatekoja/obstetric-locator/internal/bootstrap"
	"github.com/zatekoja/obstetric-locator/internal/etl"
	"github.com/zatekoja/obstetric-locator/internal/geocoder"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/observability"
	"github.com/zatekoja/obstetric-locator/internal/pipeline"
	"github.com/zatekoja/obstetric-locator/pkg/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	vaultRes, vaultErr := bootstrap.Secrets()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	var (
		geocodeMode string
		skipTests   bool
		testDir     string
	)
	flag.StringVar(&cfg.Data.Snapshot, "snapshot", cfg.Data.Snapshot, "snapshot code (YYYYMM)")
	flag.StringVar(&cfg.Data.Dir, "data-dir", cfg.Data.Dir, "directory holding the raw snapshot tables")
	flag.StringVar(&geocodeMode, "geocode", "", "geocode step mode: copy, geocode, or empty to skip")
	flag.BoolVar(&skipTests, "skip-tests", false, "skip the test suite step")
	flag.StringVar(&cfg.Release.TestCommand, "test-cmd", cfg.Release.TestCommand, "test suite command")
	flag.StringVar(&testDir, "test-dir", ".", "working directory of the test suite")
	flag.StringVar(&cfg.Data.GoldenPath, "golden", cfg.Data.GoldenPath, "golden set JSON; missing file skips the step")
	flag.StringVar(&cfg.Data.SummaryPath, "summary", cfg.Data.SummaryPath, "run summary output path")
	flag.StringVar(&cfg.Release.UF, "uf", cfg.Release.UF, "release state for the sphere gate")
	flag.Parse()

	logger := bootstrap.Logger(cfg, "pipeline")
	bootstrap.LogSecrets(logger, vaultRes, vaultErr)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return 1
	}

	opts := pipeline.Options{
		Prepare: etl.Options{
			DataDir:       cfg.Data.Dir,
			Snapshot:      cfg.Data.Snapshot,
			CanonicalPath: cfg.Data.CanonicalPath,
			TrimmedPath:   cfg.Data.TrimmedPath,
		},
		Bounds:               cfg.Bounds,
		QADir:                cfg.Data.QADir,
		GoldenPath:           cfg.Data.GoldenPath,
		ReleaseUF:            cfg.Release.UF,
		MaxPublicMismatchPct: cfg.Release.MaxPublicMismatchPct,
		EventLogPath:         cfg.Data.EventLogPath,
		SummaryPath:          cfg.Data.SummaryPath,
		Gates:                pipeline.GateConfigFrom(cfg.Release),
	}
	if err := pipeline.ValidateOptions(opts); err != nil {
		logger.Error().Err(err).Msg("invalid pipeline options")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	preparer, err := bootstrap.Preparer(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build preparer")
		return 1
	}

	var gc pipeline.Geocoder
	switch geocodeMode {
	case "":
	case geocoder.ModeCopy:
		gc = geocoder.New(nil, nil, storage.NewParquetStore(), cfg.Bounds, 0, logger)
	case geocoder.ModeGeocode:
		if err := cfg.ValidateGeocoder(); err != nil {
			logger.Error().Err(err).Msg("invalid geocoder configuration")
			return 1
		}
		metrics, err := observability.InitMetrics()
		if err != nil {
			logger.Warn().Err(err).Msg("metrics disabled")
		}
		built, cache, err := bootstrap.Geocoder(cfg, metrics, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to build geocoder")
			return 1
		}
		defer cache.Close()
		gc = built
	default:
		logger.Error().Str("mode", geocodeMode).Msg("unknown geocode mode")
		return 1
	}
	if gc != nil {
		opts.Geocode = &geocoder.Options{
			Mode:          geocodeMode,
			Input:         cfg.Data.CanonicalPath,
			TrimmedOutput: cfg.Data.TrimmedPath,
			BatchSize:     cfg.Geocoder.BatchSize,
		}
	}

	var tests pipeline.TestRunner
	if !skipTests {
		tests = pipeline.NewCommandTestRunner(cfg.Release.TestCommand, testDir)
	}

	runner := pipeline.NewRunner(preparer, gc, storage.NewParquetStore(), tests, opts, logger)
	summary, err := runner.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline failed")
		return 1
	}
	for _, g := range summary.Gates {
		if !g.Passed {
			logger.Warn().Str("gate", g.Name).Float64("value", g.Value).Float64("threshold", g.Threshold).Msg("release gate failed")
		}
	}
	if !summary.AllPassed {
		return 1
	}
	return 0
}
