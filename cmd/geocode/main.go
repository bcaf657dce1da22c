package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zatekoja/obstetric-locator/internal/adapters/storage"
	"github.com/zatekoja/obstetric-locator/internal/bootstrap"
	"github.com/zatekoja/obstetric-locator/internal/geocoder"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/observability"
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

	opts := geocoder.Options{}
	flag.StringVar(&opts.Mode, "mode", geocoder.ModeGeocode, "copy or geocode")
	flag.StringVar(&opts.Input, "in", cfg.Data.CanonicalPath, "canonical table to read")
	flag.StringVar(&opts.Output, "out", "", "output path; defaults to -in")
	flag.StringVar(&opts.TrimmedOutput, "trimmed", cfg.Data.TrimmedPath, "trimmed table output path; empty skips it")
	flag.IntVar(&opts.BatchSize, "batch", cfg.Geocoder.BatchSize, "rows between checkpoints")
	flag.IntVar(&opts.Limit, "limit", 0, "maximum rows to look up; 0 means all")
	flag.BoolVar(&opts.Refresh, "refresh", false, "ignore cached answers")
	flag.StringVar(&cfg.Geocoder.Provider, "provider", cfg.Geocoder.Provider, "auto, mapbox, nominatim or a comma-separated chain")
	flag.Float64Var(&cfg.Geocoder.RPS, "rps", cfg.Geocoder.RPS, "provider requests per second")
	flag.Parse()

	logger := bootstrap.Logger(cfg, "geocode")
	bootstrap.LogSecrets(logger, vaultRes, vaultErr)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var g *geocoder.Geocoder
	if opts.Mode == geocoder.ModeCopy {
		g = geocoder.New(nil, nil, storage.NewParquetStore(), cfg.Bounds, 0, logger)
	} else {
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
		g = built
	}

	stats, err := g.Run(ctx, opts)
	if stats != nil {
		out, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(out))
	}
	if err != nil {
		logger.Error().Err(err).Msg("geocode failed")
		return 1
	}
	return 0
}
