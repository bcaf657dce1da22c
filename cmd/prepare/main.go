package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zatekoja/obstetric-locator/internal/bootstrap"
	"github.com/zatekoja/obstetric-locator/internal/etl"
	"github.com/zatekoja/obstetric-locator/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var opts etl.Options
	flag.StringVar(&opts.Snapshot, "snapshot", cfg.Data.Snapshot, "snapshot code (YYYYMM); empty picks the newest")
	flag.StringVar(&opts.DataDir, "data-dir", cfg.Data.Dir, "directory holding the raw snapshot tables")
	flag.StringVar(&opts.CanonicalPath, "out", cfg.Data.CanonicalPath, "canonical table output path")
	flag.StringVar(&opts.TrimmedPath, "trimmed", cfg.Data.TrimmedPath, "trimmed table output path; empty skips it")
	flag.Parse()

	logger := bootstrap.Logger(cfg, "prepare")
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	preparer, err := bootstrap.Preparer(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build preparer")
	}

	report, err := preparer.Run(ctx, opts)
	if report != nil {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
	}
	if err != nil {
		logger.Error().Err(err).Msg("prepare failed")
		os.Exit(1)
	}
}
