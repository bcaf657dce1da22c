package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/zatekoja/obstetric-locator/internal/adapters/storage"
	"github.com/zatekoja/obstetric-locator/internal/bootstrap"
	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/pipeline"
	"github.com/zatekoja/obstetric-locator/pkg/config"
)

// evaluate scores the canonical table against the golden set without
// running the rest of the pipeline.
func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	var (
		in         string
		goldenPath string
		minAcc     float64
	)
	flag.StringVar(&in, "in", cfg.Data.CanonicalPath, "canonical table to score")
	flag.StringVar(&goldenPath, "golden", cfg.Data.GoldenPath, "golden set JSON")
	flag.Float64Var(&minAcc, "min-accuracy", cfg.Release.MinGoldenAccuracy, "accuracy below which the command fails")
	flag.Parse()

	logger := bootstrap.Logger(cfg, "evaluate")

	cases, err := pipeline.LoadGolden(goldenPath)
	if err != nil {
		logger.Error().Err(err).Str("path", goldenPath).Msg("failed to load golden set")
		return 1
	}
	if err := pipeline.ValidateGolden(cases); err != nil {
		logger.Error().Err(err).Msg("invalid golden set")
		return 1
	}

	info, err := os.Stat(in)
	if err != nil {
		logger.Error().Err(err).Str("path", in).Msg("canonical table not found")
		return 1
	}
	rows, err := storage.NewParquetStore().ReadCanonical(in)
	if err != nil {
		logger.Error().Err(err).Str("path", in).Msg("failed to read canonical table")
		return 1
	}

	summary := pipeline.EvaluateGolden(entities.NewDataset(rows, in, info.ModTime(), false), cases)
	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if summary.Accuracy < minAcc {
		logger.Error().Float64("accuracy", summary.Accuracy).Float64("min", minAcc).Msg("golden accuracy below threshold")
		return 1
	}
	return 0
}
