package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zatekoja/obstetric-locator/internal/adapters/storage"
	"github.com/zatekoja/obstetric-locator/internal/bootstrap"
	"github.com/zatekoja/obstetric-locator/internal/quality"
	"github.com/zatekoja/obstetric-locator/pkg/config"
)

type result struct {
	Guard    *quality.GuardReport `json:"guard"`
	Counts   map[string]int       `json:"qa_counts"`
	Files    []string             `json:"qa_files"`
	Workbook string               `json:"qa_workbook"`
	Gate     quality.GateResult   `json:"esfera_gate"`
	Passed   bool                 `json:"passed"`
}

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
		in     string
		qaDir  string
		state  string
		maxPct float64
	)
	flag.StringVar(&in, "in", cfg.Data.CanonicalPath, "canonical table to check")
	flag.StringVar(&qaDir, "qa-dir", cfg.Data.QADir, "directory for the QA CSVs and workbook")
	flag.StringVar(&state, "uf", cfg.Release.UF, "release state for the sphere gate; empty measures the whole table")
	flag.Float64Var(&maxPct, "max-pct", cfg.Release.MaxPublicMismatchPct, "maximum public-sphere mismatch percentage")
	flag.Parse()

	logger := bootstrap.Logger(cfg, "guard")

	rows, err := storage.NewParquetStore().ReadCanonical(in)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Error().Str("path", in).Msg("canonical table not found")
		} else {
			logger.Error().Err(err).Str("path", in).Msg("failed to read canonical table")
		}
		return 1
	}

	res := result{Guard: quality.GuardRows(rows, cfg.Bounds)}
	res.Guard.Path = in

	qa := quality.BuildQAReport(rows)
	res.Counts = qa.Counts()
	res.Gate = quality.CheckEsferaGate(qa, state, maxPct)
	if res.Files, err = qa.WriteCSV(qaDir); err != nil {
		logger.Error().Err(err).Msg("failed to write QA reports")
		return 1
	}
	res.Workbook = filepath.Join(qaDir, quality.WorkbookName)
	if err := qa.WriteWorkbook(res.Workbook, &res.Gate); err != nil {
		logger.Error().Err(err).Msg("failed to write QA workbook")
		return 1
	}
	res.Passed = res.Guard.Passed() && res.Gate.Passed

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))

	if err := res.Guard.Err(); err != nil {
		logger.Error().Err(err).Int("findings", res.Guard.Count).Msg("forbidden values in canonical table")
	}
	if !res.Gate.Passed {
		logger.Error().
			Str("uf", res.Gate.UF).
			Float64("pct", res.Gate.Pct).
			Float64("max_pct", res.Gate.MaxPct).
			Msg("public sphere mismatch above threshold")
	}
	if !res.Passed {
		return 1
	}
	return 0
}
