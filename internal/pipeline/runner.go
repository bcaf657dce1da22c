package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/zatekoja/obstetric-locator/internal/adapters/events"
	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/etl"
	"github.com/zatekoja/obstetric-locator/internal/geocoder"
	"github.com/zatekoja/obstetric-locator/internal/quality"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
)

// Step names in run order.
const (
	StepPrepare = "prepare"
	StepGeocode = "geocode"
	StepQuality = "quality"
	StepTests   = "tests"
	StepGolden  = "golden"
)

// Preparer builds the canonical table from the raw snapshot.
type Preparer interface {
	Run(ctx context.Context, opts etl.Options) (*etl.Report, error)
}

// Geocoder fills missing coordinates in the canonical table.
type Geocoder interface {
	Run(ctx context.Context, opts geocoder.Options) (*geocoder.Stats, error)
}

// Options configures one pipeline run.
type Options struct {
	Prepare etl.Options
	// Geocode is nil when the geocode step is skipped.
	Geocode    *geocoder.Options
	Bounds     geo.BoundingBox
	QADir      string
	GoldenPath string
	ReleaseUF  string
	// MaxPublicMismatchPct is the sphere gate threshold in percent.
	MaxPublicMismatchPct float64
	EventLogPath         string
	SummaryPath          string
	Gates                GateConfig
}

// StepResult records one step of the run.
type StepResult struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Skipped    bool   `json:"skipped,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Coverage measures how complete the written table is.
type Coverage struct {
	Rows          int     `json:"rows"`
	WithCoords    int     `json:"with_coords"`
	CoordCoverage float64 `json:"coord_coverage"`
	WithPhone     int     `json:"with_phone"`
	PhoneCoverage float64 `json:"phone_coverage"`
	HasMaternity  int     `json:"has_maternity"`
	Probable      int     `json:"probable"`
}

// QASummary points at the report files and carries the sphere gate.
type QASummary struct {
	Counts   map[string]int       `json:"counts"`
	Files    []string             `json:"files"`
	Workbook string               `json:"workbook"`
	Gate     quality.GateResult   `json:"esfera_gate"`
	Guard    *quality.GuardReport `json:"guard"`
	EsferaOK bool                 `json:"qa_esfera_ok"`
}

// Summary is the single JSON document written per run.
type Summary struct {
	StartedAt    time.Time                      `json:"started_at"`
	FinishedAt   time.Time                      `json:"finished_at"`
	Snapshot     string                         `json:"snapshot"`
	Steps        []StepResult                   `json:"steps"`
	Prepare      *etl.Report                    `json:"prepare,omitempty"`
	Geocode      *geocoder.Stats                `json:"geocode,omitempty"`
	Coverage     Coverage                       `json:"coverage"`
	QA           *QASummary                     `json:"qa,omitempty"`
	Tests        *TestResult                    `json:"tests,omitempty"`
	Golden       *GoldenSummary                 `json:"golden,omitempty"`
	SearchEvents *entities.SearchEventAggregate `json:"search_events,omitempty"`
	Gates        []Gate                         `json:"gates"`
	AllPassed    bool                           `json:"all_passed"`
}

// Runner runs the pipeline end to end and enforces the release gates.
type Runner struct {
	prepare  Preparer
	geocoder Geocoder
	store    quality.TableReader
	tests    TestRunner
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRunner creates a runner. geocoder and tests may be nil to skip those steps.
func NewRunner(prepare Preparer, gc Geocoder, store quality.TableReader, tests TestRunner, opts Options, logger zerolog.Logger) *Runner {
	if opts.Bounds == (geo.BoundingBox{}) {
		opts.Bounds = geo.Brazil
	}
	return &Runner{
		prepare:  prepare,
		geocoder: gc,
		store:    store,
		tests:    tests,
		opts:     opts,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		now:      time.Now,
	}
}

// Run executes every step and writes the summary. The summary is written
// even when a step aborts the run; the returned error is the abort reason.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	s := &Summary{StartedAt: r.now().UTC(), Snapshot: r.opts.Prepare.Snapshot}
	err := r.run(ctx, s)

	s.FinishedAt = r.now().UTC()
	if err != nil {
		s.AllPassed = false
	}
	if werr := r.writeSummary(s); werr != nil {
		err = errors.Join(err, werr)
	}

	r.logger.Info().
		Bool("all_passed", s.AllPassed).
		Int("rows", s.Coverage.Rows).
		Float64("coord_coverage", s.Coverage.CoordCoverage).
		Str("summary", r.opts.SummaryPath).
		Msg("pipeline finished")
	return s, err
}

func (r *Runner) run(ctx context.Context, s *Summary) error {
	report, err := step(s, StepPrepare, func() (*etl.Report, error) {
		return r.prepare.Run(ctx, r.opts.Prepare)
	})
	s.Prepare = report
	if report != nil && report.Snapshot != "" {
		s.Snapshot = report.Snapshot
	}
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	var geocodeFailure *float64
	if r.geocoder == nil || r.opts.Geocode == nil {
		skip(s, StepGeocode)
	} else {
		stats, err := step(s, StepGeocode, func() (*geocoder.Stats, error) {
			return r.geocoder.Run(ctx, *r.opts.Geocode)
		})
		s.Geocode = stats
		if err != nil {
			// the canonical table from prepare is still valid
			r.logger.Warn().Err(err).Msg("geocode step failed, continuing without new coordinates")
		} else if stats != nil {
			rate := stats.FailureRate()
			geocodeFailure = &rate
		}
	}

	tablePath := r.opts.Prepare.CanonicalPath
	if r.opts.Geocode != nil && r.opts.Geocode.Output != "" && s.Geocode != nil {
		tablePath = r.opts.Geocode.Output
	}
	rows, err := r.store.ReadCanonical(tablePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", tablePath, err)
	}
	s.Coverage = measureCoverage(rows)

	qa, err := step(s, StepQuality, func() (*QASummary, error) {
		return r.quality(rows)
	})
	s.QA = qa
	if err != nil {
		return err
	}

	var testsPassed *bool
	if r.tests == nil {
		skip(s, StepTests)
	} else {
		res, err := step(s, StepTests, func() (*TestResult, error) {
			res, err := r.tests.RunTests(ctx)
			if err == nil && !res.Passed {
				return res, fmt.Errorf("test command exited with code %d", res.ExitCode)
			}
			return res, err
		})
		s.Tests = res
		passed := err == nil
		testsPassed = &passed
	}

	var goldenAccuracy *float64
	if _, statErr := os.Stat(r.opts.GoldenPath); r.opts.GoldenPath == "" || statErr != nil {
		skip(s, StepGolden)
	} else {
		golden, err := step(s, StepGolden, func() (*GoldenSummary, error) {
			cases, err := LoadGolden(r.opts.GoldenPath)
			if err != nil {
				return nil, err
			}
			if err := ValidateGolden(cases); err != nil {
				return nil, err
			}
			summary := EvaluateGolden(entities.NewDataset(rows, tablePath, time.Time{}, false), cases)
			return &summary, nil
		})
		s.Golden = golden
		if err == nil {
			goldenAccuracy = &golden.Accuracy
		}
	}

	if r.opts.EventLogPath != "" {
		agg, err := events.Aggregate(r.opts.EventLogPath)
		if err != nil {
			r.logger.Warn().Err(err).Msg("failed to aggregate search events")
		} else {
			s.SearchEvents = &agg
		}
	}

	s.Gates = NewGates(r.opts.Gates).Evaluate(GateInputs{
		CoordCoverage:  s.Coverage.CoordCoverage,
		PhoneCoverage:  s.Coverage.PhoneCoverage,
		GeocodeFailure: geocodeFailure,
		TestsPassed:    testsPassed,
		GoldenAccuracy: goldenAccuracy,
		QAEsferaOK:     qa.EsferaOK,
	})
	s.AllPassed = AllPassed(s.Gates) && stepsOK(s.Steps)
	return nil
}

// quality runs the guard and writes the QA reports. Guard findings abort
// the run: a forbidden value reached the write path.
func (r *Runner) quality(rows []entities.Establishment) (*QASummary, error) {
	guard := quality.GuardRows(rows, r.opts.Bounds)
	guard.Path = r.opts.Prepare.CanonicalPath

	report := quality.BuildQAReport(rows)
	gate := quality.CheckEsferaGate(report, r.opts.ReleaseUF, r.opts.MaxPublicMismatchPct)
	qa := &QASummary{
		Counts:   report.Counts(),
		Gate:     gate,
		Guard:    guard,
		EsferaOK: guard.Passed() && gate.Passed,
	}

	if r.opts.QADir != "" {
		files, err := report.WriteCSV(r.opts.QADir)
		if err != nil {
			return qa, err
		}
		qa.Files = files
		qa.Workbook = filepath.Join(r.opts.QADir, quality.WorkbookName)
		if err := report.WriteWorkbook(qa.Workbook, &gate); err != nil {
			return qa, err
		}
	}

	if err := guard.Err(); err != nil {
		return qa, err
	}
	return qa, nil
}

func (r *Runner) writeSummary(s *Summary) error {
	if r.opts.SummaryPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.opts.SummaryPath), 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	tmp := r.opts.SummaryPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return os.Rename(tmp, r.opts.SummaryPath)
}

// step times fn and appends its result to the summary.
func step[T any](s *Summary, name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	res := StepResult{Name: name, OK: err == nil, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Error = err.Error()
	}
	s.Steps = append(s.Steps, res)
	return v, err
}

func skip(s *Summary, name string) {
	s.Steps = append(s.Steps, StepResult{Name: name, OK: true, Skipped: true})
}

func stepsOK(steps []StepResult) bool {
	for _, st := range steps {
		if !st.OK {
			return false
		}
	}
	return true
}

func measureCoverage(rows []entities.Establishment) Coverage {
	c := Coverage{Rows: len(rows)}
	for i := range rows {
		row := &rows[i]
		if row.Lat != nil && row.Lon != nil {
			c.WithCoords++
		}
		if row.PhoneE164 != "" {
			c.WithPhone++
		}
		if row.HasMaternity {
			c.HasMaternity++
		}
		if row.IsProbable {
			c.Probable++
		}
	}
	if c.Rows > 0 {
		c.CoordCoverage = geo.Round(float64(c.WithCoords)/float64(c.Rows), 4)
		c.PhoneCoverage = geo.Round(float64(c.WithPhone)/float64(c.Rows), 4)
	}
	return c
}

// ValidateOptions fails fast on missing inputs.
func ValidateOptions(opts Options) error {
	if opts.Prepare.DataDir == "" {
		return apperrors.NewConfigMissingError("DATA_DIR is required")
	}
	if opts.Prepare.Snapshot == "" {
		return apperrors.NewConfigMissingError("SNAPSHOT is required")
	}
	if opts.Prepare.CanonicalPath == "" {
		return apperrors.NewConfigMissingError("canonical table path is required")
	}
	if _, err := os.Stat(opts.Prepare.DataDir); err != nil {
		return apperrors.NewConfigMissingError("DATA_DIR does not exist: " + opts.Prepare.DataDir)
	}
	return nil
}
