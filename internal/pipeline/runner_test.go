package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/etl"
	"github.com/zatekoja/obstetric-locator/internal/geocoder"
	"github.com/zatekoja/obstetric-locator/internal/quality"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

type fakePreparer struct {
	report *etl.Report
	err    error
}

func (p fakePreparer) Run(ctx context.Context, opts etl.Options) (*etl.Report, error) {
	return p.report, p.err
}

type fakeGeocoder struct {
	stats *geocoder.Stats
	err   error
}

func (g fakeGeocoder) Run(ctx context.Context, opts geocoder.Options) (*geocoder.Stats, error) {
	return g.stats, g.err
}

type fakeStore struct {
	rows []entities.Establishment
}

func (s fakeStore) ReadCanonical(path string) ([]entities.Establishment, error) {
	out := make([]entities.Establishment, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

type fakeTests struct {
	passed bool
}

func (f fakeTests) RunTests(ctx context.Context) (*TestResult, error) {
	res := &TestResult{Command: "go test ./...", Passed: f.passed}
	if !f.passed {
		res.ExitCode = 1
	}
	return res, nil
}

func tableRows(n int) []entities.Establishment {
	rows := make([]entities.Establishment, n)
	for i := range rows {
		lat, lon := -23.5+float64(i)*0.01, -46.6
		rows[i] = entities.Establishment{
			CNESID:    fmt.Sprintf("%07d", i+1),
			Nome:      fmt.Sprintf("HOSPITAL SAO JOSE %d", i),
			UF:        "SP",
			Esfera:    entities.EsferaPrivado,
			Lat:       &lat,
			Lon:       &lon,
			PhoneE164: "+551130456789",
		}
	}
	rows[0].HasMaternity = true
	return rows
}

func testOptions(t *testing.T) Options {
	dir := t.TempDir()
	golden := filepath.Join(dir, "golden.json")
	require.NoError(t, os.WriteFile(golden, []byte(`[{"cnes_id": "0000001", "expected_has_maternity": true}]`), 0o644))
	eventLog := filepath.Join(dir, "search_events.jsonl")
	require.NoError(t, os.WriteFile(eventLog, []byte(`{"expanded":true,"found_a":2,"found_b":1,"banner_192":false}`+"\n"+"garbage\n"), 0o644))

	return Options{
		Prepare:              etl.Options{DataDir: dir, Snapshot: "202512", CanonicalPath: filepath.Join(dir, "establishments.parquet")},
		QADir:                filepath.Join(dir, "qa"),
		GoldenPath:           golden,
		ReleaseUF:            "SP",
		MaxPublicMismatchPct: 0.5,
		EventLogPath:         eventLog,
		SummaryPath:          filepath.Join(dir, "out", "run_summary.json"),
	}
}

func readSummary(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestRunner_AllPassed(t *testing.T) {
	opts := testOptions(t)
	r := NewRunner(fakePreparer{report: &etl.Report{Snapshot: "202512", RowsWritten: 20}}, nil, fakeStore{rows: tableRows(20)}, fakeTests{passed: true}, opts, zerolog.Nop())

	s, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, s.AllPassed)
	assert.Equal(t, "202512", s.Snapshot)
	assert.Equal(t, 1.0, s.Coverage.CoordCoverage)
	assert.Equal(t, 1, s.Coverage.HasMaternity)
	require.NotNil(t, s.Golden)
	assert.Equal(t, 1.0, s.Golden.Accuracy)
	require.NotNil(t, s.SearchEvents)
	assert.Equal(t, 1, s.SearchEvents.Total)
	assert.Equal(t, 1, s.SearchEvents.Malformed)
	require.NotNil(t, s.QA)
	assert.True(t, s.QA.EsferaOK)
	assert.Len(t, s.QA.Files, 3)
	assert.FileExists(t, s.QA.Workbook)

	names := make([]string, len(s.Steps))
	for i, st := range s.Steps {
		names[i] = st.Name
	}
	assert.Equal(t, []string{StepPrepare, StepGeocode, StepQuality, StepTests, StepGolden}, names)
	assert.True(t, s.Steps[1].Skipped)

	written := readSummary(t, opts.SummaryPath)
	assert.Equal(t, true, written["all_passed"])
	assert.Contains(t, written, "search_events")
}

func TestRunner_GuardViolationAborts(t *testing.T) {
	opts := testOptions(t)
	rows := tableRows(20)
	rows[3].Esfera = entities.ForbiddenEsfera
	r := NewRunner(fakePreparer{report: &etl.Report{}}, nil, fakeStore{rows: rows}, fakeTests{passed: true}, opts, zerolog.Nop())

	s, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvariantViolation))
	assert.False(t, s.AllPassed)
	require.NotNil(t, s.QA)
	assert.Equal(t, 1, s.QA.Guard.ByType[quality.ProblemForbiddenEsfera])

	written := readSummary(t, opts.SummaryPath)
	assert.Equal(t, false, written["all_passed"])
}

func TestRunner_PrepareFailure(t *testing.T) {
	opts := testOptions(t)
	r := NewRunner(fakePreparer{err: apperrors.NewConfigMissingError("no establishment table")}, nil, fakeStore{}, nil, opts, zerolog.Nop())

	s, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfigMissing))
	require.Len(t, s.Steps, 1)
	assert.False(t, s.Steps[0].OK)
	assert.FileExists(t, opts.SummaryPath)
}

func TestRunner_GatesFail(t *testing.T) {
	opts := testOptions(t)
	opts.Geocode = &geocoder.Options{Mode: geocoder.ModeGeocode}
	rows := tableRows(10)
	for i := 0; i < 3; i++ {
		rows[i].Lat, rows[i].Lon = nil, nil
	}
	gc := fakeGeocoder{stats: &geocoder.Stats{Attempted: 10, Filled: 7}}
	r := NewRunner(fakePreparer{report: &etl.Report{}}, gc, fakeStore{rows: rows}, fakeTests{passed: false}, opts, zerolog.Nop())

	s, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, s.AllPassed)
	assert.False(t, gateByName(t, s.Gates, GateCoordCoverage).Passed)
	assert.False(t, gateByName(t, s.Gates, GateGeocodeFailure).Passed)
	assert.False(t, gateByName(t, s.Gates, GateTests).Passed)
	assert.True(t, gateByName(t, s.Gates, GateEsfera).Passed)
}

func TestRunner_GeocodeErrorIsNotFatal(t *testing.T) {
	opts := testOptions(t)
	opts.Geocode = &geocoder.Options{Mode: geocoder.ModeGeocode}
	gc := fakeGeocoder{err: errors.New("provider down")}
	r := NewRunner(fakePreparer{report: &etl.Report{}}, gc, fakeStore{rows: tableRows(20)}, nil, opts, zerolog.Nop())

	s, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, s.AllPassed)
	assert.False(t, s.Steps[1].OK)
	assert.Equal(t, "provider down", s.Steps[1].Error)
}

func TestValidateOptions(t *testing.T) {
	opts := testOptions(t)
	assert.NoError(t, ValidateOptions(opts))

	missing := opts
	missing.Prepare.Snapshot = ""
	assert.True(t, apperrors.IsType(ValidateOptions(missing), apperrors.ErrorTypeConfigMissing))

	missing = opts
	missing.Prepare.DataDir = filepath.Join(t.TempDir(), "nope")
	assert.True(t, apperrors.IsType(ValidateOptions(missing), apperrors.ErrorTypeConfigMissing))
}

func TestCommandTestRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX true/false")
	}

	res, err := NewCommandTestRunner("true", "").RunTests(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Passed)

	res, err = NewCommandTestRunner("false", "").RunTests(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, 1, res.ExitCode)

	_, err = NewCommandTestRunner("definitely-not-a-command-xyz", "").RunTests(context.Background())
	assert.Error(t, err)

	_, err = NewCommandTestRunner("  ", "").RunTests(context.Background())
	assert.Error(t, err)
}
