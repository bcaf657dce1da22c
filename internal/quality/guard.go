package quality

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// Problems reported by the guard.
const (
	ProblemForbiddenEsfera = "forbidden_esfera"
	ProblemBadCNES         = "bad_cnes_id"
	ProblemBothTiers       = "maternity_and_probable"
	ProblemOutOfBounds     = "coordinates_out_of_bounds"
	ProblemTooManyPlans    = "too_many_convenios"
)

// maxReportedFindings caps the findings kept in memory; Count keeps the total.
const maxReportedFindings = 1000

// TableReader reads the canonical table.
type TableReader interface {
	ReadCanonical(path string) ([]entities.Establishment, error)
}

// Finding is one invariant violation in a written table.
type Finding struct {
	Row     int    `json:"row"`
	CNESID  string `json:"cnes_id"`
	Problem string `json:"problem"`
	Value   string `json:"value"`
}

// GuardReport is the result of scanning a written table.
type GuardReport struct {
	Path     string         `json:"path,omitempty"`
	Rows     int            `json:"rows"`
	Count    int            `json:"count"`
	ByType   map[string]int `json:"by_problem"`
	Findings []Finding      `json:"findings,omitempty"`
}

// Passed reports whether the table is free of violations.
func (r *GuardReport) Passed() bool {
	return r.Count == 0
}

// Err returns an invariant violation describing the findings, or nil.
func (r *GuardReport) Err() error {
	if r.Passed() {
		return nil
	}
	parts := make([]string, 0, len(r.ByType))
	for _, p := range []string{ProblemForbiddenEsfera, ProblemBadCNES, ProblemBothTiers, ProblemOutOfBounds, ProblemTooManyPlans} {
		if n := r.ByType[p]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", p, n))
		}
	}
	return apperrors.NewInvariantViolationError(fmt.Sprintf("%d invariant violations in %s: %s", r.Count, r.Path, strings.Join(parts, ", ")))
}

func (r *GuardReport) add(f Finding) {
	r.Count++
	r.ByType[f.Problem]++
	if len(r.Findings) < maxReportedFindings {
		r.Findings = append(r.Findings, f)
	}
}

// GuardRows scans rows the way they were written; nothing is repaired.
func GuardRows(rows []entities.Establishment, bounds geo.BoundingBox) *GuardReport {
	report := &GuardReport{Rows: len(rows), ByType: map[string]int{}}
	for i := range rows {
		row := &rows[i]
		if textutil.PadCNES(row.CNESID) != row.CNESID || len(row.CNESID) != 7 {
			report.add(Finding{Row: i, CNESID: row.CNESID, Problem: ProblemBadCNES, Value: row.CNESID})
		}
		if entities.IsForbiddenEsfera(string(row.Esfera)) {
			report.add(Finding{Row: i, CNESID: row.CNESID, Problem: ProblemForbiddenEsfera, Value: string(row.Esfera)})
		}
		if row.HasMaternity && row.IsProbable {
			report.add(Finding{Row: i, CNESID: row.CNESID, Problem: ProblemBothTiers, Value: "true"})
		}
		if (row.Lat != nil || row.Lon != nil) && !bounds.ContainsPtr(row.Lat, row.Lon) {
			report.add(Finding{Row: i, CNESID: row.CNESID, Problem: ProblemOutOfBounds, Value: coordString(row.Lat, row.Lon)})
		}
		if len(row.Convenios) > entities.MaxConvenios {
			report.add(Finding{Row: i, CNESID: row.CNESID, Problem: ProblemTooManyPlans, Value: fmt.Sprint(len(row.Convenios))})
		}
	}
	return report
}

// GuardFile reads the table at path and scans it.
func GuardFile(reader TableReader, path string, bounds geo.BoundingBox) (*GuardReport, error) {
	rows, err := reader.ReadCanonical(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewDatasetUnavailableError("canonical table not found: "+path, err)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	report := GuardRows(rows, bounds)
	report.Path = path
	return report, nil
}
