package quality

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/zatekoja/obstetric-locator/internal/classifier"
	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/pkg/uf"
)

// QA report names; each becomes <name>.csv and a sheet of the workbook.
const (
	ReportPublicMismatch     = "qa_publico_vs_privado"
	ReportProbableExcluded   = "qa_provavel_ambulatorial"
	ReportMaternityUnflagged = "qa_maternidade_sem_flag"

	WorkbookName = "qa_report.xlsx"
)

var reportNames = []string{ReportPublicMismatch, ReportProbableExcluded, ReportMaternityUnflagged}

var mismatchHeader = []string{"cnes_id", "nome", "uf", "cidade", "esfera", "has_maternity", "is_probable", "score"}

// Mismatch is one row flagged by a QA report.
type Mismatch struct {
	CNESID       string
	Nome         string
	UF           string
	Cidade       string
	Esfera       entities.Esfera
	HasMaternity bool
	IsProbable   bool
	Score        float64
}

func (m Mismatch) record() []string {
	return []string{
		m.CNESID, m.Nome, m.UF, m.Cidade, string(m.Esfera),
		strconv.FormatBool(m.HasMaternity), strconv.FormatBool(m.IsProbable),
		strconv.FormatFloat(m.Score, 'f', 3, 64),
	}
}

// QAReport holds the three mismatch lists of one release.
type QAReport struct {
	Reports  map[string][]Mismatch
	Rows     int
	RowsByUF map[string]int
}

// BuildQAReport flags rows whose name contradicts the computed fields.
func BuildQAReport(rows []entities.Establishment) *QAReport {
	r := &QAReport{
		Reports:  make(map[string][]Mismatch, len(reportNames)),
		Rows:     len(rows),
		RowsByUF: map[string]int{},
	}
	for _, name := range reportNames {
		r.Reports[name] = []Mismatch{}
	}

	for i := range rows {
		row := &rows[i]
		m := Mismatch{
			CNESID:       row.CNESID,
			Nome:         row.Nome,
			UF:           uf.Normalize(row.UF),
			Cidade:       row.Cidade,
			Esfera:       row.Esfera,
			HasMaternity: row.HasMaternity,
			IsProbable:   row.IsProbable,
			Score:        row.Score,
		}
		r.RowsByUF[m.UF]++

		if entities.EsferaFromName(row.Nome) == entities.EsferaPublico && row.Esfera != entities.EsferaPublico {
			r.Reports[ReportPublicMismatch] = append(r.Reports[ReportPublicMismatch], m)
		}
		if row.IsProbable && classifier.Excluded(row.Nome) {
			r.Reports[ReportProbableExcluded] = append(r.Reports[ReportProbableExcluded], m)
		}
		if !row.HasMaternity && !row.IsProbable && classifier.ImpliesMaternity(row.Nome) {
			r.Reports[ReportMaternityUnflagged] = append(r.Reports[ReportMaternityUnflagged], m)
		}
	}
	return r
}

// Counts returns the number of rows per report.
func (r *QAReport) Counts() map[string]int {
	out := make(map[string]int, len(r.Reports))
	for name, list := range r.Reports {
		out[name] = len(list)
	}
	return out
}

// PublicMismatchPct is the share (in percent) of rows of the given state
// flagged by the public-sphere report. An empty state covers the whole table.
func (r *QAReport) PublicMismatchPct(state string) float64 {
	state = uf.Normalize(state)
	total := r.Rows
	if state != "" {
		total = r.RowsByUF[state]
	}
	if total == 0 {
		return 0
	}
	flagged := 0
	for _, m := range r.Reports[ReportPublicMismatch] {
		if state == "" || m.UF == state {
			flagged++
		}
	}
	return float64(flagged) * 100 / float64(total)
}

// WriteCSV writes one file per report into dir and returns their paths.
func (r *QAReport) WriteCSV(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create QA directory: %w", err)
	}
	paths := make([]string, 0, len(reportNames))
	for _, name := range reportNames {
		path := filepath.Join(dir, name+".csv")
		if err := writeCSV(path, r.Reports[name]); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSV(path string, rows []Mismatch) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(mismatchHeader); err != nil {
		return err
	}
	for _, m := range rows {
		if err := w.Write(m.record()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// WriteWorkbook writes a summary sheet plus one sheet per report.
func (r *QAReport) WriteWorkbook(path string, gate *GateResult) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	const summary = "resumo"
	index, err := f.NewSheet(summary)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	lines := [][]any{{"report", "rows"}}
	for _, name := range reportNames {
		lines = append(lines, []any{name, len(r.Reports[name])})
	}
	lines = append(lines, []any{"total_rows", r.Rows})
	if gate != nil {
		lines = append(lines,
			[]any{"release_uf", gate.UF},
			[]any{"public_mismatch_pct", gate.Pct},
			[]any{"gate_passed", gate.Passed},
		)
	}
	if err := writeSheet(f, summary, lines, headerStyle); err != nil {
		return err
	}

	for _, name := range reportNames {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		lines := make([][]any, 0, len(r.Reports[name])+1)
		header := make([]any, len(mismatchHeader))
		for i, h := range mismatchHeader {
			header[i] = h
		}
		lines = append(lines, header)
		for _, m := range r.Reports[name] {
			lines = append(lines, []any{m.CNESID, m.Nome, m.UF, m.Cidade, string(m.Esfera), m.HasMaternity, m.IsProbable, m.Score})
		}
		if err := writeSheet(f, name, lines, headerStyle); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create QA directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, lines [][]any, headerStyle int) error {
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(lines[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, headerStyle)
}
