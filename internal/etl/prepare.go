package etl

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zatekoja/obstetric-locator/internal/classifier"
	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
	"github.com/zatekoja/obstetric-locator/pkg/phone"
	"github.com/zatekoja/obstetric-locator/pkg/textutil"
	"github.com/zatekoja/obstetric-locator/pkg/uf"
)

// TableWriter persists the canonical table and its trimmed variant.
type TableWriter interface {
	WriteCanonical(ctx context.Context, path string, rows []entities.Establishment) error
	WriteTrimmed(ctx context.Context, path string, rows []entities.Establishment) error
}

// Options selects the snapshot and the output paths.
type Options struct {
	DataDir       string
	Snapshot      string
	CanonicalPath string
	TrimmedPath   string
}

// Report summarizes one prepare run.
type Report struct {
	Snapshot       string                `json:"snapshot"`
	Sources        Sources               `json:"sources"`
	Tables         map[string]TableStats `json:"tables"`
	MissingTables  []string              `json:"missing_tables,omitempty"`
	RowsRead       int                   `json:"rows_read"`
	RowsWritten    int                   `json:"rows_written"`
	ParseErrors    int                   `json:"parse_errors"`
	Duplicates     int                   `json:"duplicates"`
	FilteredStrict int                   `json:"filtered_strict"`
	Blacklisted    int                   `json:"blacklisted"`
	InvalidCoords  int                   `json:"invalid_coords"`
	WithCoords     int                   `json:"with_coords"`
	WithPhone      int                   `json:"with_phone"`
	HasMaternity   int                   `json:"has_maternity"`
	Probable       int                   `json:"probable"`
	DurationMs     int64                 `json:"duration_ms"`
}

// Preparer joins the raw registry tables into the canonical table.
type Preparer struct {
	classifier *classifier.Classifier
	strict     *classifier.StrictFilter
	bounds     geo.BoundingBox
	writer     TableWriter
	logger     zerolog.Logger
}

// NewPreparer creates a preparer. writer may be nil when only Build is used.
func NewPreparer(c *classifier.Classifier, strict *classifier.StrictFilter, bounds geo.BoundingBox, writer TableWriter, logger zerolog.Logger) *Preparer {
	return &Preparer{
		classifier: c,
		strict:     strict,
		bounds:     bounds,
		writer:     writer,
		logger:     logger.With().Str("component", "prepare").Logger(),
	}
}

// Run discovers the snapshot tables, builds the rows and writes both tables.
func (p *Preparer) Run(ctx context.Context, opts Options) (*Report, error) {
	if p.writer == nil {
		return nil, apperrors.NewConfigMissingError("prepare requires a table writer")
	}
	src, err := Discover(opts.DataDir, opts.Snapshot)
	if err != nil {
		return nil, err
	}

	rows, report, err := p.Build(ctx, src)
	if err != nil {
		return report, err
	}
	for i := range rows {
		if entities.IsForbiddenEsfera(string(rows[i].Esfera)) {
			return report, apperrors.NewInvariantViolationError(fmt.Sprintf("esfera %q for cnes %s reached the write path", rows[i].Esfera, rows[i].CNESID))
		}
	}

	if err := p.writer.WriteCanonical(ctx, opts.CanonicalPath, rows); err != nil {
		return report, fmt.Errorf("write canonical table: %w", err)
	}
	if opts.TrimmedPath != "" {
		if err := p.writer.WriteTrimmed(ctx, opts.TrimmedPath, rows); err != nil {
			return report, fmt.Errorf("write trimmed table: %w", err)
		}
	}
	p.logger.Info().
		Str("snapshot", report.Snapshot).
		Int("rows", report.RowsWritten).
		Int("has_maternity", report.HasMaternity).
		Int("probable", report.Probable).
		Str("out", opts.CanonicalPath).
		Msg("canonical table written")
	return report, nil
}

// Build reads every discovered table and returns the classified rows sorted by cnes_id.
func (p *Preparer) Build(ctx context.Context, src Sources) ([]entities.Establishment, *Report, error) {
	start := time.Now()
	report := &Report{Snapshot: src.Snapshot, Sources: src, Tables: map[string]TableStats{}}

	ev := newEvidence()
	optional := []struct {
		table Table
		path  string
		load  func(context.Context, string, *Evidence, zerolog.Logger) (TableStats, error)
	}{
		{TableBeds, src.Beds, loadBeds},
		{TableServices, src.Services, loadServices},
		{TableQualifications, src.Qualifications, loadQualifications},
	}
	for _, t := range optional {
		if t.path == "" {
			report.Tables[string(t.table)] = TableStats{Missing: true}
			report.MissingTables = append(report.MissingTables, string(t.table))
			p.logger.Warn().Str("table", string(t.table)).Msg("supplementary table missing; evidence degraded")
			continue
		}
		stats, err := t.load(ctx, t.path, ev, p.logger)
		if err != nil {
			if ctx.Err() != nil {
				return nil, report, ctx.Err()
			}
			stats.Missing = true
			report.MissingTables = append(report.MissingTables, string(t.table))
			p.logger.Warn().Err(err).Str("table", string(t.table)).Msg("supplementary table unreadable; evidence degraded")
		}
		report.Tables[string(t.table)] = stats
		report.ParseErrors += stats.ParseErrors
		p.logger.Info().Str("table", string(t.table)).Int("rows", stats.Rows).Int("parse_errors", stats.ParseErrors).Msg("table loaded")
	}

	mtime := time.Time{}
	if st, err := os.Stat(src.Establishments); err == nil {
		mtime = st.ModTime().UTC()
	}

	rows, stats, err := p.readEstablishments(ctx, src, ev, mtime, report)
	report.Tables[string(TableEstablishments)] = stats
	if err != nil {
		return nil, report, apperrors.NewDatasetUnavailableError("establishments table unreadable", err)
	}
	report.ParseErrors += stats.ParseErrors
	report.RowsRead = stats.Rows

	sort.Slice(rows, func(i, j int) bool { return rows[i].CNESID < rows[j].CNESID })
	for i := range rows {
		if rows[i].Lat != nil {
			report.WithCoords++
		}
		if rows[i].PhoneE164 != "" {
			report.WithPhone++
		}
		if rows[i].HasMaternity {
			report.HasMaternity++
		}
		if rows[i].IsProbable {
			report.Probable++
		}
	}
	report.RowsWritten = len(rows)
	report.DurationMs = time.Since(start).Milliseconds()
	return rows, report, nil
}

var establishmentFields = []Field{
	FieldCNES, FieldRazaoSocial, FieldNomeFantasia, FieldTipoUnidade,
	FieldLogradouro, FieldNumero, FieldBairro, FieldCEP, FieldMunicipio, FieldCodMunicipio, FieldUF,
	FieldTelefone, FieldLatitude, FieldLongitude,
	FieldEsferaAdm, FieldNatJurCode, FieldNatJurText, FieldSUS, FieldSUSAlt,
}

func (p *Preparer) readEstablishments(ctx context.Context, src Sources, ev *Evidence, mtime time.Time, report *Report) ([]entities.Establishment, TableStats, error) {
	stats := TableStats{Path: src.Establishments}
	table, err := OpenTable(src.Establishments, FieldCNES)
	if err != nil {
		return nil, stats, err
	}
	defer table.Close()

	cm, err := ResolveColumns(table.Header(), establishmentFields, FieldCNES)
	if err != nil {
		return nil, stats, err
	}
	if !cm.Has(FieldNomeFantasia) && !cm.Has(FieldRazaoSocial) {
		return nil, stats, fmt.Errorf("no name column among %v / %v", Aliases[FieldNomeFantasia], Aliases[FieldRazaoSocial])
	}

	snapshotMtime := ""
	if !mtime.IsZero() {
		snapshotMtime = mtime.Format(time.RFC3339)
	}

	seen := map[string]bool{}
	var rows []entities.Establishment
	err = scan(ctx, table, &stats, p.logger, func(rec []string) bool {
		id := CNESKey(cm.Get(rec, FieldCNES))
		if id == "" {
			p.logger.Debug().Str("value", cm.Get(rec, FieldCNES)).Msg("invalid cnes_id")
			return false
		}
		if seen[id] {
			report.Duplicates++
			return true
		}
		seen[id] = true

		row, ok := p.buildRow(id, cm, rec, ev, report)
		if !ok {
			return true
		}
		row.Snapshot = src.Snapshot
		row.SnapshotMtime = snapshotMtime
		rows = append(rows, row)
		return true
	})
	return rows, stats, err
}

func (p *Preparer) buildRow(id string, cm ColumnMap, rec []string, ev *Evidence, report *Report) (entities.Establishment, bool) {
	razao := cm.Get(rec, FieldRazaoSocial)
	fantasia := cm.Get(rec, FieldNomeFantasia)
	name := DisplayName(fantasia, razao)
	if name == "" {
		return entities.Establishment{}, false
	}

	row := entities.Establishment{
		CNESID:       id,
		RazaoSocial:  textutil.CollapseSpaces(razao),
		NomeFantasia: textutil.CollapseSpaces(fantasia),
		Nome:         name,
		TipoUnidade:  normTypeCode(cm.Get(rec, FieldTipoUnidade)),
		Logradouro:   textutil.TitleCasePT(textutil.CollapseSpaces(cm.Get(rec, FieldLogradouro)), acronyms),
		Numero:       entities.NormalizeNumber(cm.Get(rec, FieldNumero)),
		Bairro:       textutil.TitleCasePT(textutil.CollapseSpaces(cm.Get(rec, FieldBairro)), acronyms),
		Cidade:       textutil.TitleCasePT(textutil.CollapseSpaces(cm.Get(rec, FieldMunicipio)), acronyms),
		CodMunicipio: textutil.Digits(cm.Get(rec, FieldCodMunicipio)),
		UF:           uf.Normalize(cm.Get(rec, FieldUF)),
		CEP:          entities.FormatCEP(cm.Get(rec, FieldCEP)),
		Telefone:     textutil.Digits(cm.Get(rec, FieldTelefone)),
		Convenios:    []string{},
	}
	if row.UF == "" && len(row.CodMunicipio) >= 2 {
		row.UF = uf.Normalize(row.CodMunicipio[:2])
	}
	row.Endereco = entities.ComposeAddress(entities.Address{
		Logradouro: row.Logradouro,
		Numero:     row.Numero,
		Bairro:     row.Bairro,
		Cidade:     row.Cidade,
		Estado:     row.UF,
		CEP:        row.CEP,
	})

	latRaw, lonRaw := cm.Get(rec, FieldLatitude), cm.Get(rec, FieldLongitude)
	lat, lon, ok := parseCoords(latRaw, lonRaw)
	switch {
	case ok && row.SetCoordinates(lat, lon, p.bounds):
	case latRaw != "" || lonRaw != "":
		report.InvalidCoords++
	}

	formatted := phone.Format(row.Telefone)
	row.TelefoneFormatado = formatted.Display
	row.PhoneE164 = formatted.E164

	row.Esfera = entities.DeriveEsfera(entities.EsferaSignals{
		Sphere:     cm.Get(rec, FieldEsferaAdm),
		NatJurCode: cm.Get(rec, FieldNatJurCode),
		NatJurText: cm.Get(rec, FieldNatJurText),
		Name:       strings.TrimSpace(razao + " " + fantasia),
	})
	row.AtendeSUSLabel = entities.ParseSUSLabel(cm.Get(rec, FieldSUS))
	if row.AtendeSUSLabel == "" {
		row.AtendeSUSLabel = entities.ParseSUSLabel(cm.Get(rec, FieldSUSAlt))
	}
	row.SUSBadge = entities.SUSBadge(row.AtendeSUSLabel, row.Esfera)

	res := p.classifier.Classify(classifier.Input{
		CNESID:         id,
		Name:           name,
		TypeCode:       row.TipoUnidade,
		Beds:           ev.Beds[id],
		Services:       ev.Services[id],
		Qualifications: ev.Qualifications[id],
	})
	row.HasMaternity = res.HasMaternity
	row.IsProbable = res.IsProbable
	row.Score = geo.Round(res.Score, 4)
	row.Evidence = entities.EncodeEvidence(res.Evidence)
	row.LeitosObst = res.ObstBeds
	row.LeitosTotal = res.TotalBeds
	row.TemInternacao = res.TotalBeds > 0

	if p.classifier.Blacklist().Blocked(id, name) {
		report.Blacklisted++
	}
	if !p.strict.Keep(name, row.HasMaternity) {
		report.FilteredStrict++
		return entities.Establishment{}, false
	}
	return row, true
}

func parseCoords(latRaw, lonRaw string) (float64, float64, bool) {
	if latRaw == "" || lonRaw == "" {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.ReplaceAll(latRaw, ",", "."), 64)
	lon, err2 := strconv.ParseFloat(strings.ReplaceAll(lonRaw, ",", "."), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// normTypeCode renders unit type codes as two digits ("5" -> "05").
func normTypeCode(raw string) string {
	s := strings.TrimSuffix(strings.TrimSpace(raw), ".0")
	if len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return "0" + s
	}
	return s
}
