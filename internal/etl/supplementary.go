package etl

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zatekoja/obstetric-locator/internal/classifier"
)

// Evidence groups the raw supplementary rows per cnes_id.
type Evidence struct {
	Beds           map[string][]classifier.Bed
	Services       map[string][]classifier.Service
	Qualifications map[string][]classifier.Qualification
}

func newEvidence() *Evidence {
	return &Evidence{
		Beds:           map[string][]classifier.Bed{},
		Services:       map[string][]classifier.Service{},
		Qualifications: map[string][]classifier.Qualification{},
	}
}

// TableStats counts what happened while reading one table.
type TableStats struct {
	Path        string `json:"path,omitempty"`
	Rows        int    `json:"rows"`
	ParseErrors int    `json:"parse_errors"`
	Missing     bool   `json:"missing,omitempty"`
}

// CNESKey extracts a 7-digit cnes_id from either a CO_CNES value or a
// CO_UNIDADE value (municipality code followed by the cnes_id).
func CNESKey(raw string) string {
	s := strings.TrimSuffix(strings.TrimSpace(raw), ".0")
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if len(s) > 7 {
		s = s[len(s)-7:]
	}
	return padOrEmpty(s)
}

func padOrEmpty(s string) string {
	if s == "" {
		return ""
	}
	return strings.Repeat("0", 7-len(s)) + s
}

// scan drives fn over every record of a table. Bad rows are counted and skipped.
func scan(ctx context.Context, src RowSource, stats *TableStats, logger zerolog.Logger, fn func(record []string) bool) error {
	for {
		if stats.Rows%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		record, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.ParseErrors++
				logger.Debug().Err(err).Msg("skipping malformed row")
				continue
			}
			return err
		}
		stats.Rows++
		if !fn(record) {
			stats.ParseErrors++
		}
	}
}

func loadBeds(ctx context.Context, path string, ev *Evidence, logger zerolog.Logger) (TableStats, error) {
	stats := TableStats{Path: path}
	src, err := OpenTable(path, FieldCNES)
	if err != nil {
		return stats, err
	}
	defer src.Close()

	cm, err := ResolveColumns(src.Header(), []Field{FieldCNES, FieldBedCode, FieldBedDesc, FieldBedQty}, FieldCNES)
	if err != nil {
		return stats, err
	}
	err = scan(ctx, src, &stats, logger, func(rec []string) bool {
		id := CNESKey(cm.Get(rec, FieldCNES))
		if id == "" {
			return false
		}
		qty, _ := strconv.ParseFloat(strings.ReplaceAll(cm.Get(rec, FieldBedQty), ",", "."), 64)
		ev.Beds[id] = append(ev.Beds[id], classifier.Bed{
			Code:        cm.Get(rec, FieldBedCode),
			Description: cm.Get(rec, FieldBedDesc),
			Quantity:    int64(qty),
		})
		return true
	})
	return stats, err
}

func loadServices(ctx context.Context, path string, ev *Evidence, logger zerolog.Logger) (TableStats, error) {
	stats := TableStats{Path: path}
	src, err := OpenTable(path, FieldCNES)
	if err != nil {
		return stats, err
	}
	defer src.Close()

	cm, err := ResolveColumns(src.Header(), []Field{FieldCNES, FieldServiceCode, FieldClassCode}, FieldCNES, FieldServiceCode)
	if err != nil {
		return stats, err
	}
	err = scan(ctx, src, &stats, logger, func(rec []string) bool {
		id := CNESKey(cm.Get(rec, FieldCNES))
		if id == "" {
			return false
		}
		ev.Services[id] = append(ev.Services[id], classifier.Service{
			Service:        cm.Get(rec, FieldServiceCode),
			Classification: cm.Get(rec, FieldClassCode),
		})
		return true
	})
	return stats, err
}

func loadQualifications(ctx context.Context, path string, ev *Evidence, logger zerolog.Logger) (TableStats, error) {
	stats := TableStats{Path: path}
	src, err := OpenTable(path, FieldCNES)
	if err != nil {
		return stats, err
	}
	defer src.Close()

	cm, err := ResolveColumns(src.Header(), []Field{FieldCNES, FieldQualCode, FieldQualDesc}, FieldCNES)
	if err != nil {
		return stats, err
	}
	err = scan(ctx, src, &stats, logger, func(rec []string) bool {
		id := CNESKey(cm.Get(rec, FieldCNES))
		if id == "" {
			return false
		}
		ev.Qualifications[id] = append(ev.Qualifications[id], classifier.Qualification{
			Code:        cm.Get(rec, FieldQualCode),
			Description: cm.Get(rec, FieldQualDesc),
		})
		return true
	})
	return stats, err
}
