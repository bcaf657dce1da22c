package etl

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

var overrideFields = []Field{
	FieldCNES, FieldRazaoSocial, FieldNomeFantasia,
	FieldEsferaAdm, FieldNatJurCode, FieldNatJurText, FieldSUS, FieldSUSAlt,
}

// names that denote the public system itself, not a private plan
var publicPlanNames = []string{"SUS", "SISTEMA UNICO DE SAUDE", "SISTEMA UNICO", "PUBLICO"}

// ReadOverrides derives sphere and SUS badge per cnes_id from an
// establishments file, using the same rules as Prepare, and attaches up to
// MaxConvenios distinct private plans from the convênio table when one is given.
func ReadOverrides(ctx context.Context, establishments, convenios string, logger zerolog.Logger) (map[string]entities.OverrideRecord, error) {
	src, err := OpenTable(establishments, FieldCNES)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	cm, err := ResolveColumns(src.Header(), overrideFields, FieldCNES)
	if err != nil {
		return nil, err
	}

	out := map[string]entities.OverrideRecord{}
	stats := TableStats{Path: establishments}
	err = scan(ctx, src, &stats, logger, func(rec []string) bool {
		id := CNESKey(cm.Get(rec, FieldCNES))
		if id == "" {
			return false
		}
		if _, seen := out[id]; seen {
			return true
		}
		razao, fantasia := cm.Get(rec, FieldRazaoSocial), cm.Get(rec, FieldNomeFantasia)
		esfera := entities.DeriveEsfera(entities.EsferaSignals{
			Sphere:     cm.Get(rec, FieldEsferaAdm),
			NatJurCode: cm.Get(rec, FieldNatJurCode),
			NatJurText: cm.Get(rec, FieldNatJurText),
			Name:       strings.TrimSpace(razao + " " + fantasia),
		})
		label := entities.ParseSUSLabel(cm.Get(rec, FieldSUS))
		if label == "" {
			label = entities.ParseSUSLabel(cm.Get(rec, FieldSUSAlt))
		}
		out[id] = entities.OverrideRecord{Esfera: esfera, SUSBadge: entities.SUSBadge(label, esfera)}
		return true
	})
	if err != nil {
		return nil, err
	}
	logger.Info().Str("path", establishments).Int("rows", stats.Rows).Int("parse_errors", stats.ParseErrors).Int("records", len(out)).Msg("override snapshot read")

	if convenios == "" {
		return out, nil
	}
	plans, err := readConvenios(ctx, convenios, logger)
	if err != nil {
		return nil, err
	}
	for id, list := range plans {
		rec, ok := out[id]
		if !ok {
			continue
		}
		rec.Convenios = list
		out[id] = rec
	}
	return out, nil
}

func readConvenios(ctx context.Context, path string, logger zerolog.Logger) (map[string][]string, error) {
	src, err := OpenTable(path, FieldCNES)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	cm, err := ResolveColumns(src.Header(), []Field{FieldCNES, FieldConvenio}, FieldCNES, FieldConvenio)
	if err != nil {
		return nil, err
	}

	plans := map[string][]string{}
	stats := TableStats{Path: path}
	err = scan(ctx, src, &stats, logger, func(rec []string) bool {
		id := CNESKey(cm.Get(rec, FieldCNES))
		if id == "" {
			return false
		}
		name := textutil.CollapseSpaces(cm.Get(rec, FieldConvenio))
		if name == "" || isPublicPlan(name) || len(plans[id]) >= entities.MaxConvenios {
			return true
		}
		for _, existing := range plans[id] {
			if strings.EqualFold(existing, name) {
				return true
			}
		}
		plans[id] = append(plans[id], name)
		return true
	})
	logger.Info().Str("path", path).Int("rows", stats.Rows).Int("establishments", len(plans)).Msg("convenio table read")
	return plans, err
}

func isPublicPlan(name string) bool {
	n := textutil.Normalize(name)
	for _, p := range publicPlanNames {
		if n == p || strings.HasPrefix(n, p+" ") {
			return true
		}
	}
	return false
}
