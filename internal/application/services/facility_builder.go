package services

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/observability"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
	"github.com/zatekoja/obstetric-locator/pkg/phone"
)

const routingBaseURL = "https://www.google.com/maps/dir/?api=1"

// RoutingURL links to turn-by-turn directions. Without an origin the map
// app routes from the device location.
func RoutingURL(origin *providers.Coordinates, lat, lon float64) string {
	var b strings.Builder
	b.WriteString(routingBaseURL)
	if origin != nil {
		b.WriteString("&origin=")
		b.WriteString(formatCoord(origin.Latitude, origin.Longitude))
	}
	b.WriteString("&destination=")
	b.WriteString(formatCoord(lat, lon))
	return b.String()
}

func formatCoord(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

// buildFacility normalizes one row for output and merges its override
// record. The second return value is the override reason.
func (s *EmergencySearchService) buildFacility(ctx context.Context, c candidate, origin *providers.Coordinates) (entities.Facility, string) {
	row := c.row

	esfera, repaired := entities.NormalizeEsfera(string(row.Esfera), row.Nome)
	if repaired && row.Esfera != "" {
		observability.LoggerFromContext(ctx).Warn().
			Str("cnes_id", row.CNESID).
			Str("value", string(row.Esfera)).
			Str("esfera", string(esfera)).
			Msg("invalid esfera rewritten at emit time")
	}
	label := row.AtendeSUSLabel
	convenios := row.Convenios

	reason := entities.OverrideNoMatch
	if s.overrides != nil {
		if rec, ok := s.overrides.Get(ctx, row.CNESID); ok {
			reason = entities.OverrideNotApplied
			if rec.Esfera.Valid() && rec.Esfera != esfera {
				esfera = rec.Esfera
				reason = entities.OverrideApplied
			}
			if l := entities.LabelFromBadge(rec.SUSBadge); l != "" && l != label {
				label = l
				reason = entities.OverrideApplied
			}
			if len(rec.Convenios) > 0 && !slices.Equal(rec.Convenios, convenios) {
				convenios = rec.Convenios
				reason = entities.OverrideApplied
			}
			esfera, _ = entities.NormalizeEsfera(string(esfera), row.Nome)
		}
	}

	f := entities.Facility{
		CNESID:       row.CNESID,
		Nome:         row.Nome,
		Esfera:       esfera,
		SUSBadge:     entities.SUSBadge(label, esfera),
		AtendeSUS:    entities.EffectiveSUSLabel(label, esfera),
		HasMaternity: c.tier == entities.TierConfirmed,
		IsProbable:   c.tier == entities.TierProbable,
		Score:        row.Score,
		Telefone:     row.Telefone,
	}
	f.LabelMaternidade = s.maternityLabel(c)

	addr := addressOf(row)
	f.Endereco = row.Endereco
	if f.Endereco == "" {
		f.Endereco = entities.ComposeAddress(addr)
	}
	f.Logradouro = addr.Logradouro
	if n := entities.NormalizeNumber(addr.Numero); n != "" {
		f.Numero = &n
	}
	f.Bairro = addr.Bairro
	f.Cidade = addr.Cidade
	f.Estado = addr.Estado

	formatted, e164 := row.TelefoneFormatado, row.PhoneE164
	if formatted == "" {
		p := phone.Format(row.Telefone)
		formatted, e164 = p.Display, p.E164
	}
	f.TelefoneFormatado = formatted
	if e164 != "" {
		f.PhoneE164 = &e164
	}

	if row.Lat != nil && row.Lon != nil {
		lat, lon := *row.Lat, *row.Lon
		f.Lat, f.Lon = &lat, &lon
		f.RotasURL = RoutingURL(origin, lat, lon)
		if origin != nil {
			d := geo.Round(c.distance, 2)
			f.DistanciaKm = &d
		}
	}
	if c.travel != nil {
		t := *c.travel
		f.TempoEstimadoSeg = &t
	}

	if len(convenios) > entities.MaxConvenios {
		convenios = convenios[:entities.MaxConvenios]
	}
	f.Convenios = append([]string{}, convenios...)
	f.HasConvenios = len(f.Convenios) > 0

	return f, reason
}

func (s *EmergencySearchService) maternityLabel(c candidate) string {
	switch c.tier {
	case entities.TierConfirmed:
		return entities.LabelConfirmed
	case entities.TierProbable:
		return entities.LabelProbable
	}
	if s.opts.Classifier != nil && s.opts.Classifier.IsHospital(c.row.TipoUnidade, c.row.Nome) {
		return entities.LabelHospital
	}
	return entities.LabelNotListed
}

// addressOf prefers the stored components and fills the gaps by parsing
// the free-text address.
func addressOf(row *entities.Establishment) entities.Address {
	addr := entities.Address{
		Logradouro: row.Logradouro,
		Numero:     row.Numero,
		Bairro:     row.Bairro,
		Cidade:     row.Cidade,
		Estado:     row.UF,
		CEP:        row.CEP,
	}
	if addr.Logradouro != "" && addr.Bairro != "" {
		return addr
	}
	parsed := entities.ParseAddress(row.Endereco)
	if addr.Logradouro == "" {
		addr.Logradouro = parsed.Logradouro
		addr.Numero = parsed.Numero
	}
	if addr.Bairro == "" {
		addr.Bairro = parsed.Bairro
	}
	if addr.Cidade == "" {
		addr.Cidade = parsed.Cidade
	}
	if addr.Estado == "" {
		addr.Estado = parsed.Estado
	}
	if addr.CEP == "" {
		addr.CEP = parsed.CEP
	}
	return addr
}

// effectiveTier applies the blacklist on top of the stored classification.
func (s *EmergencySearchService) effectiveTier(row *entities.Establishment) entities.Tier {
	tier := row.Tier()
	if tier == entities.TierOther || s.opts.Classifier == nil {
		return tier
	}
	if s.opts.Classifier.Blacklist().Blocked(row.CNESID, row.Nome) {
		return entities.TierOther
	}
	return tier
}
