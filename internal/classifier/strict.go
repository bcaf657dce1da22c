package classifier

import (
	"regexp"

	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

var (
	strictExclude    = regexp.MustCompile(`\b(PSICOLOG\w*|FONO\w*|FISIOTER\w*|NUTRI\w*|CONSULTORIO\w*|AMBULATORI\w*|OPTICA\w*|OTICA\w*|ODONTO\w*|LABORATORIO\w*|FARMACIA\w*|DROGARIA\w*|ESTETICA\w*|VETERIN\w*|RADIOLOGIA|IMAGEM|DIAGNOSTICO\w*|CAPS|DENTAL)\b`)
	impliesMaternity = regexp.MustCompile(`\b(MATERNIDADE|MATERNO|OBSTETRIC\w*|CASA DE PARTO|HOSPITAL DA MULHER)\b`)
	strictInclude    = regexp.MustCompile(`\b(HOSPITAL\w*|HOSP|MATERN\w*|OBSTET\w*|MULHER|PARTO|NASCER|SANTA CASA|PRONTO.?SOCORRO|PRONTO.?ATENDIMENTO|UPA|PERINATAL)\b`)
)

// StrictFilter removes non-obstetric names that slipped through the evidence rules.
type StrictFilter struct {
	enabled bool
}

// NewStrictFilter returns a filter; a disabled filter keeps everything.
func NewStrictFilter(enabled bool) *StrictFilter {
	return &StrictFilter{enabled: enabled}
}

// Enabled reports whether the filter is active.
func (f *StrictFilter) Enabled() bool {
	return f != nil && f.enabled
}

// Keep applies the filter: the exclusion list wins, then confirmed rows and
// names matching the inclusion list are kept.
func (f *StrictFilter) Keep(name string, hasMaternity bool) bool {
	if !f.Enabled() {
		return true
	}
	norm := textutil.Normalize(name)
	if strictExclude.MatchString(norm) {
		return false
	}
	return hasMaternity || strictInclude.MatchString(norm)
}

// Excluded reports whether the name falls in the ambulatory exclusion set.
func Excluded(name string) bool {
	return strictExclude.MatchString(textutil.Normalize(name))
}

// ImpliesMaternity reports whether the name suggests an obstetric unit.
func ImpliesMaternity(name string) bool {
	return impliesMaternity.MatchString(textutil.Normalize(name))
}
