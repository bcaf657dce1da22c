package etl

import (
	"regexp"
	"strings"

	"github.com/zatekoja/obstetric-locator/pkg/textutil"
	"github.com/zatekoja/obstetric-locator/pkg/uf"
)

var legalSuffix = regexp.MustCompile(`(?i)[\s,.-]*\b(LTDA\.?|S/?A|S\.A\.?|EIRELI|ME|EPP|MEI|SS|S/S)\s*$`)

var acronyms = func() map[string]bool {
	m := map[string]bool{
		"SUS": true, "UPA": true, "UBS": true, "SAMU": true, "UTI": true, "AMA": true,
		"CAPS": true, "HU": true, "HC": true, "HRAS": true, "CPN": true, "UNIMED": true,
		"II": true, "III": true, "IV": true, "VI": true, "VII": true, "VIII": true, "IX": true, "XI": true,
	}
	for _, s := range uf.All() {
		m[s] = true
	}
	return m
}()

// CleanName strips legal suffixes, collapses whitespace and title-cases the
// name while keeping known acronyms and state codes upper case.
func CleanName(raw string) string {
	name := textutil.CollapseSpaces(raw)
	for {
		stripped := strings.TrimSpace(legalSuffix.ReplaceAllString(name, ""))
		if stripped == name || stripped == "" {
			break
		}
		name = stripped
	}
	return textutil.TitleCasePT(name, acronyms)
}

// DisplayName prefers the fantasy name and falls back to the legal name.
func DisplayName(fantasia, razao string) string {
	if n := CleanName(fantasia); n != "" {
		return n
	}
	return CleanName(razao)
}
