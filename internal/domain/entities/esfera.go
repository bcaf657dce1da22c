package entities

import (
	"strings"

	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// Esfera is the administrative sphere of an establishment. Only the three
// constants below are valid; anything else must be repaired before it is
// written or emitted.
type Esfera string

const (
	EsferaPublico      Esfera = "Público"
	EsferaPrivado      Esfera = "Privado"
	EsferaFilantropico Esfera = "Filantrópico"
)

// ForbiddenEsfera is the sentinel that must never reach a consumer.
const ForbiddenEsfera = "Desconhecido"

var publicKeywords = []string{
	"MUNICIPAL", "ESTADUAL", "FEDERAL", "PUBLICA", "PUBLICO", "PREFEITURA",
	"SECRETARIA DE SAUDE", "SECRETARIA MUNICIPAL", "SECRETARIA ESTADUAL",
}

// matched against the raw upper-cased name so the trailing dot survives
var publicNameTokens = []string{"H MUN ", "H. MUN", "MUN.", "HOSP MUN"}

var philanthropicKeywords = []string{
	"SANTA CASA", "FILANTROPICA", "FILANTROPICO", "BENEFICENTE", "BENEFICENCIA",
	"MISERICORDIA", "IRMANDADE", "FUNDACAO", "SEM FINS LUCRATIVOS", "OSCIP",
}

// Valid reports whether e is one of the three allowed values.
func (e Esfera) Valid() bool {
	switch e {
	case EsferaPublico, EsferaPrivado, EsferaFilantropico:
		return true
	}
	return false
}

func (e Esfera) String() string { return string(e) }

// ParseEsfera maps free text onto an allowed value. ok is false when the text
// does not name a sphere (including the forbidden sentinel).
func ParseEsfera(raw string) (Esfera, bool) {
	switch textutil.Normalize(raw) {
	case "PUBLICO", "PUBLICA", "ADMINISTRACAO PUBLICA":
		return EsferaPublico, true
	case "PRIVADO", "PRIVADA", "EMPRESARIAL", "ENTIDADES EMPRESARIAIS":
		return EsferaPrivado, true
	case "FILANTROPICO", "FILANTROPICA", "SEM FINS LUCRATIVOS", "ENTIDADES SEM FINS LUCRATIVOS":
		return EsferaFilantropico, true
	}
	return "", false
}

// IsForbiddenEsfera reports whether raw is the sentinel or anything that is
// not an allowed value.
func IsForbiddenEsfera(raw string) bool {
	if strings.EqualFold(strings.TrimSpace(raw), ForbiddenEsfera) {
		return true
	}
	return !Esfera(raw).Valid()
}

// EsferaSignals are the raw inputs the sphere rule looks at.
type EsferaSignals struct {
	Sphere     string // administrative sphere text
	NatJurCode string // legal nature code; only the first digit matters
	NatJurText string
	Name       string
}

// DeriveEsfera applies the sphere rule: public by legal-nature digit 1 or a
// public keyword, philanthropic by digit 3 or a philanthropic keyword,
// otherwise private.
func DeriveEsfera(s EsferaSignals) Esfera {
	digit := firstDigit(s.NatJurCode)
	text := textutil.Normalize(strings.Join([]string{s.Sphere, s.NatJurText, s.Name}, " "))
	raw := " " + strings.ToUpper(textutil.StripAccents(s.Name)) + " "

	if digit == '1' || containsAny(text, publicKeywords) || containsAny(raw, publicNameTokens) {
		return EsferaPublico
	}
	if digit == '3' || containsAny(text, philanthropicKeywords) {
		return EsferaFilantropico
	}
	return EsferaPrivado
}

// EsferaFromName is the name-only heuristic used to repair stored values.
func EsferaFromName(name string) Esfera {
	return DeriveEsfera(EsferaSignals{Name: name})
}

// NormalizeEsfera returns stored when it is allowed, otherwise repairs it from
// the name with Privado as the final default. repaired is true when the
// stored value had to be replaced.
func NormalizeEsfera(stored, name string) (e Esfera, repaired bool) {
	if parsed, ok := ParseEsfera(stored); ok {
		return parsed, parsed != Esfera(stored)
	}
	return EsferaFromName(name), true
}

func firstDigit(code string) byte {
	for i := 0; i < len(code); i++ {
		if code[i] >= '0' && code[i] <= '9' {
			return code[i]
		}
	}
	return 0
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
