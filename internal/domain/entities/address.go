package entities

import (
	"strings"

	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// Address holds the components extracted from the free-text address.
type Address struct {
	Logradouro string `json:"logradouro"`
	Numero     string `json:"numero"`
	Bairro     string `json:"bairro"`
	Cidade     string `json:"cidade"`
	Estado     string `json:"estado"`
	CEP        string `json:"cep,omitempty"`
}

const (
	neighborhoodSep = " – "
	cepSep          = " • CEP "
	noNumber        = "S/N"
)

var emptyNumbers = map[string]bool{
	"":           true,
	"S/N":        true,
	"SN":         true,
	"S N":        true,
	"SEM NUMERO": true,
	"NAN":        true,
}

// NormalizeNumber returns "" for the placeholders used when a street number is absent.
func NormalizeNumber(raw string) string {
	n := strings.TrimSpace(raw)
	if emptyNumbers[textutil.Normalize(n)] {
		return ""
	}
	return n
}

// FormatCEP renders an 8-digit postal code as NNNNN-NNN; anything else yields "".
func FormatCEP(raw string) string {
	d := textutil.Digits(raw)
	if len(d) != 8 {
		return ""
	}
	return d[:5] + "-" + d[5:]
}

// ComposeAddress renders "STREET, NUMBER – NEIGHBORHOOD, CITY/UF • CEP NNNNN-NNN",
// omitting the pieces that are empty.
func ComposeAddress(a Address) string {
	var left string
	if street := strings.TrimSpace(a.Logradouro); street != "" {
		number := NormalizeNumber(a.Numero)
		if number == "" {
			number = noNumber
		}
		left = street + ", " + number
	}

	var right []string
	if b := strings.TrimSpace(a.Bairro); b != "" {
		right = append(right, b)
	}
	city, state := strings.TrimSpace(a.Cidade), strings.TrimSpace(a.Estado)
	switch {
	case city != "" && state != "":
		right = append(right, city+"/"+state)
	case city != "":
		right = append(right, city)
	case state != "":
		right = append(right, state)
	}

	out := left
	if len(right) > 0 {
		if out != "" {
			out += neighborhoodSep
		}
		out += strings.Join(right, ", ")
	}
	if cep := FormatCEP(a.CEP); cep != "" && out != "" {
		out += cepSep + cep
	}
	return out
}

// ParseAddress extracts components from either the composed form or the
// plain "STREET, NUMBER, NEIGHBORHOOD, CITY/UF" form.
func ParseAddress(s string) Address {
	var a Address
	s = strings.TrimSpace(s)
	if s == "" {
		return a
	}

	if i := strings.Index(s, cepSep); i >= 0 {
		a.CEP = FormatCEP(s[i+len(cepSep):])
		s = strings.TrimSpace(s[:i])
	}

	if i := strings.Index(s, neighborhoodSep); i >= 0 {
		left, right := s[:i], s[i+len(neighborhoodSep):]
		a.Logradouro, a.Numero = splitStreet(left)
		if j := strings.LastIndex(right, ", "); j >= 0 {
			a.Bairro = strings.TrimSpace(right[:j])
			a.Cidade, a.Estado = splitCityUF(right[j+2:])
		} else if strings.Contains(right, "/") {
			a.Cidade, a.Estado = splitCityUF(right)
		} else {
			a.Bairro = strings.TrimSpace(right)
		}
		return a
	}

	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch {
	case len(parts) >= 4:
		a.Logradouro = parts[0]
		a.Numero = NormalizeNumber(parts[1])
		a.Bairro = strings.Join(parts[2:len(parts)-1], ", ")
		a.Cidade, a.Estado = splitCityUF(parts[len(parts)-1])
	case len(parts) == 3:
		a.Logradouro = parts[0]
		a.Numero = NormalizeNumber(parts[1])
		a.Cidade, a.Estado = splitCityUF(parts[2])
	case len(parts) == 2:
		a.Logradouro = parts[0]
		a.Numero = NormalizeNumber(parts[1])
	default:
		a.Logradouro = parts[0]
	}
	return a
}

func splitStreet(s string) (street, number string) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, ","); i >= 0 {
		return strings.TrimSpace(s[:i]), NormalizeNumber(s[i+1:])
	}
	return s, ""
}

func splitCityUF(s string) (city, state string) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return s, ""
}
