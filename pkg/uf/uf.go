// Package uf maps Brazilian state codes between the two-letter form and the IBGE numeric code.
package uf

import (
	"strings"

	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

var byIBGE = map[string]string{
	"11": "RO", "12": "AC", "13": "AM", "14": "RR", "15": "PA", "16": "AP", "17": "TO",
	"21": "MA", "22": "PI", "23": "CE", "24": "RN", "25": "PB", "26": "PE", "27": "AL", "28": "SE", "29": "BA",
	"31": "MG", "32": "ES", "33": "RJ", "35": "SP",
	"41": "PR", "42": "SC", "43": "RS",
	"50": "MS", "51": "MT", "52": "GO", "53": "DF",
}

var bySigla = func() map[string]string {
	m := make(map[string]string, len(byIBGE))
	for code, sigla := range byIBGE {
		m[sigla] = code
	}
	return m
}()

// Normalize accepts "sp", "SP" or "35" and returns "SP". Unknown values return "".
func Normalize(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	if v == "" {
		return ""
	}
	if _, ok := bySigla[v]; ok {
		return v
	}
	if sigla, ok := byIBGE[textutil.Digits(v)]; ok && textutil.Digits(v) == v {
		return sigla
	}
	return ""
}

// IBGECode returns the numeric code for a two-letter state, or "".
func IBGECode(sigla string) string {
	return bySigla[strings.ToUpper(strings.TrimSpace(sigla))]
}

// All returns the 27 two-letter codes.
func All() []string {
	out := make([]string, 0, len(bySigla))
	for s := range bySigla {
		out = append(out, s)
	}
	return out
}

// IsSigla reports whether s is exactly a known two-letter code (case-sensitive upper).
func IsSigla(s string) bool {
	_, ok := bySigla[s]
	return ok
}
