// Package textutil holds the Portuguese text normalization shared by ingestion and search.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents removes combining diacritics ("São Paulo" -> "Sao Paulo").
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize upper-cases, strips diacritics and collapses whitespace.
// It is the form every keyword and regex match runs against.
func Normalize(s string) string {
	return CollapseSpaces(strings.ToUpper(StripAccents(s)))
}

// CollapseSpaces trims and folds runs of whitespace into a single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Digits keeps only ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PadCNES left-pads a numeric registry id to 7 digits. It returns "" when
// the value is not purely numeric or longer than 7 digits.
func PadCNES(raw string) string {
	s := strings.TrimSpace(raw)
	// Spreadsheet exports sometimes render ids as floats ("2077485.0").
	s = strings.TrimSuffix(s, ".0")
	if s == "" || len(s) > 7 {
		return ""
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return strings.Repeat("0", 7-len(s)) + s
}

var lowerWords = map[string]bool{
	"DE": true, "DA": true, "DO": true, "DAS": true, "DOS": true,
	"E": true, "EM": true, "NA": true, "NO": true, "NAS": true, "NOS": true,
	"A": true, "O": true, "AO": true, "AS": true, "OS": true,
}

// TitleCasePT title-cases a Portuguese name, keeping connectors in lower
// case and words listed in keep (matched on Normalize form) upper case.
func TitleCasePT(s string, keep map[string]bool) string {
	words := strings.Fields(s)
	for i, w := range words {
		key := Normalize(strings.Trim(w, ".,;:()-"))
		switch {
		case keep[key]:
			words[i] = strings.ToUpper(w)
		case i > 0 && lowerWords[key]:
			words[i] = strings.ToLower(w)
		default:
			words[i] = capitalize(w)
		}
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	lower := []rune(strings.ToLower(w))
	if len(lower) == 0 || !unicode.IsLetter(lower[0]) {
		return string(lower)
	}
	lower[0] = unicode.ToUpper(lower[0])
	return string(lower)
}
