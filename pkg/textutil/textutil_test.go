package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "HOSPITAL E MATERNIDADE SAO LUIZ", Normalize("  Hospital e  Maternidade São Luiz "))
	assert.Equal(t, "FILANTROPICA", Normalize("filantrópica"))
	assert.Equal(t, "", Normalize(""))
}

func TestPadCNES(t *testing.T) {
	tests := map[string]string{
		"2077485":   "2077485",
		"77485":     "0077485",
		" 123 ":     "0000123",
		"2077485.0": "2077485",
		"12345678":  "",
		"abc":       "",
		"":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, PadCNES(in), in)
	}
}

func TestTitleCasePT(t *testing.T) {
	keep := map[string]bool{"SUS": true, "UPA": true, "SP": true}
	assert.Equal(t, "Hospital da Mulher", TitleCasePT("HOSPITAL DA MULHER", keep))
	assert.Equal(t, "UPA 24h Vila Maria", TitleCasePT("upa 24H VILA MARIA", keep))
	assert.Equal(t, "Santa Casa de São Paulo SP", TitleCasePT("SANTA CASA DE SÃO PAULO SP", keep))
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "11987654321", Digits("(11) 9 8765-4321"))
}
