package entities

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeAddress(t *testing.T) {
	a := Address{Logradouro: "Rua Augusta", Numero: "1500", Bairro: "Consolação", Cidade: "São Paulo", Estado: "SP", CEP: "01304001"}
	assert.Equal(t, "Rua Augusta, 1500 – Consolação, São Paulo/SP • CEP 01304-001", ComposeAddress(a))

	a.Numero = "s/n"
	a.CEP = ""
	assert.Equal(t, "Rua Augusta, S/N – Consolação, São Paulo/SP", ComposeAddress(a))
}

func TestParseAddress_Formats(t *testing.T) {
	composed := ParseAddress("Av. Brasil, 200 – Centro, Campinas/SP • CEP 13010-000")
	assert.Equal(t, Address{Logradouro: "Av. Brasil", Numero: "200", Bairro: "Centro", Cidade: "Campinas", Estado: "SP", CEP: "13010-000"}, composed)

	plain := ParseAddress("Rua das Flores, SN, Jardim América, Goiânia/GO")
	assert.Equal(t, "Rua das Flores", plain.Logradouro)
	assert.Equal(t, "", plain.Numero)
	assert.Equal(t, "Jardim América", plain.Bairro)
	assert.Equal(t, "Goiânia", plain.Cidade)
	assert.Equal(t, "GO", plain.Estado)
}

func TestNormalizeNumber(t *testing.T) {
	for _, in := range []string{"", "s/n", "SN", "sem número", "Sem Numero", "nan"} {
		assert.Equal(t, "", NormalizeNumber(in), in)
	}
	assert.Equal(t, "42A", NormalizeNumber(" 42A "))
}

func TestAddressRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	streets := []string{"Rua Augusta", "Av. Paulista", "Travessa São José", "Rodovia BR-116 Km 10"}
	hoods := []string{"Centro", "Vila Mariana", "Jardim das Flores", "Boa Vista"}
	cities := []string{"São Paulo", "Rio de Janeiro", "Feira de Santana", "Mogi das Cruzes"}
	states := []string{"SP", "RJ", "BA", "MG"}

	for i := 0; i < 200; i++ {
		want := Address{
			Logradouro: streets[rng.Intn(len(streets))],
			Numero:     fmt.Sprintf("%d", 1+rng.Intn(9999)),
			Bairro:     hoods[rng.Intn(len(hoods))],
			Cidade:     cities[rng.Intn(len(cities))],
			Estado:     states[rng.Intn(len(states))],
		}
		if rng.Intn(2) == 0 {
			want.CEP = fmt.Sprintf("%05d-%03d", rng.Intn(100000), rng.Intn(1000))
		}

		got := ParseAddress(ComposeAddress(want))
		assert.Equal(t, want, got)
	}
}
