package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/obstetric-locator/pkg/config"
)

func f64(v float64) *float64 { return &v }

func gateByName(t *testing.T, gates []Gate, name string) Gate {
	t.Helper()
	for _, g := range gates {
		if g.Name == name {
			return g
		}
	}
	require.Failf(t, "gate not found", "%s", name)
	return Gate{}
}

func TestGates_Defaults(t *testing.T) {
	g := NewGates(GateConfig{})
	gates := g.Evaluate(GateInputs{CoordCoverage: 0.85, PhoneCoverage: 0.9, QAEsferaOK: true})

	require.Len(t, gates, 6)
	assert.True(t, AllPassed(gates))
	assert.True(t, gateByName(t, gates, GateGeocodeFailure).Skipped)
	assert.True(t, gateByName(t, gates, GateTests).Skipped)
	assert.True(t, gateByName(t, gates, GateGolden).Skipped)
	assert.Equal(t, 0.95, gateByName(t, gates, GateGolden).Threshold)
}

func TestGates_Failures(t *testing.T) {
	g := NewGates(GateConfigFrom(config.ReleaseConfig{
		MinCoordCoverage:  0.85,
		MinPhoneCoverage:  0.85,
		MaxGeocodeFailure: 0.10,
		MinGoldenAccuracy: 0.95,
	}))

	tests := []struct {
		name string
		in   GateInputs
		gate string
	}{
		{"coord coverage", GateInputs{CoordCoverage: 0.84, PhoneCoverage: 1, QAEsferaOK: true}, GateCoordCoverage},
		{"phone coverage", GateInputs{CoordCoverage: 1, PhoneCoverage: 0.5, QAEsferaOK: true}, GatePhoneCoverage},
		{"geocode failure at threshold", GateInputs{CoordCoverage: 1, PhoneCoverage: 1, GeocodeFailure: f64(0.10), QAEsferaOK: true}, GateGeocodeFailure},
		{"tests", GateInputs{CoordCoverage: 1, PhoneCoverage: 1, TestsPassed: boolPtr(false), QAEsferaOK: true}, GateTests},
		{"golden", GateInputs{CoordCoverage: 1, PhoneCoverage: 1, GoldenAccuracy: f64(0.94), QAEsferaOK: true}, GateGolden},
		{"esfera", GateInputs{CoordCoverage: 1, PhoneCoverage: 1}, GateEsfera},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gates := g.Evaluate(tt.in)
			assert.False(t, AllPassed(gates))
			assert.False(t, gateByName(t, gates, tt.gate).Passed)
		})
	}
}
