package pipeline

import (
	"github.com/zatekoja/obstetric-locator/pkg/config"
)

// Gate names as they appear in the run summary.
const (
	GateCoordCoverage  = "coord_coverage"
	GatePhoneCoverage  = "phone_coverage"
	GateGeocodeFailure = "geocode_failure_rate"
	GateTests          = "tests_passed"
	GateGolden         = "golden_accuracy"
	GateEsfera         = "qa_esfera_ok"
)

// GateConfig holds the release thresholds.
type GateConfig struct {
	MinCoordCoverage  float64
	MinPhoneCoverage  float64
	MaxGeocodeFailure float64
	MinGoldenAccuracy float64
}

// GateConfigFrom maps the release configuration onto gate thresholds.
func GateConfigFrom(cfg config.ReleaseConfig) GateConfig {
	return GateConfig{
		MinCoordCoverage:  cfg.MinCoordCoverage,
		MinPhoneCoverage:  cfg.MinPhoneCoverage,
		MaxGeocodeFailure: cfg.MaxGeocodeFailure,
		MinGoldenAccuracy: cfg.MinGoldenAccuracy,
	}
}

// Gate is one release check. A skipped gate passes.
type Gate struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Skipped   bool    `json:"skipped,omitempty"`
}

// GateInputs are the measurements the gates look at. Nil pointers mark a
// step that did not run.
type GateInputs struct {
	CoordCoverage  float64
	PhoneCoverage  float64
	GeocodeFailure *float64
	TestsPassed    *bool
	GoldenAccuracy *float64
	QAEsferaOK     bool
}

// Gates evaluates the release gates.
type Gates struct {
	config GateConfig
}

// NewGates fills unset thresholds with the documented defaults.
func NewGates(cfg GateConfig) *Gates {
	if cfg.MinCoordCoverage <= 0 {
		cfg.MinCoordCoverage = 0.85
	}
	if cfg.MinPhoneCoverage <= 0 {
		cfg.MinPhoneCoverage = 0.85
	}
	if cfg.MaxGeocodeFailure <= 0 {
		cfg.MaxGeocodeFailure = 0.10
	}
	if cfg.MinGoldenAccuracy <= 0 {
		cfg.MinGoldenAccuracy = 0.95
	}
	return &Gates{config: cfg}
}

// Evaluate returns every gate in a fixed order.
func (g *Gates) Evaluate(in GateInputs) []Gate {
	gates := []Gate{
		{Name: GateCoordCoverage, Value: in.CoordCoverage, Threshold: g.config.MinCoordCoverage, Passed: in.CoordCoverage >= g.config.MinCoordCoverage},
		{Name: GatePhoneCoverage, Value: in.PhoneCoverage, Threshold: g.config.MinPhoneCoverage, Passed: in.PhoneCoverage >= g.config.MinPhoneCoverage},
	}

	geocode := Gate{Name: GateGeocodeFailure, Threshold: g.config.MaxGeocodeFailure}
	if in.GeocodeFailure == nil {
		geocode.Skipped, geocode.Passed = true, true
	} else {
		geocode.Value = *in.GeocodeFailure
		geocode.Passed = *in.GeocodeFailure < g.config.MaxGeocodeFailure
	}
	gates = append(gates, geocode)

	tests := Gate{Name: GateTests, Threshold: 1}
	if in.TestsPassed == nil {
		tests.Skipped, tests.Passed = true, true
	} else {
		tests.Passed = *in.TestsPassed
		if tests.Passed {
			tests.Value = 1
		}
	}
	gates = append(gates, tests)

	golden := Gate{Name: GateGolden, Threshold: g.config.MinGoldenAccuracy}
	if in.GoldenAccuracy == nil {
		golden.Skipped, golden.Passed = true, true
	} else {
		golden.Value = *in.GoldenAccuracy
		golden.Passed = *in.GoldenAccuracy >= g.config.MinGoldenAccuracy
	}
	gates = append(gates, golden)

	esfera := Gate{Name: GateEsfera, Threshold: 1, Passed: in.QAEsferaOK}
	if in.QAEsferaOK {
		esfera.Value = 1
	}
	return append(gates, esfera)
}

// AllPassed reports whether every gate passed.
func AllPassed(gates []Gate) bool {
	for _, g := range gates {
		if !g.Passed {
			return false
		}
	}
	return true
}
