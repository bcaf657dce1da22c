package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/pkg/config"
)

func testConfig() config.ClassifierConfig {
	return config.ClassifierConfig{
		WeightBeds:            0.6,
		WeightService:         0.5,
		WeightQualification:   0.5,
		WeightType:            0.3,
		WeightKeyword:         0.2,
		ScoreMinProbable:      0.4,
		ScoreMaxProbable:      0.59,
		ObstetricBedCodes:     []string{"10", "43"},
		ObstetricServiceCodes: []string{"125"},
		ObstetricClassCodes:   []string{"001"},
		HospitalTypeCodes:     []string{"05", "07", "15", "62"},
		StrictObstetric:       true,
	}
}

func TestClassify_StrongSignals(t *testing.T) {
	c := New(testConfig(), nil)

	res := c.Classify(Input{
		CNESID:   "1234567",
		Name:     "HOSPITAL GERAL ALFA",
		TypeCode: "05",
		Beds:     []Bed{{Code: "01", Quantity: 10}, {Code: "02", Quantity: 4}},
		Services: []Service{{Service: "125", Classification: "001"}},
	})

	assert.True(t, res.HasMaternity)
	assert.False(t, res.IsProbable)
	assert.GreaterOrEqual(t, res.Score, 0.5)
	require.NotEmpty(t, res.Evidence)
	assert.True(t, res.Evidence[0].Type.Strong())
	assert.Equal(t, entities.EvidenceService, res.Evidence[0].Type)
	assert.Equal(t, entities.EvidenceClassif, res.Evidence[1].Type)
	assert.Equal(t, int64(14), res.TotalBeds)
	assert.Equal(t, int64(0), res.ObstBeds)
}

func TestClassify_KeywordOnly(t *testing.T) {
	c := New(testConfig(), nil)

	res := c.Classify(Input{Name: "Hospital da Mulher", TypeCode: "05"})

	assert.False(t, res.HasMaternity)
	assert.True(t, res.IsProbable)
	assert.GreaterOrEqual(t, res.Score, 0.2)
	assert.LessOrEqual(t, res.Score, 0.6)
	require.Len(t, res.Evidence, 1)
	assert.Equal(t, entities.EvidenceKeyword, res.Evidence[0].Type)
}

func TestClassify_BedsByDescriptionAndMax(t *testing.T) {
	c := New(testConfig(), nil)

	res := c.Classify(Input{
		Name:           "HOSPITAL E MATERNIDADE BETA",
		TypeCode:       "07",
		Beds:           []Bed{{Code: "99", Description: "UTI Neonatal", Quantity: 6}, {Code: "10", Quantity: 0}},
		Qualifications: []Qualification{{Code: "1403", Description: "Gestação de alto risco - obstetrícia"}},
	})

	assert.True(t, res.HasMaternity)
	assert.Equal(t, int64(6), res.ObstBeds)
	// max(0.6, 0.5) plus the keyword bump
	assert.InDelta(t, 0.8, res.Score, 1e-9)
	assert.Equal(t, entities.EvidenceBeds, res.Evidence[0].Type)
	assert.Equal(t, "99", res.Evidence[0].Code)
}

func TestClassify_ScoreClamped(t *testing.T) {
	cfg := testConfig()
	cfg.WeightBeds = 0.95
	cfg.WeightKeyword = 0.3
	c := New(cfg, nil)

	res := c.Classify(Input{Name: "MATERNIDADE X", TypeCode: "05", Beds: []Bed{{Code: "10", Quantity: 1}}})
	assert.Equal(t, 1.0, res.Score)
}

func TestClassify_NonHospitalNeverConfirmed(t *testing.T) {
	c := New(testConfig(), nil)

	res := c.Classify(Input{
		Name:     "UPA 24H ZONA NORTE",
		TypeCode: "73",
		Services: []Service{{Service: "125"}},
	})

	assert.False(t, res.HasMaternity)
	assert.False(t, res.IsProbable)
	assert.NotEmpty(t, res.Evidence)
}

func TestClassify_ProbableBand(t *testing.T) {
	cfg := testConfig()
	cfg.WeightKeyword = 0.45
	c := New(cfg, nil)

	res := c.Classify(Input{Name: "CASA DE PARTO AURORA"})
	assert.True(t, res.HasMaternity)
	assert.False(t, res.IsProbable)
	assert.NotEmpty(t, res.Evidence)
}

func TestClassify_Blacklist(t *testing.T) {
	bl, err := NewBlacklist([]string{"7654321"}, []string{"cirurgia plastica"})
	require.NoError(t, err)
	c := New(testConfig(), bl)

	byID := c.Classify(Input{CNESID: "7654321", Name: "MATERNIDADE Y", TypeCode: "05", Services: []Service{{Service: "125"}}})
	assert.False(t, byID.HasMaternity)
	assert.False(t, byID.IsProbable)

	byName := c.Classify(Input{CNESID: "1111111", Name: "Hospital de Cirurgia Plástica e Maternidade", TypeCode: "05"})
	assert.False(t, byName.IsProbable)
}

func TestLoadBlacklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cnes_ids":["123"],"name_patterns":["^CAPS"]}`), 0o644))

	bl, err := LoadBlacklist(path)
	require.NoError(t, err)
	assert.True(t, bl.Blocked("0000123", ""))
	assert.True(t, bl.Blocked("9999999", "caps ad iii"))
	assert.Equal(t, 2, bl.Len())

	empty, err := LoadBlacklist("")
	require.NoError(t, err)
	assert.False(t, empty.Blocked("0000123", "x"))

	var nilList *Blacklist
	assert.False(t, nilList.Blocked("0000123", "x"))
}

func TestStrictFilter(t *testing.T) {
	f := NewStrictFilter(true)

	assert.True(t, f.Keep("Hospital Santa Lucia", false))
	assert.True(t, f.Keep("Clinica Sao Jose", true))
	assert.False(t, f.Keep("Clinica Sao Jose", false))
	assert.False(t, f.Keep("Consultório de Psicologia Maternidade", true))
	assert.False(t, f.Keep("Ambulatório da Mulher", false))
	assert.True(t, f.Keep("UPA Vila Maria", false))

	off := NewStrictFilter(false)
	assert.True(t, off.Keep("Fonoaudiologia Central", false))
}

func TestIsHospital(t *testing.T) {
	c := New(testConfig(), nil)

	assert.True(t, c.IsHospital("05", "QUALQUER"))
	assert.False(t, c.IsHospital("36", "CLINICA"))
	assert.True(t, c.IsHospital("", "Santa Casa de Santos"))
	assert.False(t, c.IsHospital("", "UPA Central"))
	assert.False(t, c.IsHospital("05", "Pronto Atendimento Leste"))
}

func TestImpliesMaternity(t *testing.T) {
	assert.True(t, ImpliesMaternity("Maternidade Escola"))
	assert.True(t, ImpliesMaternity("Hospital da Mulher"))
	assert.False(t, ImpliesMaternity("Hospital Geral"))
}
