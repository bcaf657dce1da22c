package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "golden.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func boolPtr(v bool) *bool { return &v }

func TestLoadGolden(t *testing.T) {
	path := writeTempFile(t, `[
		{"cnes_id": "2077485", "expected_has_maternity": true, "expected_esfera": "Público"},
		{"cnes_id": "12345", "expected_has_maternity": false, "expected_is_probable": true}
	]`)

	cases, err := LoadGolden(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "2077485", cases[0].CNESID)
	assert.True(t, cases[0].ExpectedHasMaternity)
	require.NotNil(t, cases[1].ExpectedIsProbable)
	assert.True(t, *cases[1].ExpectedIsProbable)

	require.NoError(t, ValidateGolden(cases))
	assert.Equal(t, "0012345", cases[1].CNESID)
}

func TestLoadGolden_Errors(t *testing.T) {
	_, err := LoadGolden("/nonexistent/golden.json")
	assert.Error(t, err)

	_, err = LoadGolden(writeTempFile(t, `not valid json`))
	assert.Error(t, err)
}

func TestValidateGolden(t *testing.T) {
	tests := []struct {
		name  string
		cases []GoldenCase
	}{
		{"bad id", []GoldenCase{{CNESID: "12345678"}}},
		{"duplicate after padding", []GoldenCase{{CNESID: "12"}, {CNESID: "0000012"}}},
		{"forbidden esfera", []GoldenCase{{CNESID: "1", ExpectedEsfera: "Desconhecido"}}},
		{"both tiers", []GoldenCase{{CNESID: "1", ExpectedHasMaternity: true, ExpectedIsProbable: boolPtr(true)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateGolden(tt.cases))
		})
	}
}

func TestEvaluateGolden(t *testing.T) {
	ds := entities.NewDataset([]entities.Establishment{
		{CNESID: "0000001", HasMaternity: true, Esfera: entities.EsferaPublico},
		{CNESID: "0000002", IsProbable: true, Esfera: entities.EsferaPrivado},
		{CNESID: "0000003", Esfera: entities.EsferaFilantropico},
	}, "table.parquet", time.Time{}, false)

	cases := []GoldenCase{
		{CNESID: "0000001", ExpectedHasMaternity: true, ExpectedEsfera: "Público"},
		{CNESID: "0000002", ExpectedIsProbable: boolPtr(true)},
		{CNESID: "0000003", ExpectedHasMaternity: true, ExpectedEsfera: "Privado"},
		{CNESID: "0000004", ExpectedHasMaternity: true},
	}

	s := EvaluateGolden(ds, cases)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Matched)
	assert.Equal(t, 1, s.Missing)
	assert.InDelta(t, 0.5, s.Accuracy, 1e-9)
	require.Len(t, s.Misses, 3)
	assert.Equal(t, "has_maternity", s.Misses[0].Field)
	assert.Equal(t, "esfera", s.Misses[1].Field)
	assert.Equal(t, "0000004", s.Misses[2].CNESID)

	assert.Zero(t, EvaluateGolden(ds, nil).Accuracy)
}
