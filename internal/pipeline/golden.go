package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// GoldenCase is one hand-labeled establishment.
type GoldenCase struct {
	CNESID               string `json:"cnes_id"`
	ExpectedHasMaternity bool   `json:"expected_has_maternity"`
	ExpectedIsProbable   *bool  `json:"expected_is_probable,omitempty"`
	ExpectedEsfera       string `json:"expected_esfera,omitempty"`
	Note                 string `json:"note,omitempty"`
}

// GoldenMiss is one disagreement between the table and the golden set.
type GoldenMiss struct {
	CNESID   string `json:"cnes_id"`
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
}

// GoldenSummary scores the table against the golden set.
type GoldenSummary struct {
	Total    int          `json:"total"`
	Matched  int          `json:"matched"`
	Missing  int          `json:"missing"`
	Accuracy float64      `json:"accuracy"`
	Misses   []GoldenMiss `json:"misses,omitempty"`
}

// LoadGolden reads and parses a golden set from a JSON file.
func LoadGolden(path string) ([]GoldenCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden set: %w", err)
	}

	var cases []GoldenCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse golden set: %w", err)
	}

	return cases, nil
}

// ValidateGolden checks ids and expected values and pads ids in place.
func ValidateGolden(cases []GoldenCase) error {
	seen := make(map[string]struct{}, len(cases))

	for i := range cases {
		c := &cases[i]
		id := textutil.PadCNES(c.CNESID)
		if id == "" {
			return fmt.Errorf("case at index %d: invalid cnes_id %q", i, c.CNESID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("case at index %d: duplicate cnes_id %q", i, id)
		}
		seen[id] = struct{}{}
		c.CNESID = id

		if c.ExpectedEsfera != "" && !entities.Esfera(c.ExpectedEsfera).Valid() {
			return fmt.Errorf("case %q: invalid expected_esfera %q", id, c.ExpectedEsfera)
		}
		if c.ExpectedHasMaternity && c.ExpectedIsProbable != nil && *c.ExpectedIsProbable {
			return fmt.Errorf("case %q: a confirmed maternity cannot also be probable", id)
		}
	}

	return nil
}

// EvaluateGolden counts a case as matched when the row exists and every
// expected field agrees. Missing rows count against accuracy.
func EvaluateGolden(ds *entities.Dataset, cases []GoldenCase) GoldenSummary {
	s := GoldenSummary{Total: len(cases)}
	for _, c := range cases {
		row, ok := ds.Find(c.CNESID)
		if !ok {
			s.Missing++
			s.Misses = append(s.Misses, GoldenMiss{CNESID: c.CNESID, Field: "cnes_id", Expected: "present", Got: "missing"})
			continue
		}

		misses := compareCase(c, row)
		if len(misses) == 0 {
			s.Matched++
			continue
		}
		s.Misses = append(s.Misses, misses...)
	}
	if s.Total > 0 {
		s.Accuracy = float64(s.Matched) / float64(s.Total)
	}
	return s
}

func compareCase(c GoldenCase, row *entities.Establishment) []GoldenMiss {
	var misses []GoldenMiss
	if row.HasMaternity != c.ExpectedHasMaternity {
		misses = append(misses, GoldenMiss{
			CNESID: c.CNESID, Field: "has_maternity",
			Expected: strconv.FormatBool(c.ExpectedHasMaternity), Got: strconv.FormatBool(row.HasMaternity),
		})
	}
	if c.ExpectedIsProbable != nil && row.IsProbable != *c.ExpectedIsProbable {
		misses = append(misses, GoldenMiss{
			CNESID: c.CNESID, Field: "is_probable",
			Expected: strconv.FormatBool(*c.ExpectedIsProbable), Got: strconv.FormatBool(row.IsProbable),
		})
	}
	if c.ExpectedEsfera != "" && string(row.Esfera) != c.ExpectedEsfera {
		misses = append(misses, GoldenMiss{
			CNESID: c.CNESID, Field: "esfera",
			Expected: c.ExpectedEsfera, Got: string(row.Esfera),
		})
	}
	return misses
}
