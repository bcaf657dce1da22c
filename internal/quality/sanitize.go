package quality

import (
	"strconv"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// Repair actions reported by SanitizeRows.
const (
	ActionDropped   = "dropped"
	ActionRewritten = "rewritten"
	ActionCleared   = "cleared"
)

// Violation records one value that had to be repaired at read time.
type Violation struct {
	CNESID string `json:"cnes_id"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Action string `json:"action"`
}

// SanitizeRows enforces the read invariants in place and returns the kept
// rows plus the repairs that were needed.
func SanitizeRows(rows []entities.Establishment, bounds geo.BoundingBox) ([]entities.Establishment, []Violation) {
	var violations []Violation
	kept := rows[:0]
	for i := range rows {
		row := rows[i]

		id := textutil.PadCNES(row.CNESID)
		if id == "" {
			violations = append(violations, Violation{CNESID: row.CNESID, Field: "cnes_id", Value: row.CNESID, Action: ActionDropped})
			continue
		}
		row.CNESID = id

		if (row.Lat != nil || row.Lon != nil) && !bounds.ContainsPtr(row.Lat, row.Lon) {
			violations = append(violations, Violation{CNESID: id, Field: "lat_lon", Value: coordString(row.Lat, row.Lon), Action: ActionCleared})
			row.Lat, row.Lon = nil, nil
		}

		if esfera, repaired := entities.NormalizeEsfera(string(row.Esfera), row.Nome); repaired {
			if row.Esfera != "" {
				violations = append(violations, Violation{CNESID: id, Field: "esfera", Value: string(row.Esfera), Action: ActionRewritten})
			}
			row.Esfera = esfera
		}

		if row.HasMaternity && row.IsProbable {
			violations = append(violations, Violation{CNESID: id, Field: "is_probable", Value: "true", Action: ActionCleared})
			row.IsProbable = false
		}

		if len(row.Convenios) > entities.MaxConvenios {
			row.Convenios = row.Convenios[:entities.MaxConvenios]
		}

		kept = append(kept, row)
	}
	return kept, violations
}

func coordString(lat, lon *float64) string {
	format := func(v *float64) string {
		if v == nil {
			return "null"
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	return format(lat) + "," + format(lon)
}
