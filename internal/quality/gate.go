package quality

import (
	"github.com/zatekoja/obstetric-locator/pkg/geo"
	"github.com/zatekoja/obstetric-locator/pkg/uf"
)

// GateResult is the outcome of the sphere release gate.
type GateResult struct {
	UF     string  `json:"uf"`
	Rows   int     `json:"rows"`
	Pct    float64 `json:"public_mismatch_pct"`
	MaxPct float64 `json:"max_pct"`
	Passed bool    `json:"passed"`
}

// CheckEsferaGate fails the release when the public-sphere mismatch rate of
// the release state exceeds maxPct percent. Without a release state the
// whole table is measured.
func CheckEsferaGate(r *QAReport, state string, maxPct float64) GateResult {
	state = uf.Normalize(state)
	rows := r.Rows
	if state != "" {
		rows = r.RowsByUF[state]
	}
	pct := r.PublicMismatchPct(state)
	return GateResult{
		UF:     state,
		Rows:   rows,
		Pct:    geo.Round(pct, 3),
		MaxPct: maxPct,
		Passed: pct <= maxPct,
	}
}
