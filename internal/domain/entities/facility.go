package entities

import (
	"time"
)

// Maternity labels shown to the user.
const (
	LabelConfirmed = "Ala de Maternidade"
	LabelProbable  = "Provável maternidade (ligue para confirmar)"
	LabelHospital  = "Hospital"
	LabelNotListed = "Não listado"
)

// Override reasons reported in debug mode.
const (
	OverrideApplied    = "applied"
	OverrideNotApplied = "not_applied"
	OverrideNoMatch    = "no_match"
)

// Facility is the API representation of an establishment.
type Facility struct {
	CNESID            string   `json:"cnes_id"`
	Nome              string   `json:"nome"`
	Esfera            Esfera   `json:"esfera"`
	SUSBadge          string   `json:"sus_badge"`
	AtendeSUS         string   `json:"atende_sus"`
	HasMaternity      bool     `json:"has_maternity"`
	IsProbable        bool     `json:"is_probable"`
	Score             float64  `json:"score"`
	LabelMaternidade  string   `json:"label_maternidade"`
	Telefone          string   `json:"telefone"`
	TelefoneFormatado string   `json:"telefone_formatado"`
	PhoneE164         *string  `json:"phone_e164"`
	Endereco          string   `json:"endereco"`
	Logradouro        string   `json:"logradouro"`
	Numero            *string  `json:"numero"`
	Bairro            string   `json:"bairro"`
	Cidade            string   `json:"cidade"`
	Estado            string   `json:"estado"`
	Lat               *float64 `json:"lat"`
	Lon               *float64 `json:"lon"`
	DistanciaKm       *float64 `json:"distancia_km"`
	TempoEstimadoSeg  *float64 `json:"tempo_estimado_seg"`
	RotasURL          string   `json:"rotas_url"`
	Convenios         []string `json:"convenios"`
	HasConvenios      bool     `json:"has_convenios"`
	OverrideHit       *bool    `json:"override_hit,omitempty"`
	OverrideReason    string   `json:"override_reason,omitempty"`
}

// FacilityLite is the short form used for the nearest confirmed hint.
type FacilityLite struct {
	CNESID      string  `json:"cnes_id"`
	Nome        string  `json:"nome"`
	Cidade      string  `json:"cidade"`
	Estado      string  `json:"estado"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DistanciaKm float64 `json:"distancia_km"`
	RotasURL    string  `json:"rotas_url"`
}

// SearchQuery is a validated search request.
type SearchQuery struct {
	Lat        *float64
	Lon        *float64
	SUS        *bool
	RadiusKm   float64
	Expand     bool
	Limit      int
	MinResults int
	Debug      bool
	UF         string
	City       string
}

// Regional reports whether the query is a state/city listing without coordinates.
func (q SearchQuery) Regional() bool {
	return (q.Lat == nil || q.Lon == nil) && (q.UF != "" || q.City != "")
}

// SearchDebug carries the expansion and override metadata.
type SearchDebug struct {
	RadiusRequested     float64 `json:"radius_requested"`
	RadiusUsed          float64 `json:"radius_used"`
	Expanded            bool    `json:"expanded"`
	FoundA              int     `json:"found_A"`
	FoundB              int     `json:"found_B"`
	UsedTravelTime      bool    `json:"used_travel_time"`
	CompletedWithGroupC bool    `json:"completed_with_group_C"`
	OverrideHits        int     `json:"override_hits"`
	OverrideTotal       int     `json:"override_total"`
	OverrideCoveragePct float64 `json:"override_coverage_pct"`
	Regional            bool    `json:"regional,omitempty"`
	OverridesSnapshot   string  `json:"overrides_snapshot,omitempty"`
}

// SearchResponse is the body of the emergency search endpoint.
type SearchResponse struct {
	Results         []Facility     `json:"results"`
	NearbyConfirmed []FacilityLite `json:"nearby_confirmed"`
	Banner192       bool           `json:"banner_192"`
	GeneratedAt     time.Time      `json:"generated_at"`
	Debug           *SearchDebug   `json:"debug,omitempty"`
}

// SearchMeta describes the table that served a search; it becomes response headers.
type SearchMeta struct {
	Source   string
	Mtime    time.Time
	Count    int
	QueryLat *float64
	QueryLon *float64
	RadiusKm float64
}

// SearchOutcome is what the search service hands back to the transport layer.
// Stats is filled even when debug was not requested.
type SearchOutcome struct {
	Response SearchResponse
	Meta     SearchMeta
	Stats    SearchDebug
}
