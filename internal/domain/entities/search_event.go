package entities

import (
	"time"
)

// SearchEvent is one line of the append-only search log.
type SearchEvent struct {
	ID              string    `json:"id" db:"id"`
	Timestamp       time.Time `json:"ts" db:"ts"`
	UserLatitude    *float64  `json:"lat" db:"lat"`
	UserLongitude   *float64  `json:"lon" db:"lon"`
	RadiusRequested float64   `json:"radius_requested" db:"radius_requested"`
	RadiusUsed      float64   `json:"radius_used" db:"radius_used"`
	Expanded        bool      `json:"expanded" db:"expanded"`
	FoundA          int       `json:"found_a" db:"found_a"`
	FoundB          int       `json:"found_b" db:"found_b"`
	Banner192       bool      `json:"banner_192" db:"banner_192"`
	SUSFilter       string    `json:"sus" db:"sus"`
	UF              string    `json:"uf,omitempty" db:"uf"`
	ResultCount     int       `json:"result_count" db:"result_count"`
	LatencyMs       int       `json:"latency_ms" db:"latency_ms"`
	UsedTravelTime  bool      `json:"used_travel_time" db:"used_travel_time"`
	CompletedGroupC bool      `json:"completed_with_group_c" db:"completed_with_group_c"`
}

// SearchEventAggregate summarizes a search log for the run summary.
type SearchEventAggregate struct {
	Total         int     `json:"total"`
	Malformed     int     `json:"malformed"`
	ExpansionRate float64 `json:"expansion_rate"`
	BannerRate    float64 `json:"banner_rate"`
	AvgFoundA     float64 `json:"avg_found_a"`
	AvgFoundB     float64 `json:"avg_found_b"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
}
