package providers

import (
	"context"
)

// GeolocationProvider resolves a free-text address to coordinates.
type GeolocationProvider interface {
	// Name identifies the provider in logs and cache entries
	Name() string

	// Geocode returns nil coordinates (and no error) when the provider has no match
	Geocode(ctx context.Context, query string) (*Coordinates, error)
}

// TravelTimeProvider returns driving durations from one origin to many destinations.
type TravelTimeProvider interface {
	// Durations returns one entry per destination in seconds; nil marks an unreachable destination
	Durations(ctx context.Context, origin Coordinates, destinations []Coordinates) ([]*float64, error)
}

// Coordinates represents geographical coordinates
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}
