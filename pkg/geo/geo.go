package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// BoundingBox is an axis-aligned lat/lon rectangle.
type BoundingBox struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Brazil covers the mainland plus the Atlantic islands.
var Brazil = BoundingBox{LatMin: -33.75, LatMax: 5.27, LonMin: -73.99, LonMax: -28.85}

// Contains reports whether the point lies inside the box (edges included).
func (b BoundingBox) Contains(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

// ContainsPtr is Contains for nullable coordinates; a nil component is never inside.
func (b BoundingBox) ContainsPtr(lat, lon *float64) bool {
	if lat == nil || lon == nil {
		return false
	}
	return b.Contains(*lat, *lon)
}

// String renders the box in the COUNTRY_BOUNDS format.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.LatMin, b.LatMax, b.LonMin, b.LonMax)
}

// ParseBoundingBox parses "lat_min,lat_max,lon_min,lon_max".
func ParseBoundingBox(value string) (BoundingBox, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("bounds must have 4 comma-separated values, got %d", len(parts))
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("invalid bounds value %q: %w", p, err)
		}
		vals[i] = v
	}
	b := BoundingBox{LatMin: vals[0], LatMax: vals[1], LonMin: vals[2], LonMax: vals[3]}
	if b.LatMin >= b.LatMax || b.LonMin >= b.LonMax {
		return BoundingBox{}, fmt.Errorf("bounds are inverted: %s", value)
	}
	return b, nil
}

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// CoordinateKey is the dedup key: both coordinates rounded to 5 decimals.
func CoordinateKey(lat, lon float64) string {
	return strconv.FormatFloat(Round(lat, 5), 'f', 5, 64) + "," + strconv.FormatFloat(Round(lon, 5), 'f', 5, 64)
}
