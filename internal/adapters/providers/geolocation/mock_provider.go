package geolocation

import (
	"context"

	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	"github.com/zatekoja/obstetric-locator/pkg/textutil"
)

// MockGeolocationProvider resolves a handful of state capitals offline. It
// backs GEOCODER_PROVIDER=mock for local pipeline runs and tests.
type MockGeolocationProvider struct {
	cities map[string]providers.Coordinates
	calls  int
}

// NewMockGeolocationProvider creates a new mock geolocation provider
func NewMockGeolocationProvider() *MockGeolocationProvider {
	return &MockGeolocationProvider{
		cities: map[string]providers.Coordinates{
			"SAO PAULO":      {Latitude: -23.5505, Longitude: -46.6333},
			"RIO DE JANEIRO": {Latitude: -22.9068, Longitude: -43.1729},
			"BELO HORIZONTE": {Latitude: -19.9167, Longitude: -43.9345},
			"CAMPINAS":       {Latitude: -22.9099, Longitude: -47.0626},
			"SALVADOR":       {Latitude: -12.9714, Longitude: -38.5014},
			"RECIFE":         {Latitude: -8.0476, Longitude: -34.8770},
			"BRASILIA":       {Latitude: -15.7939, Longitude: -47.8828},
			"MANAUS":         {Latitude: -3.1190, Longitude: -60.0217},
			"PORTO ALEGRE":   {Latitude: -30.0346, Longitude: -51.2177},
			"PALMAS":         {Latitude: -10.1840, Longitude: -48.3336},
		},
	}
}

// Name identifies the provider
func (m *MockGeolocationProvider) Name() string { return "mock" }

// Set registers an extra city (matched accent- and case-insensitively).
func (m *MockGeolocationProvider) Set(city string, c providers.Coordinates) {
	m.cities[textutil.Normalize(city)] = c
}

// Calls reports how many lookups reached the mock.
func (m *MockGeolocationProvider) Calls() int { return m.calls }

// Geocode returns the coordinates of the first known city named in the query
func (m *MockGeolocationProvider) Geocode(ctx context.Context, query string) (*providers.Coordinates, error) {
	m.calls++
	normalized := " " + textutil.Normalize(query) + " "
	var best string
	for city := range m.cities {
		if containsWord(normalized, city) && len(city) > len(best) {
			best = city
		}
	}
	if best == "" {
		return nil, nil
	}
	c := m.cities[best]
	return &c, nil
}

func containsWord(haystack, word string) bool {
	for i := 0; i+len(word) <= len(haystack); i++ {
		if haystack[i:i+len(word)] != word {
			continue
		}
		before := i == 0 || !isAlnum(haystack[i-1])
		after := i+len(word) == len(haystack) || !isAlnum(haystack[i+len(word)])
		if before && after {
			return true
		}
	}
	return false
}

func isAlnum(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
