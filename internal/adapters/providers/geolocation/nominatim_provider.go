package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/httpclient"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// NominatimProvider implements GeolocationProvider with the OpenStreetMap
// Nominatim search endpoint. The public instance allows 1 request per second.
type NominatimProvider struct {
	baseURL string
	client  *resty.Client
}

// NewNominatimProvider creates a Nominatim geocoder. baseURL may be empty.
func NewNominatimProvider(baseURL string, client *resty.Client) *NominatimProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultNominatimURL
	}
	return &NominatimProvider{baseURL: baseURL, client: client}
}

// Name identifies the provider
func (p *NominatimProvider) Name() string { return "nominatim" }

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode returns the best match, or nil when the search is empty
func (p *NominatimProvider) Geocode(ctx context.Context, query string) (*providers.Coordinates, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":            query,
			"format":       "json",
			"limit":        "1",
			"countrycodes": "br",
		}).
		Get(p.baseURL)
	if err := httpclient.CheckResponse(p.Name(), resp, err); err != nil {
		return nil, err
	}

	var results []nominatimResult
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(results[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return nil, nil
	}
	return &providers.Coordinates{Latitude: lat, Longitude: lon}, nil
}
