package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/httpclient"
)

const defaultMapboxURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// MapboxProvider implements GeolocationProvider with the Mapbox places API.
type MapboxProvider struct {
	token   string
	baseURL string
	client  *resty.Client
}

// NewMapboxProvider creates a Mapbox geocoder. baseURL may be empty.
func NewMapboxProvider(token, baseURL string, client *resty.Client) *MapboxProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultMapboxURL
	}
	return &MapboxProvider{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Name identifies the provider
func (p *MapboxProvider) Name() string { return "mapbox" }

type mapboxResponse struct {
	Features []struct {
		Center    []float64 `json:"center"`
		Relevance float64   `json:"relevance"`
	} `json:"features"`
}

// Geocode returns the first feature's center, or nil when there is none
func (p *MapboxProvider) Geocode(ctx context.Context, query string) (*providers.Coordinates, error) {
	endpoint := fmt.Sprintf("%s/%s.json", p.baseURL, url.PathEscape(query))
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"access_token": p.token,
			"country":      "br",
			"limit":        "1",
			"language":     "pt",
		}).
		Get(endpoint)
	if err := httpclient.CheckResponse(p.Name(), resp, err); err != nil {
		return nil, err
	}

	var body mapboxResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("failed to decode mapbox response: %w", err)
	}
	if len(body.Features) == 0 || len(body.Features[0].Center) < 2 {
		return nil, nil
	}
	center := body.Features[0].Center
	return &providers.Coordinates{Latitude: center[1], Longitude: center[0]}, nil
}
