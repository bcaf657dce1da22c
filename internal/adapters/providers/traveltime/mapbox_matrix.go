// Package traveltime ranks candidates by driving time with the Mapbox Matrix API.
package traveltime

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

// MaxDestinations is the Matrix API limit of 25 coordinates minus the origin.
const MaxDestinations = 24

const defaultMatrixURL = "https://api.mapbox.com/directions-matrix/v1/mapbox/driving"

// MatrixProvider implements TravelTimeProvider.
type MatrixProvider struct {
	token   string
	baseURL string
	client  *resty.Client
}

// NewMatrixProvider creates a Matrix client. baseURL may be empty.
func NewMatrixProvider(token, baseURL string, client *resty.Client) *MatrixProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultMatrixURL
	}
	return &MatrixProvider{token: token, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type matrixResponse struct {
	Code      string       `json:"code"`
	Durations [][]*float64 `json:"durations"`
}

// Durations returns seconds from origin to each destination, in order. A
// response whose row length differs from len(destinations) is an error.
func (p *MatrixProvider) Durations(ctx context.Context, origin providers.Coordinates, destinations []providers.Coordinates) ([]*float64, error) {
	if len(destinations) == 0 {
		return nil, nil
	}
	if len(destinations) > MaxDestinations {
		return nil, fmt.Errorf("matrix accepts at most %d destinations, got %d", MaxDestinations, len(destinations))
	}

	coords := make([]string, 0, len(destinations)+1)
	coords = append(coords, formatCoord(origin))
	destIdx := make([]string, len(destinations))
	for i, d := range destinations {
		coords = append(coords, formatCoord(d))
		destIdx[i] = strconv.Itoa(i + 1)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"access_token": p.token,
			"sources":      "0",
			"destinations": strings.Join(destIdx, ";"),
			"annotations":  "duration",
		}).
		Get(p.baseURL + "/" + strings.Join(coords, ";"))
	if err := httpclient.CheckResponse("mapbox-matrix", resp, err); err != nil {
		return nil, err
	}

	var body matrixResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("failed to decode matrix response: %w", err)
	}
	if body.Code != "" && body.Code != "Ok" {
		return nil, fmt.Errorf("matrix returned code %q", body.Code)
	}
	if len(body.Durations) != 1 || len(body.Durations[0]) != len(destinations) {
		return nil, fmt.Errorf("matrix returned %d rows for %d destinations", rowLen(body.Durations), len(destinations))
	}
	return body.Durations[0], nil
}

func rowLen(rows [][]*float64) int {
	if len(rows) == 0 {
		return 0
	}
	return len(rows[0])
}

func formatCoord(c providers.Coordinates) string {
	return strconv.FormatFloat(c.Longitude, 'f', 6, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', 6, 64)
}
