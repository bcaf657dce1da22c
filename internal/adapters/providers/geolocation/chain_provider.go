package geolocation

import (
	"context"
	"fmt"
	"strings"

	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/httpclient"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/observability"
	"github.com/zatekoja/obstetric-locator/pkg/config"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

// ChainProvider asks each provider in order and returns the first match.
type ChainProvider struct {
	providers []providers.GeolocationProvider
}

// NewChainProvider builds a chain; it must not be empty.
func NewChainProvider(list ...providers.GeolocationProvider) *ChainProvider {
	return &ChainProvider{providers: list}
}

// Name joins the member names, e.g. "mapbox>nominatim"
func (c *ChainProvider) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ">")
}

// Geocode returns the first non-nil result. A provider error moves on to the
// next member; the last error is returned only if nobody matched.
func (c *ChainProvider) Geocode(ctx context.Context, query string) (*providers.Coordinates, error) {
	var lastErr error
	for _, p := range c.providers {
		coords, err := p.Geocode(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("provider", p.Name()).Msg("geocode provider failed, trying next")
			lastErr = err
			continue
		}
		if coords != nil {
			return coords, nil
		}
	}
	return nil, lastErr
}

// NewFromConfig resolves GEOCODER_PROVIDER into a provider. "auto" means
// mapbox then nominatim when a token is set, nominatim alone otherwise.
func NewFromConfig(cfg config.GeocoderConfig) (providers.GeolocationProvider, error) {
	client := httpclient.New(httpclient.Options{
		Timeout:     cfg.Timeout,
		MaxAttempts: cfg.MaxAttempts,
		UserAgent:   cfg.UserAgent,
	})

	var names []string
	for _, name := range strings.Split(cfg.Provider, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "auto" {
			if cfg.MapboxToken != "" {
				names = append(names, "mapbox")
			}
			names = append(names, "nominatim")
			continue
		}
		if name != "" {
			names = append(names, name)
		}
	}

	var list []providers.GeolocationProvider
	for _, name := range names {
		switch name {
		case "mapbox":
			if cfg.MapboxToken == "" {
				return nil, apperrors.NewConfigMissingError("MAPBOX_TOKEN is required for the mapbox geocoder")
			}
			list = append(list, NewMapboxProvider(cfg.MapboxToken, cfg.MapboxURL, client))
		case "nominatim":
			list = append(list, NewNominatimProvider(cfg.NominatimURL, client))
		case "mock":
			list = append(list, NewMockGeolocationProvider())
		default:
			return nil, apperrors.NewConfigMissingError(fmt.Sprintf("unknown GEOCODER_PROVIDER %q", name))
		}
	}
	if len(list) == 0 {
		return nil, apperrors.NewConfigMissingError("GEOCODER_PROVIDER resolved to no providers")
	}
	if len(list) == 1 {
		return list[0], nil
	}
	return NewChainProvider(list...), nil
}
