package geolocation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/httpclient"
	"github.com/zatekoja/obstetric-locator/pkg/config"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

func fastClientOptions() httpclient.Options {
	return httpclient.Options{Timeout: time.Second, MaxAttempts: 3, WaitTime: time.Millisecond, MaxWaitTime: 2 * time.Millisecond}
}

func TestNominatimProvider_Geocode(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		assert.Equal(t, "br", r.URL.Query().Get("countrycodes"))
		assert.Equal(t, "Rua X, 10, Campinas/SP, Brasil", r.URL.Query().Get("q"))
		w.Write([]byte(`[{"lat":"-22.9099","lon":"-47.0626"}]`))
	}))
	defer srv.Close()

	p := NewNominatimProvider(srv.URL, httpclient.New(fastClientOptions()))
	c, err := p.Geocode(context.Background(), "Rua X, 10, Campinas/SP, Brasil")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.InDelta(t, -22.9099, c.Latitude, 1e-9)
	assert.InDelta(t, -47.0626, c.Longitude, 1e-9)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestNominatimProvider_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := NewNominatimProvider(srv.URL, httpclient.New(fastClientOptions())).Geocode(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNominatimProvider_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewNominatimProvider(srv.URL, httpclient.New(fastClientOptions())).Geocode(context.Background(), "x")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeProviderTransient))
}

func TestMapboxProvider_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pk.test", r.URL.Query().Get("access_token"))
		assert.Equal(t, "br", r.URL.Query().Get("country"))
		assert.Equal(t, "/Av Paulista, 1000, Sao Paulo/SP, Brasil.json", r.URL.Path)
		w.Write([]byte(`{"features":[{"center":[-46.65,-23.56],"relevance":0.9}]}`))
	}))
	defer srv.Close()

	p := NewMapboxProvider("pk.test", srv.URL, httpclient.New(fastClientOptions()))
	c, err := p.Geocode(context.Background(), "Av Paulista, 1000, Sao Paulo/SP, Brasil")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.InDelta(t, -23.56, c.Latitude, 1e-9)
	assert.InDelta(t, -46.65, c.Longitude, 1e-9)
}

type stubProvider struct {
	name   string
	coords *providers.Coordinates
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Geocode(ctx context.Context, q string) (*providers.Coordinates, error) {
	s.calls++
	return s.coords, s.err
}

func TestChainProvider(t *testing.T) {
	failing := &stubProvider{name: "a", err: errors.New("boom")}
	empty := &stubProvider{name: "b"}
	hit := &stubProvider{name: "c", coords: &providers.Coordinates{Latitude: -10, Longitude: -48}}
	never := &stubProvider{name: "d", coords: &providers.Coordinates{Latitude: 1}}

	chain := NewChainProvider(failing, empty, hit, never)
	assert.Equal(t, "a>b>c>d", chain.Name())

	c, err := chain.Geocode(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, -10.0, c.Latitude)
	assert.Equal(t, 0, never.calls)

	c, err = NewChainProvider(failing, empty).Geocode(context.Background(), "q")
	assert.Nil(t, c)
	assert.EqualError(t, err, "boom")

	c, err = NewChainProvider(empty).Geocode(context.Background(), "q")
	assert.Nil(t, c)
	assert.NoError(t, err)
}

func TestNewFromConfig(t *testing.T) {
	p, err := NewFromConfig(config.GeocoderConfig{Provider: "auto"})
	require.NoError(t, err)
	assert.Equal(t, "nominatim", p.Name())

	p, err = NewFromConfig(config.GeocoderConfig{Provider: "auto", MapboxToken: "pk"})
	require.NoError(t, err)
	assert.Equal(t, "mapbox>nominatim", p.Name())

	_, err = NewFromConfig(config.GeocoderConfig{Provider: "mapbox"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfigMissing))

	_, err = NewFromConfig(config.GeocoderConfig{Provider: "google"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfigMissing))
}

func TestMockGeolocationProvider(t *testing.T) {
	m := NewMockGeolocationProvider()
	c, err := m.Geocode(context.Background(), "Rua A, 1 - Centro, São Paulo/SP, Brasil")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.InDelta(t, -23.5505, c.Latitude, 1e-9)

	c, err = m.Geocode(context.Background(), "Rua A, Sao Paulo de Olivenca")
	require.NoError(t, err)
	require.NotNil(t, c, "word match still hits the longest known city")

	c, err = m.Geocode(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, 3, m.Calls())
}
