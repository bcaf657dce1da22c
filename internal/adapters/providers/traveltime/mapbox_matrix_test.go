package traveltime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/obstetric-locator/internal/domain/providers"
	"github.com/zatekoja/obstetric-locator/internal/infrastructure/clients/httpclient"
)

func testClient() httpclient.Options {
	return httpclient.Options{Timeout: time.Second, MaxAttempts: 2, WaitTime: time.Millisecond, MaxWaitTime: time.Millisecond}
}

func TestMatrixProvider_Durations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/-46.630000,-23.550000;-46.640000,-23.620000;-46.620000,-23.620000"))
		assert.Equal(t, "0", r.URL.Query().Get("sources"))
		assert.Equal(t, "1;2", r.URL.Query().Get("destinations"))
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		w.Write([]byte(`{"code":"Ok","durations":[[600.5,null]]}`))
	}))
	defer srv.Close()

	p := NewMatrixProvider("tok", srv.URL, httpclient.New(testClient()))
	out, err := p.Durations(context.Background(),
		providers.Coordinates{Latitude: -23.55, Longitude: -46.63},
		[]providers.Coordinates{{Latitude: -23.62, Longitude: -46.64}, {Latitude: -23.62, Longitude: -46.62}},
	)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NotNil(t, out[0])
	assert.InDelta(t, 600.5, *out[0], 1e-9)
	assert.Nil(t, out[1])
}

func TestMatrixProvider_LengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"Ok","durations":[[600]]}`))
	}))
	defer srv.Close()

	p := NewMatrixProvider("tok", srv.URL, httpclient.New(testClient()))
	_, err := p.Durations(context.Background(), providers.Coordinates{},
		[]providers.Coordinates{{Latitude: 1}, {Latitude: 2}})
	assert.Error(t, err)
}

func TestMatrixProvider_TooManyDestinations(t *testing.T) {
	p := NewMatrixProvider("tok", "http://unused", httpclient.New(testClient()))
	_, err := p.Durations(context.Background(), providers.Coordinates{}, make([]providers.Coordinates, MaxDestinations+1))
	assert.Error(t, err)
}
