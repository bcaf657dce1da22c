package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"COUNTRY_BOUNDS", "TRAVEL_TIME", "EMERGENCY_CACHE_TTL_SECONDS", "GEOCODER_PROVIDER", "OVERRIDES_BOOT", "STRICT_OBST"} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, geo.Brazil, cfg.Bounds)
	assert.False(t, cfg.TravelTime.Enabled)
	assert.True(t, cfg.Classifier.StrictObstetric)
	assert.Equal(t, 300*time.Second, cfg.Emergency.CacheTTL)
	assert.Equal(t, 1, cfg.Emergency.HealthMinCount)
	assert.Equal(t, "auto", cfg.Geocoder.Provider)
	assert.False(t, cfg.Overrides.Eager)
	assert.Equal(t, 0.6, cfg.Classifier.WeightBeds)
	assert.Contains(t, cfg.Classifier.HospitalTypeCodes, "05")
	assert.Empty(t, cfg.Classifier.MaternityTypeCodes)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("COUNTRY_BOUNDS", "-25.5,-19.5,-53.5,-44.0")
	t.Setenv("TRAVEL_TIME", "on")
	t.Setenv("EMERGENCY_CACHE_TTL_SECONDS", "0")
	t.Setenv("OVERRIDES_BOOT", "eager")
	t.Setenv("OBST_BED_CODES", "10, 43 ,")
	t.Setenv("RELEASE_UF", "sp")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, geo.BoundingBox{LatMin: -25.5, LatMax: -19.5, LonMin: -53.5, LonMax: -44.0}, cfg.Bounds)
	assert.True(t, cfg.TravelTime.Enabled)
	assert.Equal(t, time.Duration(0), cfg.Emergency.CacheTTL)
	assert.True(t, cfg.Overrides.Eager)
	assert.Equal(t, []string{"10", "43"}, cfg.Classifier.ObstetricBedCodes)
	assert.Equal(t, "SP", cfg.Release.UF)
}

func TestLoad_InvalidBounds(t *testing.T) {
	t.Setenv("COUNTRY_BOUNDS", "1,2,3")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseOnOff(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"OFF", false, false},
		{"1", true, false},
		{"0", false, false},
		{"yes", true, false},
		{" true ", true, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOnOff(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateGeocoder_MapboxWithoutToken(t *testing.T) {
	cfg := &Config{Geocoder: GeocoderConfig{Provider: "mapbox", RPS: 1, BatchSize: 10}}

	err := cfg.ValidateGeocoder()
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfigMissing))

	cfg.Geocoder.MapboxToken = "pk.test"
	assert.NoError(t, cfg.ValidateGeocoder())
}

func TestValidate_CacheBackend(t *testing.T) {
	cfg := &Config{
		Data:       DataConfig{CanonicalPath: "x.parquet"},
		Classifier: ClassifierConfig{ScoreMinProbable: 0.4, ScoreMaxProbable: 0.59},
		Geocoder:   GeocoderConfig{CacheBackend: "memcached"},
	}
	assert.True(t, apperrors.IsType(cfg.Validate(), apperrors.ErrorTypeConfigMissing))

	cfg.Geocoder.CacheBackend = "redis"
	assert.True(t, apperrors.IsType(cfg.Validate(), apperrors.ErrorTypeConfigMissing))

	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.Validate())
}
