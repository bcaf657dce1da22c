package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
	"github.com/zatekoja/obstetric-locator/pkg/geo"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Data       DataConfig
	Bounds     geo.BoundingBox
	Classifier ClassifierConfig
	Geocoder   GeocoderConfig
	TravelTime TravelTimeConfig
	Emergency  EmergencyConfig
	Overrides  OverridesConfig
	Release    ReleaseConfig
	Admin      AdminConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	OTEL       OTELConfig
	Log        LogConfig
	Build      BuildInfo
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DataConfig locates raw snapshots and the derived tables.
type DataConfig struct {
	Dir           string // raw registry CSVs
	Snapshot      string // YYYYMM
	CanonicalPath string
	TrimmedPath   string
	EventLogPath  string
	BlacklistPath string
	GoldenPath    string
	QADir         string
	SummaryPath   string
}

// ClassifierConfig holds evidence weights and the configured code sets.
type ClassifierConfig struct {
	WeightBeds          float64
	WeightService       float64
	WeightQualification float64
	WeightType          float64
	WeightKeyword       float64
	ScoreMinProbable    float64
	ScoreMaxProbable    float64

	ObstetricBedCodes     []string
	ObstetricServiceCodes []string
	ObstetricClassCodes   []string
	MaternityTypeCodes    []string
	HospitalTypeCodes     []string

	StrictObstetric bool
}

// GeocoderConfig holds geocoding provider configuration
type GeocoderConfig struct {
	Provider     string // auto, mapbox, nominatim, or a comma-separated chain
	MapboxToken  string
	RPS          float64
	BatchSize    int
	MaxAttempts  int
	Timeout      time.Duration
	CacheBackend string // sqlite or redis
	CachePath    string
	UserAgent    string
	NominatimURL string
	MapboxURL    string
}

// TravelTimeConfig controls the optional Matrix API ranking.
type TravelTimeConfig struct {
	Enabled   bool
	MatrixURL string
	Timeout   time.Duration
}

// EmergencyConfig controls the canonical-table process cache and health thresholds.
type EmergencyConfig struct {
	CacheTTL        time.Duration
	HealthMinCount  int
	HealthMaxAgeHrs float64
}

// OverridesConfig controls the supplementary override layer.
type OverridesConfig struct {
	Eager         bool
	Convenios     bool
	Snapshot      string // explicit snapshot path or YYYYMM code; empty = newest
	ConveniosPath string
	CacheDir      string
}

// ReleaseConfig holds release-gate thresholds.
type ReleaseConfig struct {
	UF                   string
	MinCoordCoverage     float64
	MinPhoneCoverage     float64
	MaxGeocodeFailure    float64
	MinGoldenAccuracy    float64
	MaxPublicMismatchPct float64
	TestCommand          string
}

// AdminConfig gates the debug endpoints.
type AdminConfig struct {
	Token string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool // shared geocode cache and dataset event fan-out
	Host     string
	Port     int
	Password string
	DB       int
}

// DatabaseConfig holds the optional search-event mirror database.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// LogConfig holds logger configuration
type LogConfig struct {
	Env   string
	Level string
}

// BuildInfo is stamped via -ldflags at build time.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Load loads configuration from environment variables (and a .env file when present)
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")
	outDir := getEnv("OUTPUT_DIR", filepath.Join(dataDir, "processed"))

	bounds := geo.Brazil
	if raw := os.Getenv("COUNTRY_BOUNDS"); raw != "" {
		parsed, err := geo.ParseBoundingBox(raw)
		if err != nil {
			return nil, fmt.Errorf("COUNTRY_BOUNDS: %w", err)
		}
		bounds = parsed
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Data: DataConfig{
			Dir:           dataDir,
			Snapshot:      getEnv("SNAPSHOT", ""),
			CanonicalPath: getEnv("CANONICAL_PATH", filepath.Join(outDir, "establishments.parquet")),
			TrimmedPath:   getEnv("TRIMMED_PATH", filepath.Join(outDir, "establishments_hot.parquet")),
			EventLogPath:  getEnv("SEARCH_EVENT_LOG", filepath.Join(outDir, "search_events.jsonl")),
			BlacklistPath: getEnv("BLACKLIST_PATH", ""),
			GoldenPath:    getEnv("GOLDEN_PATH", filepath.Join(dataDir, "golden.json")),
			QADir:         getEnv("QA_DIR", filepath.Join(outDir, "qa")),
			SummaryPath:   getEnv("SUMMARY_PATH", filepath.Join(outDir, "run_summary.json")),
		},
		Bounds: bounds,
		Classifier: ClassifierConfig{
			WeightBeds:          getEnvAsFloat("WEIGHT_LEITO_OBST_NEONATAL", 0.6),
			WeightService:       getEnvAsFloat("WEIGHT_SERVICO_CLASSIF_OBST", 0.5),
			WeightQualification: getEnvAsFloat("WEIGHT_HABILITACAO_OBST", 0.5),
			WeightType:          getEnvAsFloat("WEIGHT_TIPO_MATERNIDADE", 0.3),
			WeightKeyword:       getEnvAsFloat("WEIGHT_KEYWORD_NOME_FANTASIA", 0.2),
			ScoreMinProbable:    getEnvAsFloat("SCORE_MIN_PROV", 0.4),
			ScoreMaxProbable:    getEnvAsFloat("SCORE_MAX_PROV", 0.59),
			ObstetricBedCodes:   getEnvAsList("OBST_BED_CODES", []string{"10", "43", "44", "45", "46", "47", "48", "65", "80", "81", "82", "92", "93"}),
			ObstetricServiceCodes: getEnvAsList("OBST_SERVICE_CODES", []string{"125"}),
			ObstetricClassCodes:   getEnvAsList("OBST_CLASS_CODES", []string{"001"}),
			MaternityTypeCodes:    getEnvAsList("MATERNITY_TYPE_CODES", nil),
			HospitalTypeCodes:     getEnvAsList("HOSPITAL_TYPE_CODES", []string{"05", "07", "15", "62"}),
			StrictObstetric:       getEnvAsBool("STRICT_OBST", true),
		},
		Geocoder: GeocoderConfig{
			Provider:     strings.ToLower(getEnv("GEOCODER_PROVIDER", "auto")),
			MapboxToken:  getEnv("MAPBOX_TOKEN", ""),
			RPS:          getEnvAsFloat("GEOCODER_RPS", 1),
			BatchSize:    getEnvAsInt("GEOCODER_BATCH", 200),
			MaxAttempts:  getEnvAsInt("GEOCODER_MAX_ATTEMPTS", 4),
			Timeout:      getEnvAsDuration("GEOCODER_TIMEOUT", 10*time.Second),
			CacheBackend: strings.ToLower(getEnv("GEOCODER_CACHE", "sqlite")),
			CachePath:    getEnv("GEOCODER_CACHE_PATH", filepath.Join(outDir, "geocode_cache.sqlite")),
			UserAgent:    getEnv("GEOCODER_USER_AGENT", "obstetric-locator/1.0"),
			NominatimURL: getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
			MapboxURL:    getEnv("MAPBOX_GEOCODE_URL", "https://api.mapbox.com/geocoding/v5/mapbox.places"),
		},
		TravelTime: TravelTimeConfig{
			Enabled:   getEnvAsBool("TRAVEL_TIME", false),
			MatrixURL: getEnv("MAPBOX_MATRIX_URL", "https://api.mapbox.com/directions-matrix/v1/mapbox/driving"),
			Timeout:   getEnvAsDuration("TRAVEL_TIME_TIMEOUT", 3*time.Second),
		},
		Emergency: EmergencyConfig{
			CacheTTL:        time.Duration(getEnvAsInt("EMERGENCY_CACHE_TTL_SECONDS", 300)) * time.Second,
			HealthMinCount:  getEnvAsInt("EMERGENCY_HEALTH_MIN_COUNT", 1),
			HealthMaxAgeHrs: getEnvAsFloat("EMERGENCY_HEALTH_MAX_AGE_HOURS", 720),
		},
		Overrides: OverridesConfig{
			Eager:         strings.EqualFold(getEnv("OVERRIDES_BOOT", "lazy"), "eager"),
			Convenios:     getEnvAsBool("OVERRIDES_CONVENIOS", true),
			Snapshot:      getEnv("OVERRIDES_SNAPSHOT", ""),
			ConveniosPath: getEnv("OVERRIDES_CONVENIOS_PATH", ""),
			CacheDir:      getEnv("OVERRIDES_CACHE_DIR", filepath.Join(outDir, "cache")),
		},
		Release: ReleaseConfig{
			UF:                   strings.ToUpper(getEnv("RELEASE_UF", "")),
			MinCoordCoverage:     getEnvAsFloat("GATE_MIN_COORD_COVERAGE", 0.85),
			MinPhoneCoverage:     getEnvAsFloat("GATE_MIN_PHONE_COVERAGE", 0.85),
			MaxGeocodeFailure:    getEnvAsFloat("GATE_MAX_GEOCODE_FAILURE", 0.10),
			MinGoldenAccuracy:    getEnvAsFloat("GATE_MIN_GOLDEN_ACCURACY", 0.95),
			MaxPublicMismatchPct: getEnvAsFloat("GATE_MAX_PUBLIC_MISMATCH_PCT", 0.5),
			TestCommand:          getEnv("PIPELINE_TEST_CMD", "go test ./..."),
		},
		Admin: AdminConfig{
			Token: getEnv("ADMIN_TOKEN", ""),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("EVENTS_DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "obstetric_locator"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "obstetric-locator"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Log: LogConfig{
			Env:   getEnv("APP_ENV", "production"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Build: BuildInfo{
			Version:   getEnv("APP_VERSION", "dev"),
			Commit:    getEnv("APP_COMMIT", ""),
			BuildTime: getEnv("APP_BUILD_TIME", ""),
		},
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParseOnOff accepts on/off, true/false, yes/no and 1/0.
func ParseOnOff(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "true", "1", "yes", "sim":
		return true, nil
	case "off", "false", "0", "no", "nao", "não":
		return false, nil
	}
	return false, fmt.Errorf("invalid on/off value %q", value)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := ParseOnOff(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the settings every entrypoint needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Data.CanonicalPath) == "" {
		return apperrors.NewConfigMissingError("CANONICAL_PATH must not be empty")
	}
	if c.Emergency.CacheTTL < 0 {
		return apperrors.NewConfigMissingError("EMERGENCY_CACHE_TTL_SECONDS must be >= 0")
	}
	if c.Classifier.ScoreMinProbable > c.Classifier.ScoreMaxProbable {
		return apperrors.NewConfigMissingError("SCORE_MIN_PROV must not exceed SCORE_MAX_PROV")
	}
	switch c.Geocoder.CacheBackend {
	case "sqlite":
	case "redis":
		if !c.Redis.Enabled {
			return apperrors.NewConfigMissingError("GEOCODER_CACHE=redis requires REDIS_ENABLED")
		}
	default:
		return apperrors.NewConfigMissingError(fmt.Sprintf("GEOCODER_CACHE %q is not one of sqlite, redis", c.Geocoder.CacheBackend))
	}
	return nil
}

// ValidateGeocoder checks the settings required by geocode mode.
func (c *Config) ValidateGeocoder() error {
	for _, name := range strings.Split(c.Geocoder.Provider, ",") {
		switch strings.TrimSpace(name) {
		case "auto", "nominatim", "mock":
		case "mapbox":
			if c.Geocoder.MapboxToken == "" {
				return apperrors.NewConfigMissingError("MAPBOX_TOKEN is required for the mapbox geocoder")
			}
		default:
			return apperrors.NewConfigMissingError(fmt.Sprintf("unknown GEOCODER_PROVIDER %q", name))
		}
	}
	if c.Geocoder.RPS <= 0 {
		return apperrors.NewConfigMissingError("GEOCODER_RPS must be positive")
	}
	if c.Geocoder.BatchSize <= 0 {
		return apperrors.NewConfigMissingError("GEOCODER_BATCH must be positive")
	}
	return nil
}
