package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	GeocoderNominatim = "nominatim"
	GeocoderGoogle    = "google"

	RouterOSRM     = "osrm"
	RouterGoogle   = "google"
	RouterStraight = "straight"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	MaxDistanceKm   float64 `mapstructure:"MAX_DISTANCE_KM"`
	DistancePresets string  `mapstructure:"DISTANCE_PRESETS"`
	DailyCapacity   int     `mapstructure:"DAILY_CAPACITY"`
	CostPerKm       float64 `mapstructure:"COST_PER_KM"`
	SlackFactor     float64 `mapstructure:"SLACK_FACTOR"`
	SearchLimit     int     `mapstructure:"SEARCH_LIMIT"`
	BatchWorkers    int     `mapstructure:"BATCH_WORKERS"`
	MaxBatchSize    int     `mapstructure:"MAX_BATCH_SIZE"`

	Geocoder           string        `mapstructure:"GEOCODER"`
	Router             string        `mapstructure:"ROUTER"`
	GoogleMapsAPIKey   string        `mapstructure:"GOOGLE_MAPS_API_KEY"`
	NominatimURL       string        `mapstructure:"NOMINATIM_URL"`
	NominatimUserAgent string        `mapstructure:"NOMINATIM_USER_AGENT"`
	GeocodeCountry     string        `mapstructure:"GEOCODE_COUNTRY"`
	OSRMURL            string        `mapstructure:"OSRM_URL"`
	GeocodeTimeout     time.Duration `mapstructure:"GEOCODE_TIMEOUT"`
	RouteTimeout       time.Duration `mapstructure:"ROUTE_TIMEOUT"`
	RouteBatchSize     int           `mapstructure:"ROUTE_BATCH_SIZE"`
	RouteConcurrency   int           `mapstructure:"ROUTE_CONCURRENCY"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	GeocodeCacheTTL    time.Duration `mapstructure:"GEOCODE_CACHE_TTL"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("MAX_DISTANCE_KM", 30)
	v.SetDefault("DISTANCE_PRESETS", "30,100,200")
	v.SetDefault("DAILY_CAPACITY", 0)
	v.SetDefault("COST_PER_KM", 2.0)
	v.SetDefault("SLACK_FACTOR", 1.5)
	v.SetDefault("SEARCH_LIMIT", 0)
	v.SetDefault("BATCH_WORKERS", 1)
	v.SetDefault("MAX_BATCH_SIZE", 5000)

	v.SetDefault("GEOCODER", GeocoderNominatim)
	v.SetDefault("ROUTER", RouterOSRM)
	v.SetDefault("GOOGLE_MAPS_API_KEY", "")
	v.SetDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("NOMINATIM_USER_AGENT", "localizador-tecnicos/1.0")
	v.SetDefault("GEOCODE_COUNTRY", "Brasil")
	v.SetDefault("OSRM_URL", "https://router.project-osrm.org")
	v.SetDefault("GEOCODE_TIMEOUT", "10s")
	v.SetDefault("ROUTE_TIMEOUT", "15s")
	v.SetDefault("ROUTE_BATCH_SIZE", 25)
	v.SetDefault("ROUTE_CONCURRENCY", 4)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("GEOCODE_CACHE_TTL", "720h")
}

// Validate reports configuration errors that must stop the process before
// it serves anything.
func (c Config) Validate() error {
	var errs []error
	switch c.Geocoder {
	case GeocoderNominatim:
	case GeocoderGoogle:
		if strings.TrimSpace(c.GoogleMapsAPIKey) == "" {
			errs = append(errs, errors.New("GEOCODER=google requires GOOGLE_MAPS_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GEOCODER %q", c.Geocoder))
	}
	switch c.Router {
	case RouterOSRM, RouterStraight:
	case RouterGoogle:
		if strings.TrimSpace(c.GoogleMapsAPIKey) == "" {
			errs = append(errs, errors.New("ROUTER=google requires GOOGLE_MAPS_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ROUTER %q", c.Router))
	}
	if c.MaxDistanceKm <= 0 {
		errs = append(errs, errors.New("MAX_DISTANCE_KM must be positive"))
	}
	if c.SlackFactor < 1 {
		errs = append(errs, errors.New("SLACK_FACTOR must be at least 1"))
	}
	if c.DailyCapacity < 0 {
		errs = append(errs, errors.New("DAILY_CAPACITY must not be negative"))
	}
	if c.CostPerKm < 0 {
		errs = append(errs, errors.New("COST_PER_KM must not be negative"))
	}
	if c.SearchLimit < 0 {
		errs = append(errs, errors.New("SEARCH_LIMIT must not be negative"))
	}
	if _, err := c.Presets(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Presets parses DISTANCE_PRESETS, e.g. "30,100,200".
func (c Config) Presets() ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(c.DistancePresets, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		km, err := strconv.ParseFloat(part, 64)
		if err != nil || km <= 0 {
			return nil, fmt.Errorf("invalid DISTANCE_PRESETS entry %q", part)
		}
		out = append(out, km)
	}
	return out, nil
}
