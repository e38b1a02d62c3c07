package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/localizador/backend/internal/allocation"
	"github.com/localizador/backend/internal/config"
	"github.com/localizador/backend/internal/db"
	"github.com/localizador/backend/internal/geocode"
	httpapi "github.com/localizador/backend/internal/http"
	"github.com/localizador/backend/internal/routing"
	"github.com/localizador/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "localizador-backend").Logger()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	resolver := geocode.NewResolver(newGeocoder(cfg), newGeocodeCache(ctx, cfg, logger), logger)

	provider := newRouteProvider(cfg)
	logger.Info().Str("geocoder", cfg.Geocoder).Str("router", provider.Name()).Msg("vendors configured")

	engine := &allocation.Engine{
		Resolver: resolver,
		Oracle:   routing.NewBatcher(provider, cfg.RouteConcurrency, logger),
		Logger:   logger,
		Workers:  cfg.BatchWorkers,
	}
	dispatch := &service.DispatchService{
		Store:    store,
		Engine:   engine,
		Resolver: resolver,
		Defaults: allocation.Params{
			MaxDistanceKm: cfg.MaxDistanceKm,
			DailyCapacity: cfg.DailyCapacity,
			CostPerKm:     cfg.CostPerKm,
			SlackFactor:   cfg.SlackFactor,
			Limit:         cfg.SearchLimit,
		},
		MaxBatchSize: cfg.MaxBatchSize,
		Country:      cfg.GeocodeCountry,
		Logger:       logger,
	}

	router := httpapi.Router(cfg, store, dispatch, logger)

	srv := newServer(cfg, router)

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

// newServer bounds request reads only; batch runs can take minutes to
// answer.
func newServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: cfg.RequestTimeout,
		ReadTimeout:       cfg.RequestTimeout,
	}
}

func newGeocoder(cfg config.Config) geocode.Geocoder {
	if cfg.Geocoder == config.GeocoderGoogle {
		client := &http.Client{Timeout: cfg.GeocodeTimeout}
		return &geocode.GoogleGeocoder{APIKey: cfg.GoogleMapsAPIKey, Region: "br", Client: client}
	}
	// Nominatim applies the timeout itself, after its rate-limit wait.
	return &geocode.NominatimGeocoder{
		BaseURL:      cfg.NominatimURL,
		UserAgent:    cfg.NominatimUserAgent,
		CountryCodes: "br",
		Timeout:      cfg.GeocodeTimeout,
	}
}

func newGeocodeCache(ctx context.Context, cfg config.Config, logger zerolog.Logger) geocode.Cache {
	if cfg.RedisURL == "" {
		return geocode.NewMemoryCache()
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory geocode cache")
		return geocode.NewMemoryCache()
	}
	return geocode.NewRedisCache(client, cfg.GeocodeCacheTTL)
}

func newRouteProvider(cfg config.Config) routing.Provider {
	client := &http.Client{Timeout: cfg.RouteTimeout}
	switch cfg.Router {
	case config.RouterGoogle:
		return &routing.GoogleProvider{APIKey: cfg.GoogleMapsAPIKey, Client: client}
	case config.RouterStraight:
		return routing.StraightLineProvider{}
	default:
		return &routing.OSRMProvider{BaseURL: cfg.OSRMURL, ChunkSize: cfg.RouteBatchSize, Client: client}
	}
}
