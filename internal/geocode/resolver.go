package geocode

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/localizador/backend/internal/geo"
	"github.com/localizador/backend/internal/metrics"
)

// Resolver turns free-text addresses into coordinates. Every failure
// collapses into ok == false; callers never see vendor errors.
type Resolver struct {
	Geocoder Geocoder
	Cache    Cache
	Logger   zerolog.Logger
}

func NewResolver(g Geocoder, cache Cache, logger zerolog.Logger) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Resolver{Geocoder: g, Cache: cache, Logger: logger}
}

// NormalizeAddress is the memoization key: trimmed, lower-cased, inner
// whitespace collapsed.
func NormalizeAddress(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

// Resolve serves cached points first. Vendor timeouts are enforced by the
// Geocoder itself.
func (r *Resolver) Resolve(ctx context.Context, address string) (geo.Point, bool) {
	return r.resolve(ctx, address, true)
}

// ResolveFresh skips the cache lookup and refreshes the cached point.
func (r *Resolver) ResolveFresh(ctx context.Context, address string) (geo.Point, bool) {
	return r.resolve(ctx, address, false)
}

func (r *Resolver) resolve(ctx context.Context, address string, useCache bool) (geo.Point, bool) {
	key := NormalizeAddress(address)
	if key == "" {
		return geo.Point{}, false
	}
	if useCache && r.Cache != nil {
		if p, ok := r.Cache.Get(ctx, key); ok {
			metrics.GeocodeTotal.WithLabelValues("cached").Inc()
			return p, true
		}
	}

	res, err := r.Geocoder.Geocode(ctx, strings.TrimSpace(address))
	if err != nil {
		metrics.GeocodeTotal.WithLabelValues("failed").Inc()
		r.Logger.Debug().Err(err).Str("address", address).Msg("geocode failed")
		return geo.Point{}, false
	}
	if !res.Point.Valid() {
		metrics.GeocodeTotal.WithLabelValues("failed").Inc()
		r.Logger.Debug().Str("address", address).Msg("geocode returned invalid coordinates")
		return geo.Point{}, false
	}

	metrics.GeocodeTotal.WithLabelValues("ok").Inc()
	if r.Cache != nil {
		r.Cache.Set(ctx, key, res.Point)
	}
	return res.Point, true
}
