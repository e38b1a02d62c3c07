package routing

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/localizador/backend/internal/geo"
	"github.com/localizador/backend/internal/metrics"
)

const maxCachedPairs = 100_000

type pairKey struct {
	origin geo.Point
	dest   geo.Point
}

// Batcher adapts a capped Provider to the Oracle contract: destinations are
// split into provider-sized chunks, fetched concurrently and stitched back
// in input order. Successful pairs are memoized; failures are not.
type Batcher struct {
	Provider    Provider
	Concurrency int
	Logger      zerolog.Logger

	mu    sync.Mutex
	cache map[pairKey]Result
}

func NewBatcher(provider Provider, concurrency int, logger zerolog.Logger) *Batcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Batcher{
		Provider:    provider,
		Concurrency: concurrency,
		Logger:      logger,
		cache:       map[pairKey]Result{},
	}
}

func (b *Batcher) RouteBatch(ctx context.Context, origin geo.Point, destinations []geo.Point) []Result {
	out := make([]Result, len(destinations))
	if len(destinations) == 0 {
		return out
	}

	pending := make([]int, 0, len(destinations))
	b.mu.Lock()
	if b.cache == nil {
		b.cache = map[pairKey]Result{}
	}
	for i, d := range destinations {
		if cached, ok := b.cache[pairKey{origin: origin, dest: d}]; ok {
			out[i] = cached
			continue
		}
		pending = append(pending, i)
	}
	b.mu.Unlock()

	if hits := len(destinations) - len(pending); hits > 0 {
		metrics.RouteLookupsTotal.WithLabelValues("cached").Add(float64(hits))
	}
	if len(pending) == 0 {
		return out
	}

	size := b.Provider.MaxDestinations()
	if size <= 0 {
		size = len(pending)
	}
	concurrency := b.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for start := 0; start < len(pending); start += size {
		chunk := pending[start:min(start+size, len(pending))]
		g.Go(func() error {
			b.fetchChunk(ctx, origin, destinations, chunk, out)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (b *Batcher) fetchChunk(ctx context.Context, origin geo.Point, destinations []geo.Point, chunk []int, out []Result) {
	dests := make([]geo.Point, len(chunk))
	for k, i := range chunk {
		dests[k] = destinations[i]
	}

	metrics.RouteCallsTotal.WithLabelValues(b.Provider.Name()).Inc()
	results, err := b.Provider.Matrix(ctx, origin, dests)
	if err == nil && len(results) != len(dests) {
		err = fmt.Errorf("%w: expected %d results, got %d", ErrVendorStatus, len(dests), len(results))
	}
	if err != nil {
		b.Logger.Warn().Err(err).
			Str("provider", b.Provider.Name()).
			Int("destinations", len(dests)).
			Msg("route chunk failed")
		for _, i := range chunk {
			out[i] = Failed(err)
		}
		metrics.RouteLookupsTotal.WithLabelValues("failed").Add(float64(len(chunk)))
		return
	}

	ok := 0
	b.mu.Lock()
	if len(b.cache) >= maxCachedPairs {
		b.cache = map[pairKey]Result{}
	}
	for k, i := range chunk {
		out[i] = results[k]
		if results[k].OK() {
			ok++
			b.cache[pairKey{origin: origin, dest: dests[k]}] = results[k]
		}
	}
	b.mu.Unlock()

	metrics.RouteLookupsTotal.WithLabelValues("ok").Add(float64(ok))
	if failed := len(chunk) - ok; failed > 0 {
		metrics.RouteLookupsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}
