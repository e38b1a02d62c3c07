package allocation

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/localizador/backend/internal/geo"
	"github.com/localizador/backend/internal/geocode"
	"github.com/localizador/backend/internal/routing"
)

// runLookups memoizes every lookup outcome for one batch run, failures
// included, so a failed address or route is asked once per run.
type runLookups struct {
	resolver Resolver
	oracle   routing.Oracle

	group  singleflight.Group
	mu     sync.Mutex
	points map[string]resolved
	failed map[routeKey]routing.Result
}

type resolved struct {
	point geo.Point
	ok    bool
}

type routeKey struct {
	origin geo.Point
	dest   geo.Point
}

func newRunLookups(resolver Resolver, oracle routing.Oracle) *runLookups {
	return &runLookups{
		resolver: resolver,
		oracle:   oracle,
		points:   map[string]resolved{},
		failed:   map[routeKey]routing.Result{},
	}
}

func (r *runLookups) Resolve(ctx context.Context, address string) (geo.Point, bool) {
	key := geocode.NormalizeAddress(address)
	if res, ok := r.cached(key); ok {
		return res.point, res.ok
	}
	v, _, _ := r.group.Do(key, func() (any, error) {
		if res, ok := r.cached(key); ok {
			return res, nil
		}
		p, ok := r.resolver.Resolve(ctx, address)
		res := resolved{point: p, ok: ok}
		r.mu.Lock()
		r.points[key] = res
		r.mu.Unlock()
		return res, nil
	})
	res := v.(resolved)
	return res.point, res.ok
}

func (r *runLookups) cached(key string) (resolved, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.points[key]
	return res, ok
}

// RouteBatch skips destinations that already failed from origin in this
// run and asks the oracle for the rest.
func (r *runLookups) RouteBatch(ctx context.Context, origin geo.Point, destinations []geo.Point) []routing.Result {
	out := make([]routing.Result, len(destinations))
	pending := make([]int, 0, len(destinations))
	r.mu.Lock()
	for i, d := range destinations {
		if res, ok := r.failed[routeKey{origin: origin, dest: d}]; ok {
			out[i] = res
			continue
		}
		pending = append(pending, i)
	}
	r.mu.Unlock()
	if len(pending) == 0 {
		return out
	}

	ask := make([]geo.Point, len(pending))
	for k, i := range pending {
		ask[k] = destinations[i]
	}
	got := r.oracle.RouteBatch(ctx, origin, ask)

	r.mu.Lock()
	defer r.mu.Unlock()
	for k, i := range pending {
		res := routing.Failed(nil)
		if k < len(got) {
			res = got[k]
		}
		out[i] = res
		if !res.OK() {
			r.failed[routeKey{origin: origin, dest: destinations[i]}] = res
		}
	}
	return out
}
