package routing

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localizador/backend/internal/geo"
)

type fakeProvider struct {
	max    int
	failAt map[int]bool // chunk calls (by first destination longitude) that fail

	mu     sync.Mutex
	calls  int
	chunks []int
}

func (f *fakeProvider) Name() string         { return "fake" }
func (f *fakeProvider) MaxDestinations() int { return f.max }

func (f *fakeProvider) Matrix(_ context.Context, _ geo.Point, destinations []geo.Point) ([]Result, error) {
	f.mu.Lock()
	f.calls++
	f.chunks = append(f.chunks, len(destinations))
	f.mu.Unlock()

	if f.failAt[int(destinations[0].Lon)] {
		return nil, errors.New("vendor down")
	}
	out := make([]Result, len(destinations))
	for i, d := range destinations {
		// Encode the destination in the distance so order can be checked.
		out[i] = Result{DistanceKm: d.Lon, Duration: FormatDuration(d.Lon * 60), Seconds: d.Lon * 60}
	}
	return out, nil
}

func destinations(n int) []geo.Point {
	out := make([]geo.Point, n)
	for i := range out {
		out[i] = geo.Point{Lat: 0, Lon: float64(i)}
	}
	return out
}

func TestBatcherChunksAndPreservesOrder(t *testing.T) {
	p := &fakeProvider{max: 25}
	b := NewBatcher(p, 4, zerolog.Nop())

	res := b.RouteBatch(context.Background(), geo.Point{}, destinations(60))

	require.Len(t, res, 60)
	for i, r := range res {
		assert.Equal(t, float64(i), r.DistanceKm, "slot %d out of order", i)
	}
	assert.Equal(t, 3, p.calls)
	assert.ElementsMatch(t, []int{25, 25, 10}, p.chunks)
}

func TestBatcherChunkFailureYieldsSentinels(t *testing.T) {
	p := &fakeProvider{max: 10, failAt: map[int]bool{10: true}}
	b := NewBatcher(p, 2, zerolog.Nop())

	res := b.RouteBatch(context.Background(), geo.Point{}, destinations(25))

	require.Len(t, res, 25)
	for i, r := range res {
		if i >= 10 && i < 20 {
			assert.False(t, r.OK())
			assert.True(t, math.IsInf(r.DistanceKm, 1))
			assert.Equal(t, NotAvailable, r.Duration)
			continue
		}
		assert.True(t, r.OK())
		assert.Equal(t, float64(i), r.DistanceKm)
	}
}

func TestBatcherMemoizesSuccessfulPairs(t *testing.T) {
	p := &fakeProvider{max: 25}
	b := NewBatcher(p, 1, zerolog.Nop())
	origin := geo.Point{Lat: -23.5, Lon: -46.6}

	first := b.RouteBatch(context.Background(), origin, destinations(5))
	second := b.RouteBatch(context.Background(), origin, destinations(5))

	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.calls)

	// A new destination only fetches the missing pair.
	b.RouteBatch(context.Background(), origin, destinations(6))
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, 1, p.chunks[1])
}

func TestBatcherDoesNotCacheFailures(t *testing.T) {
	p := &fakeProvider{max: 25, failAt: map[int]bool{0: true}}
	b := NewBatcher(p, 1, zerolog.Nop())

	b.RouteBatch(context.Background(), geo.Point{}, destinations(3))
	b.RouteBatch(context.Background(), geo.Point{}, destinations(3))

	assert.Equal(t, 2, p.calls)
}

type shortProvider struct{}

func (shortProvider) Name() string         { return "short" }
func (shortProvider) MaxDestinations() int { return 0 }
func (shortProvider) Matrix(context.Context, geo.Point, []geo.Point) ([]Result, error) {
	return []Result{{DistanceKm: 1}}, nil
}

func TestBatcherRejectsShortVendorResponse(t *testing.T) {
	b := NewBatcher(shortProvider{}, 1, zerolog.Nop())

	res := b.RouteBatch(context.Background(), geo.Point{}, destinations(3))

	require.Len(t, res, 3)
	for _, r := range res {
		assert.False(t, r.OK())
		assert.ErrorIs(t, r.Err, ErrVendorStatus)
	}
}

func TestBatcherEmptyDestinations(t *testing.T) {
	p := &fakeProvider{max: 25}
	b := NewBatcher(p, 1, zerolog.Nop())

	res := b.RouteBatch(context.Background(), geo.Point{}, nil)

	assert.Empty(t, res)
	assert.Zero(t, p.calls)
}

func TestStraightLineProviderNeverShorterThanAerial(t *testing.T) {
	origin := geo.Point{Lat: -23.55, Lon: -46.63}
	dests := []geo.Point{{Lat: -23.0, Lon: -46.0}, {Lat: -22.9, Lon: -43.17}, origin}

	res, err := StraightLineProvider{}.Matrix(context.Background(), origin, dests)

	require.NoError(t, err)
	require.Len(t, res, len(dests))
	for i, r := range res {
		assert.GreaterOrEqual(t, r.DistanceKm, geo.DistanceKm(origin, dests[i]))
	}
	assert.Equal(t, "0 min", res[2].Duration)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42 min", FormatDuration(42*60+30))
	assert.Equal(t, NotAvailable, FormatDuration(math.Inf(1)))
	assert.Equal(t, NotAvailable, FormatDuration(-1))
}
