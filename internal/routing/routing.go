// Package routing confirms road distance and travel time between an origin
// and a set of destinations through an external routing vendor.
package routing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/localizador/backend/internal/geo"
)

// NotAvailable is the duration text of a failed lookup.
const NotAvailable = "N/A"

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrVendorStatus  = errors.New("routing vendor returned non-ok status")
)

// Result is the confirmed road distance for one destination. A failed
// lookup keeps its slot with DistanceKm = +Inf so callers can zip results
// positionally against their candidates.
type Result struct {
	DistanceKm float64 `json:"distance_km"`
	Duration   string  `json:"duration"`
	Seconds    float64 `json:"seconds"`
	Err        error   `json:"-"`
}

func (r Result) OK() bool {
	return r.Err == nil && !math.IsInf(r.DistanceKm, 1)
}

func Failed(err error) Result {
	if err == nil {
		err = ErrRouteNotFound
	}
	return Result{
		DistanceKm: math.Inf(1),
		Duration:   NotAvailable,
		Seconds:    math.Inf(1),
		Err:        err,
	}
}

// Provider is a vendor adapter. Matrix must return exactly one entry per
// destination; an error fails the whole call.
type Provider interface {
	Name() string
	MaxDestinations() int
	Matrix(ctx context.Context, origin geo.Point, destinations []geo.Point) ([]Result, error)
}

// Oracle is the contract consumed by the allocation engine. It never fails
// as a whole: every destination gets a Result, in order.
type Oracle interface {
	RouteBatch(ctx context.Context, origin geo.Point, destinations []geo.Point) []Result
}

// FormatDuration renders seconds the way results are displayed, e.g. "42 min".
func FormatDuration(seconds float64) string {
	if math.IsInf(seconds, 0) || math.IsNaN(seconds) || seconds < 0 {
		return NotAvailable
	}
	return fmt.Sprintf("%d min", int(seconds/60))
}
