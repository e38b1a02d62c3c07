package routing

import (
	"context"

	"github.com/localizador/backend/internal/geo"
)

// StraightLineProvider estimates road distance from the great-circle
// distance. Used when no routing vendor is configured, e.g. in local runs.
type StraightLineProvider struct {
	// RoadFactor inflates the aerial distance, defaults to 1.3.
	RoadFactor float64
	// SpeedKmh is the average travel speed, defaults to 50.
	SpeedKmh float64
}

func (p StraightLineProvider) Name() string { return "straight" }

func (p StraightLineProvider) MaxDestinations() int { return 0 }

func (p StraightLineProvider) Matrix(_ context.Context, origin geo.Point, destinations []geo.Point) ([]Result, error) {
	factor := p.RoadFactor
	if factor < 1 {
		factor = 1.3
	}
	speed := p.SpeedKmh
	if speed <= 0 {
		speed = 50
	}
	out := make([]Result, len(destinations))
	for i, d := range destinations {
		km := geo.DistanceKm(origin, d) * factor
		seconds := km / speed * 3600
		out[i] = Result{
			DistanceKm: km,
			Duration:   FormatDuration(seconds),
			Seconds:    seconds,
		}
	}
	return out, nil
}
