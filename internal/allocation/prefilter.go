package allocation

import (
	"github.com/localizador/backend/internal/geo"
	"github.com/localizador/backend/internal/models"
)

// DefaultSlackFactor widens the aerial radius by 50%.
const DefaultSlackFactor = 1.5

// Candidate is a technician considered for one request. Road fields are
// filled once the route oracle confirms the distance.
type Candidate struct {
	Technician      models.Technician `json:"technician"`
	AerialKm        float64           `json:"aerial_km"`
	RoadKm          float64           `json:"distance_km"`
	Duration        string            `json:"duration"`
	DurationSeconds float64           `json:"duration_seconds"`
	Cost            float64           `json:"cost"`
}

// Prefilter keeps technicians whose straight-line distance to origin is
// within maxKm*slack, in directory order. Technicians without valid
// coordinates are skipped.
func Prefilter(origin geo.Point, technicians []models.Technician, maxKm, slack float64) []Candidate {
	// Slack below 1 could drop technicians that are within maxKm by road.
	if slack < 1 {
		slack = 1
	}
	limit := maxKm * slack
	out := []Candidate{}
	for _, t := range technicians {
		p, ok := geo.PointFrom(t.Lat, t.Lon)
		if !ok {
			continue
		}
		d := geo.DistanceKm(origin, p)
		if d <= limit {
			out = append(out, Candidate{Technician: t, AerialKm: d})
		}
	}
	return out
}
