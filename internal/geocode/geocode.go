package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/localizador/backend/internal/geo"
	"github.com/localizador/backend/internal/models"
)

var ErrNotFound = errors.New("geocode not found")

type Result struct {
	Point       geo.Point
	DisplayName string
	Confidence  float64
}

// Geocoder is a vendor adapter. Implementations return ErrNotFound when the
// vendor answers with zero results.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Result, error)
}

// BuildQuery joins the non-empty address parts into one free-text query.
func BuildQuery(address string, city string, state string, country string) string {
	parts := []string{}
	for _, p := range []string{address, city, state, country} {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// TechnicianQuery is the query used to locate a technician's base.
func TechnicianQuery(t models.Technician, country string) string {
	return BuildQuery(t.Address, t.City, t.State, country)
}

func ShouldGeocode(t models.Technician, force bool) bool {
	if force {
		return true
	}
	_, ok := geo.PointFrom(t.Lat, t.Lon)
	return !ok
}
