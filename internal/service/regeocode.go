package service

import (
	"context"

	"github.com/localizador/backend/internal/geocode"
	"github.com/localizador/backend/internal/models"
)

type RegeocodeSummary struct {
	Total   int      `json:"total"`
	Skipped int      `json:"skipped"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Missing []string `json:"missing"`
}

// RegeocodeTechnicians fills in coordinates for technicians that lack
// them, or for all of them when force is set. A forced run goes to the
// vendor instead of the geocode cache.
func (s *DispatchService) RegeocodeTechnicians(ctx context.Context, filter models.TechnicianFilter, force bool) (RegeocodeSummary, error) {
	techs, err := s.Store.ListTechnicians(ctx, filter)
	if err != nil {
		return RegeocodeSummary{}, err
	}
	sum := RegeocodeSummary{Total: len(techs), Missing: []string{}}
	for _, t := range techs {
		if !geocode.ShouldGeocode(t, force) {
			sum.Skipped++
			continue
		}
		query := geocode.TechnicianQuery(t, s.Country)
		resolve := s.Resolver.Resolve
		if force {
			resolve = s.Resolver.ResolveFresh
		}
		p, ok := resolve(ctx, query)
		if !ok {
			sum.Failed++
			sum.Missing = append(sum.Missing, t.ID)
			continue
		}
		if err := s.Store.UpdateTechnicianCoords(ctx, t.ID, p.Lat, p.Lon); err != nil {
			return sum, err
		}
		sum.Updated++
	}
	s.Logger.Info().
		Int("updated", sum.Updated).
		Int("failed", sum.Failed).
		Int("skipped", sum.Skipped).
		Msg("technicians geocoded")
	return sum, nil
}
