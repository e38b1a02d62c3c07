package service

import (
	"context"

	"github.com/localizador/backend/internal/allocation"
	"github.com/localizador/backend/internal/models"
)

type SearchRequest struct {
	Address string                  `json:"address" validate:"required"`
	Filter  models.TechnicianFilter `json:"filter"`
	Overrides
}

// Search lists every technician that can reach the address, nearest first.
func (s *DispatchService) Search(ctx context.Context, req SearchRequest) (allocation.SearchResult, error) {
	techs, err := s.Store.ListTechnicians(ctx, req.Filter)
	if err != nil {
		return allocation.SearchResult{}, err
	}
	return s.Engine.Search(ctx, req.Address, techs, s.Params(req.Overrides)), nil
}
