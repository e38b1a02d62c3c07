package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/localizador/backend/internal/allocation"
	"github.com/localizador/backend/internal/geo"
	"github.com/localizador/backend/internal/models"
)

const (
	RunRunning = "RUNNING"
	RunSuccess = "SUCCESS"
	RunFailed  = "FAILED"
)

var (
	ErrEmptyBatch    = errors.New("batch has no service requests")
	ErrBatchTooLarge = errors.New("batch exceeds the maximum size")
)

// Store is the slice of the database the dispatch service needs.
type Store interface {
	ListTechnicians(ctx context.Context, filter models.TechnicianFilter) ([]models.Technician, error)
	UpdateTechnicianCoords(ctx context.Context, id string, lat, lon float64) error
	CreateRun(ctx context.Context, status string, params []byte) (string, error)
	FinishRun(ctx context.Context, runID string, status string, summary, results, workload []byte) error
}

// AddressResolver geocodes addresses. ResolveFresh ignores previously
// cached points.
type AddressResolver interface {
	allocation.Resolver
	ResolveFresh(ctx context.Context, address string) (geo.Point, bool)
}

type DispatchService struct {
	Store    Store
	Engine   *allocation.Engine
	Resolver AddressResolver
	// Defaults come from configuration and are overridden per request.
	Defaults     allocation.Params
	MaxBatchSize int
	Country      string
	Logger       zerolog.Logger
}

// Overrides are per-request replacements of the configured parameters.
type Overrides struct {
	MaxDistanceKm *float64 `json:"max_distance_km" validate:"omitempty,gt=0"`
	DailyCapacity *int     `json:"daily_capacity" validate:"omitempty,gte=0"`
	CostPerKm     *float64 `json:"cost_per_km" validate:"omitempty,gte=0"`
	Limit         *int     `json:"limit" validate:"omitempty,gte=0"`
}

func (s *DispatchService) Params(o Overrides) allocation.Params {
	p := s.Defaults
	if o.MaxDistanceKm != nil {
		p.MaxDistanceKm = *o.MaxDistanceKm
	}
	if o.DailyCapacity != nil {
		p.DailyCapacity = *o.DailyCapacity
	}
	if o.CostPerKm != nil {
		p.CostPerKm = *o.CostPerKm
	}
	if o.Limit != nil {
		p.Limit = *o.Limit
	}
	return p
}

type BatchRequest struct {
	Requests []models.ServiceRequest `json:"requests"`
	Filter   models.TechnicianFilter `json:"filter"`
	Overrides
}

type RunSummary struct {
	Events []map[string]any   `json:"events"`
	Counts allocation.Summary `json:"counts"`
}

type BatchOutcome struct {
	RunID    string                `json:"run_id"`
	Params   allocation.Params     `json:"params"`
	Summary  RunSummary            `json:"summary"`
	Results  []allocation.Result   `json:"results"`
	Workload []allocation.Workload `json:"workload"`
}

// ProcessBatch allocates a batch against the filtered directory and
// records it as a run. The batch runs to completion even if ctx is
// cancelled by the caller.
func (s *DispatchService) ProcessBatch(ctx context.Context, req BatchRequest) (BatchOutcome, error) {
	if len(req.Requests) == 0 {
		return BatchOutcome{}, ErrEmptyBatch
	}
	if s.MaxBatchSize > 0 && len(req.Requests) > s.MaxBatchSize {
		return BatchOutcome{}, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(req.Requests), s.MaxBatchSize)
	}
	ctx = context.WithoutCancel(ctx)

	params := s.Params(req.Overrides)
	paramsJSON, _ := json.Marshal(map[string]any{"params": params, "filter": req.Filter})
	runID, err := s.Store.CreateRun(ctx, RunRunning, paramsJSON)
	if err != nil {
		s.Logger.Error().Err(err).Msg("failed to create run")
		return BatchOutcome{}, err
	}
	logger := s.Logger.With().Str("run_id", runID).Logger()

	outcome := BatchOutcome{RunID: runID, Params: params}
	start := time.Now()

	techs, err := s.Store.ListTechnicians(ctx, req.Filter)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load technicians")
		failed, _ := json.Marshal(map[string]any{"error": err.Error()})
		if finishErr := s.Store.FinishRun(ctx, runID, RunFailed, failed, nil, nil); finishErr != nil {
			logger.Error().Err(finishErr).Msg("failed to finish run")
		}
		return outcome, err
	}
	outcome.Summary.Events = append(outcome.Summary.Events, map[string]any{
		"type":        "directory_loaded",
		"technicians": len(techs),
		"requests":    len(req.Requests),
		"time":        time.Now().UTC(),
	})

	batch := s.Engine.AllocateBatch(ctx, req.Requests, techs, params)
	outcome.Results = batch.Results
	outcome.Workload = batch.Workload
	outcome.Summary.Counts = batch.Summary
	outcome.Summary.Events = append(outcome.Summary.Events, map[string]any{
		"type":        "allocation",
		"allocated":   batch.Summary.Allocated,
		"unallocated": batch.Summary.Unallocated,
		"errors":      batch.Summary.Errors,
		"prefiltered": batch.Summary.Prefiltered,
		"elapsed_ms":  time.Since(start).Milliseconds(),
		"time":        time.Now().UTC(),
	})

	summaryJSON, _ := json.Marshal(outcome.Summary)
	resultsJSON, _ := json.Marshal(outcome.Results)
	workloadJSON, _ := json.Marshal(outcome.Workload)
	if err := s.Store.FinishRun(ctx, runID, RunSuccess, summaryJSON, resultsJSON, workloadJSON); err != nil {
		logger.Error().Err(err).Msg("failed to finish run")
		return outcome, err
	}
	logger.Info().Int("requests", len(req.Requests)).Msg("run finished")
	return outcome, nil
}
