// Package allocation picks technicians for service requests: aerial
// prefilter, road confirmation through the route oracle, then greedy
// nearest-with-capacity assignment against a per-batch ledger.
package allocation

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/localizador/backend/internal/geo"
	"github.com/localizador/backend/internal/metrics"
	"github.com/localizador/backend/internal/models"
	"github.com/localizador/backend/internal/routing"
)

type Status string

const (
	StatusEmptyAddress      Status = "EMPTY_ADDRESS"
	StatusGeocodeFailed     Status = "GEOCODE_FAILED"
	StatusNoAerialCandidate Status = "NO_AERIAL_CANDIDATE"
	StatusNoRoadCandidate   Status = "NO_ROAD_CANDIDATE"
	StatusCapacityExhausted Status = "CAPACITY_EXHAUSTED"
	StatusAllocated         Status = "ALLOCATED"

	// StatusFound is returned by Search, which never assigns.
	StatusFound Status = "FOUND"
)

var statusMessages = map[Status]string{
	StatusEmptyAddress:      "empty address",
	StatusGeocodeFailed:     "geocode failed",
	StatusNoAerialCandidate: "no technician in aerial radius",
	StatusNoRoadCandidate:   "no technician within road distance",
	StatusCapacityExhausted: "no technician available (capacity exhausted)",
	StatusAllocated:         "allocated",
	StatusFound:             "technicians found",
}

func (s Status) Message() string { return statusMessages[s] }

// IsError reports statuses caused by the request itself rather than by
// technician availability.
func (s Status) IsError() bool {
	return s == StatusEmptyAddress || s == StatusGeocodeFailed
}

// Resolver is satisfied by *geocode.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, address string) (geo.Point, bool)
}

type Params struct {
	MaxDistanceKm float64 `json:"max_distance_km"`
	DailyCapacity int     `json:"daily_capacity"`
	CostPerKm     float64 `json:"cost_per_km"`
	SlackFactor   float64 `json:"slack_factor"`
	// Limit caps the candidates returned by Search, 0 returns all.
	Limit int `json:"limit"`
}

func (p Params) slack() float64 {
	if p.SlackFactor <= 0 {
		return DefaultSlackFactor
	}
	return p.SlackFactor
}

type Result struct {
	Index          int            `json:"index"`
	Address        string         `json:"address"`
	Fields         map[string]any `json:"fields,omitempty"`
	Status         Status         `json:"status"`
	Message        string         `json:"message"`
	Origin         *geo.Point     `json:"origin"`
	TechnicianID   string         `json:"technician_id"`
	Technician     string         `json:"technician"`
	Coordinator    string         `json:"coordinator"`
	State          string         `json:"state"`
	AerialKm       *float64       `json:"aerial_km"`
	DistanceKm     *float64       `json:"distance_km"`
	Duration       string         `json:"duration"`
	Cost           *float64       `json:"cost"`
	AllocatedCount int            `json:"allocated_count"`
}

type Summary struct {
	Total       int            `json:"total"`
	Allocated   int            `json:"allocated"`
	Unallocated int            `json:"unallocated"`
	Errors      int            `json:"errors"`
	Prefiltered int            `json:"prefiltered"`
	ByStatus    map[Status]int `json:"by_status"`
}

type Workload struct {
	TechnicianID string `json:"technician_id"`
	Name         string `json:"name"`
	Coordinator  string `json:"coordinator"`
	State        string `json:"state"`
	Allocated    int    `json:"allocated"`
}

type Batch struct {
	Results  []Result   `json:"results"`
	Summary  Summary    `json:"summary"`
	Workload []Workload `json:"workload"`
}

type SearchResult struct {
	Status      Status      `json:"status"`
	Message     string      `json:"message"`
	Origin      *geo.Point  `json:"origin"`
	Prefiltered int         `json:"prefiltered"`
	Candidates  []Candidate `json:"candidates"`
}

type Engine struct {
	Resolver Resolver
	Oracle   routing.Oracle
	Logger   zerolog.Logger
	// Workers bounds how many requests of a batch are evaluated at once.
	// Assignment is always sequential in input order.
	Workers int
}

// evaluation is everything about a request that does not depend on the
// ledger.
type evaluation struct {
	status     Status
	origin     *geo.Point
	aerial     int
	candidates []Candidate
}

// CostFor is km times rate, rounded to cents.
func CostFor(km, perKm float64) decimal.Decimal {
	return decimal.NewFromFloat(km).Mul(decimal.NewFromFloat(perKm)).Round(2)
}

// lookups is what evaluate needs from the outside world.
type lookups interface {
	Resolver
	routing.Oracle
}

type directLookups struct {
	Resolver
	routing.Oracle
}

func (e *Engine) direct() lookups {
	return directLookups{Resolver: e.Resolver, Oracle: e.Oracle}
}

func (e *Engine) evaluate(ctx context.Context, look lookups, address string, technicians []models.Technician, params Params) evaluation {
	if strings.TrimSpace(address) == "" {
		return evaluation{status: StatusEmptyAddress}
	}
	origin, ok := look.Resolve(ctx, address)
	if !ok {
		return evaluation{status: StatusGeocodeFailed}
	}
	ev := evaluation{origin: &origin}

	pre := Prefilter(origin, technicians, params.MaxDistanceKm, params.slack())
	ev.aerial = len(pre)
	metrics.AerialCandidates.Observe(float64(len(pre)))
	if len(pre) == 0 {
		ev.status = StatusNoAerialCandidate
		return ev
	}

	dests := make([]geo.Point, len(pre))
	for i, c := range pre {
		dests[i], _ = geo.PointFrom(c.Technician.Lat, c.Technician.Lon)
	}
	routes := look.RouteBatch(ctx, origin, dests)

	confirmed := make([]Candidate, 0, len(pre))
	for i, c := range pre {
		if i >= len(routes) || !routes[i].OK() || routes[i].DistanceKm > params.MaxDistanceKm {
			continue
		}
		c.RoadKm = routes[i].DistanceKm
		c.Duration = routes[i].Duration
		c.DurationSeconds = routes[i].Seconds
		c.Cost = CostFor(c.RoadKm, params.CostPerKm).InexactFloat64()
		confirmed = append(confirmed, c)
	}
	sort.SliceStable(confirmed, func(i, j int) bool {
		return confirmed[i].RoadKm < confirmed[j].RoadKm
	})
	if len(confirmed) == 0 {
		ev.status = StatusNoRoadCandidate
		return ev
	}
	ev.candidates = confirmed
	return ev
}

// Search is the interactive mode: no ledger, every qualifying candidate
// sorted by road distance.
func (e *Engine) Search(ctx context.Context, address string, technicians []models.Technician, params Params) SearchResult {
	ev := e.evaluate(ctx, e.direct(), address, technicians, params)
	out := SearchResult{
		Status:      ev.status,
		Origin:      ev.origin,
		Prefiltered: ev.aerial,
		Candidates:  ev.candidates,
	}
	if out.Candidates == nil {
		out.Candidates = []Candidate{}
	}
	if out.Status == "" {
		out.Status = StatusFound
	}
	if params.Limit > 0 && len(out.Candidates) > params.Limit {
		out.Candidates = out.Candidates[:params.Limit]
	}
	out.Message = out.Status.Message()
	return out
}

// AllocateOne assigns one request against ledger. A nil ledger is
// unlimited.
func (e *Engine) AllocateOne(ctx context.Context, req models.ServiceRequest, technicians []models.Technician, params Params, ledger *Ledger) Result {
	ev := e.evaluate(ctx, e.direct(), req.Address, technicians, params)
	res := e.assign(ev, req, ledger)
	metrics.AllocationsTotal.WithLabelValues(string(res.Status)).Inc()
	return res
}

func (e *Engine) assign(ev evaluation, req models.ServiceRequest, ledger *Ledger) Result {
	res := Result{
		Address:      req.Address,
		Fields:       req.Fields,
		Origin:       ev.origin,
		TechnicianID: routing.NotAvailable,
		Technician:   routing.NotAvailable,
		Coordinator:  routing.NotAvailable,
		State:        routing.NotAvailable,
		Duration:     routing.NotAvailable,
	}
	if ev.status != "" {
		res.Status = ev.status
		res.Message = ev.status.Message()
		return res
	}

	for _, c := range ev.candidates {
		if !ledger.Available(c.Technician.ID) {
			continue
		}
		aerial, road, cost := c.AerialKm, c.RoadKm, c.Cost
		res.Status = StatusAllocated
		res.TechnicianID = c.Technician.ID
		res.Technician = c.Technician.Name
		res.Coordinator = c.Technician.Coordinator
		res.State = c.Technician.State
		res.AerialKm = &aerial
		res.DistanceKm = &road
		res.Duration = c.Duration
		res.Cost = &cost
		res.AllocatedCount = ledger.Commit(c.Technician.ID)
		res.Message = res.Status.Message()
		return res
	}
	res.Status = StatusCapacityExhausted
	res.Message = res.Status.Message()
	return res
}

// AllocateBatch allocates requests against one shared ledger. Requests are
// evaluated on up to Workers goroutines and committed in input order, so
// the outcome does not depend on Workers. Lookups that fail are not
// repeated within the batch.
func (e *Engine) AllocateBatch(ctx context.Context, requests []models.ServiceRequest, technicians []models.Technician, params Params) Batch {
	start := time.Now()
	ids := make([]string, len(technicians))
	for i, t := range technicians {
		ids[i] = t.ID
	}
	ledger := NewLedger(params.DailyCapacity, ids)

	workers := e.Workers
	if workers <= 0 {
		workers = 1
	}
	look := newRunLookups(e.Resolver, e.Oracle)
	evals := make([]evaluation, len(requests))
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range requests {
		g.Go(func() error {
			evals[i] = e.evaluate(ctx, look, requests[i].Address, technicians, params)
			return nil
		})
	}
	_ = g.Wait()

	batch := Batch{
		Results: make([]Result, len(requests)),
		Summary: Summary{Total: len(requests), ByStatus: map[Status]int{}},
	}
	for i, req := range requests {
		res := e.assign(evals[i], req, ledger)
		res.Index = i
		batch.Results[i] = res
		batch.Summary.add(res.Status, evals[i].aerial > 0)
		metrics.AllocationsTotal.WithLabelValues(string(res.Status)).Inc()
	}

	batch.Workload = workload(technicians, ledger)
	metrics.BatchSize.Observe(float64(len(requests)))
	metrics.BatchDurationSeconds.Observe(time.Since(start).Seconds())
	metrics.TechniciansAtCapacity.Set(float64(ledger.AtCapacity()))

	e.Logger.Info().
		Int("total", batch.Summary.Total).
		Int("allocated", batch.Summary.Allocated).
		Int("unallocated", batch.Summary.Unallocated).
		Int("errors", batch.Summary.Errors).
		Dur("elapsed", time.Since(start)).
		Msg("batch allocated")
	return batch
}

func (s *Summary) add(status Status, prefiltered bool) {
	s.ByStatus[status]++
	switch {
	case status == StatusAllocated:
		s.Allocated++
	case status.IsError():
		s.Errors++
	default:
		s.Unallocated++
	}
	if prefiltered {
		s.Prefiltered++
	}
}

func workload(technicians []models.Technician, ledger *Ledger) []Workload {
	counts := ledger.Snapshot()
	out := make([]Workload, 0, len(technicians))
	seen := map[string]bool{}
	for _, t := range technicians {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, Workload{
			TechnicianID: t.ID,
			Name:         t.Name,
			Coordinator:  t.Coordinator,
			State:        t.State,
			Allocated:    counts[t.ID],
		})
	}
	return out
}
