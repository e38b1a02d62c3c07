package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localizador/backend/internal/allocation"
	"github.com/localizador/backend/internal/geo"
	"github.com/localizador/backend/internal/geocode"
	"github.com/localizador/backend/internal/models"
	"github.com/localizador/backend/internal/routing"
)

type fakeStore struct {
	techs   []models.Technician
	listErr error

	filters []models.TechnicianFilter
	coords  map[string]geo.Point

	runStatus string
	runParams []byte
	summary   []byte
	results   []byte
}

func (f *fakeStore) ListTechnicians(_ context.Context, filter models.TechnicianFilter) ([]models.Technician, error) {
	f.filters = append(f.filters, filter)
	return f.techs, f.listErr
}

func (f *fakeStore) UpdateTechnicianCoords(_ context.Context, id string, lat, lon float64) error {
	if f.coords == nil {
		f.coords = map[string]geo.Point{}
	}
	f.coords[id] = geo.Point{Lat: lat, Lon: lon}
	return nil
}

func (f *fakeStore) CreateRun(_ context.Context, status string, params []byte) (string, error) {
	f.runStatus = status
	f.runParams = params
	return "run-1", nil
}

func (f *fakeStore) FinishRun(_ context.Context, _ string, status string, summary, results, _ []byte) error {
	f.runStatus = status
	f.summary = summary
	f.results = results
	return nil
}

type mapResolver map[string]geo.Point

func (m mapResolver) Resolve(_ context.Context, address string) (geo.Point, bool) {
	p, ok := m[address]
	return p, ok
}

func (m mapResolver) ResolveFresh(ctx context.Context, address string) (geo.Point, bool) {
	return m.Resolve(ctx, address)
}

func ptr[T any](v T) *T { return &v }

func tech(id string, lat, lon float64) models.Technician {
	return models.Technician{ID: id, Name: id, City: "São Paulo", State: "SP", Lat: &lat, Lon: &lon}
}

func newService(store *fakeStore, resolver mapResolver) *DispatchService {
	engine := &allocation.Engine{
		Resolver: resolver,
		Oracle:   routing.NewBatcher(routing.StraightLineProvider{RoadFactor: 1}, 1, zerolog.Nop()),
		Logger:   zerolog.Nop(),
		Workers:  2,
	}
	return &DispatchService{
		Store:        store,
		Engine:       engine,
		Resolver:     resolver,
		Defaults:     allocation.Params{MaxDistanceKm: 30, CostPerKm: 2, SlackFactor: 1.5},
		MaxBatchSize: 10,
		Country:      "Brasil",
		Logger:       zerolog.Nop(),
	}
}

func TestProcessBatchRecordsRun(t *testing.T) {
	store := &fakeStore{techs: []models.Technician{tech("A", 0, 0), tech("B", 0, 0.05)}}
	svc := newService(store, mapResolver{"Rua 1": {}})

	out, err := svc.ProcessBatch(context.Background(), BatchRequest{
		Requests:  []models.ServiceRequest{{Address: "Rua 1"}, {Address: "Rua 1"}, {Address: "?"}},
		Filter:    models.TechnicianFilter{State: "SP"},
		Overrides: Overrides{DailyCapacity: ptr(1)},
	})

	require.NoError(t, err)
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, RunSuccess, store.runStatus)
	assert.Equal(t, "SP", store.filters[0].State)
	require.Len(t, out.Results, 3)
	assert.Equal(t, "A", out.Results[0].TechnicianID)
	assert.Equal(t, "B", out.Results[1].TechnicianID)
	assert.Equal(t, allocation.StatusGeocodeFailed, out.Results[2].Status)
	assert.Equal(t, 2, out.Summary.Counts.Allocated)
	assert.Equal(t, 1, out.Summary.Counts.Errors)

	var params map[string]any
	require.NoError(t, json.Unmarshal(store.runParams, &params))
	assert.EqualValues(t, 1, params["params"].(map[string]any)["daily_capacity"])

	var stored []allocation.Result
	require.NoError(t, json.Unmarshal(store.results, &stored))
	assert.Len(t, stored, 3)
}

func TestProcessBatchDirectoryFailureFailsRun(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	svc := newService(store, mapResolver{})

	_, err := svc.ProcessBatch(context.Background(), BatchRequest{Requests: []models.ServiceRequest{{Address: "x"}}})

	assert.Error(t, err)
	assert.Equal(t, RunFailed, store.runStatus)
	assert.Contains(t, string(store.summary), "db down")
}

func TestProcessBatchSizeChecks(t *testing.T) {
	svc := newService(&fakeStore{}, mapResolver{})

	_, err := svc.ProcessBatch(context.Background(), BatchRequest{})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = svc.ProcessBatch(context.Background(), BatchRequest{Requests: make([]models.ServiceRequest, 11)})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestParamsOverrides(t *testing.T) {
	svc := newService(&fakeStore{}, mapResolver{})

	p := svc.Params(Overrides{MaxDistanceKm: ptr(100.0), Limit: ptr(10)})

	assert.Equal(t, 100.0, p.MaxDistanceKm)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, 2.0, p.CostPerKm)
	assert.Equal(t, 1.5, p.SlackFactor)
}

func TestSearch(t *testing.T) {
	store := &fakeStore{techs: []models.Technician{tech("far", 0, 0.2), tech("near", 0, 0.05)}}
	svc := newService(store, mapResolver{"Rua 1": {}})

	res, err := svc.Search(context.Background(), SearchRequest{Address: "Rua 1"})

	require.NoError(t, err)
	assert.Equal(t, allocation.StatusFound, res.Status)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "near", res.Candidates[0].Technician.ID)
}

func TestRegeocodeTechnicians(t *testing.T) {
	store := &fakeStore{techs: []models.Technician{
		tech("has-coords", 1, 1),
		{ID: "found", Address: "Rua 1", City: "São Paulo", State: "SP"},
		{ID: "lost", Address: "Rua 2", City: "Nowhere"},
	}}
	svc := newService(store, mapResolver{"Rua 1, São Paulo, SP, Brasil": {Lat: -23.5, Lon: -46.6}})

	sum, err := svc.RegeocodeTechnicians(context.Background(), models.TechnicianFilter{}, false)

	require.NoError(t, err)
	assert.Equal(t, RegeocodeSummary{Total: 3, Skipped: 1, Updated: 1, Failed: 1, Missing: []string{"lost"}}, sum)
	assert.Equal(t, geo.Point{Lat: -23.5, Lon: -46.6}, store.coords["found"])
}

type fixedGeocoder struct {
	point geo.Point
	calls int
}

func (g *fixedGeocoder) Geocode(context.Context, string) (geocode.Result, error) {
	g.calls++
	return geocode.Result{Point: g.point}, nil
}

func TestRegeocodeTechniciansForceBypassesCache(t *testing.T) {
	query := "Rua 1, São Paulo, SP, Brasil"
	stale := geo.Point{Lat: -10, Lon: -40}
	fresh := geo.Point{Lat: -23.5, Lon: -46.6}
	cache := geocode.NewMemoryCache()
	cache.Set(context.Background(), geocode.NormalizeAddress(query), stale)
	g := &fixedGeocoder{point: fresh}

	lat, lon := 1.0, 1.0
	store := &fakeStore{techs: []models.Technician{
		{ID: "moved", Address: "Rua 1", City: "São Paulo", State: "SP", Lat: &lat, Lon: &lon},
	}}
	svc := newService(store, mapResolver{})
	svc.Resolver = geocode.NewResolver(g, cache, zerolog.Nop())

	sum, err := svc.RegeocodeTechnicians(context.Background(), models.TechnicianFilter{}, true)

	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, g.calls)
	assert.Equal(t, fresh, store.coords["moved"])

	cached, _ := cache.Get(context.Background(), geocode.NormalizeAddress(query))
	assert.Equal(t, fresh, cached)
}
