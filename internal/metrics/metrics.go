// Package metrics holds the Prometheus collectors for the dispatch service.
// Everything is registered on a private Registry served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for the service.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// AllocationsTotal counts allocation outcomes by terminal status.
var AllocationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dispatch",
	Name:      "allocations_total",
	Help:      "Service requests processed by terminal status",
}, []string{"status"})

// AerialCandidates tracks how many technicians survive the aerial prefilter
// per request, which bounds the routing calls issued for it.
var AerialCandidates = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dispatch",
	Name:      "aerial_candidates",
	Help:      "Technicians retained by the aerial prefilter per request",
	Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
})

// RouteLookupsTotal counts destination lookups by outcome: ok, failed or cached.
var RouteLookupsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "routing",
	Name:      "lookups_total",
	Help:      "Route destination lookups by outcome",
}, []string{"outcome"})

// RouteCallsTotal counts vendor calls (one per chunk) by provider.
var RouteCallsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "routing",
	Name:      "vendor_calls_total",
	Help:      "Calls issued to the routing vendor",
}, []string{"provider"})

// GeocodeTotal counts address resolutions by outcome: ok, failed or cached.
var GeocodeTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "geocode",
	Name:      "resolutions_total",
	Help:      "Address resolutions by outcome",
}, []string{"outcome"})

// BatchDurationSeconds tracks wall time of a whole batch run.
var BatchDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dispatch",
	Name:      "batch_duration_seconds",
	Help:      "Time taken to allocate a batch",
	Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
})

// BatchSize tracks number of service requests per batch run.
var BatchSize = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dispatch",
	Name:      "batch_size",
	Help:      "Service requests per batch run",
	Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
})

// TechniciansAtCapacity is the number of technicians that hit the daily
// capacity in the last batch run.
var TechniciansAtCapacity = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "dispatch",
	Name:      "technicians_at_capacity",
	Help:      "Technicians that reached the daily capacity in the last batch",
})
