package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors exposed by the server.
type Metrics struct {
	Registry            *prometheus.Registry
	RunsTotal           *prometheus.CounterVec
	RunDuration         prometheus.Histogram
	ProductsTotal       prometheus.Counter
	DroppedTotal        prometheus.Counter
	FieldMissesTotal    *prometheus.CounterVec
	StageFailuresTotal  *prometheus.CounterVec
	ContainersPerRun    prometheus.Histogram
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Total scrape runs by outcome.",
		},
		[]string{"outcome"},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_run_duration_seconds",
			Help:    "End-to-end scrape run latency.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_products_total",
			Help: "Total product records emitted.",
		},
	)
	dropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_records_dropped_total",
			Help: "Total records dropped for a missing title.",
		},
	)
	fieldMisses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_field_misses_total",
			Help: "Total exhausted locator chains by field.",
		},
		[]string{"field"},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_stage_failures_total",
			Help: "Total run failures by stage.",
		},
		[]string{"stage"},
	)
	containers := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_containers_per_run",
			Help:    "Result containers found per run.",
			Buckets: prometheus.LinearBuckets(0, 10, 10),
		},
	)

	registry.MustRegister(runs, runDuration, products, dropped, fieldMisses, stageFailures, containers)

	return &Metrics{
		Registry:           registry,
		RunsTotal:          runs,
		RunDuration:        runDuration,
		ProductsTotal:      products,
		DroppedTotal:       dropped,
		FieldMissesTotal:   fieldMisses,
		StageFailuresTotal: stageFailures,
		ContainersPerRun:   containers,
	}
}
