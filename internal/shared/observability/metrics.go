package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pyimports_extraction_seconds",
		Help:    "Time spent extracting imports from a source unit.",
		Buckets: prometheus.DefBuckets,
	}, []string{"filetype"})

	UnitsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyimports_units_processed_total",
		Help: "Total number of source units (scripts and notebooks) extracted.",
	}, []string{"filetype"})

	ParseFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyimports_parse_failures_total",
		Help: "Total number of scripts or notebook cells skipped because they failed to transform or parse.",
	}, []string{"filetype"})

	ImportEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyimports_import_events_total",
		Help: "Total number of import events extracted, by event kind.",
	}, []string{"kind"})

	AttributionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyimports_attributions_total",
		Help: "Total number of package attribution records produced, by resolution mode.",
	}, []string{"mode"})

	IndexLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyimports_index_lookups_total",
		Help: "Total number of package index lookups made while building the import map, by outcome.",
	}, []string{"outcome"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyimports_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
