// Package metrics instruments the import and rebuild pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	RowsIngested  *prometheus.CounterVec
	RowsSkipped   *prometheus.CounterVec
	RebuildRuns   *prometheus.CounterVec
	RebuildDur    prometheus.Histogram
	SummaryRows   prometheus.Gauge
	SireneLookups *prometheus.CounterVec
}

// New registers the pipeline metrics on reg. Pass prometheus.NewRegistry()
// in tests to keep them isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RowsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cse",
			Name:      "rows_ingested_total",
			Help:      "Rows inserted per import, by source file kind",
		}, []string{"source"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cse",
			Name:      "rows_skipped_total",
			Help:      "Rows skipped during import, by source file kind",
		}, []string{"source"}),
		RebuildRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cse",
			Name:      "summary_rebuild_runs_total",
			Help:      "Summary rebuilds by final status",
		}, []string{"status"}),
		RebuildDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cse",
			Name:      "summary_rebuild_duration_seconds",
			Help:      "Wall time of a full summary rebuild",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		SummaryRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cse",
			Name:      "summary_rows",
			Help:      "Establishment rows written by the last rebuild",
		}),
		SireneLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cse",
			Name:      "sirene_lookups_total",
			Help:      "Directory lookups by outcome",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.RowsIngested,
		m.RowsSkipped,
		m.RebuildRuns,
		m.RebuildDur,
		m.SummaryRows,
		m.SireneLookups,
	)
	return m
}

// NewDefault registers on the global prometheus registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
