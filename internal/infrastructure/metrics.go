package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments exposed on /metrics. They count
// pipeline activity only; per-request HTTP metrics are out of scope.
type Metrics struct {
	RunsTotal      prometheus.Counter
	RowsAggregated prometheus.Counter
	SourceFailures *prometheus.CounterVec
	ExportsTotal   *prometheus.CounterVec
}

// NewMetrics registers the pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "grainbids_runs_total",
			Help: "Number of bid refresh runs started.",
		}),
		RowsAggregated: factory.NewCounter(prometheus.CounterOpts{
			Name: "grainbids_rows_aggregated_total",
			Help: "Number of bid rows that made it into an aggregated table.",
		}),
		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "grainbids_source_failures_total",
			Help: "Per-source fetch or normalization failures.",
		}, []string{"source"}),
		ExportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "grainbids_exports_total",
			Help: "Number of export files written, by format.",
		}, []string{"format"}),
	}
}
