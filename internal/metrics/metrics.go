// Package metrics registers the Prometheus collectors for the speed monitor.
// Collectors live on the default registry and are served by promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

var (
	// JobSpeedLatest is the newest speed sample per job, in the configured unit.
	JobSpeedLatest = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "speedwatch_job_speed_latest",
			Help: "Most recent training speed sample per job, in the configured logging unit.",
		},
		[]string{"job"},
	)

	JobSpeedMean = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "speedwatch_job_speed_mean",
			Help: "Mean training speed over the job's rolling window.",
		},
		[]string{"job"},
	)

	// JobHealthTier is 0 (excellent) through 3 (extreme slowdown).
	JobHealthTier = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "speedwatch_job_health_tier",
			Help: "Health tier of the job's latest speed: 0 excellent, 1 normal, 2 worrying, 3 extreme slowdown.",
		},
		[]string{"job"},
	)

	NodeSpeedMean = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "speedwatch_node_speed_mean",
			Help: "Mean speed of all samples attributed to a node this cycle.",
		},
		[]string{"node"},
	)

	NodeHealthTier = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "speedwatch_node_health_tier",
			Help: "Health tier of the node mean: 0 excellent, 1 normal, 2 worrying, 3 extreme slowdown.",
		},
		[]string{"node"},
	)

	// CycleDuration buckets span 100ms to ~7min; a cycle is bounded by the
	// per-call timeout times the number of job batches.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "speedwatch_cycle_duration_seconds",
			Help:    "Wall-clock duration of one poll cycle.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 13),
		},
	)

	// RemoteErrorsTotal counts failed remote calls by operation:
	// list, describe, logs, exchange_write, exchange_read.
	RemoteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speedwatch_remote_errors_total",
			Help: "Total failed remote operations, by operation.",
		},
		[]string{"op"},
	)

	MergeSourcesSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speedwatch_merge_sources_skipped_total",
			Help: "Total peer snapshots skipped during node aggregation as stale or malformed.",
		},
	)
)

// RecordCycle replaces the per-job and per-node gauges with the cycle's
// values. Jobs and nodes absent from the cycle, or without metrics, are
// removed so dashboards do not show frozen values.
func RecordCycle(r *models.CycleReport) {
	CycleDuration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())

	JobSpeedLatest.Reset()
	JobSpeedMean.Reset()
	JobHealthTier.Reset()
	for _, j := range r.Jobs {
		if j.Latest != nil {
			JobSpeedLatest.WithLabelValues(j.ID).Set(*j.Latest)
		}
		if j.Mean != nil {
			JobSpeedMean.WithLabelValues(j.ID).Set(*j.Mean)
		}
		if j.Tier != nil {
			JobHealthTier.WithLabelValues(j.ID).Set(float64(*j.Tier))
		}
	}

	NodeSpeedMean.Reset()
	NodeHealthTier.Reset()
	for _, n := range r.Nodes {
		NodeSpeedMean.WithLabelValues(n.Node).Set(n.Mean)
		NodeHealthTier.WithLabelValues(n.Node).Set(float64(n.Tier))
	}

	MergeSourcesSkippedTotal.Add(float64(len(r.SkippedSources)))
}
