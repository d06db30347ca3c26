// Package metrics exports Prometheus collectors for the subsystems that
// the rest of the pack instruments this way (KartikBazzad-bunbase/platform,
// bun-kms, united-manufacturing-hub/umh-core all depend on
// github.com/prometheus/client_golang directly). The teacher's own
// docdb/internal/metrics/prometheus.go hand-rolls an exporter; this module
// uses the real client library instead, per the "use an ecosystem library
// when the pack shows one" rule.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector the core engine exposes. A nil
// *Registry is valid and simply does not get wired into a
// prometheus.Registerer — call NewRegistry(nil) for a private, unexported
// registry suitable for tests.
type Registry struct {
	ResultPoolInUse      prometheus.Gauge
	ResultPoolOutstanding prometheus.Counter
	ResultPoolExhausted  prometheus.Counter
	CancellationsTotal   *prometheus.CounterVec
	FullTextCommits      *prometheus.CounterVec
	FullTextCommitSecs   prometheus.Histogram
	QueryDuration        *prometheus.HistogramVec
}

// NewRegistry builds the collector set and registers it against reg if
// non-nil.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		ResultPoolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "docucore",
			Subsystem: "respool",
			Name:      "in_use",
			Help:      "Number of live result handles currently acquired from the pool.",
		}),
		ResultPoolOutstanding: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docucore",
			Subsystem: "respool",
			Name:      "outstanding_total",
			Help:      "Running count of serialized results produced, never reset.",
		}),
		ResultPoolExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docucore",
			Subsystem: "respool",
			Name:      "exhausted_total",
			Help:      "Times an acquire failed with too-many-parallel-queries.",
		}),
		CancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docucore",
			Subsystem: "cancel",
			Name:      "total",
			Help:      "Cancellations by cause (explicit, timeout).",
		}, []string{"how"}),
		FullTextCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docucore",
			Subsystem: "fulltext",
			Name:      "commits_total",
			Help:      "Full-text commit steps by status.",
		}, []string{"status"}),
		FullTextCommitSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docucore",
			Subsystem: "fulltext",
			Name:      "commit_seconds",
			Help:      "Duration of a full-text commit step build.",
			Buckets:   prometheus.DefBuckets,
		}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docucore",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Query serialization duration by result format.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"format"}),
	}

	if reg != nil {
		reg.MustRegister(
			r.ResultPoolInUse,
			r.ResultPoolOutstanding,
			r.ResultPoolExhausted,
			r.CancellationsTotal,
			r.FullTextCommits,
			r.FullTextCommitSecs,
			r.QueryDuration,
		)
	}
	return r
}
