package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store size metrics, refreshed by Collector
	FactsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "s4_facts_total",
			Help: "Total number of quintuples currently stored",
		},
	)

	KeysTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "s4_keys_total",
			Help: "Total number of distinct interned key names",
		},
	)

	SourcesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "s4_sources_total",
			Help: "Total number of distinct interned source names",
		},
	)

	// Transaction metrics
	TransactionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "s4_transactions_active",
			Help: "Number of transactions currently begun but not yet committed or aborted",
		},
	)

	TransactionsCommittedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "s4_transactions_committed_total",
			Help: "Total number of transactions committed",
		},
	)

	TransactionsAbortedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "s4_transactions_aborted_total",
			Help: "Total number of transactions aborted, including deadlock victims",
		},
	)

	DeadlocksTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "s4_deadlocks_total",
			Help: "Total number of waits-for cycles broken by aborting a transaction",
		},
	)

	// Query/commit latency
	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "s4_query_duration_seconds",
			Help:    "Time taken to evaluate a condition and fetch its rows",
			Buckets: prometheus.DefBuckets,
		},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "s4_commit_duration_seconds",
			Help:    "Time taken to commit a transaction, log append included",
			Buckets: prometheus.DefBuckets,
		},
	)

	RowsFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "s4_rows_fetched_total",
			Help: "Total number of rows returned across all queries",
		},
	)

	// Log/snapshot metrics
	LogRecordsWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "s4_log_records_written_total",
			Help: "Total number of redo log records appended",
		},
	)

	SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "s4_snapshot_duration_seconds",
			Help:    "Time taken to write an on-disk snapshot and truncate the redo log",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(FactsTotal)
	prometheus.MustRegister(KeysTotal)
	prometheus.MustRegister(SourcesTotal)
	prometheus.MustRegister(TransactionsActive)
	prometheus.MustRegister(TransactionsCommittedTotal)
	prometheus.MustRegister(TransactionsAbortedTotal)
	prometheus.MustRegister(DeadlocksTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(RowsFetchedTotal)
	prometheus.MustRegister(LogRecordsWrittenTotal)
	prometheus.MustRegister(SnapshotDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
