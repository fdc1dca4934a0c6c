package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	WorkspacesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "epicenter_workspaces_total",
			Help: "Total number of workspaces known to the registry",
		},
	)

	// Orchestrator / client lifecycle metrics
	ClientsOpenTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "epicenter_clients_open_total",
			Help: "Number of workspace clients currently open in this process",
		},
	)

	ClientOpenDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "epicenter_client_open_duration_seconds",
			Help:    "Time taken to open a workspace client at a given epoch",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicenter_reconciliations_total",
			Help: "Total number of epoch reconciliations performed, by workspace",
		},
		[]string{"workspace_id"},
	)

	// Epoch metrics
	EpochBumpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicenter_epoch_bumps_total",
			Help: "Total number of epoch bumps proposed, by workspace",
		},
		[]string{"workspace_id"},
	)

	EpochRollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicenter_epoch_rollbacks_total",
			Help: "Total number of goToEpoch/forceSetEpoch calls moving to a lower epoch, by workspace",
		},
		[]string{"workspace_id"},
	)

	// Table / KV write metrics
	TableWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicenter_table_writes_total",
			Help: "Total number of table row writes, by table and outcome",
		},
		[]string{"table", "outcome"},
	)

	KVWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicenter_kv_writes_total",
			Help: "Total number of KV writes, by outcome",
		},
		[]string{"outcome"},
	)

	MigrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicenter_migrations_total",
			Help: "Total number of migration-on-read passes, by table/key and outcome",
		},
		[]string{"name", "outcome"},
	)

	// LWW store metrics
	LWWCompactionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "epicenter_lww_compactions_total",
			Help: "Total number of superseded LWW entries removed during compaction",
		},
	)

	LWWClockSkewWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "epicenter_lww_clock_skew_warnings_total",
			Help: "Total number of times the LWW clock observed the wall clock behind the last timestamp",
		},
	)

	// Observer metrics
	ObserverCallbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epicenter_observer_callback_duration_seconds",
			Help:    "Time taken by a map/array observer callback to return",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Provider metrics
	ProviderSaveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epicenter_provider_save_duration_seconds",
			Help:    "Time taken by a persistence provider to save a document snapshot",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ProviderSyncFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicenter_provider_sync_failures_total",
			Help: "Total number of provider WhenSynced rejections, by provider",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(WorkspacesTotal)
	prometheus.MustRegister(ClientsOpenTotal)
	prometheus.MustRegister(ClientOpenDuration)
	prometheus.MustRegister(ReconciliationsTotal)
	prometheus.MustRegister(EpochBumpsTotal)
	prometheus.MustRegister(EpochRollbacksTotal)
	prometheus.MustRegister(TableWritesTotal)
	prometheus.MustRegister(KVWritesTotal)
	prometheus.MustRegister(MigrationsTotal)
	prometheus.MustRegister(LWWCompactionsTotal)
	prometheus.MustRegister(LWWClockSkewWarningsTotal)
	prometheus.MustRegister(ObserverCallbackDuration)
	prometheus.MustRegister(ProviderSaveDuration)
	prometheus.MustRegister(ProviderSyncFailuresTotal)
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer, starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with
// labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
