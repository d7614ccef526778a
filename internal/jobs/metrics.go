package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Row outcomes reported by reconciliation runs.
const (
	OutcomeUpserted     = "upserted"
	OutcomeInapplicable = "inapplicable"
	OutcomeAmbiguous    = "ambiguous"
	OutcomeUnmatched    = "unmatched"
	OutcomeFailed       = "failed"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs            *prometheus.CounterVec
	failures        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	rows            *prometheus.CounterVec
	productsCreated prometheus.Counter
	lockContention  prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddRows counts reconciled rows for one outcome.
func (m *Metrics) AddRows(outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.rows.WithLabelValues(outcome).Add(float64(count))
}

// AddProductsCreated counts products created from unmatched labels.
func (m *Metrics) AddProductsCreated(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.productsCreated.Add(float64(count))
}

// IncLockContention counts runs deferred because another run held the shop lock.
func (m *Metrics) IncLockContention() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"job"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_reconcile_rows_total",
		Help: "Spreadsheet rows seen by stock reconciliation grouped by outcome.",
	}, []string{"outcome"})
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_reconcile_products_created_total",
		Help: "Products created from spreadsheet labels without a catalog match.",
	})
	contention := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_reconcile_lock_contention_total",
		Help: "Reconciliation runs deferred because the shop lock was held.",
	})
	registerer.MustRegister(runs, failures, duration, rows, created, contention)
	return &Metrics{runs: runs, failures: failures, duration: duration, rows: rows, productsCreated: created, lockContention: contention}
}
