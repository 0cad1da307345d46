package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job run results used as the result label.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// CronMetrics tracks maintenance runs and the rows each sweep touched.
type CronMetrics struct {
	runs        *prometheus.HistogramVec
	rows        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// NewCronMetrics registers the maintenance metrics on reg. A nil reg yields
// a recorder that drops everything.
func NewCronMetrics(reg prometheus.Registerer) *CronMetrics {
	if reg == nil {
		return &CronMetrics{}
	}
	m := &CronMetrics{
		runs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "boost_cron_run_seconds",
			Help:    "Maintenance job run time by job and result.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job", "result"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boost_cron_rows_total",
			Help: "Rows changed or checked by maintenance jobs, by kind.",
		}, []string{"job", "kind"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "boost_cron_last_success_timestamp_seconds",
			Help: "Unix time of the last clean run of each job.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.rows, m.lastSuccess)
	return m
}

// ObserveRun records one run. A nil err marks the job healthy at finished.
func (m *CronMetrics) ObserveRun(job string, took time.Duration, finished time.Time, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.runs.WithLabelValues(job, result).Observe(took.Seconds())
	if err == nil {
		m.lastSuccess.WithLabelValues(job).Set(float64(finished.Unix()))
	}
}

// AddRows adds n rows of kind to the job's tally. Zero and negative counts
// are ignored.
func (m *CronMetrics) AddRows(job, kind string, n int64) {
	if m == nil || m.rows == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(normalizeLabel(job), normalizeLabel(kind)).Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
