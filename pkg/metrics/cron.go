package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cron run outcomes.
const (
	CronOutcomeSuccess = "success"
	CronOutcomeFailure = "failure"
	// CronOutcomeSkipped means another worker held the job's lock.
	CronOutcomeSkipped = "skipped"
)

// CronJobMetrics records runs of the maintenance jobs. A nil value is a no-op.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelstation_cron_job_runs_total",
			Help: "Cron job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fuelstation_cron_job_duration_seconds",
			Help:    "Duration of executed cron jobs in seconds.",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fuelstation_cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run, for staleness alerts.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	return m
}

// ObserveRun records one scheduled run. Duration is ignored for skipped runs.
func (c *CronJobMetrics) ObserveRun(job, outcome string, duration time.Duration, at time.Time) {
	if c == nil {
		return
	}
	job = normalizeLabel(job)
	c.runs.WithLabelValues(job, normalizeLabel(outcome)).Inc()
	if outcome == CronOutcomeSkipped {
		return
	}
	c.duration.WithLabelValues(job).Observe(duration.Seconds())
	if outcome == CronOutcomeSuccess {
		c.lastSuccess.WithLabelValues(job).Set(float64(at.Unix()))
	}
}
