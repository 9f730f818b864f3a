package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records approval decisions, journal postings and publisher runs.
// A nil receiver is a no-op so services can run without a registry.
type LedgerMetrics struct {
	decisions  *prometheus.CounterVec
	postings   *prometheus.CounterVec
	integrity  prometheus.Counter
	publishDur *prometheus.HistogramVec
}

// NewLedgerMetrics registers the collectors on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fuelstation_approval_decisions_total",
		Help: "Approval state transitions by record kind and resulting status.",
	}, []string{"record", "status"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fuelstation_ledger_postings_total",
		Help: "Ledger transactions posted by type and origin.",
	}, []string{"type", "origin"})
	integrity := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fuelstation_ledger_integrity_failures_total",
		Help: "System postings rejected because their entries did not balance.",
	})
	publishDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fuelstation_outbox_publish_seconds",
		Help:    "Duration of outbox publish batches.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	reg.MustRegister(decisions, postings, integrity, publishDur)
	return &LedgerMetrics{
		decisions:  decisions,
		postings:   postings,
		integrity:  integrity,
		publishDur: publishDur,
	}
}

func (m *LedgerMetrics) IncDecision(record, status string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(record), normalizeLabel(status)).Inc()
}

func (m *LedgerMetrics) IncPosting(txType, origin string) {
	if m == nil || m.postings == nil {
		return
	}
	m.postings.WithLabelValues(normalizeLabel(txType), normalizeLabel(origin)).Inc()
}

func (m *LedgerMetrics) IncIntegrityFailure() {
	if m == nil || m.integrity == nil {
		return
	}
	m.integrity.Inc()
}

// ObservePublish records one outbox publisher batch.
func (m *LedgerMetrics) ObservePublish(result string, duration time.Duration) {
	if m == nil || m.publishDur == nil {
		return
	}
	m.publishDur.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
