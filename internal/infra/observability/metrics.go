package observability

import (
	"time"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the trust ledger.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	postingsTotal     *prometheus.CounterVec
	transfersTotal    *prometheus.CounterVec
	alertsRaised      *prometheus.CounterVec
	auditAppends      prometheus.Counter
	reconciliations   *prometheus.CounterVec
	reportsGenerated  *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trustd_operation_duration_seconds",
				Help:    "Duration of ledger operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		postingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustd_postings_total",
				Help: "Total ledger postings by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustd_transfers_total",
				Help: "Total cross-account transfers by outcome.",
			},
			[]string{"outcome"},
		),
		alertsRaised: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustd_alerts_raised_total",
				Help: "Total alerts raised by type.",
			},
			[]string{"type"},
		),
		auditAppends: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "trustd_audit_appends_total",
				Help: "Total audit log entries written.",
			},
		),
		reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustd_reconciliations_total",
				Help: "Total reconciliations by status.",
			},
			[]string{"status"},
		),
		reportsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustd_compliance_reports_total",
				Help: "Total compliance reports by status.",
			},
			[]string{"status"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustd_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustd_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordOperationDuration records the duration of an operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrPosting increments the posting counter.
func (m *Metrics) IncrPosting(txType, outcome string) {
	m.postingsTotal.WithLabelValues(txType, outcome).Inc()
}

// IncrTransfer increments the transfer counter.
func (m *Metrics) IncrTransfer(outcome string) {
	m.transfersTotal.WithLabelValues(outcome).Inc()
}

// IncrAlertRaised increments the raised-alert counter.
func (m *Metrics) IncrAlertRaised(alertType string) {
	m.alertsRaised.WithLabelValues(alertType).Inc()
}

// IncrAuditAppend increments the audit append counter.
func (m *Metrics) IncrAuditAppend() {
	m.auditAppends.Inc()
}

// IncrReconciliation increments the reconciliation counter.
func (m *Metrics) IncrReconciliation(status string) {
	m.reconciliations.WithLabelValues(status).Inc()
}

// IncrReport increments the compliance report counter.
func (m *Metrics) IncrReport(status string) {
	m.reportsGenerated.WithLabelValues(status).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetLedgerSnapshot returns a snapshot of ledger activity counters
// suitable for the GET /v1/metrics/ledger endpoint.
/// Note: Prometheus counters expose cumulative values.
func (m *Metrics) GetLedgerSnapshot() *domain.LedgerMetrics {
	deposits := getCounterValue(m.postingsTotal, "deposit", "success")
	withdrawals := getCounterValue(m.postingsTotal, "withdrawal", "success")
	rejected := getCounterValue(m.postingsTotal, "deposit", "rejected") +
		getCounterValue(m.postingsTotal, "withdrawal", "rejected")
	transfers := getCounterValue(m.transfersTotal, "success")
	partial := getCounterValue(m.transfersTotal, "partial")

	return &domain.LedgerMetrics{
		DepositsPosted:    int64(deposits),
		WithdrawalsPosted: int64(withdrawals),
		PostingsRejected:  int64(rejected),
		TransfersPosted:   int64(transfers),
		PartialTransfers:  int64(partial),
		Discrepancies:     int64(getCounterValue(m.reconciliations, domain.ReconciliationDiscrepancy)),
		Period:            "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec
// for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
