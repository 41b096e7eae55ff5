package store

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric label values for store operations.
const (
	opSave           = "save"
	opFindByID       = "find_by_id"
	opFindVoidedByID = "find_voided_by_id"
	opFindBy         = "find_by"
)

// Metrics holds Prometheus metrics for store operations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations      *prometheus.CounterVec   // By operation and outcome (ok or error kind)
	duration        *prometheus.HistogramVec // By operation
	statementsSaved prometheus.Counter       // Rows written, sub-statements included
	integrityErrors prometheus.Counter
}

// NewMetrics creates store metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrs",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of store operations by outcome",
		}, []string{"operation", "outcome"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lrs",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),

		statementsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lrs",
			Subsystem: "store",
			Name:      "statement_rows_written_total",
			Help:      "Total number of statement rows written, including sub-statements",
		}),

		integrityErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lrs",
			Subsystem: "store",
			Name:      "data_integrity_errors_total",
			Help:      "Total number of data integrity violations detected on read or write",
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.duration, m.statementsSaved, m.integrityErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// observe records one completed operation.
func (m *Metrics) observe(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		kind := KindOf(err)
		if kind == "" {
			kind = KindStoreUnavailable
		}
		outcome = strings.ToLower(string(kind))
		if kind == KindDataIntegrity {
			m.integrityErrors.Inc()
		}
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// rowsWritten records committed statement rows.
func (m *Metrics) rowsWritten(n int) {
	if m == nil {
		return
	}
	m.statementsSaved.Add(float64(n))
}
