package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger's Prometheus collectors.
type Metrics struct {
	Acquisitions    prometheus.Counter
	UnitsAcquired   prometheus.Counter
	DuplicateEvents prometheus.Counter
	ExitRequests    prometheus.Counter
	ExitDecisions   *prometheus.CounterVec
	TxRetries       prometheus.Counter
	TxConflicts     prometheus.Counter
	Rejections      *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Acquisitions: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_acquisitions_total",
			Help: "Total number of committed unit acquisitions",
		}),
		UnitsAcquired: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_units_acquired_total",
			Help: "Total number of units moved from property supply to owners",
		}),
		DuplicateEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_duplicate_events_total",
			Help: "Payment events short-circuited by the journal idempotency check",
		}),
		ExitRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_exit_requests_total",
			Help: "Total number of exit requests created",
		}),
		ExitDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_exit_decisions_total",
			Help: "Exit request transitions out of PENDING",
		}, []string{"status"}),
		TxRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_tx_retries_total",
			Help: "Ledger transactions retried after a serialization conflict",
		}),
		TxConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_tx_conflicts_total",
			Help: "Ledger operations that exhausted retries and surfaced Conflict",
		}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_rejections_total",
			Help: "Operations rejected before commit, by error kind",
		}, []string{"kind"}),
	}
}
