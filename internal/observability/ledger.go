package observability

import "github.com/prometheus/client_golang/prometheus"

// LedgerRecorder counts ledger operation outcomes and balance cache lookups.
type LedgerRecorder struct {
	operations *prometheus.CounterVec
	cache      *prometheus.CounterVec
}

func newLedgerRecorder(registerer prometheus.Registerer) *LedgerRecorder {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_operations_total",
		Help: "Ledger mutations partitioned by operation and outcome (ok, rejected, error).",
	}, []string{"operation", "outcome"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_balance_cache_total",
		Help: "Balance cache lookups partitioned by result.",
	}, []string{"result"})
	registerer.MustRegister(operations, cache)
	return &LedgerRecorder{operations: operations, cache: cache}
}

// ObserveOperation increments the outcome counter for a ledger mutation.
func (r *LedgerRecorder) ObserveOperation(operation, outcome string) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveBalanceCache increments the hit/miss counter.
func (r *LedgerRecorder) ObserveBalanceCache(result string) {
	if r == nil {
		return
	}
	r.cache.WithLabelValues(result).Inc()
}
