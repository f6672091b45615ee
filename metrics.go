package orderstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	outcomeOK       = "ok"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

var (
	reconcileRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderstore_reconcile_rows_total",
		Help: "Cumulative number of cached rows written back to the store, by operation and outcome.",
	}, []string{"op", "outcome"})
	reconcilePassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderstore_reconcile_passes_total",
		Help: "Cumulative number of reconciliation passes.",
	})
	orderWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderstore_order_writes_total",
		Help: "Cumulative number of transactional order writes, by outcome.",
	}, []string{"outcome"})
	cacheLoadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderstore_cache_loads_total",
		Help: "Cumulative number of tables loaded into an offline cache.",
	})
	readRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderstore_read_rows_total",
		Help: "Cumulative number of rows read through the direct read path, by table.",
	}, []string{"table"})
)
