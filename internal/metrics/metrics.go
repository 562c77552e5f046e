package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection acquisition outcomes.
const (
	ConnectionOK          = "ok"
	ConnectionFailed      = "failed"
	ConnectionUnreachable = "unreachable"
	ConnectionSkipped     = "skipped"
)

// Read sources for the domain service.
const (
	SourceSnapshot = "snapshot"
	SourceLookup   = "lookup"
	SourceStore    = "store"
)

var (
	StoreConnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "painpoint_store_connections_total",
		Help: "Connection acquisitions by outcome.",
	}, []string{"result"})

	StoreUnreachable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "painpoint_store_unreachable",
		Help: "1 while the store is considered unreachable and probes are rationed.",
	})

	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "painpoint_store_operations_total",
		Help: "Statements executed against the store by operation and result.",
	}, []string{"op", "result"})

	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "painpoint_store_operation_duration_seconds",
		Help:    "Duration of statements executed against the store.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	SchemaErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "painpoint_schema_errors_total",
		Help: "DDL statements that failed.",
	})

	ServiceReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "painpoint_service_reads_total",
		Help: "Reads served by the domain service, by source.",
	}, []string{"source"})

	ServiceWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "painpoint_service_writes_total",
		Help: "Add-or-update calls by executed statement and result.",
	}, []string{"kind", "result"})

	SnapshotRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "painpoint_snapshot_records",
		Help: "Records held by the in-memory snapshot.",
	})
)

// Result maps an error to the result label used by operation counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
