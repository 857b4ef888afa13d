// Package metrics provides Prometheus metrics for the Pulseboard
// data-access layer: query throughput and latency, pool state, and
// transaction outcomes. Collectors are registered automatically and safe
// for concurrent use.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts executed statements by status (success/failure).
	//
	// Example:
	//	metrics.QueriesTotal.WithLabelValues("success").Inc()
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseboard_db_queries_total",
			Help: "Total number of executed statements",
		},
		[]string{"status"},
	)

	// QueryDuration tracks the distribution of statement execution
	// latencies in seconds. Buckets cover sub-millisecond cache hits
	// through multi-second analytical queries.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pulseboard_db_query_duration_seconds",
			Help: "Statement execution latency in seconds",
			Buckets: []float64{
				0.0005, // 0.5ms
				0.001,  // 1ms
				0.005,  // 5ms
				0.01,   // 10ms
				0.05,   // 50ms
				0.1,    // 100ms
				0.5,    // 500ms
				1,      // 1s
				5,      // 5s
			},
		},
		[]string{"operation"},
	)

	// PoolConnections reports pool connection counts by state
	// (total/idle/active/waiting/max).
	PoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulseboard_db_pool_connections",
			Help: "Connection pool state",
		},
		[]string{"state"},
	)

	// AcquireTimeoutsTotal counts connection acquisitions that exceeded
	// the configured wait.
	AcquireTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulseboard_db_acquire_timeouts_total",
			Help: "Total number of connection acquisition timeouts",
		},
	)

	// TransactionsTotal counts transactions by outcome
	// (commit/rollback/rollback_failed).
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseboard_db_transactions_total",
			Help: "Total number of transactions by outcome",
		},
		[]string{"outcome"},
	)

	// HealthChecksTotal counts health check round-trips by result.
	HealthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseboard_db_health_checks_total",
			Help: "Total number of health checks by result",
		},
		[]string{"result"},
	)
)

// Timer provides a simple timing mechanism for measuring operation
// durations. It captures the start time on creation and calculates
// elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
//
// Example:
//
//	timer := metrics.NewTimer("query")
//	rows := execute(stmt)
//	duration := timer.Stop()
//	logger.Info("query executed", zap.Duration("duration", duration))
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObservePoolState publishes a pool snapshot to the PoolConnections gauge.
func ObservePoolState(total, idle, active, waiting, max int32) {
	PoolConnections.WithLabelValues("total").Set(float64(total))
	PoolConnections.WithLabelValues("idle").Set(float64(idle))
	PoolConnections.WithLabelValues("active").Set(float64(active))
	PoolConnections.WithLabelValues("waiting").Set(float64(waiting))
	PoolConnections.WithLabelValues("max").Set(float64(max))
}
