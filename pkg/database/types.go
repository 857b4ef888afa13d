package database

import (
	"time"
)

// Row is a single result row keyed by column name. Column order is
// preserved in QueryResult.Columns.
type Row map[string]interface{}

// QueryResult holds the outcome of one statement execution. It is
// produced once per execution and immutable after return.
type QueryResult struct {
	// Columns lists result column names in wire order.
	Columns []string
	// Rows is the ordered sequence of result rows.
	Rows []Row
	// RowCount equals len(Rows) for row-returning statements and the
	// affected-row count otherwise.
	RowCount int
	// Command is the command tag reported by the store (e.g. "SELECT 3").
	Command string
}

// PoolMetrics is a read-only, point-in-time snapshot of pool state.
type PoolMetrics struct {
	// TotalConns is the number of live connections in the pool.
	TotalConns int32 `json:"total_conns"`
	// IdleConns is the number of connections currently checked in.
	IdleConns int32 `json:"idle_conns"`
	// ActiveConns is the number of connections currently checked out.
	ActiveConns int32 `json:"active_conns"`
	// WaitingCallers is the number of callers queued for a connection.
	WaitingCallers int32 `json:"waiting_callers"`
	// MaxConns is the configured pool ceiling.
	MaxConns int32 `json:"max_conns"`
	// Utilization is ActiveConns divided by MaxConns.
	Utilization float64 `json:"utilization"`
	// Timestamp records when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
}

func emptyResult() *QueryResult {
	return &QueryResult{
		Columns:  []string{},
		Rows:     []Row{},
		RowCount: 0,
	}
}
