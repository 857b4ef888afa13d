// Package database provides the single access point to the Pulseboard
// backing store. It hides connection pool management behind a small
// capability interface with two interchangeable implementations: a
// ConnectionManager over a real PostgreSQL pool, and a StandInManager for
// deployments where persistence is disabled. Callers depend only on the
// Manager interface and must not inspect which variant is active.
package database

import (
	"context"
	"time"
)

// Manager is the capability interface every persistence consumer depends
// on. Both implementations honor the same contract: Query, WithConnection
// and Transaction may block until a connection is available or the
// acquisition timeout elapses; PoolMetrics and HealthCheck are fast and
// non-queuing.
type Manager interface {
	// Query executes one statement with an implicitly acquired
	// connection, releasing it on completion.
	Query(ctx context.Context, sql string, args ...interface{}) (*QueryResult, error)

	// WithConnection runs fn with an exclusively owned connection. The
	// connection is released on every exit path and must not escape the
	// callback. This is the sole primitive through which raw connections
	// are exposed.
	WithConnection(ctx context.Context, fn func(Conn) error) error

	// Transaction runs fn inside a transaction on a single connection,
	// committing when fn returns nil and rolling back when it fails. The
	// callback's failure is returned unchanged; a rollback failure is
	// additionally recorded on a transaction error.
	Transaction(ctx context.Context, fn func(Conn) error) error

	// HealthCheck performs a trivial round trip and reports the result
	// as a boolean. It never propagates the underlying error.
	HealthCheck(ctx context.Context) bool

	// PoolMetrics returns a point-in-time snapshot of pool state.
	PoolMetrics() PoolMetrics

	// Close drains and closes the pool. Idempotent; all subsequent
	// operations fail with a closed error.
	Close()
}

// Conn is a checked-out connection handle, valid only within the callback
// scope that received it.
type Conn interface {
	// Query executes one statement on this connection.
	Query(ctx context.Context, sql string, args ...interface{}) (*QueryResult, error)

	// Exec executes a statement that returns no rows and reports the
	// number of rows affected.
	Exec(ctx context.Context, sql string, args ...interface{}) (int64, error)
}

// WithConnectionValue runs fn with a scoped connection and returns its
// value. It is the value-producing form of Manager.WithConnection.
func WithConnectionValue[T any](ctx context.Context, m Manager, fn func(Conn) (T, error)) (T, error) {
	var out T
	err := m.WithConnection(ctx, func(c Conn) error {
		v, err := fn(c)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// TransactionValue runs fn inside a transaction and returns its value. It
// is the value-producing form of Manager.Transaction.
func TransactionValue[T any](ctx context.Context, m Manager, fn func(Conn) (T, error)) (T, error) {
	var out T
	err := m.Transaction(ctx, func(c Conn) error {
		v, err := fn(c)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

type stmtTimeoutKey struct{}

// WithStatementTimeout returns a context that asks the manager to bound
// the execution of statements issued under it. The ConnectionManager
// honors the timeout; the StandInManager accepts and ignores it, since no
// statement ever runs there.
func WithStatementTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, stmtTimeoutKey{}, d)
}

func statementTimeout(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(stmtTimeoutKey{}).(time.Duration)
	return d, ok
}
