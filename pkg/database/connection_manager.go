package database

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pulseboard/pulseboard/pkg/config"
	"github.com/pulseboard/pulseboard/pkg/dberrors"
	"github.com/pulseboard/pulseboard/pkg/logger"
	"github.com/pulseboard/pulseboard/pkg/metrics"
)

const tracerName = "github.com/pulseboard/pulseboard/pkg/database"

// ConnectionManager is the real-store Manager over a bounded pgx
// connection pool. Connection requests queue when the pool is saturated
// and fail with an acquire-timeout error once the configured wait
// elapses; the manager never retries a failed statement and never
// converts a failure into an empty success.
type ConnectionManager struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
	enableMetrics  bool

	logger *zap.Logger
	tracer trace.Tracer

	waiting atomic.Int32
	closed  atomic.Bool
}

// NewConnectionManager creates the pool and validates connectivity with a
// round-trip query before returning.
func NewConnectionManager(ctx context.Context, cfg *config.Config) (*ConnectionManager, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, dberrors.Wrap(err, dberrors.ErrorTypeConfig, "failed to parse connection string")
	}

	poolConfig.MaxConns = cfg.Pool.MaxConns
	poolConfig.MinConns = cfg.Pool.MinConns
	poolConfig.MaxConnIdleTime = cfg.Pool.IdleTimeout
	poolConfig.MaxConnLifetime = cfg.Pool.MaxConnLifetime
	poolConfig.HealthCheckPeriod = cfg.Pool.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = cfg.Pool.AcquireTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, dberrors.Wrap(err, dberrors.ErrorTypeConnection, "failed to create connection pool")
	}

	m := &ConnectionManager{
		pool:           pool,
		acquireTimeout: cfg.Pool.AcquireTimeout,
		enableMetrics:  cfg.Observability.EnableMetrics,
		logger:         logger.With(zap.String("component", "connection_manager")),
		tracer:         otel.Tracer(tracerName),
	}

	var version string
	if err := m.validateConnection(ctx, &version); err != nil {
		pool.Close()
		return nil, err
	}

	m.logger.Info("connected to PostgreSQL",
		zap.String("version", version),
		zap.Int32("max_connections", poolConfig.MaxConns),
		zap.Int32("min_connections", poolConfig.MinConns),
		zap.Duration("acquire_timeout", m.acquireTimeout),
		zap.Duration("idle_timeout", poolConfig.MaxConnIdleTime))

	return m, nil
}

// validateConnection performs the initial round trip
func (m *ConnectionManager) validateConnection(ctx context.Context, version *string) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return dberrors.Wrap(err, dberrors.ErrorTypeConnection, "failed to acquire connection for validation")
	}
	defer conn.Release()

	if err := conn.QueryRow(ctx, "SELECT version()").Scan(version); err != nil {
		return dberrors.Wrap(err, dberrors.ErrorTypeConnection, "connection validation query failed")
	}
	return nil
}

// acquire checks out a connection, bounding the wait by the configured
// acquire timeout. A caller whose acquisition times out holds no
// connection and needs no cleanup.
func (m *ConnectionManager) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	if m.closed.Load() {
		return nil, dberrors.NewClosed("acquire")
	}

	m.waiting.Add(1)
	defer m.waiting.Add(-1)

	acquireCtx, cancel := context.WithTimeout(ctx, m.acquireTimeout)
	defer cancel()

	conn, err := m.pool.Acquire(acquireCtx)
	if err != nil {
		if errors.Is(acquireCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			if m.enableMetrics {
				metrics.AcquireTimeoutsTotal.Inc()
			}
			m.logger.Warn("connection acquisition timed out",
				zap.Duration("acquire_timeout", m.acquireTimeout),
				zap.Int32("waiting_callers", m.waiting.Load()))
			return nil, dberrors.NewAcquireTimeout(err)
		}
		return nil, dberrors.Wrap(err, dberrors.ErrorTypeConnection, "failed to acquire connection")
	}
	return conn, nil
}

// Query executes one statement with an implicitly acquired connection.
// Every execution emits a structured timing record; every failure carries
// the truncated statement and parameters for diagnosis.
func (m *ConnectionManager) Query(ctx context.Context, sql string, args ...interface{}) (*QueryResult, error) {
	if m.closed.Load() {
		return nil, dberrors.NewClosed("Query")
	}

	ctx, span := m.tracer.Start(ctx, "db.query", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", dberrors.TruncateStatement(sql)),
	))
	defer span.End()

	timer := metrics.NewTimer("query")

	conn, err := m.acquire(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "acquire failed")
		span.RecordError(err)
		return nil, err
	}
	defer conn.Release()

	execCtx := ctx
	if d, ok := statementTimeout(ctx); ok {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	rows, err := conn.Query(execCtx, sql, args...)
	if err != nil {
		return nil, m.queryFailed(span, sql, args, timer.Stop(), err)
	}

	result, err := collectRows(rows)
	if err != nil {
		return nil, m.queryFailed(span, sql, args, timer.Stop(), err)
	}

	duration := timer.Stop()
	if m.enableMetrics {
		metrics.QueriesTotal.WithLabelValues("success").Inc()
		metrics.QueryDuration.WithLabelValues("query").Observe(duration.Seconds())
	}

	m.logger.Debug("query executed",
		zap.String("statement", dberrors.TruncateStatement(sql)),
		zap.Duration("duration", duration),
		zap.Int("row_count", result.RowCount))

	return result, nil
}

// queryFailed records metrics, the structured error log, and the span
// status for a failed execution, and builds the query error returned to
// the caller.
func (m *ConnectionManager) queryFailed(span trace.Span, sql string, args []interface{}, duration time.Duration, err error) error {
	if m.enableMetrics {
		metrics.QueriesTotal.WithLabelValues("failure").Inc()
		metrics.QueryDuration.WithLabelValues("query").Observe(duration.Seconds())
	}

	span.SetStatus(codes.Error, "query failed")
	span.RecordError(err)

	m.logger.Error("query failed",
		zap.String("statement", dberrors.TruncateStatement(sql)),
		zap.String("params", dberrors.TruncateParams(args)),
		zap.Duration("duration", duration),
		zap.Error(err))

	return dberrors.NewQueryError(err, sql, args)
}

// WithConnection runs fn with an exclusively owned connection, released
// on every exit path including callback failure and panic.
func (m *ConnectionManager) WithConnection(ctx context.Context, fn func(Conn) error) error {
	if m.closed.Load() {
		return dberrors.NewClosed("WithConnection")
	}

	conn, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return fn(&pgxConn{q: conn, manager: m})
}

// Transaction runs fn inside a transaction bound to one connection.
// Commit happens only when fn returns nil; any failure triggers exactly
// one rollback attempt, after which the original failure is returned
// unchanged. If the rollback itself fails, both failures are surfaced on
// a transaction error.
func (m *ConnectionManager) Transaction(ctx context.Context, fn func(Conn) error) error {
	if m.closed.Load() {
		return dberrors.NewClosed("Transaction")
	}

	ctx, span := m.tracer.Start(ctx, "db.transaction", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
	))
	defer span.End()

	conn, err := m.acquire(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "acquire failed")
		span.RecordError(err)
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "begin failed")
		span.RecordError(err)
		return dberrors.Wrap(err, dberrors.ErrorTypeTransaction, "failed to begin transaction")
	}
	// Releases the transaction if fn panics; no-op after commit or an
	// explicit rollback.
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgxConn{q: tx, manager: m}); err != nil {
		span.SetStatus(codes.Error, "callback failed")
		span.RecordError(err)

		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			if m.enableMetrics {
				metrics.TransactionsTotal.WithLabelValues("rollback_failed").Inc()
			}
			m.logger.Error("rollback failed",
				zap.NamedError("callback_error", err),
				zap.NamedError("rollback_error", rbErr))
			return dberrors.NewTransactionError(err, rbErr)
		}

		if m.enableMetrics {
			metrics.TransactionsTotal.WithLabelValues("rollback").Inc()
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.SetStatus(codes.Error, "commit failed")
		span.RecordError(err)
		if m.enableMetrics {
			metrics.TransactionsTotal.WithLabelValues("commit_failed").Inc()
		}
		return dberrors.Wrap(err, dberrors.ErrorTypeTransaction, "failed to commit transaction")
	}

	if m.enableMetrics {
		metrics.TransactionsTotal.WithLabelValues("commit").Inc()
	}
	return nil
}

// HealthCheck performs a trivial round trip. Any failure is downgraded to
// false; the underlying error never reaches the caller.
func (m *ConnectionManager) HealthCheck(ctx context.Context) bool {
	if m.closed.Load() {
		return false
	}

	conn, err := m.acquire(ctx)
	if err != nil {
		m.healthFailed(err)
		return false
	}
	defer conn.Release()

	var one int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		m.healthFailed(err)
		return false
	}

	if m.enableMetrics {
		metrics.HealthChecksTotal.WithLabelValues("healthy").Inc()
	}
	return true
}

func (m *ConnectionManager) healthFailed(err error) {
	if m.enableMetrics {
		metrics.HealthChecksTotal.WithLabelValues("unhealthy").Inc()
	}
	m.logger.Warn("health check failed", zap.Error(err))
}

// PoolMetrics returns a non-blocking snapshot of current pool state.
func (m *ConnectionManager) PoolMetrics() PoolMetrics {
	now := time.Now()
	if m.closed.Load() {
		return PoolMetrics{Timestamp: now}
	}

	stat := m.pool.Stat()
	pm := PoolMetrics{
		TotalConns:     stat.TotalConns(),
		IdleConns:      stat.IdleConns(),
		ActiveConns:    stat.AcquiredConns(),
		WaitingCallers: m.waiting.Load(),
		MaxConns:       stat.MaxConns(),
		Timestamp:      now,
	}
	if pm.MaxConns > 0 {
		pm.Utilization = float64(pm.ActiveConns) / float64(pm.MaxConns)
	}

	if m.enableMetrics {
		metrics.ObservePoolState(pm.TotalConns, pm.IdleConns, pm.ActiveConns, pm.WaitingCallers, pm.MaxConns)
	}
	return pm
}

// Close drains and closes all pool connections. Idempotent.
func (m *ConnectionManager) Close() {
	if m.closed.CompareAndSwap(false, true) {
		m.pool.Close()
		m.logger.Info("connection pool closed")
	}
}

// pgxQuerier is satisfied by *pgxpool.Conn and pgx.Tx, letting one
// adapter serve plain connections and transactions.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// pgxConn adapts a checked-out pgx connection or transaction to Conn.
type pgxConn struct {
	q       pgxQuerier
	manager *ConnectionManager
}

func (c *pgxConn) Query(ctx context.Context, sql string, args ...interface{}) (*QueryResult, error) {
	timer := metrics.NewTimer("conn_query")

	rows, err := c.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, c.failed(sql, args, timer.Stop(), err)
	}

	result, err := collectRows(rows)
	if err != nil {
		return nil, c.failed(sql, args, timer.Stop(), err)
	}

	duration := timer.Stop()
	if c.manager.enableMetrics {
		metrics.QueriesTotal.WithLabelValues("success").Inc()
		metrics.QueryDuration.WithLabelValues("conn_query").Observe(duration.Seconds())
	}

	c.manager.logger.Debug("query executed",
		zap.String("statement", dberrors.TruncateStatement(sql)),
		zap.Duration("duration", duration),
		zap.Int("row_count", result.RowCount))

	return result, nil
}

func (c *pgxConn) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	timer := metrics.NewTimer("conn_exec")

	tag, err := c.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, c.failed(sql, args, timer.Stop(), err)
	}

	duration := timer.Stop()
	if c.manager.enableMetrics {
		metrics.QueriesTotal.WithLabelValues("success").Inc()
		metrics.QueryDuration.WithLabelValues("conn_exec").Observe(duration.Seconds())
	}

	c.manager.logger.Debug("statement executed",
		zap.String("statement", dberrors.TruncateStatement(sql)),
		zap.Duration("duration", duration),
		zap.Int64("rows_affected", tag.RowsAffected()))

	return tag.RowsAffected(), nil
}

func (c *pgxConn) failed(sql string, args []interface{}, duration time.Duration, err error) error {
	if c.manager.enableMetrics {
		metrics.QueriesTotal.WithLabelValues("failure").Inc()
	}

	c.manager.logger.Error("query failed",
		zap.String("statement", dberrors.TruncateStatement(sql)),
		zap.String("params", dberrors.TruncateParams(args)),
		zap.Duration("duration", duration),
		zap.Error(err))

	return dberrors.NewQueryError(err, sql, args)
}

// collectRows drains a pgx row set into an immutable QueryResult.
func collectRows(rows pgx.Rows) (*QueryResult, error) {
	defer rows.Close()

	fds := rows.FieldDescriptions()
	columns := make([]string, len(fds))
	for i, fd := range fds {
		columns[i] = fd.Name
	}

	result := &QueryResult{
		Columns: columns,
		Rows:    []Row{},
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tag := rows.CommandTag()
	result.Command = tag.String()
	if len(columns) == 0 {
		// Statements that return no rows report the affected count,
		// matching the command tag.
		result.RowCount = int(tag.RowsAffected())
	} else {
		result.RowCount = len(result.Rows)
	}

	return result, nil
}
