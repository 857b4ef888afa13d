package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/pulseboard/pulseboard/pkg/config"
	"github.com/pulseboard/pulseboard/pkg/dberrors"
)

// closedManager builds a manager already in the closed state, without a
// backing pool. Every operation must refuse before touching the pool.
func closedManager() *ConnectionManager {
	m := &ConnectionManager{
		logger: zap.NewNop(),
		tracer: otel.Tracer("test"),
	}
	m.closed.Store(true)
	return m
}

func TestClosedManagerRefusesOperations(t *testing.T) {
	m := closedManager()
	ctx := context.Background()

	_, err := m.Query(ctx, "SELECT 1")
	require.True(t, dberrors.IsClosed(err))

	err = m.WithConnection(ctx, func(Conn) error { return nil })
	require.True(t, dberrors.IsClosed(err))

	err = m.Transaction(ctx, func(Conn) error { return nil })
	require.True(t, dberrors.IsClosed(err))

	require.False(t, m.HealthCheck(ctx))

	pm := m.PoolMetrics()
	require.Zero(t, pm.TotalConns)
	require.WithinDuration(t, time.Now(), pm.Timestamp, time.Second)

	// Close on an already-closed manager is a no-op.
	m.Close()
}

// testConfig returns configuration for the integration tests, skipping
// when no test database is configured.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	host := os.Getenv("PULSEBOARD_TEST_DB_HOST")
	if host == "" {
		t.Skip("Skipping database integration tests - PULSEBOARD_TEST_DB_HOST not set")
	}

	cfg := config.NewConfig()
	cfg.Database.Host = host
	cfg.Database.User = envOr("PULSEBOARD_TEST_DB_USER", "postgres")
	cfg.Database.Password = os.Getenv("PULSEBOARD_TEST_DB_PASSWORD")
	cfg.Database.Database = envOr("PULSEBOARD_TEST_DB_NAME", "postgres")
	cfg.Database.SSLMode = "disable"
	if p := os.Getenv("PULSEBOARD_TEST_DB_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		require.NoError(t, err)
		cfg.Database.Port = port
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newTestManager(t *testing.T, cfg *config.Config) *ConnectionManager {
	t.Helper()
	m, err := NewConnectionManager(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestQueryRowCountMatchesRows(t *testing.T) {
	m := newTestManager(t, testConfig(t))

	result, err := m.Query(context.Background(), "SELECT generate_series(1, 5) AS n")
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.Equal(t, len(result.Rows), result.RowCount)
	require.Equal(t, []string{"n"}, result.Columns)
}

func TestQueryErrorCarriesContext(t *testing.T) {
	m := newTestManager(t, testConfig(t))

	_, err := m.Query(context.Background(), "SELEC broken FROM nowhere", 42)
	require.Error(t, err)
	require.True(t, dberrors.IsType(err, dberrors.ErrorTypeQuery))

	var derr *dberrors.Error
	require.ErrorAs(t, err, &derr)
	require.Contains(t, derr.Details["statement"], "SELEC broken")
	require.Equal(t, "[42]", derr.Details["params"])
}

func TestWithConnectionReleasedOnError(t *testing.T) {
	m := newTestManager(t, testConfig(t))
	sentinel := errors.New("callback failure")

	before := m.PoolMetrics().ActiveConns
	for i := 0; i < 5; i++ {
		err := m.WithConnection(context.Background(), func(Conn) error { return sentinel })
		require.ErrorIs(t, err, sentinel)
		require.Equal(t, before, m.PoolMetrics().ActiveConns)
	}
}

func TestTransactionCommitAndRollback(t *testing.T) {
	m := newTestManager(t, testConfig(t))
	ctx := context.Background()

	table := fmt.Sprintf("pulseboard_tx_test_%d", time.Now().UnixNano())
	_, err := m.Query(ctx, fmt.Sprintf("CREATE TABLE %s (id int)", table))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = m.Query(context.Background(), fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
	})

	// Callback failure: the insert must be rolled back and the original
	// error observed unchanged.
	sentinel := errors.New("business rule violated")
	err = m.Transaction(ctx, func(c Conn) error {
		if _, err := c.Exec(ctx, fmt.Sprintf("INSERT INTO %s VALUES (1)", table)); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	result, err := m.Query(ctx, fmt.Sprintf("SELECT * FROM %s", table))
	require.NoError(t, err)
	require.Equal(t, 0, result.RowCount)

	// Normal return commits.
	err = m.Transaction(ctx, func(c Conn) error {
		_, err := c.Exec(ctx, fmt.Sprintf("INSERT INTO %s VALUES (2)", table))
		return err
	})
	require.NoError(t, err)

	result, err = m.Query(ctx, fmt.Sprintf("SELECT * FROM %s", table))
	require.NoError(t, err)
	require.Equal(t, 1, result.RowCount)
}

func TestConcurrentAcquireBoundedByPoolMax(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pool.MaxConns = 1
	cfg.Pool.MinConns = 0
	cfg.Pool.AcquireTimeout = 100 * time.Millisecond
	m := newTestManager(t, cfg)

	ctx := context.Background()
	holding := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.WithConnection(ctx, func(Conn) error {
			close(holding)
			<-release
			return nil
		})
	}()

	<-holding

	start := time.Now()
	err := m.WithConnection(ctx, func(Conn) error { return nil })
	elapsed := time.Since(start)

	require.True(t, dberrors.IsAcquireTimeout(err), "expected acquire timeout, got %v", err)
	require.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	require.Less(t, elapsed, 2*time.Second)

	close(release)
	wg.Wait()

	// Once the holder releases, acquisition succeeds again.
	require.NoError(t, m.WithConnection(ctx, func(Conn) error { return nil }))
}

func TestStatementTimeoutHonored(t *testing.T) {
	m := newTestManager(t, testConfig(t))

	ctx := WithStatementTimeout(context.Background(), 50*time.Millisecond)
	_, err := m.Query(ctx, "SELECT pg_sleep(5)")
	require.Error(t, err)
	require.True(t, dberrors.IsType(err, dberrors.ErrorTypeQuery))
}

func TestCloseIsTerminalAndIdempotent(t *testing.T) {
	m, err := NewConnectionManager(context.Background(), testConfig(t))
	require.NoError(t, err)

	require.True(t, m.HealthCheck(context.Background()))

	m.Close()
	m.Close()

	_, err = m.Query(context.Background(), "SELECT 1")
	require.True(t, dberrors.IsClosed(err))
	require.False(t, m.HealthCheck(context.Background()))
}

func TestPoolMetricsSnapshot(t *testing.T) {
	cfg := testConfig(t)
	m := newTestManager(t, cfg)

	err := m.WithConnection(context.Background(), func(Conn) error {
		pm := m.PoolMetrics()
		require.Equal(t, cfg.Pool.MaxConns, pm.MaxConns)
		require.GreaterOrEqual(t, pm.ActiveConns, int32(1))
		require.InDelta(t, float64(pm.ActiveConns)/float64(pm.MaxConns), pm.Utilization, 0.001)
		require.WithinDuration(t, time.Now(), pm.Timestamp, time.Second)
		return nil
	})
	require.NoError(t, err)

	pm := m.PoolMetrics()
	require.Zero(t, pm.ActiveConns)
}
