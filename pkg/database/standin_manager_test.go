package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStandInQueryReturnsEmptyResult(t *testing.T) {
	m := NewStandInManager()
	ctx := context.Background()

	statements := []struct {
		sql  string
		args []interface{}
	}{
		{"SELECT 1", nil},
		{"SELECT * FROM daily_metrics WHERE account_id = $1", []interface{}{42}},
		{"INSERT INTO events (name) VALUES ($1)", []interface{}{"page_view"}},
		{"this is not even SQL", nil},
	}

	for _, stmt := range statements {
		result, err := m.Query(ctx, stmt.sql, stmt.args...)
		require.NoError(t, err)
		require.NotNil(t, result)
		require.Empty(t, result.Rows)
		require.Equal(t, 0, result.RowCount)
		require.Equal(t, len(result.Rows), result.RowCount)
	}
}

func TestStandInHealthCheckAlwaysTrue(t *testing.T) {
	m := NewStandInManager()
	require.True(t, m.HealthCheck(context.Background()))
}

func TestStandInPoolMetricsAllZero(t *testing.T) {
	m := NewStandInManager()
	pm := m.PoolMetrics()

	require.Zero(t, pm.TotalConns)
	require.Zero(t, pm.IdleConns)
	require.Zero(t, pm.ActiveConns)
	require.Zero(t, pm.WaitingCallers)
	require.Zero(t, pm.MaxConns)
	require.Zero(t, pm.Utilization)
	require.WithinDuration(t, time.Now(), pm.Timestamp, time.Second)
}

func TestStandInWithConnection(t *testing.T) {
	m := NewStandInManager()
	ctx := context.Background()

	err := m.WithConnection(ctx, func(c Conn) error {
		result, err := c.Query(ctx, "SELECT * FROM accounts")
		require.NoError(t, err)
		require.Empty(t, result.Rows)

		affected, err := c.Exec(ctx, "DELETE FROM accounts")
		require.NoError(t, err)
		require.Zero(t, affected)
		return nil
	})
	require.NoError(t, err)
}

func TestStandInCallbackErrorPropagatesUnchanged(t *testing.T) {
	m := NewStandInManager()
	sentinel := errors.New("domain failure")

	err := m.WithConnection(context.Background(), func(Conn) error { return sentinel })
	require.ErrorIs(t, err, sentinel)

	err = m.Transaction(context.Background(), func(Conn) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
}

func TestStandInCloseIsNoOp(t *testing.T) {
	m := NewStandInManager()
	m.Close()
	m.Close()

	result, err := m.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	require.Empty(t, result.Rows)
}

func TestStandInIgnoresStatementTimeout(t *testing.T) {
	m := NewStandInManager()
	ctx := WithStatementTimeout(context.Background(), time.Nanosecond)

	result, err := m.Query(ctx, "SELECT pg_sleep(10)")
	require.NoError(t, err)
	require.Equal(t, 0, result.RowCount)
}

func TestWithConnectionValueHelper(t *testing.T) {
	m := NewStandInManager()

	count, err := WithConnectionValue(context.Background(), m, func(c Conn) (int, error) {
		result, err := c.Query(context.Background(), "SELECT count(*) FROM events")
		if err != nil {
			return 0, err
		}
		return result.RowCount, nil
	})
	require.NoError(t, err)
	require.Zero(t, count)

	sentinel := errors.New("boom")
	_, err = WithConnectionValue(context.Background(), m, func(Conn) (int, error) {
		return 0, sentinel
	})
	require.ErrorIs(t, err, sentinel)
}

func TestTransactionValueHelper(t *testing.T) {
	m := NewStandInManager()

	rows, err := TransactionValue(context.Background(), m, func(c Conn) ([]Row, error) {
		result, err := c.Query(context.Background(), "SELECT * FROM events")
		if err != nil {
			return nil, err
		}
		return result.Rows, nil
	})
	require.NoError(t, err)
	require.Empty(t, rows)
}
