package database

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pulseboard/pulseboard/pkg/logger"
)

// StandInManager presents the full Manager contract with no backing
// store, for deployments where persistence is deliberately disabled
// (demos, CI without a database). Every operation returns a structurally
// valid, empty result immediately and never fails for store reasons.
// This is a permanent, production-reachable mode, not a test double:
// callers must not be able to tell which manager variant is active.
//
// A statement timeout requested via WithStatementTimeout is accepted and
// ignored here; no statement ever runs, so there is nothing to bound.
type StandInManager struct {
	logger *zap.Logger
}

// NewStandInManager creates a stand-in manager.
func NewStandInManager() *StandInManager {
	m := &StandInManager{
		logger: logger.With(zap.String("component", "standin_manager")),
	}
	m.logger.Info("persistence disabled, serving empty results")
	return m
}

// Query returns an empty result for any statement and never fails.
func (m *StandInManager) Query(ctx context.Context, sql string, args ...interface{}) (*QueryResult, error) {
	return emptyResult(), nil
}

// WithConnection runs fn with a no-op connection. The callback's own
// failure, if any, is returned unchanged.
func (m *StandInManager) WithConnection(ctx context.Context, fn func(Conn) error) error {
	return fn(noopConn{})
}

// Transaction runs fn with a no-op connection. There is nothing to
// commit or roll back; the callback's failure is returned unchanged so
// callers observe the same control flow as with the real manager.
func (m *StandInManager) Transaction(ctx context.Context, fn func(Conn) error) error {
	return fn(noopConn{})
}

// HealthCheck always reports healthy.
func (m *StandInManager) HealthCheck(ctx context.Context) bool {
	return true
}

// PoolMetrics reports an all-zero snapshot with a current timestamp.
func (m *StandInManager) PoolMetrics() PoolMetrics {
	return PoolMetrics{Timestamp: time.Now()}
}

// Close is a no-op; the stand-in holds no resources.
func (m *StandInManager) Close() {}

// noopConn is the connection handle handed to stand-in callbacks.
type noopConn struct{}

func (noopConn) Query(ctx context.Context, sql string, args ...interface{}) (*QueryResult, error) {
	return emptyResult(), nil
}

func (noopConn) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	return 0, nil
}
