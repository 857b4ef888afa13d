package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard/pkg/config"
)

func disabledConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Persistence.Enabled = false
	return cfg
}

func TestNewSelectsStandInWhenPersistenceDisabled(t *testing.T) {
	m, err := New(context.Background(), disabledConfig())
	require.NoError(t, err)
	require.IsType(t, &StandInManager{}, m)
}

func TestDisabledPersistenceScenario(t *testing.T) {
	m, err := New(context.Background(), disabledConfig())
	require.NoError(t, err)
	defer m.Close()

	result, err := m.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	require.Empty(t, result.Rows)
	require.Equal(t, 0, result.RowCount)
}

func TestInitBindsExactlyOnce(t *testing.T) {
	ctx := context.Background()

	first, err := Init(ctx, disabledConfig())
	require.NoError(t, err)
	require.IsType(t, &StandInManager{}, first)

	// A second call with different configuration is ignored: the
	// decision is immutable for the process lifetime.
	other := config.NewConfig()
	other.Persistence.Enabled = true
	second, err := Init(ctx, other)
	require.NoError(t, err)
	require.Same(t, first, second)

	// Default resolves to the already-bound instance as well.
	third, err := Default(ctx)
	require.NoError(t, err)
	require.Same(t, first, third)
}
