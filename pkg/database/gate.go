package database

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/pulseboard/pulseboard/pkg/config"
	"github.com/pulseboard/pulseboard/pkg/logger"
)

// New builds the manager selected by the persistence flag. This is the
// composition-time entry point: construct once, inject the Manager into
// every dependent, and treat both variants as interchangeable.
func New(ctx context.Context, cfg *config.Config) (Manager, error) {
	if !cfg.Persistence.Enabled {
		return NewStandInManager(), nil
	}
	return NewConnectionManager(ctx, cfg)
}

var (
	defaultOnce    sync.Once
	defaultManager Manager
	defaultErr     error
)

// Init binds the process-wide manager on first call and returns it. The
// decision is immutable for the remainder of the process: later calls
// return the same instance regardless of their arguments, and there is
// no re-initialization path.
func Init(ctx context.Context, cfg *config.Config) (Manager, error) {
	defaultOnce.Do(func() {
		defaultManager, defaultErr = New(ctx, cfg)
		if defaultErr == nil {
			logger.Info("database manager bound",
				zap.Bool("persistence_enabled", cfg.Persistence.Enabled))
		}
	})
	return defaultManager, defaultErr
}

// Default returns the process-wide manager, lazily initializing it from
// environment configuration on first access. Prefer explicit injection
// via New; Default exists for callers that need process-wide lookup.
func Default(ctx context.Context) (Manager, error) {
	defaultOnce.Do(func() {
		var cfg *config.Config
		cfg, defaultErr = config.FromEnv()
		if defaultErr != nil {
			return
		}
		defaultManager, defaultErr = New(ctx, cfg)
		if defaultErr == nil {
			logger.Info("database manager bound",
				zap.Bool("persistence_enabled", cfg.Persistence.Enabled))
		}
	})
	return defaultManager, defaultErr
}
