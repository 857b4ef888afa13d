package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pulseboard/pulseboard/pkg/config"
	"github.com/pulseboard/pulseboard/pkg/database"
	"github.com/pulseboard/pulseboard/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	var configFile string

	root := &cobra.Command{
		Use:   "pulseboard",
		Short: "Pulseboard - analytics dashboard backend",
		Long: `Pulseboard is the backend for the Pulseboard analytics dashboard.
Its data-access layer manages a bounded PostgreSQL connection pool, with a
stand-in mode for deployments where persistence is disabled.`,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Pulseboard v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check database connectivity and print pool metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(configFile)
		},
	}
	root.AddCommand(pingCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile == "" {
		return config.FromEnv()
	}

	cfg := config.NewConfig()
	if err := config.Load(configFile, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runPing(configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Development: cfg.Observability.Development,
		Encoding:    cfg.Observability.LogEncoding,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	manager, err := database.Init(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database manager: %w", err)
	}
	defer manager.Close()

	healthy := manager.HealthCheck(ctx)
	snapshot := manager.PoolMetrics()

	out, err := json.MarshalIndent(struct {
		Healthy bool                 `json:"healthy"`
		Pool    database.PoolMetrics `json:"pool"`
	}{healthy, snapshot}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !healthy {
		logger.Error("database is unhealthy")
		return fmt.Errorf("database is unhealthy")
	}

	logger.Info("database is healthy", zap.Float64("pool_utilization", snapshot.Utilization))
	return nil
}
