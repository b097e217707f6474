// Skywatch collects service health metrics, scores them and flags anomalies.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halonen/skywatch/internal/collector"
	"github.com/halonen/skywatch/internal/config"
	"github.com/halonen/skywatch/internal/demo"
	"github.com/halonen/skywatch/internal/detector"
	"github.com/halonen/skywatch/internal/logging"
	"github.com/halonen/skywatch/internal/scheduler"
	"github.com/halonen/skywatch/internal/server"
	"github.com/halonen/skywatch/internal/source"
	"github.com/halonen/skywatch/internal/store"
)

const version = "v0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "skywatch",
		Short: "Service health collection, scoring and anomaly detection",
		Long: `Skywatch polls heterogeneous monitoring backends (Prometheus, Docker,
Kubernetes, local host), persists canonical health metrics as a time series,
scores service health and flags anomalous behavior with per-metric attribution.`,
		SilenceUsage: true,
	}

	// ── server subcommand ─────────────────────────────────────────────────────
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the Skywatch server (HTTP API + background pipeline)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			logger := logging.New(cfg.LogLevel, cfg.LogFile)
			defer logger.Sync()

			st, err := store.Open(cfg.DBDriver, cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}

			src, err := source.New(cfg)
			if err != nil {
				return fmt.Errorf("creating metric source: %w", err)
			}
			logger.Info("metric source ready", zap.String("backend", src.Name()))

			coll := collector.New(src, st, logger)
			det := detector.New(st, detector.Config{
				Lookback:      time.Duration(cfg.LookbackHours) * time.Hour,
				MinSamples:    cfg.MinSamples,
				Contamination: cfg.Contamination,
				RecentPoints:  cfg.RecentPoints,
			}, logger)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sched := scheduler.New(st, coll, det,
				time.Duration(cfg.CollectInterval)*time.Second, logger)
			go sched.Run(ctx)

			gin.SetMode(gin.ReleaseMode)
			engine := gin.New()
			engine.Use(gin.Recovery(), corsMiddleware)
			server.New(st, coll, det, logger).RegisterRoutes(engine)

			addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.HTTPPort)
			srv := &http.Server{Addr: addr, Handler: engine}
			logger.Info("http api listening", zap.String("addr", addr))

			// Run the server; shut down gracefully on SIGINT/SIGTERM.
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-quit:
				logger.Info("shutting down gracefully")
				cancel()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				_ = srv.Shutdown(shutdownCtx)
				return nil
			}
		},
	}

	// ── demo subcommand ───────────────────────────────────────────────────────
	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Seed the store with synthetic metrics (no live backend needed)",
	}

	demoHistoricalCmd := &cobra.Command{
		Use:   "historical",
		Short: "Backfill historical demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFile)
			defer logger.Sync()

			st, err := store.Open(cfg.DBDriver, cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			hours, _ := cmd.Flags().GetInt("hours")
			return demo.New(st, logger).Historical(hours)
		},
	}
	demoHistoricalCmd.Flags().Int("hours", 24, "How many hours to backfill")

	demoLiveCmd := &cobra.Command{
		Use:   "live",
		Short: "Stream live demo data, one point per service per minute",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFile)
			defer logger.Sync()

			st, err := store.Open(cfg.DBDriver, cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			minutes, _ := cmd.Flags().GetInt("minutes")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return demo.New(st, logger).Live(ctx, time.Duration(minutes)*time.Minute)
		},
	}
	demoLiveCmd.Flags().Int("minutes", 60, "How long to stream")

	demoCmd.AddCommand(demoHistoricalCmd, demoLiveCmd)

	// ── version subcommand ────────────────────────────────────────────────────
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print Skywatch version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Skywatch %s\n", version)
		},
	}

	root.AddCommand(serverCmd, demoCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// corsMiddleware allows browser dashboards on other origins to call the API.
func corsMiddleware(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	if c.Request.Method == "OPTIONS" {
		c.AbortWithStatus(204)
		return
	}
	c.Next()
}
