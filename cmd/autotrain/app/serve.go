package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/labelhub/autotrain/internal/api"
	"github.com/labelhub/autotrain/internal/cycle/coordinator"
	"github.com/labelhub/autotrain/internal/telemetry"
)

const (
	defaultGracefulTimeout = 30 * time.Second // The running cycle is cancelled within this time
	serverRequestTimeout   = 10 * time.Second // Status endpoints respond quickly
	serverReadTimeout      = 10 * time.Second // Enough for headers and small requests
	serverWriteTimeout     = 15 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second // Keep connections alive for reuse
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run training cycles on schedule and serve the status API",
		Long: `Run a cycle at startup (unless schedule.runOnStart is false) and then every day
at schedule.dailyAt, while serving /health, /readiness, /status and, with the
Prometheus exporter enabled, /metrics.`,
		RunE: runServe,
	}

	cmd.Flags().String("address", ":8080", "Address the status API listens on")
	if err := viper.BindPFlag("address", cmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
	}
	return cmd
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	address := viper.GetString("address")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	schedule, err := coordinator.ScheduleFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		if err := svc.shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	cycleCoordinator := coordinator.New(svc.manager, schedule)
	go func() {
		if err := cycleCoordinator.Start(ctx); err != nil {
			slog.Error("Cycle coordinator failed", "error", err)
		}
	}()

	server, err := newStatusServer(address, cfg.Workspace.Root, svc, cycleCoordinator)
	if err != nil {
		_ = cycleCoordinator.Stop()
		return err
	}

	signalCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Status API listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-signalCtx.Done():
		slog.Info("Shutting down, waiting for the running cycle to stop")
	case err := <-serverErr:
		_ = cycleCoordinator.Stop()
		return fmt.Errorf("status API failed: %w", err)
	}

	// Stop cancels the running cycle; the workspace lock is released when it returns
	if err := cycleCoordinator.Stop(); err != nil {
		slog.Error("Failed to stop cycle coordinator", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down status API: %w", err)
	}

	slog.Info("Shutdown complete")
	return nil
}

// newStatusServer builds the status API over the coordinator's last report
// and the persisted project statuses.
func newStatusServer(address, root string, svc *service, reports api.ReportSource) (*http.Server, error) {
	metricsMiddleware, err := telemetry.MetricsMiddleware(svc.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics middleware: %w", err)
	}

	router := api.NewServer(reports, svc.statuses,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
			metricsMiddleware,
		),
		api.WithMetricsHandler(svc.telemetry.MetricsHandler()),
		api.WithReadinessCheck(func(context.Context) error {
			if _, err := os.Stat(root); err != nil {
				return fmt.Errorf("workspace root unavailable: %w", err)
			}
			return nil
		}),
	)

	return &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}, nil
}
