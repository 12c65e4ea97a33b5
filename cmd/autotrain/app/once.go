package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single training cycle and print its report",
		Long: `Run one cycle over every project and print the cycle report as JSON.

The command exits non-zero when the cycle could not run or any project failed.`,
		RunE: runOnce,
	}
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.shutdown(context.Background()); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	report, err := svc.manager.RunCycle(ctx)
	if report != nil {
		if werr := writeJSON(cmd, report); werr != nil {
			return fmt.Errorf("failed to print report: %w", werr)
		}
	}
	if err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}
	if report.Failed() {
		return errCycleFailed
	}
	return nil
}
