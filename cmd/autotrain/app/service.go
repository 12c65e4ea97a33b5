package app

import (
	"context"
	"fmt"
	"os"

	"github.com/labelhub/autotrain/internal/config"
	"github.com/labelhub/autotrain/internal/cycle"
	"github.com/labelhub/autotrain/internal/dataset"
	"github.com/labelhub/autotrain/internal/httpclient"
	"github.com/labelhub/autotrain/internal/imagesync"
	"github.com/labelhub/autotrain/internal/orchestrator"
	"github.com/labelhub/autotrain/internal/publisher"
	"github.com/labelhub/autotrain/internal/registry"
	"github.com/labelhub/autotrain/internal/status"
	"github.com/labelhub/autotrain/internal/telemetry"
	"github.com/labelhub/autotrain/internal/trainer"
	"github.com/labelhub/autotrain/internal/upstream"
)

// tracerName names the tracer used for cycle, project and attempt spans
const tracerName = "github.com/labelhub/autotrain"

// service holds the wired components shared by serve and once
type service struct {
	cfg       *config.Config
	telemetry *telemetry.Telemetry
	statuses  status.Persistence
	manager   cycle.Manager
}

// newService wires the cycle from cfg. The caller must call shutdown.
func newService(ctx context.Context, cfg *config.Config) (*service, error) {
	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	tracer := tel.Tracer(tracerName)

	cycleMetrics, err := telemetry.NewCycleMetrics(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create cycle metrics: %w", err)
	}
	trainingMetrics, err := telemetry.NewTrainingMetrics(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create training metrics: %w", err)
	}

	if _, err := os.Stat(cfg.Workspace.Template); err != nil {
		return nil, fmt.Errorf("workspace template: %w", err)
	}

	client := upstream.NewClient(cfg.Server.Endpoint, httpclient.NewDefaultClient(cfg.Server.Timeout,
		httpclient.WithUploadTimeout(cfg.Server.UploadTimeout)))

	caffe := trainer.NewCaffe(trainer.CaffeConfig{
		Tool:           cfg.Tools.Caffe,
		EvalIterations: cfg.Tools.EvalIterations,
		GPUDevice:      cfg.Tools.GPUDevice,
		TrainTimeout:   cfg.Tools.TrainTimeout,
		EvalTimeout:    cfg.Tools.EvalTimeout,
	})
	sessions := orchestrator.New(
		orchestrator.Config{
			MaxLoss:  cfg.Training.MaxLoss,
			Defaults: cfg.Training.Solver,
			Caps:     cfg.Training.Caps(),
		},
		dataset.NewPreparer(cfg.Tools.Convert, cfg.Tools.ConvertTimeout),
		caffe,
		orchestrator.WithTracer(tracer),
		orchestrator.WithMetrics(trainingMetrics),
	)

	statuses := status.NewFileStatusPersistence(cfg.GetStateDir())
	manager := cycle.NewManager(cfg.Workspace.Root,
		cycle.Dependencies{
			Projects:  registry.New(client, cfg.Workspace.Root, cfg.Workspace.Template),
			Images:    imagesync.New(client, imagesync.WithRetryDelay(cfg.Server.RetryDelay)),
			Trainer:   sessions,
			Publisher: publisher.New(client, publisher.WithRetryDelay(cfg.Server.RetryDelay)),
			Statuses:  statuses,
		},
		cycle.WithTracer(tracer),
		cycle.WithMetrics(cycleMetrics),
	)

	return &service{
		cfg:       cfg,
		telemetry: tel,
		statuses:  statuses,
		manager:   manager,
	}, nil
}

func (s *service) shutdown(ctx context.Context) error {
	return s.telemetry.Shutdown(ctx)
}
