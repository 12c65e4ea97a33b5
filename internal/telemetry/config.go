// Package telemetry provides OpenTelemetry instrumentation for the training service.
// It supports configurable tracing over OTLP and metrics over OTLP or a Prometheus scrape endpoint.
package telemetry

import (
	"errors"
	"fmt"

	"github.com/labelhub/autotrain/internal/versions"
)

const (
	// DefaultServiceName is reported as service.name unless overridden
	DefaultServiceName = "autotrain"

	// DefaultEndpoint is the OTLP HTTP collector a local agent listens on
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the default trace sampling rate.
	// Cycles are rare and long, so every one is sampled.
	DefaultSampling = 1.0
)

const (
	// ExporterOTLP pushes metrics to the OTLP endpoint
	ExporterOTLP = "otlp"

	// ExporterPrometheus exposes metrics for scraping on the status server
	ExporterPrometheus = "prometheus"
)

// Config is the telemetry section of the deployment configuration
type Config struct {
	// Enabled gates tracing and metrics together
	Enabled bool `yaml:"enabled"`

	// ServiceName defaults to "autotrain"
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion defaults to the build version
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP collector endpoint ("host:port")
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure sends to the collector over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls cycle, project and attempt spans
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of cycle traces kept, in [0, 1]. Zero means DefaultSampling.
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig selects how cycle and training metrics leave the process
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is "otlp" (default) or "prometheus"
	Exporter string `yaml:"exporter,omitempty"`
}

// exporter returns the resolved export settings shared by the tracer and meter providers
func (c *Config) exporter() exportSettings {
	s := exportSettings{
		service:  c.ServiceName,
		version:  c.ServiceVersion,
		endpoint: c.Endpoint,
		insecure: c.Insecure,
	}
	if s.service == "" {
		s.service = DefaultServiceName
	}
	if s.version == "" {
		s.version = versions.Version
	}
	if s.endpoint == "" {
		s.endpoint = DefaultEndpoint
	}
	return s
}

// GetSampling returns the sampling ratio. 0 means unset and yields DefaultSampling.
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0.0 {
		return DefaultSampling
	}
	return c.Sampling
}

// GetExporter returns the metrics exporter, using OTLP if not specified
func (c *MetricsConfig) GetExporter() string {
	if c.Exporter == "" {
		return ExporterOTLP
	}
	return c.Exporter
}

// Validate checks the enabled sections. A disabled config is always valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error

	if c.Tracing != nil {
		if err := c.Tracing.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Validate checks the sampling ratio
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	if c.Sampling < 0 || c.Sampling > 1.0 {
		return fmt.Errorf("sampling must be between 0.0 and 1.0, got %f", c.Sampling)
	}

	return nil
}

// Validate rejects unknown exporters
func (c *MetricsConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	switch c.GetExporter() {
	case ExporterOTLP, ExporterPrometheus:
		return nil
	}
	return fmt.Errorf("exporter must be %q or %q, got %q", ExporterOTLP, ExporterPrometheus, c.Exporter)
}
