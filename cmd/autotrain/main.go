// Package main is the entry point for the autotrain service.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/labelhub/autotrain/cmd/autotrain/app"
	"github.com/labelhub/autotrain/internal/config"
)

// logLevel reads AUTOTRAIN_LOG_LEVEL, then LOG_LEVEL. Values are slog level
// names ("debug", "warn", "error+2"); "warning" is accepted for "warn".
// Anything else logs at info.
func logLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	raw := v.GetString("LOG_LEVEL")
	if raw == "" {
		raw = os.Getenv("LOG_LEVEL")
	}
	if raw == "" {
		return slog.LevelInfo
	}
	if strings.EqualFold(raw, "warning") {
		return slog.LevelWarn
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		slog.Warn("Ignoring invalid log level", "value", raw)
		return slog.LevelInfo
	}
	return level
}

func main() {
	// stdout carries the output of once, version and solver render
	handler := newTraceHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(slog.New(handler))
	otel.SetLogger(logr.FromSlogHandler(handler))

	os.Exit(app.Execute())
}
