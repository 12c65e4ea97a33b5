// Package api provides the status HTTP server of the training service.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/labelhub/autotrain/internal/cycle"
	"github.com/labelhub/autotrain/internal/status"
	"github.com/labelhub/autotrain/internal/versions"
)

// ReportSource provides the last finished cycle report
type ReportSource interface {
	LastReport() *cycle.Report
}

// ServerOption configures the status API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
	readiness      func(ctx context.Context) error
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsHandler serves h at /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// WithReadinessCheck sets the check behind /readiness
func WithReadinessCheck(check func(ctx context.Context) error) ServerOption {
	return func(cfg *serverConfig) {
		cfg.readiness = check
	}
}

// NewServer creates and configures the HTTP router
func NewServer(reports ReportSource, statuses status.Persistence, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	h := &handlers{reports: reports, statuses: statuses, readiness: cfg.readiness}
	r.Get("/health", h.health)
	r.Get("/readiness", h.ready)
	r.Get("/version", h.version)
	r.Get("/status", h.status)
	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}

	return r
}

type handlers struct {
	reports   ReportSource
	statuses  status.Persistence
	readiness func(ctx context.Context) error
}

func (*handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		if err := h.readiness(r.Context()); err != nil {
			writeErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	writeJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
}

func (*handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Projects: map[string]*status.TrainingStatus{}}
	if h.reports != nil {
		resp.LastCycle = h.reports.LastReport()
	}
	if h.statuses != nil {
		all, err := h.statuses.LoadAllStatus(r.Context())
		if err != nil {
			slog.Error("Failed to load training statuses", "error", err)
			writeErrorResponse(w, "failed to load training statuses", http.StatusInternalServerError)
			return
		}
		resp.Projects = all
	}
	writeJSONResponse(w, resp, http.StatusOK)
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// writeJSONResponse writes a JSON response with the given data
func writeJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, ErrorResponse{Error: message}, statusCode)
}
