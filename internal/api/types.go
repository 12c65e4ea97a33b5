package api

import (
	"github.com/labelhub/autotrain/internal/cycle"
	"github.com/labelhub/autotrain/internal/status"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the body of GET /status
type StatusResponse struct {
	// LastCycle is nil until the first cycle has finished
	LastCycle *cycle.Report                    `json:"lastCycle"`
	Projects  map[string]*status.TrainingStatus `json:"projects"`
}
