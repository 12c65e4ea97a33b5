package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelhub/autotrain/internal/api"
	"github.com/labelhub/autotrain/internal/cycle"
	"github.com/labelhub/autotrain/internal/status"
)

type staticReports struct {
	report *cycle.Report
}

func (s staticReports) LastReport() *cycle.Report {
	return s.report
}

// brokenStatuses fails every load
type brokenStatuses struct {
	status.Persistence
}

func (brokenStatuses) LoadAllStatus(context.Context) (map[string]*status.TrainingStatus, error) {
	return nil, errors.New("disk gone")
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	rr := get(t, api.NewServer(nil, nil), "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		check          func(context.Context) error
		expectedStatus int
		expectedKey    string
	}{
		{
			name:           "no check configured",
			expectedStatus: http.StatusOK,
			expectedKey:    "status",
		},
		{
			name:           "check passes",
			check:          func(context.Context) error { return nil },
			expectedStatus: http.StatusOK,
			expectedKey:    "status",
		},
		{
			name:           "check fails",
			check:          func(context.Context) error { return errors.New("workspace root missing") },
			expectedStatus: http.StatusServiceUnavailable,
			expectedKey:    "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var opts []api.ServerOption
			if tt.check != nil {
				opts = append(opts, api.WithReadinessCheck(tt.check))
			}
			rr := get(t, api.NewServer(nil, nil, opts...), "/readiness")
			assert.Equal(t, tt.expectedStatus, rr.Code)

			var response map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Contains(t, response, tt.expectedKey)
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	rr := get(t, api.NewServer(nil, nil), "/version")
	assert.Equal(t, http.StatusOK, rr.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	for _, key := range []string{"version", "commit", "build_date", "go_version", "platform"} {
		assert.Contains(t, response, key)
	}
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	statuses := status.NewFileStatusPersistence(t.TempDir())
	require.NoError(t, statuses.SaveStatus(context.Background(), "cats", &status.TrainingStatus{
		Phase: status.PhasePublished, Attempts: 2,
	}))
	report := &cycle.Report{ID: "c1", Results: []cycle.ProjectResult{
		{Project: "cats", ProjectID: "7", Outcome: cycle.OutcomePublished, Attempts: 2},
	}}

	rr := get(t, api.NewServer(staticReports{report}, statuses), "/status")
	require.Equal(t, http.StatusOK, rr.Code)

	var response api.StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	require.NotNil(t, response.LastCycle)
	assert.Equal(t, "c1", response.LastCycle.ID)
	assert.Equal(t, cycle.OutcomePublished, response.LastCycle.Results[0].Outcome)
	require.Contains(t, response.Projects, "cats")
	assert.Equal(t, 2, response.Projects["cats"].Attempts)
}

func TestStatusEndpointBeforeFirstCycle(t *testing.T) {
	t.Parallel()

	rr := get(t, api.NewServer(staticReports{}, status.NewFileStatusPersistence(t.TempDir())), "/status")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"lastCycle":null,"projects":{}}`, rr.Body.String())
}

func TestStatusEndpointLoadFailure(t *testing.T) {
	t.Parallel()

	rr := get(t, api.NewServer(staticReports{}, brokenStatuses{}), "/status")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusNotFound, get(t, api.NewServer(nil, nil), "/metrics").Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("autotrain_up 1\n"))
	})
	rr := get(t, api.NewServer(nil, nil, api.WithMetricsHandler(metrics)), "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "autotrain_up 1\n", rr.Body.String())
}

func TestMiddlewares(t *testing.T) {
	t.Parallel()

	var seen []string
	tag := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	server := api.NewServer(nil, nil, api.WithMiddlewares(middleware.RequestID, api.LoggingMiddleware, tag))
	assert.Equal(t, http.StatusOK, get(t, server, "/health").Code)
	assert.Equal(t, []string{"/health"}, seen)
}
