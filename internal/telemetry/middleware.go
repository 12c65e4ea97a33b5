package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsMeterName is the meter name for status API request metrics
const HTTPMetricsMeterName = "github.com/labelhub/autotrain/http"

// MetricsMiddleware counts and times status API requests by chi route
// pattern. A nil provider yields a pass-through middleware.
func MetricsMiddleware(provider metric.MeterProvider) (func(http.Handler) http.Handler, error) {
	if provider == nil {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	meter := provider.Meter(HTTPMetricsMeterName)
	duration, err := meter.Float64Histogram(
		"autotrain_http_request_duration_seconds",
		metric.WithDescription("Duration of status API requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		return nil, err
	}
	requests, err := meter.Int64Counter(
		"autotrain_http_requests_total",
		metric.WithDescription("Total number of status API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			// the pattern is only known after routing
			route := "unmatched"
			if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			attrs := metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.String("status_code", strconv.Itoa(ww.Status())),
			)
			duration.Record(ctx, time.Since(start).Seconds(), attrs)
			requests.Add(ctx, 1, attrs)
		})
	}, nil
}
