package telemetry

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Metrics holds the agent's HTTP instruments.
type Metrics struct {
	RequestCount    otelmetric.Int64Counter
	RequestDuration otelmetric.Float64Histogram
}

// InitMetrics creates the instruments on the global meter provider.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/vincentbai/pagetrace/internal/telemetry")

	requestCount, err := meter.Int64Counter(
		"pagetrace.http.requests",
		otelmetric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"pagetrace.http.duration",
		otelmetric.WithDescription("HTTP request duration in milliseconds"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{RequestCount: requestCount, RequestDuration: requestDuration}, nil
}

// Middleware records one count and one duration per request.
func Middleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rw, r)

			attrs := otelmetric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.Int("http.status_code", rw.statusCode),
			)
			metrics.RequestCount.Add(r.Context(), 1, attrs)
			metrics.RequestDuration.Record(r.Context(), float64(time.Since(start).Milliseconds()), attrs)
		})
	}
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
