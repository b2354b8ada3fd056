package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

func setupTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := Setup(context.Background(), "pagetrace-test", "dev")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func find(points []Point, name string) []Point {
	var out []Point
	for _, p := range points {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

func TestSnapshotCounters(t *testing.T) {
	p := setupTestProvider(t)

	counter, err := otel.Meter("test").Int64Counter("pagetrace.test.calls")
	require.NoError(t, err)
	ctx := context.Background()
	counter.Add(ctx, 2, otelmetric.WithAttributes(attribute.String("command", "event")))
	counter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("command", "config")))
	counter.Add(ctx, 3, otelmetric.WithAttributes(attribute.String("command", "event")))

	points, err := p.Snapshot(ctx)
	require.NoError(t, err)

	calls := find(points, "pagetrace.test.calls")
	require.Len(t, calls, 2)
	assert.Equal(t, map[string]string{"command": "config"}, calls[0].Attributes)
	assert.Equal(t, 1.0, calls[0].Value)
	assert.Equal(t, map[string]string{"command": "event"}, calls[1].Attributes)
	assert.Equal(t, 5.0, calls[1].Value)
}

func TestMiddleware(t *testing.T) {
	p := setupTestProvider(t)
	metrics, err := InitMetrics()
	require.NoError(t, err)

	handler := Middleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))
	for _, path := range []string{"/healthz", "/healthz", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	points, err := p.Snapshot(context.Background())
	require.NoError(t, err)

	requests := find(points, "pagetrace.http.requests")
	require.Len(t, requests, 2)
	assert.Equal(t, "/healthz", requests[0].Attributes["http.route"])
	assert.Equal(t, "200", requests[0].Attributes["http.status_code"])
	assert.Equal(t, 2.0, requests[0].Value)
	assert.Equal(t, "404", requests[1].Attributes["http.status_code"])
	assert.Equal(t, 1.0, requests[1].Value)

	durations := find(points, "pagetrace.http.duration.count")
	require.Len(t, durations, 2)
}

func TestMiddlewareWithoutMetrics(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	Middleware(nil)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
