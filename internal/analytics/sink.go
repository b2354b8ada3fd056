// Package analytics forwards tracking events to an analytics backend.
//
// A Sink is the Go counterpart of calling gtag from page scripts: it shapes
// events into {event_category, event_label, value} or {page_path} payloads
// and hands them to a Dispatcher. A Sink without a dispatcher does nothing.
package analytics

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vincentbai/pagetrace/internal/models"
)

// DefaultMeasurementID is the GA4 property the site reports to.
const DefaultMeasurementID = "G-0Z8WEDB2LG"

// Dispatcher delivers one call. Implementations must not block the caller
// on network I/O and must be safe for concurrent use.
type Dispatcher interface {
	Dispatch(call models.Call)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(models.Call)

func (f DispatcherFunc) Dispatch(call models.Call) { f(call) }

// Event is one analytics event record.
type Event struct {
	Name     string
	Category string
	Label    string
	Value    *float64
}

// Value returns a pointer to v for Event.Value.
func Value(v float64) *float64 { return &v }

// Sink shapes and dispatches analytics calls for one client.
type Sink struct {
	dispatcher    Dispatcher
	measurementID string
	clientID      string
	now           func() time.Time
	logger        zerolog.Logger
	calls         metric.Int64Counter
}

// Option configures a Sink.
type Option func(*Sink)

// WithMeasurementID sets the property pageviews are configured against.
func WithMeasurementID(id string) Option {
	return func(s *Sink) { s.measurementID = id }
}

// WithClientID sets the client the calls are attributed to.
func WithClientID(id string) Option {
	return func(s *Sink) { s.clientID = id }
}

// WithClock sets the time source for call timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sink) { s.logger = logger }
}

// NewSink creates a sink. d may be nil, which makes every call a no-op.
func NewSink(d Dispatcher, opts ...Option) *Sink {
	s := &Sink{
		dispatcher:    d,
		measurementID: DefaultMeasurementID,
		now:           time.Now,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	counter, err := otel.Meter("github.com/vincentbai/pagetrace/internal/analytics").Int64Counter(
		"pagetrace.analytics.calls",
		metric.WithDescription("Analytics calls handed to the dispatcher"),
	)
	if err == nil {
		s.calls = counter
	}
	return s
}

// Enabled reports whether calls go anywhere.
func (s *Sink) Enabled() bool {
	return s != nil && s.dispatcher != nil
}

// Emit sends a named event. Events missing a name, category or label are
// dropped.
func (s *Sink) Emit(name, category, label string, value *float64) {
	s.Track(Event{Name: name, Category: category, Label: label, Value: value})
}

// Track sends ev.
func (s *Sink) Track(ev Event) {
	if !s.Enabled() {
		return
	}
	if ev.Name == "" || ev.Category == "" || ev.Label == "" {
		s.logger.Debug().
			Str("event", ev.Name).
			Str("category", ev.Category).
			Msg("Dropping incomplete analytics event")
		return
	}

	params := map[string]any{
		"event_category": ev.Category,
		"event_label":    ev.Label,
	}
	if ev.Value != nil {
		params["value"] = *ev.Value
	}
	s.dispatch(models.CommandEvent, ev.Name, params)
}

// Pageview reports a view of path.
func (s *Sink) Pageview(path string) {
	if !s.Enabled() {
		return
	}
	s.dispatch(models.CommandConfig, s.measurementID, map[string]any{"page_path": path})
}

func (s *Sink) dispatch(command, target string, params map[string]any) {
	now := s.now().UTC()
	call := models.Call{
		TSUTC:    now.UnixMilli(),
		TSISO:    now.Format(time.RFC3339),
		ClientID: s.clientID,
		Command:  command,
		Target:   target,
		Params:   params,
	}
	if s.calls != nil {
		s.calls.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("command", command),
			attribute.String("target", target),
		))
	}
	s.logger.Trace().
		Str("command", command).
		Str("target", target).
		Interface("params", params).
		Msg("Analytics call")
	s.dispatcher.Dispatch(call)
}
