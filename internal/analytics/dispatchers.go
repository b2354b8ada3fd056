package analytics

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vincentbai/pagetrace/internal/models"
)

// Multi fans a call out to every non-nil dispatcher in order.
func Multi(dispatchers ...Dispatcher) Dispatcher {
	var ds []Dispatcher
	for _, d := range dispatchers {
		if d != nil {
			ds = append(ds, d)
		}
	}
	switch len(ds) {
	case 0:
		return nil
	case 1:
		return ds[0]
	}
	return DispatcherFunc(func(call models.Call) {
		for _, d := range ds {
			d.Dispatch(call)
		}
	})
}

// LogDispatcher writes every call to the log at info level.
type LogDispatcher struct {
	logger zerolog.Logger
}

// NewLogDispatcher creates a LogDispatcher.
func NewLogDispatcher(logger zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(call models.Call) {
	d.logger.Info().
		Str("client_id", call.ClientID).
		Str("command", call.Command).
		Str("target", call.Target).
		Interface("params", call.Params).
		Msg("gtag")
}

// Recorder keeps calls in memory. Tests use it as the analytics global.
type Recorder struct {
	mu    sync.Mutex
	calls []models.Call
}

func (r *Recorder) Dispatch(call models.Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []models.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Call(nil), r.calls...)
}

// Events returns the event calls in order, as Event values.
func (r *Recorder) Events() []Event {
	var out []Event
	for _, c := range r.Calls() {
		if c.Command != models.CommandEvent {
			continue
		}
		ev := Event{Name: c.Target}
		ev.Category, _ = c.Params["event_category"].(string)
		ev.Label, _ = c.Params["event_label"].(string)
		if v, ok := c.Params["value"].(float64); ok {
			ev.Value = Value(v)
		}
		out = append(out, ev)
	}
	return out
}

// Named returns the events called name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Pageviews returns the page paths of config calls in order.
func (r *Recorder) Pageviews() []string {
	var out []string
	for _, c := range r.Calls() {
		if c.Command == models.CommandConfig {
			if p, ok := c.Params["page_path"].(string); ok {
				out = append(out, p)
			}
		}
	}
	return out
}
