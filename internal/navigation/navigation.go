// Package navigation reports a pageview for every path the visitor reaches
// in a client-routed site.
package navigation

import (
	"github.com/rs/zerolog"

	"github.com/vincentbai/pagetrace/internal/analytics"
	"github.com/vincentbai/pagetrace/internal/browser"
)

// Watcher detects path changes through body mutations, popstate and
// programmatic history navigations. All three feed the same comparison
// against the last recorded path, so one transition yields one pageview no
// matter how many detectors see it.
type Watcher struct {
	win    *browser.Window
	sink   *analytics.Sink
	logger zerolog.Logger

	currentPath string
	started     bool
}

// New creates a watcher for win.
func New(win *browser.Window, sink *analytics.Sink, logger zerolog.Logger) *Watcher {
	return &Watcher{win: win, sink: sink, logger: logger}
}

// Start records the current path, reports it, and installs the detectors.
// It must run on the page loop.
func (w *Watcher) Start() {
	if !w.win.HasDOM() || w.win.Location == nil || w.started {
		return
	}
	w.started = true

	w.currentPath = w.win.Location.Pathname()
	w.sink.Pageview(w.currentPath)

	if obs := w.win.Observers; obs != nil {
		obs.ObserveMutations(w.check)
	}
	if events := w.win.Events; events != nil {
		events.AddEventListener(browser.EventPopState, func(browser.Event) { w.check() })
	}
	if history := w.win.History; history != nil {
		history.OnNavigate(func(browser.Navigation) {
			if w.win.Timers == nil {
				w.check()
				return
			}
			w.win.Timers.Defer(w.check)
		})
	}
}

// CurrentPath returns the last recorded path.
func (w *Watcher) CurrentPath() string {
	return w.currentPath
}

func (w *Watcher) check() {
	path := w.win.Location.Pathname()
	if path == w.currentPath {
		return
	}
	w.logger.Debug().Str("from", w.currentPath).Str("to", path).Msg("Path changed")
	w.currentPath = path
	w.sink.Pageview(path)
}
