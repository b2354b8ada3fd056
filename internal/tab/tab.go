// Package tab is an in-memory browser tab. It implements every capability of
// browser.Window and is driven by the signals a page shim posts to the agent.
//
// A Tab is single-threaded in the way a page is: all listeners, observer
// callbacks and timers of one tab run one at a time under the tab's loop
// lock, entered through Do.
package tab

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vincentbai/pagetrace/internal/browser"
)

// Options describe the page at load time.
type Options struct {
	Path     string
	Host     string
	Referrer string

	Screen           *browser.Screen
	Navigator        browser.Navigator
	Media            map[string]bool
	DevicePixelRatio float64
	TouchEvents      bool

	// Geolocation enables the geolocation capability. GeolocationDenied
	// makes every request fail with a permission error.
	Geolocation       bool
	GeolocationDenied bool

	Hidden       bool
	ScrollY      float64
	ScrollHeight float64
	InnerHeight  float64

	Document *browser.Document
}

// Tab is a simulated page.
type Tab struct {
	mu     sync.Mutex
	id     string
	sched  Scheduler
	logger zerolog.Logger

	path     string
	host     string
	hidden   bool
	media    map[string]bool
	scrollY  float64
	scrollH  float64
	innerH   float64
	document *browser.Document

	listeners         map[browser.EventType][]browser.Listener
	navigationHandler []func(browser.Navigation)
	mutationHandlers  []func()
	observers         []*intersectionObserver
	intersectDirty    bool

	deferred []func()
	timers   map[*timer]struct{}
	geo      *geolocation
	closed   bool

	window *browser.Window
}

// New creates a tab. The scheduler supplies both timers and the clock.
func New(id string, opts Options, sched Scheduler, logger zerolog.Logger) *Tab {
	doc := opts.Document
	if doc == nil {
		doc = browser.NewDocument()
	}
	media := make(map[string]bool, len(opts.Media))
	for q, v := range opts.Media {
		media[q] = v
	}

	t := &Tab{
		id:        id,
		sched:     sched,
		logger:    logger.With().Str("tab_id", id).Logger(),
		path:      opts.Path,
		host:      opts.Host,
		hidden:    opts.Hidden,
		media:     media,
		scrollY:   opts.ScrollY,
		scrollH:   opts.ScrollHeight,
		innerH:    opts.InnerHeight,
		document:  doc,
		listeners: make(map[browser.EventType][]browser.Listener),
		timers:    make(map[*timer]struct{}),
	}
	if t.path == "" {
		t.path = "/"
	}

	nav := opts.Navigator
	if opts.Geolocation {
		t.geo = &geolocation{tab: t, denied: opts.GeolocationDenied}
		nav.Geolocation = t.geo
	}

	t.window = &browser.Window{
		Document:         doc,
		Location:         t,
		Viewport:         t,
		Screen:           opts.Screen,
		Navigator:        &nav,
		Media:            t,
		Events:           t,
		History:          t,
		Observers:        t,
		Timers:           t,
		Clock:            t,
		DevicePixelRatio: opts.DevicePixelRatio,
		TouchEvents:      opts.TouchEvents,
		Referrer:         opts.Referrer,
	}
	return t
}

// ID returns the tab id.
func (t *Tab) ID() string { return t.id }

// Window returns the capabilities of this tab.
func (t *Tab) Window() *browser.Window { return t.window }

// Do runs fn on the tab's loop, then runs deferred work and pending
// intersection notifications. It is a no-op once the tab is closed.
func (t *Tab) Do(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	fn()
	t.settle()
}

// settle drains deferred tasks and intersection notifications until both
// are quiet.
func (t *Tab) settle() {
	for !t.closed {
		if len(t.deferred) > 0 {
			next := t.deferred[0]
			t.deferred = t.deferred[1:]
			next()
			continue
		}
		if t.intersectDirty {
			t.intersectDirty = false
			t.notifyIntersections()
			continue
		}
		return
	}
}

// Close stops every timer and drops listeners and observers.
func (t *Tab) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for tm := range t.timers {
		tm.stop()
	}
	t.timers = nil
	t.listeners = nil
	t.navigationHandler = nil
	t.mutationHandlers = nil
	t.observers = nil
	t.deferred = nil
	t.logger.Debug().Msg("Tab closed")
}

// Closed reports whether Close has been called.
func (t *Tab) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Location

func (t *Tab) Pathname() string { return t.path }
func (t *Tab) Hostname() string { return t.host }

// Viewport

func (t *Tab) ScrollY() float64      { return t.scrollY }
func (t *Tab) ScrollHeight() float64 { return t.scrollH }
func (t *Tab) InnerHeight() float64  { return t.innerH }

// Clock

func (t *Tab) Now() time.Time { return t.sched.Now() }

// Matches implements browser.MediaMatcher.
func (t *Tab) Matches(query string) bool { return t.media[query] }

// AddEventListener implements browser.Events.
func (t *Tab) AddEventListener(et browser.EventType, l browser.Listener) {
	if t.closed {
		return
	}
	t.listeners[et] = append(t.listeners[et], l)
}

func (t *Tab) dispatch(ev browser.Event) {
	for _, l := range append([]browser.Listener(nil), t.listeners[ev.Type]...) {
		l(ev)
	}
}

// OnNavigate implements browser.NavigationSource.
func (t *Tab) OnNavigate(fn func(browser.Navigation)) {
	if t.closed {
		return
	}
	t.navigationHandler = append(t.navigationHandler, fn)
}

// ObserveMutations implements browser.Observers.
func (t *Tab) ObserveMutations(fn func()) {
	if t.closed {
		return
	}
	t.mutationHandlers = append(t.mutationHandlers, fn)
}

// Timers

type timer struct {
	tab     *Tab
	cancel  func()
	stopped bool
}

func (tm *timer) stop() {
	if tm.stopped {
		return
	}
	tm.stopped = true
	if tm.cancel != nil {
		tm.cancel()
	}
}

// Stop must be called on the tab loop.
func (tm *timer) Stop() {
	tm.stop()
	if tm.tab.timers != nil {
		delete(tm.tab.timers, tm)
	}
}

// SetTimeout implements browser.Timers.
func (t *Tab) SetTimeout(d time.Duration, fn func()) browser.Timer {
	tm := &timer{tab: t}
	if t.closed {
		tm.stopped = true
		return tm
	}
	t.timers[tm] = struct{}{}
	tm.cancel = t.sched.AfterFunc(d, func() {
		t.Do(func() {
			if tm.stopped {
				return
			}
			tm.stopped = true
			delete(t.timers, tm)
			fn()
		})
	})
	return tm
}

// SetInterval implements browser.Timers.
func (t *Tab) SetInterval(d time.Duration, fn func()) browser.Timer {
	tm := &timer{tab: t}
	if t.closed {
		tm.stopped = true
		return tm
	}
	t.timers[tm] = struct{}{}
	tm.cancel = t.sched.Every(d, func() {
		t.Do(func() {
			if !tm.stopped {
				fn()
			}
		})
	})
	return tm
}

// Defer implements browser.Timers.
func (t *Tab) Defer(fn func()) {
	if t.closed {
		return
	}
	t.deferred = append(t.deferred, fn)
}
