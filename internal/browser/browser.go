// Package browser describes the host environment the trackers run against.
//
// Every capability is optional. A nil *Window, or a Window without a
// Document, stands for a rendering context with no DOM; trackers check for
// that and return before touching anything else.
package browser

import "time"

// Window bundles the capabilities a page exposes to tracking code.
type Window struct {
	Document  *Document
	Location  Location
	Viewport  Viewport
	Screen    *Screen
	Navigator *Navigator
	Media     MediaMatcher
	Events    Events
	History   NavigationSource
	Observers Observers
	Timers    Timers
	Clock     Clock

	DevicePixelRatio float64
	TouchEvents      bool // 'ontouchstart' in window
	Referrer         string
}

// HasDOM reports whether w is backed by a document.
func (w *Window) HasDOM() bool {
	return w != nil && w.Document != nil
}

// Now returns the window clock's time, or the wall clock without one.
func (w *Window) Now() time.Time {
	if w != nil && w.Clock != nil {
		return w.Clock.Now()
	}
	return time.Now()
}

// Location is the current address of the page.
type Location interface {
	Pathname() string
	Hostname() string
}

// Viewport reports scroll geometry in CSS pixels.
type Viewport interface {
	ScrollY() float64
	ScrollHeight() float64
	InnerHeight() float64
}

// Screen describes the physical display.
type Screen struct {
	Width  int
	Height int
}

// Navigator carries user agent facts. Zero values mean "not reported".
type Navigator struct {
	HardwareConcurrency int
	DeviceMemory        float64
	MaxTouchPoints      int
	Language            string
	Languages           []string
	Geolocation         Geolocation
}

// Media queries the trackers ask about.
const (
	QueryReducedMotion = "(prefers-reduced-motion: reduce)"
	QueryDarkScheme    = "(prefers-color-scheme: dark)"
)

// MediaMatcher evaluates CSS media queries.
type MediaMatcher interface {
	Matches(query string) bool
}

// EventType names a window or document event.
type EventType string

const (
	EventScroll           EventType = "scroll"
	EventVisibilityChange EventType = "visibilitychange"
	EventFocus            EventType = "focus"
	EventBlur             EventType = "blur"
	EventClick            EventType = "click"
	EventKeyDown          EventType = "keydown"
	EventBeforeUnload     EventType = "beforeunload"
	EventPopState         EventType = "popstate"
)

// Event is the payload delivered to listeners. Only the fields relevant to
// Type are set.
type Event struct {
	Type   EventType
	Hidden bool     // visibilitychange
	Path   string   // popstate
	Target *Element // click
}

// Listener handles one event.
type Listener func(Event)

// Events registers listeners. Listeners live as long as the page.
type Events interface {
	AddEventListener(t EventType, l Listener)
}

// NavigationKind distinguishes programmatic history entries.
type NavigationKind int

const (
	NavigationPush NavigationKind = iota
	NavigationReplace
)

func (k NavigationKind) String() string {
	if k == NavigationReplace {
		return "replace"
	}
	return "push"
}

// Navigation is a programmatic history change that already took effect.
type Navigation struct {
	Kind NavigationKind
	Path string
}

// NavigationSource announces push/replace navigations after the location
// has changed.
type NavigationSource interface {
	OnNavigate(fn func(Navigation))
}

// IntersectionOptions configure an intersection observer.
type IntersectionOptions struct {
	Threshold  []float64
	RootMargin Margin
}

// IntersectionEntry reports a target's visibility against the root.
type IntersectionEntry struct {
	Target            *Element
	IsIntersecting    bool
	IntersectionRatio float64
	Time              time.Time
}

// IntersectionObserver watches targets against the viewport.
type IntersectionObserver interface {
	Observe(el *Element)
	Unobserve(el *Element)
	Disconnect()
}

// IntersectionCallback receives a batch of entries.
type IntersectionCallback func(entries []IntersectionEntry, observer IntersectionObserver)

// Observers creates DOM observers.
type Observers interface {
	NewIntersectionObserver(cb IntersectionCallback, opts IntersectionOptions) IntersectionObserver
	// ObserveMutations calls fn after structural changes anywhere under body.
	ObserveMutations(fn func())
}

// Timer is a scheduled callback.
type Timer interface {
	Stop()
}

// Timers schedules callbacks on the page's event loop.
type Timers interface {
	SetTimeout(d time.Duration, fn func()) Timer
	SetInterval(d time.Duration, fn func()) Timer
	// Defer runs fn after the current handler, before the next event.
	Defer(fn func())
}

// Clock is the page's notion of now.
type Clock interface {
	Now() time.Time
}

// Coordinates is a geolocation fix.
type Coordinates struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Position is a timestamped fix.
type Position struct {
	Coords    Coordinates
	Timestamp time.Time
}

// PositionOptions bound a geolocation request.
type PositionOptions struct {
	Timeout    time.Duration
	MaximumAge time.Duration
}

// Geolocation resolves the device position asynchronously. Exactly one of
// success or failure is called.
type Geolocation interface {
	GetCurrentPosition(success func(Position), failure func(error), opts PositionOptions)
}
