// Package animation drives the CSS-class based entry animations of the site.
package animation

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vincentbai/pagetrace/internal/browser"
)

// Options configure the animations.
type Options struct {
	MarkerClass     string
	RevealClass     string
	Threshold       float64
	RootMargin      browser.Margin
	TransitionClass string
	ParallaxClass   string
	ParallaxRate    float64
	FrameInterval   time.Duration
}

// DefaultOptions returns the site's animation settings.
func DefaultOptions() Options {
	return Options{
		MarkerClass:     "animate-on-scroll",
		RevealClass:     "in-view",
		Threshold:       0.1,
		RootMargin:      browser.MustParseRootMargin("0px 0px -100px 0px"),
		TransitionClass: "page-transition",
		ParallaxClass:   "parallax",
		ParallaxRate:    -0.5,
		FrameInterval:   16 * time.Millisecond,
	}
}

// Trigger reveals marked elements once as they scroll into view.
type Trigger struct {
	win      *browser.Window
	opts     Options
	logger   zerolog.Logger
	observer browser.IntersectionObserver
	revealed int
}

// New creates a trigger for win.
func New(win *browser.Window, opts Options, logger zerolog.Logger) *Trigger {
	return &Trigger{win: win, opts: opts, logger: logger}
}

// Activate observes every element carrying the marker class. Each one gets
// the reveal class the first time it intersects and is then unobserved.
func (t *Trigger) Activate() {
	if !t.win.HasDOM() || t.win.Observers == nil {
		return
	}
	elements := t.win.Document.QueryAll(browser.ByClass(t.opts.MarkerClass))
	if len(elements) == 0 {
		return
	}

	t.observer = t.win.Observers.NewIntersectionObserver(t.reveal, browser.IntersectionOptions{
		Threshold:  []float64{t.opts.Threshold},
		RootMargin: t.opts.RootMargin,
	})
	for _, el := range elements {
		t.observer.Observe(el)
	}
	t.logger.Debug().Int("elements", len(elements)).Msg("Scroll animations initialized")
}

func (t *Trigger) reveal(entries []browser.IntersectionEntry, observer browser.IntersectionObserver) {
	for _, entry := range entries {
		if !entry.IsIntersecting {
			continue
		}
		if entry.Target.AddClass(t.opts.RevealClass) {
			t.revealed++
		}
		observer.Unobserve(entry.Target)
	}
}

// Revealed returns how many elements have been revealed.
func (t *Trigger) Revealed() int {
	return t.revealed
}

// Stagger spreads the animation start of the matched elements by delay.
func (t *Trigger) Stagger(class string, delay time.Duration) {
	if !t.win.HasDOM() {
		return
	}
	for i, el := range t.win.Document.QueryAll(browser.ByClass(class)) {
		el.SetStyle("animation-delay", fmt.Sprintf("%dms", int64(i)*delay.Milliseconds()))
	}
}

// PageTransitions marks the body while an internal link navigates away.
func (t *Trigger) PageTransitions() {
	if !t.win.HasDOM() || t.win.Events == nil {
		return
	}
	internal := browser.LinkTo("/")
	t.win.Events.AddEventListener(browser.EventClick, func(ev browser.Event) {
		var link *browser.Element
		if ev.Target != nil {
			link = ev.Target.Closest("a")
		}
		if link == nil || !internal(link) {
			return
		}
		if link.LinkHost != "" && t.win.Location != nil && link.LinkHost != t.win.Location.Hostname() {
			return
		}
		t.win.Document.Body.AddClass(t.opts.TransitionClass)
	})
}

// Parallax shifts parallax elements against the scroll, at most once per
// frame interval.
func (t *Trigger) Parallax() {
	if !t.win.HasDOM() || t.win.Events == nil || t.win.Timers == nil || t.win.Viewport == nil {
		return
	}
	elements := t.win.Document.QueryAll(browser.ByClass(t.opts.ParallaxClass))
	if len(elements) == 0 {
		return
	}

	update := func() {
		rate := t.win.Viewport.ScrollY() * t.opts.ParallaxRate
		transform := "translateY(" + strconv.FormatFloat(rate, 'f', -1, 64) + "px)"
		for _, el := range elements {
			el.SetStyle("transform", transform)
		}
	}

	ticking := false
	t.win.Events.AddEventListener(browser.EventScroll, func(browser.Event) {
		if ticking {
			return
		}
		ticking = true
		t.win.Timers.Defer(update)
		t.win.Timers.SetTimeout(t.opts.FrameInterval, func() { ticking = false })
	})
}

// TypeWriter clears el and types text into it one character per speed
// interval. The first character appears immediately.
func (t *Trigger) TypeWriter(el *browser.Element, text string, speed time.Duration) {
	if el == nil || t.win.Timers == nil {
		return
	}
	if speed <= 0 {
		speed = 50 * time.Millisecond
	}

	chars := []rune(text)
	el.Text = ""
	var typeNext func()
	typeNext = func() {
		if len(chars) == 0 {
			return
		}
		el.Text += string(chars[0])
		chars = chars[1:]
		t.win.Timers.SetTimeout(speed, typeNext)
	}
	typeNext()
}

// ActivateAll starts reveal and page transitions, plus parallax unless the
// user asked for reduced motion.
func (t *Trigger) ActivateAll() {
	if !t.win.HasDOM() {
		return
	}
	t.Activate()
	t.PageTransitions()
	if t.win.Media == nil || !t.win.Media.Matches(browser.QueryReducedMotion) {
		t.Parallax()
	}
}
