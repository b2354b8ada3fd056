// Package audience samples who is visiting and how they engage: device and
// preference snapshots once per page, then continuous visibility, focus,
// scroll depth, section dwell and interaction observers.
package audience

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vincentbai/pagetrace/internal/analytics"
	"github.com/vincentbai/pagetrace/internal/browser"
)

// Options tune the sampler.
type Options struct {
	Milestones          []int
	SectionDwellMin     time.Duration
	SectionThreshold    float64
	SectionRootMargin   browser.Margin
	SectionClass        string
	InteractionInterval time.Duration
	GeolocationTimeout  time.Duration
	GeolocationMaxAge   time.Duration
}

// DefaultOptions returns the site's sampling settings.
func DefaultOptions() Options {
	return Options{
		Milestones:          []int{25, 50, 75, 90, 100},
		SectionDwellMin:     10 * time.Second,
		SectionThreshold:    0.5,
		SectionRootMargin:   browser.MustParseRootMargin("-20% 0px -20% 0px"),
		SectionClass:        "section",
		InteractionInterval: 30 * time.Second,
		GeolocationTimeout:  10 * time.Second,
		GeolocationMaxAge:   600 * time.Second,
	}
}

// Sampler owns the audience state of one page.
type Sampler struct {
	win    *browser.Window
	sink   *analytics.Sink
	opts   Options
	logger zerolog.Logger

	scroll       *ScrollTracker
	sections     *SectionTimer
	interactions *InteractionCounter
	started      bool
}

// New creates a sampler reporting to sink.
func New(win *browser.Window, sink *analytics.Sink, opts Options, logger zerolog.Logger) *Sampler {
	return &Sampler{
		win:          win,
		sink:         sink,
		opts:         opts,
		logger:       logger,
		scroll:       NewScrollTracker(sink, opts.Milestones),
		sections:     NewSectionTimer(sink, opts.SectionDwellMin),
		interactions: NewInteractionCounter(sink),
	}
}

// Start sends the device and preference snapshots and installs the
// continuous observers. Calling it again does nothing.
func (s *Sampler) Start() {
	if !s.win.HasDOM() || s.started {
		return
	}
	s.started = true

	s.trackDeviceInfo()
	s.trackPreferences()
	s.watchVisibility()
	s.watchFocus()
	s.watchScroll()
	s.watchSections()
	s.watchInteractions()
	s.logger.Debug().Msg("Audience tracking initialized")
}

// Scroll exposes the scroll milestone state.
func (s *Sampler) Scroll() *ScrollTracker { return s.scroll }

// Sections exposes the section timer.
func (s *Sampler) Sections() *SectionTimer { return s.sections }

// Interactions exposes the interaction counters.
func (s *Sampler) Interactions() *InteractionCounter { return s.interactions }

type deviceInfo struct {
	ScreenSize   string  `json:"screen_size"`
	DeviceMemory any     `json:"device_memory"`
	Cores        any     `json:"cores"`
	TouchSupport bool    `json:"touch_support"`
	PixelRatio   float64 `json:"pixel_ratio"`
}

func (s *Sampler) trackDeviceInfo() {
	info := deviceInfo{
		ScreenSize:   ScreenSize(s.win.Screen),
		DeviceMemory: "unknown",
		Cores:        "unknown",
		TouchSupport: s.win.TouchEvents,
		PixelRatio:   s.win.DevicePixelRatio,
	}
	if nav := s.win.Navigator; nav != nil {
		if nav.DeviceMemory > 0 {
			info.DeviceMemory = nav.DeviceMemory
		}
		if nav.HardwareConcurrency > 0 {
			info.Cores = nav.HardwareConcurrency
		}
		info.TouchSupport = info.TouchSupport || nav.MaxTouchPoints > 0
	}
	if info.PixelRatio <= 0 {
		info.PixelRatio = 1
	}

	label, err := json.Marshal(info)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Failed to encode device info")
		return
	}
	s.sink.Emit("device_info", "technical", string(label), nil)
}

// ScreenSize buckets the screen width.
func ScreenSize(screen *browser.Screen) string {
	switch {
	case screen == nil || screen.Width <= 0:
		return "unknown"
	case screen.Width < 768:
		return "mobile"
	case screen.Width < 1024:
		return "tablet"
	case screen.Width < 1440:
		return "laptop"
	default:
		return "desktop"
	}
}

func (s *Sampler) trackPreferences() {
	if media := s.win.Media; media != nil {
		if media.Matches(browser.QueryReducedMotion) {
			s.sink.TrackUserPreference("accessibility", "reduced_motion")
		}
		if media.Matches(browser.QueryDarkScheme) {
			s.sink.TrackUserPreference("color_scheme", "dark")
		} else {
			s.sink.TrackUserPreference("color_scheme", "light")
		}
	}

	if nav := s.win.Navigator; nav != nil {
		languages := nav.Languages
		if len(languages) == 0 && nav.Language != "" {
			languages = []string{nav.Language}
		}
		if len(languages) > 0 {
			s.sink.Emit("language_preferences", "user_info", strings.Join(languages, ","), nil)
		}
	}
}

func (s *Sampler) watchVisibility() {
	if s.win.Events == nil {
		return
	}
	s.win.Events.AddEventListener(browser.EventVisibilityChange, func(ev browser.Event) {
		label := "page_visible"
		if ev.Hidden {
			label = "page_hidden"
		}
		s.sink.Emit("user_activity", "engagement", label, nil)
	})
}

func (s *Sampler) watchFocus() {
	if s.win.Events == nil {
		return
	}
	s.win.Events.AddEventListener(browser.EventFocus, func(browser.Event) {
		s.sink.Emit("user_activity", "engagement", "window_focus", nil)
	})
	s.win.Events.AddEventListener(browser.EventBlur, func(browser.Event) {
		s.sink.Emit("user_activity", "engagement", "window_blur", nil)
	})
}

func (s *Sampler) watchScroll() {
	if s.win.Events == nil || s.win.Viewport == nil {
		return
	}
	vp := s.win.Viewport
	s.win.Events.AddEventListener(browser.EventScroll, func(browser.Event) {
		s.scroll.Record(ScrollPercent(vp.ScrollY(), vp.ScrollHeight(), vp.InnerHeight()))
	})
	s.win.Events.AddEventListener(browser.EventBeforeUnload, func(browser.Event) {
		s.scroll.Flush()
	})
}

func (s *Sampler) watchSections() {
	if s.win.Observers == nil {
		return
	}
	sections := s.win.Document.QueryAll(browser.Any(
		browser.Descendant("main", "section"),
		browser.Child("main", "div"),
		browser.ByClass(s.opts.SectionClass),
	))

	observer := s.win.Observers.NewIntersectionObserver(func(entries []browser.IntersectionEntry, _ browser.IntersectionObserver) {
		for _, entry := range entries {
			if !entry.IsIntersecting || entry.IntersectionRatio <= s.opts.SectionThreshold {
				continue
			}
			id := entry.Target.ID
			if id == "" {
				id = "unknown_section"
			}
			s.sections.Enter(id, s.win.Now())
		}
	}, browser.IntersectionOptions{
		Threshold:  []float64{s.opts.SectionThreshold},
		RootMargin: s.opts.SectionRootMargin,
	})

	for _, section := range sections {
		if section.ID == "" {
			section.ID = SectionID(s.win.Now())
		}
		observer.Observe(section)
	}

	if s.win.Events != nil {
		s.win.Events.AddEventListener(browser.EventBeforeUnload, func(browser.Event) {
			s.sections.Flush(s.win.Now())
		})
	}
}

// SectionID generates an id for a section that has none.
func SectionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("section_%d_%s", now.UnixMilli(), suffix)
}

func (s *Sampler) watchInteractions() {
	if s.win.Events == nil {
		return
	}
	s.win.Events.AddEventListener(browser.EventClick, func(browser.Event) { s.interactions.Click() })
	s.win.Events.AddEventListener(browser.EventKeyDown, func(browser.Event) { s.interactions.KeyPress() })
	if s.win.Timers != nil {
		s.win.Timers.SetInterval(s.opts.InteractionInterval, func() { s.interactions.Flush() })
	}
}
