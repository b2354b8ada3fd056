// Package tracking wires the page pipeline together for one tab: reveal
// animations, the navigation watcher and, after a short delay, the audience
// sampler.
package tracking

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"

	"github.com/vincentbai/pagetrace/internal/analytics"
	"github.com/vincentbai/pagetrace/internal/animation"
	"github.com/vincentbai/pagetrace/internal/audience"
	"github.com/vincentbai/pagetrace/internal/browser"
	"github.com/vincentbai/pagetrace/internal/errors"
	"github.com/vincentbai/pagetrace/internal/navigation"
)

// Options configure a session.
type Options struct {
	Animation       animation.Options
	Audience        audience.Options
	EngagementDelay time.Duration
	TrackLocation   bool
}

// DefaultOptions returns the site's tracking settings.
func DefaultOptions() Options {
	return Options{
		Animation:       animation.DefaultOptions(),
		Audience:        audience.DefaultOptions(),
		EngagementDelay: 2 * time.Second,
	}
}

// Session is the tracking state of one page. Nothing in it is shared with
// other sessions.
type Session struct {
	win    *browser.Window
	sink   *analytics.Sink
	opts   Options
	logger zerolog.Logger

	trigger *animation.Trigger
	watcher *navigation.Watcher
	sampler *audience.Sampler
	started bool
}

// NewSession creates a session for win reporting to sink.
func NewSession(win *browser.Window, sink *analytics.Sink, opts Options, logger zerolog.Logger) *Session {
	return &Session{
		win:     win,
		sink:    sink,
		opts:    opts,
		logger:  logger,
		trigger: animation.New(win, opts.Animation, logger),
		watcher: navigation.New(win, sink, logger),
		sampler: audience.New(win, sink, opts.Audience, logger),
	}
}

// Start activates animations and the navigation watcher right away and
// schedules the engagement snapshot and audience sampling. It must run on
// the page loop.
func (s *Session) Start() {
	if !s.win.HasDOM() || s.started {
		return
	}
	s.started = true

	s.trigger.ActivateAll()
	s.watcher.Start()

	engage := func() {
		s.sink.TrackUserEngagement(s.win.Referrer)
		s.sampler.Start()
		if s.opts.TrackLocation {
			s.sampler.TrackLocation()
		}
	}
	if s.win.Timers == nil {
		engage()
	} else {
		s.win.Timers.SetTimeout(s.opts.EngagementDelay, engage)
	}

	s.logger.Info().
		Bool("analytics", s.sink.Enabled()).
		Msg("Page tracking initialized")
}

func (s *Session) Sink() *analytics.Sink        { return s.sink }
func (s *Session) Trigger() *animation.Trigger  { return s.trigger }
func (s *Session) Watcher() *navigation.Watcher { return s.watcher }
func (s *Session) Sampler() *audience.Sampler   { return s.sampler }

// Action is a click the page reports explicitly.
type Action struct {
	Name    string `mapstructure:"name"`
	Project string `mapstructure:"project"`
	URL     string `mapstructure:"url"`
	Method  string `mapstructure:"method"`
	Section string `mapstructure:"section"`
	Text    string `mapstructure:"text"`
}

// Action names.
const (
	ActionProjectClick      = "project_click"
	ActionContactClick      = "contact_click"
	ActionNavigationClick   = "navigation_click"
	ActionExternalLinkClick = "external_link_click"
)

// ParseAction decodes an action payload.
func ParseAction(data map[string]any) (Action, error) {
	var a Action
	if err := mapstructure.WeakDecode(data, &a); err != nil {
		return Action{}, fmt.Errorf("decode action payload: %w: %v", errors.ErrInvalidInput, err)
	}
	return a, nil
}

// HandleAction reports a.
func (s *Session) HandleAction(a Action) error {
	switch a.Name {
	case ActionProjectClick:
		s.sink.TrackProjectClick(a.Project, a.URL)
	case ActionContactClick:
		s.sink.TrackContactClick(a.Method)
	case ActionNavigationClick:
		s.sink.TrackNavigation(a.Section)
	case ActionExternalLinkClick:
		s.sink.TrackExternalLink(a.URL, a.Text)
	default:
		return errors.NewValidationError("name", a.Name, "unknown action")
	}
	return nil
}
