package tab

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/go-viper/mapstructure/v2"

	"github.com/vincentbai/pagetrace/internal/browser"
	"github.com/vincentbai/pagetrace/internal/errors"
	"github.com/vincentbai/pagetrace/internal/models"
)

type elementPayload struct {
	Key      string   `mapstructure:"key"`
	Parent   string   `mapstructure:"parent"`
	ID       string   `mapstructure:"id"`
	Tag      string   `mapstructure:"tag"`
	Classes  []string `mapstructure:"classes"`
	Href     string   `mapstructure:"href"`
	LinkHost string   `mapstructure:"link_host"`
	Top      *float64 `mapstructure:"top"`
	Height   *float64 `mapstructure:"height"`
}

type loadPayload struct {
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Referrer string `mapstructure:"referrer"`

	ScreenWidth         int      `mapstructure:"screen_width"`
	ScreenHeight        int      `mapstructure:"screen_height"`
	DeviceMemory        float64  `mapstructure:"device_memory"`
	HardwareConcurrency int      `mapstructure:"hardware_concurrency"`
	MaxTouchPoints      int      `mapstructure:"max_touch_points"`
	Language            string   `mapstructure:"language"`
	Languages           []string `mapstructure:"languages"`
	TouchEvents         bool     `mapstructure:"touch_events"`
	DevicePixelRatio    float64  `mapstructure:"device_pixel_ratio"`

	ReducedMotion bool `mapstructure:"reduced_motion"`
	DarkScheme    bool `mapstructure:"dark_scheme"`

	Geolocation           bool   `mapstructure:"geolocation"`
	GeolocationPermission string `mapstructure:"geolocation_permission"`

	Hidden       bool             `mapstructure:"hidden"`
	ScrollY      float64          `mapstructure:"scroll_y"`
	ScrollHeight float64          `mapstructure:"scroll_height"`
	InnerHeight  float64          `mapstructure:"inner_height"`
	Elements     []elementPayload `mapstructure:"elements"`
}

type navigatePayload struct {
	Path string `mapstructure:"path"`
	Mode string `mapstructure:"mode"`
}

type viewportPayload struct {
	ScrollY      *float64         `mapstructure:"scroll_y"`
	ScrollHeight *float64         `mapstructure:"scroll_height"`
	InnerHeight  *float64         `mapstructure:"inner_height"`
	Path         string           `mapstructure:"path"`
	Elements     []elementPayload `mapstructure:"elements"`
}

type visibilityPayload struct {
	Hidden bool `mapstructure:"hidden"`
}

type clickPayload struct {
	Target string `mapstructure:"target"`
}

type geolocationPayload struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Accuracy  float64 `mapstructure:"accuracy"`
	ErrorCode int     `mapstructure:"error_code"`
	Message   string  `mapstructure:"message"`
}

func decode(signal models.Signal, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(signal.Data); err != nil {
		return fmt.Errorf("decode %s payload: %w: %v", signal.Type, errors.ErrInvalidInput, err)
	}
	return nil
}

// OptionsFromLoad builds tab options from a load signal.
func OptionsFromLoad(signal models.Signal) (Options, error) {
	if signal.Type != models.SignalLoad {
		return Options{}, errors.NewValidationError("type", signal.Type, "expected load signal")
	}
	var p loadPayload
	if err := decode(signal, &p); err != nil {
		return Options{}, err
	}

	if signal.URL != "" && (p.Path == "" || p.Host == "") {
		if u, err := url.Parse(signal.URL); err == nil {
			if p.Path == "" {
				p.Path = u.Path
			}
			if p.Host == "" {
				p.Host = u.Hostname()
			}
		}
	}

	opts := Options{
		Path:     p.Path,
		Host:     p.Host,
		Referrer: p.Referrer,
		Navigator: browser.Navigator{
			HardwareConcurrency: p.HardwareConcurrency,
			DeviceMemory:        p.DeviceMemory,
			MaxTouchPoints:      p.MaxTouchPoints,
			Language:            p.Language,
			Languages:           p.Languages,
		},
		Media: map[string]bool{
			browser.QueryReducedMotion: p.ReducedMotion,
			browser.QueryDarkScheme:    p.DarkScheme,
		},
		DevicePixelRatio:  p.DevicePixelRatio,
		TouchEvents:       p.TouchEvents,
		Geolocation:       p.Geolocation,
		GeolocationDenied: p.GeolocationPermission == "denied",
		Hidden:            p.Hidden,
		ScrollY:           p.ScrollY,
		ScrollHeight:      p.ScrollHeight,
		InnerHeight:       p.InnerHeight,
		Document:          buildDocument(p.Elements),
	}
	if p.ScreenWidth > 0 {
		opts.Screen = &browser.Screen{Width: p.ScreenWidth, Height: p.ScreenHeight}
	}
	return opts, nil
}

// buildDocument assembles a tree from a flat list where parents come first.
// Unknown or empty parents attach to body.
func buildDocument(elements []elementPayload) *browser.Document {
	doc := browser.NewDocument()
	byKey := map[string]*browser.Element{doc.Body.Key: doc.Body}
	for _, p := range elements {
		if p.Key == "" {
			continue
		}
		el := browser.NewElement(p.Key, p.Tag, p.Classes...)
		el.ID = p.ID
		el.Href = p.Href
		el.LinkHost = p.LinkHost
		if p.Top != nil {
			el.Top = *p.Top
		}
		if p.Height != nil {
			el.Height = *p.Height
		}
		parent, ok := byKey[p.Parent]
		if !ok {
			parent = doc.Body
		}
		parent.AppendChild(el)
		byKey[p.Key] = el
	}
	return doc
}

// Apply feeds one signal into the tab. Load, action and unknown signals are
// not tab-level and are rejected; unload runs beforeunload listeners but
// leaves closing to the caller.
func (t *Tab) Apply(signal models.Signal) error {
	var err error
	t.Do(func() { err = t.apply(signal) })
	return err
}

func (t *Tab) apply(signal models.Signal) error {
	switch signal.Type {
	case models.SignalNavigate:
		var p navigatePayload
		if err := decode(signal, &p); err != nil {
			return err
		}
		if p.Path == "" {
			return errors.NewValidationError("path", p.Path, "navigate needs a path")
		}
		kind := browser.NavigationPush
		if p.Mode == "replace" {
			kind = browser.NavigationReplace
		}
		t.path = p.Path
		for _, fn := range slices.Clone(t.navigationHandler) {
			fn(browser.Navigation{Kind: kind, Path: p.Path})
		}

	case models.SignalPopState:
		var p navigatePayload
		if err := decode(signal, &p); err != nil {
			return err
		}
		if p.Path != "" {
			t.path = p.Path
		}
		t.dispatch(browser.Event{Type: browser.EventPopState, Path: t.path})

	case models.SignalMutation:
		var p viewportPayload
		if err := decode(signal, &p); err != nil {
			return err
		}
		if p.Path != "" {
			t.path = p.Path
		}
		if p.Elements != nil {
			t.document.Body = buildDocument(p.Elements).Body
			t.pruneDetached()
		}
		t.updateViewport(p)
		for _, fn := range slices.Clone(t.mutationHandlers) {
			fn()
		}

	case models.SignalLayout:
		var p viewportPayload
		if err := decode(signal, &p); err != nil {
			return err
		}
		t.updateViewport(p)
		for _, ep := range p.Elements {
			if el := t.document.ByKey(ep.Key); el != nil {
				if ep.Top != nil {
					el.Top = *ep.Top
				}
				if ep.Height != nil {
					el.Height = *ep.Height
				}
			}
		}

	case models.SignalScroll:
		var p viewportPayload
		if err := decode(signal, &p); err != nil {
			return err
		}
		t.updateViewport(p)
		t.dispatch(browser.Event{Type: browser.EventScroll})

	case models.SignalVisibility:
		var p visibilityPayload
		if err := decode(signal, &p); err != nil {
			return err
		}
		if p.Hidden != t.hidden {
			t.hidden = p.Hidden
			t.dispatch(browser.Event{Type: browser.EventVisibilityChange, Hidden: p.Hidden})
		}

	case models.SignalFocus:
		t.dispatch(browser.Event{Type: browser.EventFocus})

	case models.SignalBlur:
		t.dispatch(browser.Event{Type: browser.EventBlur})

	case models.SignalClick:
		var p clickPayload
		if err := decode(signal, &p); err != nil {
			return err
		}
		var target *browser.Element
		if p.Target != "" {
			target = t.document.ByKey(p.Target)
		}
		t.dispatch(browser.Event{Type: browser.EventClick, Target: target})

	case models.SignalKeyDown:
		t.dispatch(browser.Event{Type: browser.EventKeyDown})

	case models.SignalGeolocation:
		if t.geo == nil {
			return fmt.Errorf("geolocation signal: %w", errors.ErrCapabilityMissing)
		}
		var p geolocationPayload
		if err := decode(signal, &p); err != nil {
			return err
		}
		if p.ErrorCode != 0 {
			t.geo.resolve(browser.Position{}, &errors.PositionError{Code: p.ErrorCode, Message: p.Message})
			break
		}
		t.geo.resolve(browser.Position{
			Coords:    browser.Coordinates{Latitude: p.Latitude, Longitude: p.Longitude, Accuracy: p.Accuracy},
			Timestamp: t.Now(),
		}, nil)

	case models.SignalUnload:
		t.dispatch(browser.Event{Type: browser.EventBeforeUnload})

	default:
		return errors.NewValidationError("type", signal.Type, "not a tab signal")
	}
	return nil
}

func (t *Tab) updateViewport(p viewportPayload) {
	if p.ScrollY != nil {
		t.scrollY = *p.ScrollY
	}
	if p.ScrollHeight != nil {
		t.scrollH = *p.ScrollHeight
	}
	if p.InnerHeight != nil {
		t.innerH = *p.InnerHeight
	}
	t.intersectDirty = true
}
