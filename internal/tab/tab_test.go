package tab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/pagetrace/internal/browser"
	"github.com/vincentbai/pagetrace/internal/errors"
	"github.com/vincentbai/pagetrace/internal/logging"
	"github.com/vincentbai/pagetrace/internal/models"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func setupTestTab(t *testing.T, opts Options) (*Tab, *ManualScheduler) {
	t.Helper()
	sched := NewManualScheduler(epoch)
	if opts.InnerHeight == 0 {
		opts.InnerHeight = 800
	}
	if opts.ScrollHeight == 0 {
		opts.ScrollHeight = 4000
	}
	tb := New("tab-1", opts, sched, logging.Nop())
	t.Cleanup(tb.Close)
	return tb, sched
}

func signal(typ string, data map[string]any) models.Signal {
	return models.Signal{TSUTC: epoch.UnixMilli(), TabID: "tab-1", Type: typ, Data: data}
}

func TestManualSchedulerRunsInTimeOrder(t *testing.T) {
	sched := NewManualScheduler(epoch)
	var order []string
	sched.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	sched.AfterFunc(time.Second, func() { order = append(order, "a") })
	cancel := sched.AfterFunc(2*time.Second, func() { order = append(order, "cancelled") })
	stop := sched.Every(2*time.Second, func() { order = append(order, "tick") })
	cancel()

	sched.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "tick", "c", "tick"}, order)
	assert.Equal(t, epoch.Add(5*time.Second), sched.Now())

	stop()
	assert.Equal(t, 0, sched.Pending())
}

func TestDeferredRunsAfterCurrentHandler(t *testing.T) {
	tb, _ := setupTestTab(t, Options{})
	var order []string
	tb.Do(func() {
		tb.Defer(func() { order = append(order, "deferred") })
		order = append(order, "handler")
	})
	assert.Equal(t, []string{"handler", "deferred"}, order)
}

func TestTimeoutAndIntervalRunOnLoop(t *testing.T) {
	tb, sched := setupTestTab(t, Options{})
	var fired, ticks int
	tb.Do(func() {
		tb.SetTimeout(2*time.Second, func() { fired++ })
		tb.SetInterval(30*time.Second, func() { ticks++ })
	})

	sched.Advance(time.Second)
	assert.Equal(t, 0, fired)
	sched.Advance(61 * time.Second)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 2, ticks)

	tb.Close()
	sched.Advance(time.Minute)
	assert.Equal(t, 2, ticks)
	assert.Equal(t, 0, sched.Pending())
}

func TestStoppedTimerNeverFires(t *testing.T) {
	tb, sched := setupTestTab(t, Options{})
	fired := false
	tb.Do(func() {
		timer := tb.SetTimeout(time.Second, func() { fired = true })
		timer.Stop()
	})
	sched.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestIntersectionObserverInitialAndCrossing(t *testing.T) {
	doc := browser.NewDocument()
	el := browser.NewElement("card", "div", "animate-on-scroll")
	el.Top, el.Height = 1000, 200
	doc.Body.AppendChild(el)
	tb, _ := setupTestTab(t, Options{Document: doc})

	var got []browser.IntersectionEntry
	var observer browser.IntersectionObserver
	tb.Do(func() {
		observer = tb.NewIntersectionObserver(func(entries []browser.IntersectionEntry, _ browser.IntersectionObserver) {
			got = append(got, entries...)
		}, browser.IntersectionOptions{
			Threshold:  []float64{0.1},
			RootMargin: browser.MustParseRootMargin("0px 0px -100px 0px"),
		})
		observer.Observe(el)
	})
	require.Len(t, got, 1)
	assert.False(t, got[0].IsIntersecting)

	// 700px root bottom leaves the card below the fold.
	require.NoError(t, tb.Apply(signal(models.SignalScroll, map[string]any{"scroll_y": 250})))
	assert.Len(t, got, 1)

	// 5% visible is below the threshold.
	require.NoError(t, tb.Apply(signal(models.SignalScroll, map[string]any{"scroll_y": 310})))
	assert.Len(t, got, 1)

	require.NoError(t, tb.Apply(signal(models.SignalScroll, map[string]any{"scroll_y": 520})))
	require.Len(t, got, 2)
	assert.True(t, got[1].IsIntersecting)
	assert.InDelta(t, 1.0, got[1].IntersectionRatio, 0.001)
	assert.Same(t, el, got[1].Target)

	tb.Do(func() { observer.Unobserve(el) })
	require.NoError(t, tb.Apply(signal(models.SignalScroll, map[string]any{"scroll_y": 0})))
	assert.Len(t, got, 2)
	assert.Equal(t, 0, observer.(*intersectionObserver).Observing())
}

func TestPercentRootMargin(t *testing.T) {
	doc := browser.NewDocument()
	el := browser.NewElement("s1", "section")
	el.Top, el.Height = 0, 400
	doc.Body.AppendChild(el)
	tb, _ := setupTestTab(t, Options{Document: doc})

	var ratio float64
	tb.Do(func() {
		o := tb.NewIntersectionObserver(func(entries []browser.IntersectionEntry, _ browser.IntersectionObserver) {
			ratio = entries[len(entries)-1].IntersectionRatio
		}, browser.IntersectionOptions{Threshold: []float64{0.5}, RootMargin: browser.MustParseRootMargin("-20% 0px -20% 0px")})
		o.Observe(el)
	})
	// Root is [160, 640]; the section covers [0, 400], so 240/400 is inside.
	assert.InDelta(t, 0.6, ratio, 0.001)
}

func TestVisibilityDispatchesOnlyTransitions(t *testing.T) {
	tb, _ := setupTestTab(t, Options{})
	var events []bool
	tb.Do(func() {
		tb.AddEventListener(browser.EventVisibilityChange, func(ev browser.Event) { events = append(events, ev.Hidden) })
	})

	require.NoError(t, tb.Apply(signal(models.SignalVisibility, map[string]any{"hidden": true})))
	require.NoError(t, tb.Apply(signal(models.SignalVisibility, map[string]any{"hidden": true})))
	require.NoError(t, tb.Apply(signal(models.SignalVisibility, map[string]any{"hidden": false})))
	assert.Equal(t, []bool{true, false}, events)
}

func TestNavigateUpdatesLocationBeforeNotifying(t *testing.T) {
	tb, _ := setupTestTab(t, Options{Path: "/"})
	var seen []browser.Navigation
	var pathAtNotify string
	tb.Do(func() {
		tb.OnNavigate(func(n browser.Navigation) {
			seen = append(seen, n)
			pathAtNotify = tb.Pathname()
		})
	})

	require.NoError(t, tb.Apply(signal(models.SignalNavigate, map[string]any{"path": "/about", "mode": "replace"})))
	require.Len(t, seen, 1)
	assert.Equal(t, browser.NavigationReplace, seen[0].Kind)
	assert.Equal(t, "/about", pathAtNotify)

	err := tb.Apply(signal(models.SignalNavigate, map[string]any{}))
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestMutationReplacesDocument(t *testing.T) {
	tb, _ := setupTestTab(t, Options{Path: "/"})
	mutations := 0
	tb.Do(func() { tb.ObserveMutations(func() { mutations++ }) })

	require.NoError(t, tb.Apply(signal(models.SignalMutation, map[string]any{
		"path": "/projects",
		"elements": []any{
			map[string]any{"key": "m", "tag": "main"},
			map[string]any{"key": "p1", "parent": "m", "tag": "section", "id": "intro"},
		},
	})))
	assert.Equal(t, 1, mutations)
	assert.Equal(t, "/projects", tb.Pathname())
	el := tb.Window().Document.ByKey("p1")
	require.NotNil(t, el)
	assert.Equal(t, "intro", el.ID)
	assert.True(t, el.HasAncestor("main"))
}

func TestMutationStopsObservingDetachedElements(t *testing.T) {
	doc := browser.NewDocument()
	old := browser.NewElement("old", "div", "animate-on-scroll")
	doc.Body.AppendChild(old)
	kept := browser.NewElement("kept", "div")
	tb, _ := setupTestTab(t, Options{Document: doc})

	var observer browser.IntersectionObserver
	tb.Do(func() {
		observer = tb.NewIntersectionObserver(func([]browser.IntersectionEntry, browser.IntersectionObserver) {}, browser.IntersectionOptions{})
		observer.Observe(old)
	})
	require.Equal(t, 1, observer.(*intersectionObserver).Observing())

	require.NoError(t, tb.Apply(signal(models.SignalMutation, map[string]any{
		"elements": []any{map[string]any{"key": "fresh", "tag": "div"}},
	})))
	assert.Equal(t, 0, observer.(*intersectionObserver).Observing())

	tb.Do(func() {
		tb.Window().Document.Body.AppendChild(kept)
		observer.Observe(kept)
	})
	require.NoError(t, tb.Apply(signal(models.SignalMutation, map[string]any{})))
	assert.Equal(t, 1, observer.(*intersectionObserver).Observing())
}

func TestHandlersAddedDuringNotifyRunNextTime(t *testing.T) {
	tb, _ := setupTestTab(t, Options{Path: "/"})
	var navs, muts []string
	tb.Do(func() {
		tb.OnNavigate(func(n browser.Navigation) {
			navs = append(navs, "first "+n.Path)
			if len(navs) == 1 {
				tb.OnNavigate(func(n browser.Navigation) { navs = append(navs, "second "+n.Path) })
			}
		})
		tb.ObserveMutations(func() {
			muts = append(muts, "first")
			if len(muts) == 1 {
				tb.ObserveMutations(func() { muts = append(muts, "second") })
			}
		})
	})

	require.NoError(t, tb.Apply(signal(models.SignalNavigate, map[string]any{"path": "/a"})))
	require.NoError(t, tb.Apply(signal(models.SignalNavigate, map[string]any{"path": "/b"})))
	assert.Equal(t, []string{"first /a", "first /b", "second /b"}, navs)

	require.NoError(t, tb.Apply(signal(models.SignalMutation, map[string]any{})))
	require.NoError(t, tb.Apply(signal(models.SignalMutation, map[string]any{})))
	assert.Equal(t, []string{"first", "first", "second"}, muts)
}

func TestApplyRejectsNonTabSignals(t *testing.T) {
	tb, _ := setupTestTab(t, Options{})
	for _, typ := range []string{models.SignalLoad, models.SignalAction, "bogus"} {
		err := tb.Apply(signal(typ, nil))
		assert.True(t, errors.Is(err, errors.ErrInvalidInput), typ)
	}
}

func TestGeolocationResolvesPendingAndCaches(t *testing.T) {
	tb, sched := setupTestTab(t, Options{Geolocation: true})
	geo := tb.Window().Navigator.Geolocation
	require.NotNil(t, geo)

	opts := browser.PositionOptions{Timeout: 10 * time.Second, MaximumAge: 10 * time.Minute}
	var positions []browser.Position
	tb.Do(func() {
		geo.GetCurrentPosition(func(p browser.Position) { positions = append(positions, p) }, nil, opts)
	})
	assert.Equal(t, 1, tb.geo.Pending())

	require.NoError(t, tb.Apply(signal(models.SignalGeolocation, map[string]any{"latitude": 40.7128, "longitude": -74.006, "accuracy": 35})))
	require.Len(t, positions, 1)
	assert.Equal(t, 40.7128, positions[0].Coords.Latitude)

	// Within the maximum age the cached fix answers without a signal.
	sched.Advance(5 * time.Minute)
	tb.Do(func() {
		geo.GetCurrentPosition(func(p browser.Position) { positions = append(positions, p) }, nil, opts)
	})
	assert.Len(t, positions, 2)

	// The timeout timer of the first request was stopped.
	sched.Advance(time.Minute)
	assert.Equal(t, 0, sched.Pending())
}

func TestGeolocationTimeoutAndDenial(t *testing.T) {
	tb, sched := setupTestTab(t, Options{Geolocation: true})
	geo := tb.Window().Navigator.Geolocation

	var errs []error
	fail := func(err error) { errs = append(errs, err) }
	tb.Do(func() { geo.GetCurrentPosition(nil, fail, browser.PositionOptions{Timeout: 10 * time.Second}) })
	sched.Advance(10 * time.Second)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], errors.ErrTimeout))

	tb.Do(func() { geo.GetCurrentPosition(nil, fail, browser.PositionOptions{Timeout: 10 * time.Second}) })
	require.NoError(t, tb.Apply(signal(models.SignalGeolocation, map[string]any{"error_code": 1})))
	require.Len(t, errs, 2)
	assert.True(t, errors.Is(errs[1], errors.ErrPermissionDenied))

	// Once denied, later requests fail without waiting.
	tb.Do(func() { geo.GetCurrentPosition(nil, fail, browser.PositionOptions{}) })
	assert.Len(t, errs, 3)
}

func TestGeolocationSignalWithoutCapability(t *testing.T) {
	tb, _ := setupTestTab(t, Options{})
	assert.Nil(t, tb.Window().Navigator.Geolocation)
	err := tb.Apply(signal(models.SignalGeolocation, map[string]any{"latitude": 1}))
	assert.True(t, errors.Is(err, errors.ErrCapabilityMissing))
}

func TestOptionsFromLoad(t *testing.T) {
	s := models.Signal{
		TSUTC: epoch.UnixMilli(),
		TabID: "tab-1",
		URL:   "https://portfolio.example/es/about?x=1",
		Type:  models.SignalLoad,
		Data: map[string]any{
			"screen_width":         float64(1280),
			"hardware_concurrency": float64(8),
			"languages":            []any{"en-US", "es"},
			"dark_scheme":          true,
			"geolocation":          true,
			"inner_height":         float64(900),
			"elements": []any{
				map[string]any{"key": "m", "tag": "main"},
				map[string]any{"key": "s", "parent": "m", "tag": "section", "top": float64(100), "height": float64(500)},
			},
		},
	}
	opts, err := OptionsFromLoad(s)
	require.NoError(t, err)
	assert.Equal(t, "/es/about", opts.Path)
	assert.Equal(t, "portfolio.example", opts.Host)
	require.NotNil(t, opts.Screen)
	assert.Equal(t, 1280, opts.Screen.Width)
	assert.Equal(t, 8, opts.Navigator.HardwareConcurrency)
	assert.Equal(t, []string{"en-US", "es"}, opts.Navigator.Languages)
	assert.True(t, opts.Media[browser.QueryDarkScheme])
	assert.False(t, opts.Media[browser.QueryReducedMotion])
	assert.True(t, opts.Geolocation)
	assert.Equal(t, 900.0, opts.InnerHeight)

	sec := opts.Document.ByKey("s")
	require.NotNil(t, sec)
	assert.Equal(t, 100.0, sec.Top)
	assert.Equal(t, 500.0, sec.Height)

	_, err = OptionsFromLoad(signal(models.SignalScroll, nil))
	assert.Error(t, err)
}

func TestClosedTabIgnoresWork(t *testing.T) {
	tb, _ := setupTestTab(t, Options{})
	tb.Close()
	assert.True(t, tb.Closed())
	ran := false
	tb.Do(func() { ran = true })
	assert.False(t, ran)
}
