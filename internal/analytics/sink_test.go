package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/pagetrace/internal/logging"
	"github.com/vincentbai/pagetrace/internal/models"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
}

func TestEmitShapesEventPayload(t *testing.T) {
	rec := &Recorder{}
	sink := NewSink(rec, WithClientID("c1"), WithClock(fixedClock))

	sink.Emit("scroll_depth", "engagement", "25%", Value(25))
	sink.Emit("device_info", "technical", "{}", nil)

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, models.CommandEvent, calls[0].Command)
	assert.Equal(t, "scroll_depth", calls[0].Target)
	assert.Equal(t, "c1", calls[0].ClientID)
	assert.Equal(t, fixedClock().UnixMilli(), calls[0].TSUTC)
	assert.Equal(t, map[string]any{"event_category": "engagement", "event_label": "25%", "value": 25.0}, calls[0].Params)

	_, hasValue := calls[1].Params["value"]
	assert.False(t, hasValue)
}

func TestPageviewUsesConfigCommand(t *testing.T) {
	rec := &Recorder{}
	sink := NewSink(rec, WithMeasurementID("G-TEST"))

	sink.Pageview("/about")

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.CommandConfig, calls[0].Command)
	assert.Equal(t, "G-TEST", calls[0].Target)
	assert.Equal(t, []string{"/about"}, rec.Pageviews())
}

func TestSinkWithoutDispatcherIsNoOp(t *testing.T) {
	var nilSink *Sink
	assert.NotPanics(t, func() {
		nilSink.Emit("a", "b", "c", nil)
		nilSink.Pageview("/")
		nilSink.TrackContactClick("email")
	})

	sink := NewSink(nil)
	assert.False(t, sink.Enabled())
	assert.NotPanics(t, func() {
		sink.Emit("a", "b", "c", Value(1))
		sink.Pageview("/")
		sink.TrackUserEngagement("")
	})
}

func TestIncompleteEventsAreDropped(t *testing.T) {
	rec := &Recorder{}
	tl := logging.NewTestLogger(t)
	sink := NewSink(rec, WithLogger(tl.Logger))

	sink.Emit("", "engagement", "x", nil)
	sink.Emit("name", "", "x", nil)
	sink.Emit("name", "engagement", "", nil)

	assert.Empty(t, rec.Calls())
	assert.True(t, tl.Contains("Dropping incomplete analytics event"))
}

func TestHelpers(t *testing.T) {
	rec := &Recorder{}
	sink := NewSink(rec)

	sink.TrackProjectClick("Starmap", "https://github.com/x/starmap")
	sink.TrackProjectClick("Notes", "")
	sink.TrackContactClick("linkedin")
	sink.TrackNavigation("projects")
	sink.TrackExternalLink("https://github.com", "GitHub")
	sink.TrackUserPreference("color_scheme", "dark")
	sink.TrackTimeOnSection("about", 12)
	sink.TrackUserEngagement("")

	want := []Event{
		{Name: "project_click", Category: "portfolio", Label: "Starmap - https://github.com/x/starmap"},
		{Name: "project_click", Category: "portfolio", Label: "Notes"},
		{Name: "contact_click", Category: "contact", Label: "linkedin"},
		{Name: "navigation_click", Category: "navigation", Label: "projects"},
		{Name: "external_link_click", Category: "outbound", Label: "GitHub - https://github.com"},
		{Name: "user_preference", Category: "preferences", Label: "color_scheme:dark"},
		{Name: "time_on_section", Category: "engagement", Label: "about", Value: Value(12)},
		{Name: "user_engagement", Category: "engagement", Label: "direct"},
	}
	assert.Equal(t, want, rec.Events())
}

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	assert.Nil(t, Multi(nil, nil))
	assert.Same(t, a, Multi(nil, a))

	NewSink(Multi(a, nil, b)).Pageview("/")
	assert.Len(t, a.Calls(), 1)
	assert.Len(t, b.Calls(), 1)
}

func TestLogDispatcher(t *testing.T) {
	tl := logging.NewTestLogger(t)
	NewSink(NewLogDispatcher(tl.Logger), WithClientID("c9")).Emit("user_activity", "engagement", "page_hidden", nil)
	assert.True(t, tl.Contains(`"target":"user_activity"`))
	assert.True(t, tl.Contains(`"client_id":"c9"`))
}
