package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalDecodesFromShimPayload(t *testing.T) {
	raw := `{
		"ts_utc": 1234567890,
		"ts_iso": "2009-02-13T23:31:30Z",
		"tab_id": "tab-1",
		"url": "https://example.com/about",
		"title": null,
		"type": "scroll",
		"data": {"scroll_y": 400, "scroll_height": 2000}
	}`

	var signal Signal
	require.NoError(t, json.Unmarshal([]byte(raw), &signal))
	assert.Equal(t, "tab-1", signal.TabID)
	assert.Equal(t, SignalScroll, signal.Type)
	assert.Nil(t, signal.Title)
	assert.EqualValues(t, 400, signal.Data["scroll_y"])
}

func TestCallParamsKeepPayloadShape(t *testing.T) {
	call := Call{
		TSUTC:    1234567890,
		ClientID: "c1",
		Command:  CommandEvent,
		Target:   "scroll_depth",
		Params:   map[string]any{"event_category": "engagement", "event_label": "25%", "value": 25},
	}

	data, err := json.Marshal(call)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event_category":"engagement"`)
	assert.NotContains(t, string(data), `"id"`)
}

func TestSignalTypesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, st := range SignalTypes {
		assert.False(t, seen[st], "duplicate signal type %s", st)
		seen[st] = true
	}
	assert.Len(t, seen, 14)
}
