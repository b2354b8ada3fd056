package models

// Signal is one raw browser observation posted by a page shim or extension.
type Signal struct {
	TSUTC int64          `json:"ts_utc"`
	TSISO string         `json:"ts_iso"`
	TabID string         `json:"tab_id"`
	URL   string         `json:"url"`
	Title *string        `json:"title"` // nullable
	Type  string         `json:"type"`  // see SignalTypes
	Data  map[string]any `json:"data"`  // type-specific payload
}

// Signal types understood by the agent.
const (
	SignalLoad        = "load"
	SignalNavigate    = "navigate"
	SignalPopState    = "popstate"
	SignalMutation    = "mutation"
	SignalLayout      = "layout"
	SignalScroll      = "scroll"
	SignalVisibility  = "visibility"
	SignalFocus       = "focus"
	SignalBlur        = "blur"
	SignalClick       = "click"
	SignalKeyDown     = "keydown"
	SignalGeolocation = "geolocation"
	SignalAction      = "action"
	SignalUnload      = "unload"
)

// SignalTypes lists every accepted signal type.
var SignalTypes = []string{
	SignalLoad, SignalNavigate, SignalPopState, SignalMutation, SignalLayout,
	SignalScroll, SignalVisibility, SignalFocus, SignalBlur, SignalClick,
	SignalKeyDown, SignalGeolocation, SignalAction, SignalUnload,
}

type Batch struct {
	Events []Signal `json:"events"`
}

// Call is one recorded analytics dispatch, the gtag(command, target, params)
// triple plus when and for whom it was sent.
type Call struct {
	ID       int64          `json:"id,omitempty"`
	TSUTC    int64          `json:"ts_utc"`
	TSISO    string         `json:"ts_iso"`
	ClientID string         `json:"client_id"`
	Command  string         `json:"command"` // config|event
	Target   string         `json:"target"`  // measurement id or event name
	Params   map[string]any `json:"params"`
}

// Analytics commands.
const (
	CommandConfig = "config"
	CommandEvent  = "event"
)
