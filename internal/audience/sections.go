package audience

import (
	"math"
	"time"

	"github.com/vincentbai/pagetrace/internal/analytics"
)

// SectionTimer tracks which section is being read and since when.
type SectionTimer struct {
	sink    *analytics.Sink
	minimum time.Duration
	active  string
	start   time.Time
}

// NewSectionTimer creates a timer that only reports dwells longer than minimum.
func NewSectionTimer(sink *analytics.Sink, minimum time.Duration) *SectionTimer {
	return &SectionTimer{sink: sink, minimum: minimum}
}

// Enter makes id the active section at now. Switching away from another
// section reports its dwell first.
func (t *SectionTimer) Enter(id string, now time.Time) {
	if t.active != "" && t.active != id {
		t.Flush(now)
	}
	t.active = id
	t.start = now
}

// Flush reports the active section's dwell, rounded to whole seconds, if the
// elapsed time exceeds the minimum. It returns the reported seconds or 0.
func (t *SectionTimer) Flush(now time.Time) int {
	if t.active == "" {
		return 0
	}
	elapsed := now.Sub(t.start)
	if elapsed <= t.minimum {
		return 0
	}
	seconds := int(math.Round(elapsed.Seconds()))
	t.sink.TrackTimeOnSection(t.active, seconds)
	return seconds
}

// Active returns the active section id.
func (t *SectionTimer) Active() string {
	return t.active
}
