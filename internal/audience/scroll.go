package audience

import (
	"math"
	"slices"
	"strconv"

	"github.com/vincentbai/pagetrace/internal/analytics"
)

// ScrollPercent is how far down the page the viewport is, 0 to 100. A page
// that fits in the viewport counts as fully scrolled.
func ScrollPercent(scrollY, scrollHeight, innerHeight float64) int {
	scrollable := scrollHeight - innerHeight
	if scrollable <= 0 {
		return 100
	}
	pct := int(math.Round(scrollY / scrollable * 100))
	return min(max(pct, 0), 100)
}

// ScrollTracker records scroll depth milestones. Reached milestones are
// never forgotten.
type ScrollTracker struct {
	sink       *analytics.Sink
	milestones []int
	reached    map[int]bool
	max        int
}

// NewScrollTracker creates a tracker for the given milestones.
func NewScrollTracker(sink *analytics.Sink, milestones []int) *ScrollTracker {
	ms := slices.Clone(milestones)
	slices.Sort(ms)
	return &ScrollTracker{sink: sink, milestones: slices.Compact(ms), reached: make(map[int]bool)}
}

// Record notes a scroll position and emits one event per milestone reached
// for the first time, in ascending order. It returns those milestones.
func (t *ScrollTracker) Record(percent int) []int {
	t.max = max(t.max, percent)

	var fresh []int
	for _, m := range t.milestones {
		if percent >= m && !t.reached[m] {
			t.reached[m] = true
			fresh = append(fresh, m)
			t.sink.Emit("scroll_depth", "engagement", strconv.Itoa(m)+"%", analytics.Value(float64(m)))
		}
	}
	return fresh
}

// Reached reports whether milestone m has fired.
func (t *ScrollTracker) Reached(m int) bool {
	return t.reached[m]
}

// Max returns the deepest scroll percent seen.
func (t *ScrollTracker) Max() int {
	return t.max
}

// Flush emits the deepest scroll percent seen.
func (t *ScrollTracker) Flush() {
	t.sink.Emit("max_scroll_depth", "engagement", strconv.Itoa(t.max)+"%", analytics.Value(float64(t.max)))
}
