package audience

import (
	"fmt"

	"github.com/vincentbai/pagetrace/internal/analytics"
)

// InteractionCounter counts clicks and key presses between reports.
type InteractionCounter struct {
	sink   *analytics.Sink
	clicks int
	keys   int
}

// NewInteractionCounter creates a counter.
func NewInteractionCounter(sink *analytics.Sink) *InteractionCounter {
	return &InteractionCounter{sink: sink}
}

func (c *InteractionCounter) Click()    { c.clicks++ }
func (c *InteractionCounter) KeyPress() { c.keys++ }

// Counts returns the unreported clicks and key presses.
func (c *InteractionCounter) Counts() (clicks, keys int) {
	return c.clicks, c.keys
}

// Flush emits one combined event and resets both counters, unless there was
// no activity. It reports whether an event was sent.
func (c *InteractionCounter) Flush() bool {
	if c.clicks == 0 && c.keys == 0 {
		return false
	}
	c.sink.Emit("interaction_patterns", "behavior", fmt.Sprintf("clicks:%d,keys:%d", c.clicks, c.keys), nil)
	c.clicks, c.keys = 0, 0
	return true
}
