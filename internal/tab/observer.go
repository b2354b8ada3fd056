package tab

import (
	"math"
	"slices"
	"sort"

	"github.com/vincentbai/pagetrace/internal/browser"
)

type observation struct {
	el           *browser.Element
	notified     bool
	index        int
	intersecting bool
}

type intersectionObserver struct {
	tab        *Tab
	cb         browser.IntersectionCallback
	thresholds []float64
	margin     browser.Margin
	targets    []*observation
}

// NewIntersectionObserver implements browser.Observers.
func (t *Tab) NewIntersectionObserver(cb browser.IntersectionCallback, opts browser.IntersectionOptions) browser.IntersectionObserver {
	thresholds := slices.Clone(opts.Threshold)
	if len(thresholds) == 0 {
		thresholds = []float64{0}
	}
	sort.Float64s(thresholds)

	o := &intersectionObserver{tab: t, cb: cb, thresholds: thresholds, margin: opts.RootMargin}
	if !t.closed {
		t.observers = append(t.observers, o)
	}
	return o
}

func (o *intersectionObserver) Observe(el *browser.Element) {
	if el == nil {
		return
	}
	for _, obs := range o.targets {
		if obs.el == el {
			return
		}
	}
	o.targets = append(o.targets, &observation{el: el})
	o.tab.intersectDirty = true
}

func (o *intersectionObserver) Unobserve(el *browser.Element) {
	o.targets = slices.DeleteFunc(o.targets, func(obs *observation) bool { return obs.el == el })
}

func (o *intersectionObserver) Disconnect() {
	o.targets = nil
	o.tab.observers = slices.DeleteFunc(o.tab.observers, func(other *intersectionObserver) bool { return other == o })
}

// pruneDetached stops observing elements that left the document.
func (t *Tab) pruneDetached() {
	for _, o := range t.observers {
		o.targets = slices.DeleteFunc(o.targets, func(obs *observation) bool {
			return !t.document.Contains(obs.el)
		})
	}
	t.intersectDirty = true
}

// Observing reports how many targets the observer still watches.
func (o *intersectionObserver) Observing() int {
	return len(o.targets)
}

// notifyIntersections delivers one batch per observer whose targets crossed
// a threshold since the last delivery. A newly observed target always gets
// an initial entry.
func (t *Tab) notifyIntersections() {
	now := t.Now()
	for _, o := range append([]*intersectionObserver(nil), t.observers...) {
		var entries []browser.IntersectionEntry
		for _, obs := range o.targets {
			ratio, intersecting := o.measure(obs.el)
			index := o.thresholdIndex(ratio, intersecting)
			if obs.notified && index == obs.index && intersecting == obs.intersecting {
				continue
			}
			obs.notified, obs.index, obs.intersecting = true, index, intersecting
			entries = append(entries, browser.IntersectionEntry{
				Target:            obs.el,
				IsIntersecting:    intersecting,
				IntersectionRatio: ratio,
				Time:              now,
			})
		}
		if len(entries) > 0 {
			o.cb(entries, o)
		}
	}
}

// measure intersects the element's vertical extent with the root, the
// viewport adjusted by the root margin. An element counts as intersecting
// once its ratio reaches the lowest threshold.
func (o *intersectionObserver) measure(el *browser.Element) (float64, bool) {
	t := o.tab
	rootTop := t.scrollY - o.margin.Top.Resolve(t.innerH)
	rootBottom := t.scrollY + t.innerH + o.margin.Bottom.Resolve(t.innerH)

	top, bottom := el.Top, el.Top+el.Height
	var ratio float64
	var overlaps bool
	if el.Height <= 0 {
		overlaps = top >= rootTop && top <= rootBottom
		if overlaps {
			ratio = 1
		}
	} else {
		overlap := math.Min(bottom, rootBottom) - math.Max(top, rootTop)
		overlaps = overlap > 0
		ratio = math.Max(0, overlap) / el.Height
	}
	return ratio, overlaps && ratio >= o.thresholds[0]
}

func (o *intersectionObserver) thresholdIndex(ratio float64, intersecting bool) int {
	if !intersecting {
		return 0
	}
	n := 0
	for _, th := range o.thresholds {
		if ratio >= th {
			n++
		}
	}
	return n
}
