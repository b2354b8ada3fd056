package tab

import (
	"github.com/vincentbai/pagetrace/internal/browser"
	"github.com/vincentbai/pagetrace/internal/errors"
)

type geoRequest struct {
	success func(browser.Position)
	failure func(error)
	timeout browser.Timer
}

// geolocation answers requests from geolocation signals, honoring the
// request timeout and the age of the last fix.
type geolocation struct {
	tab     *Tab
	denied  bool
	last    *browser.Position
	pending []*geoRequest
}

func (g *geolocation) GetCurrentPosition(success func(browser.Position), failure func(error), opts browser.PositionOptions) {
	t := g.tab
	if g.denied {
		t.Defer(func() {
			if failure != nil {
				failure(&errors.PositionError{Code: errors.PositionPermissionDenied, Message: "User denied Geolocation"})
			}
		})
		return
	}
	if g.last != nil && opts.MaximumAge > 0 && t.Now().Sub(g.last.Timestamp) <= opts.MaximumAge {
		pos := *g.last
		t.Defer(func() {
			if success != nil {
				success(pos)
			}
		})
		return
	}

	req := &geoRequest{success: success, failure: failure}
	if opts.Timeout > 0 {
		req.timeout = t.SetTimeout(opts.Timeout, func() {
			if g.drop(req) && failure != nil {
				failure(&errors.PositionError{Code: errors.PositionTimeout, Message: "Timeout expired"})
			}
		})
	}
	g.pending = append(g.pending, req)
}

func (g *geolocation) drop(req *geoRequest) bool {
	for i, r := range g.pending {
		if r == req {
			g.pending = append(g.pending[:i], g.pending[i+1:]...)
			return true
		}
	}
	return false
}

// resolve answers every pending request with pos, or with err when non-nil.
func (g *geolocation) resolve(pos browser.Position, err error) {
	pending := g.pending
	g.pending = nil
	if err == nil {
		g.last = &pos
	} else if errors.Is(err, errors.ErrPermissionDenied) {
		g.denied = true
	}
	for _, req := range pending {
		if req.timeout != nil {
			req.timeout.Stop()
		}
		if err != nil {
			if req.failure != nil {
				req.failure(err)
			}
			continue
		}
		if req.success != nil {
			req.success(pos)
		}
	}
}

// Pending returns the number of unanswered requests.
func (g *geolocation) Pending() int {
	return len(g.pending)
}
