package audience

import (
	"math"
	"strconv"

	"github.com/vincentbai/pagetrace/internal/browser"
)

// TrackLocation asks the host for a position and reports it coarsened to
// one decimal degree. Any failure is reported as a denial. It is not part
// of Start; callers opt in.
func (s *Sampler) TrackLocation() {
	if !s.win.HasDOM() || s.win.Navigator == nil || s.win.Navigator.Geolocation == nil {
		s.logger.Debug().Msg("Geolocation unavailable")
		return
	}

	s.win.Navigator.Geolocation.GetCurrentPosition(
		func(pos browser.Position) {
			lat := formatDegrees(pos.Coords.Latitude)
			lng := formatDegrees(pos.Coords.Longitude)
			s.sink.Emit("user_location", "demographics", lat+","+lng, nil)
			s.sink.Emit("location_accuracy", "technical", strconv.FormatFloat(pos.Coords.Accuracy, 'f', -1, 64), nil)
		},
		func(err error) {
			s.logger.Debug().Err(err).Msg("Geolocation request failed")
			s.sink.Emit("location_permission", "privacy", "denied", nil)
		},
		browser.PositionOptions{
			Timeout:    s.opts.GeolocationTimeout,
			MaximumAge: s.opts.GeolocationMaxAge,
		},
	)
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
