package analytics

import (
	"fmt"
)

// TrackProjectClick records a click on a portfolio project.
func (s *Sink) TrackProjectClick(projectName, projectURL string) {
	label := projectName
	if projectURL != "" {
		label = fmt.Sprintf("%s - %s", projectName, projectURL)
	}
	s.Emit("project_click", "portfolio", label, nil)
}

// TrackContactClick records use of a contact method (email, linkedin, ...).
func (s *Sink) TrackContactClick(method string) {
	s.Emit("contact_click", "contact", method, nil)
}

// TrackNavigation records a click on an in-page navigation entry.
func (s *Sink) TrackNavigation(section string) {
	s.Emit("navigation_click", "navigation", section, nil)
}

// TrackExternalLink records an outbound link click.
func (s *Sink) TrackExternalLink(linkURL, linkText string) {
	s.Emit("external_link_click", "outbound", fmt.Sprintf("%s - %s", linkText, linkURL), nil)
}

// TrackUserPreference records an environment preference such as the color
// scheme.
func (s *Sink) TrackUserPreference(kind, value string) {
	s.Emit("user_preference", "preferences", kind+":"+value, nil)
}

// TrackTimeOnSection records the dwell time of a section in seconds.
func (s *Sink) TrackTimeOnSection(section string, seconds int) {
	s.Emit("time_on_section", "engagement", section, Value(float64(seconds)))
}

// TrackUserEngagement records the post-load engagement snapshot. The label
// is the referrer, or "direct" without one.
func (s *Sink) TrackUserEngagement(referrer string) {
	if referrer == "" {
		referrer = "direct"
	}
	s.Emit("user_engagement", "engagement", referrer, nil)
}
