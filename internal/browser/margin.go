package browser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vincentbai/pagetrace/internal/errors"
)

// Length is a root margin component in pixels or percent of the root.
type Length struct {
	Value   float64
	Percent bool
}

// Resolve converts l to pixels against base.
func (l Length) Resolve(base float64) float64 {
	if l.Percent {
		return base * l.Value / 100
	}
	return l.Value
}

func (l Length) String() string {
	v := strconv.FormatFloat(l.Value, 'f', -1, 64)
	if l.Percent {
		return v + "%"
	}
	return v + "px"
}

// Margin grows (positive) or shrinks (negative) the root rectangle.
type Margin struct {
	Top, Right, Bottom, Left Length
}

func (m Margin) String() string {
	return strings.Join([]string{m.Top.String(), m.Right.String(), m.Bottom.String(), m.Left.String()}, " ")
}

// ParseRootMargin parses CSS margin shorthand with one to four px or %
// values, e.g. "0px 0px -100px 0px" or "-20% 0px".
func ParseRootMargin(s string) (Margin, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Margin{}, nil
	}
	if len(fields) > 4 {
		return Margin{}, errors.NewValidationError("root_margin", s, "expected at most four values")
	}

	lengths := make([]Length, len(fields))
	for i, f := range fields {
		l, err := parseLength(f)
		if err != nil {
			return Margin{}, fmt.Errorf("root margin %q: %w", s, err)
		}
		lengths[i] = l
	}

	switch len(lengths) {
	case 1:
		return Margin{lengths[0], lengths[0], lengths[0], lengths[0]}, nil
	case 2:
		return Margin{lengths[0], lengths[1], lengths[0], lengths[1]}, nil
	case 3:
		return Margin{lengths[0], lengths[1], lengths[2], lengths[1]}, nil
	default:
		return Margin{lengths[0], lengths[1], lengths[2], lengths[3]}, nil
	}
}

// MustParseRootMargin is ParseRootMargin for constants.
func MustParseRootMargin(s string) Margin {
	m, err := ParseRootMargin(s)
	if err != nil {
		panic(err)
	}
	return m
}

func parseLength(s string) (Length, error) {
	var l Length
	switch {
	case strings.HasSuffix(s, "%"):
		l.Percent = true
		s = strings.TrimSuffix(s, "%")
	case strings.HasSuffix(s, "px"):
		s = strings.TrimSuffix(s, "px")
	case s != "0":
		return Length{}, errors.NewValidationError("root_margin", s, "must be px or %")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Length{}, errors.NewValidationError("root_margin", s, "not a number")
	}
	l.Value = v
	return l, nil
}
