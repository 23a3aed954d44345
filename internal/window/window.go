// Package window recomputes contributor metrics over an optional inclusive date range
// without touching the underlying aggregate.
package window

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dayFormat = "2006-01-02"

// ErrInvalidDate reports a bound that is not a YYYY-MM-DD calendar date.
var ErrInvalidDate = errors.New("invalid calendar date")

// Window is an inclusive time range. A zero bound is open.
type Window struct {
	Start time.Time
	End   time.Time
}

// All is the unbounded window.
var All = Window{}

// Parse builds a window from calendar-date bounds. Empty strings leave a bound open.
// Dates are read as local midnight in loc (time.Local when nil) and the end bound
// covers its whole day up to 23:59:59.999. Start after end is not corrected.
func Parse(start, end string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}

	var w Window
	if trimmed := strings.TrimSpace(start); trimmed != "" {
		parsed, err := time.ParseInLocation(dayFormat, trimmed, loc)
		if err != nil {
			return Window{}, fmt.Errorf("start %q: %w", start, ErrInvalidDate)
		}
		w.Start = parsed
	}
	if trimmed := strings.TrimSpace(end); trimmed != "" {
		parsed, err := time.ParseInLocation(dayFormat, trimmed, loc)
		if err != nil {
			return Window{}, fmt.Errorf("end %q: %w", end, ErrInvalidDate)
		}
		w.End = endOfDay(parsed)
	}
	return w, nil
}

// Bounded reports whether either bound is set.
func (w Window) Bounded() bool {
	return !w.Start.IsZero() || !w.End.IsZero()
}

// Contains reports whether ts falls inside the window, bounds inclusive.
func (w Window) Contains(ts time.Time) bool {
	if !w.Start.IsZero() && ts.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && ts.After(w.End) {
		return false
	}
	return true
}

// String renders the window for logs.
func (w Window) String() string {
	start, end := "-", "-"
	if !w.Start.IsZero() {
		start = w.Start.Format(time.RFC3339)
	}
	if !w.End.IsZero() {
		end = w.End.Format(time.RFC3339Nano)
	}
	return "[" + start + ", " + end + "]"
}

func endOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, int(999*time.Millisecond), day.Location())
}
