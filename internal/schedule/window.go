package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidTime is returned when a bound is not a valid HH:MM value.
	ErrInvalidTime = errors.New("invalid time of day")

	// ErrInvalidTimeZone is returned when the timezone is not a known IANA name.
	ErrInvalidTimeZone = errors.New("invalid time zone")

	// ErrInvalidWindow is returned when the end of a window is not strictly after its start.
	ErrInvalidWindow = errors.New("invalid window")
)

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

// ParseClock parses a 24-hour "HH:MM" value. A single-digit hour is accepted.
func ParseClock(hhmm string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	return Clock(hour*60 + minute), nil
}

// ClockOf returns the time of day of t in its own location, truncated to the minute.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Window is a daily active period. It never spans midnight.
type Window struct {
	Start    Clock
	End      Clock
	Location *time.Location
}

// NewWindow parses the bounds and loads the timezone. An empty timezone means UTC.
// The returned window is not validated; call Validate before using it.
func NewWindow(start, end, tz string) (*Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return nil, fmt.Errorf("startTime: %w", err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return nil, fmt.Errorf("endTime: %w", err)
	}
	loc := time.UTC
	if tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTimeZone, tz)
		}
	}
	return &Window{Start: s, End: e, Location: loc}, nil
}

// Validate checks that End is strictly later than Start.
// Equal bounds and inverted (midnight-spanning) bounds are both rejected.
func (w *Window) Validate() error {
	if w.End <= w.Start {
		return fmt.Errorf("%w: endTime %s must be later than startTime %s", ErrInvalidWindow, w.End, w.Start)
	}
	return nil
}

// Local returns t in the window's timezone.
func (w *Window) Local(t time.Time) time.Time {
	if w.Location == nil {
		return t.UTC()
	}
	return t.In(w.Location)
}

// Contains reports whether now falls within [Start, End], both ends inclusive,
// at minute granularity in the window's timezone. The calendar date is ignored.
func (w *Window) Contains(now time.Time) bool {
	c := ClockOf(w.Local(now))
	return c >= w.Start && c <= w.End
}

func (w *Window) String() string {
	loc := "UTC"
	if w.Location != nil {
		loc = w.Location.String()
	}
	return fmt.Sprintf("%s-%s %s", w.Start, w.End, loc)
}
