// Package timeutil provides timezone-aware helpers for deciding which calendar
// day "today" is for a report run.
// Rating histories are day-granular, so every report anchors on a single
// reference day resolved in the configured location.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve on hosts without a zoneinfo database
)

// Clock returns the current time. Tests replace it with a fixed clock.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// LoadLocation resolves a timezone name. An empty name or "UTC" yields UTC,
// "Local" yields the process location.
func LoadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "UTC", "utc":
		return time.UTC, nil
	case "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Today returns midnight of the current day in loc according to clock.
func Today(clock Clock, loc *time.Location) time.Time {
	if clock == nil {
		clock = SystemClock
	}
	return StartOfDay(clock(), loc)
}
