package waittime

import (
	"fmt"
	"strings"
	"time"
)

// Zero is the sentinel shown when a wait time is unknown or not computable
const Zero = "00:00 min"

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock
var SystemClock Clock = ClockFunc(time.Now)

// Calculator formats the time elapsed since a given instant as "HH:MM min"
type Calculator struct {
	clock    Clock
	location *time.Location
}

// NewCalculator creates a calculator. A nil clock uses the wall clock and a nil
// location interprets zone-less timestamps in local time.
func NewCalculator(clock Clock, location *time.Location) *Calculator {
	if clock == nil {
		clock = SystemClock
	}
	if location == nil {
		location = time.Local
	}
	return &Calculator{clock: clock, location: location}
}

// Location returns the zone used for timestamps without an offset
func (c *Calculator) Location() *time.Location {
	return c.location
}

// Elapsed returns now-since floored to whole minutes. Future instants yield Zero.
func (c *Calculator) Elapsed(since time.Time) string {
	if since.IsZero() {
		return Zero
	}
	diff := c.clock.Now().Sub(since)
	if diff < 0 {
		return Zero
	}
	return Format(diff)
}

// ElapsedString parses since and returns Elapsed, or Zero if it cannot be parsed
func (c *Calculator) ElapsedString(since string) string {
	t, ok := ParseTimestamp(since, c.location)
	if !ok {
		return Zero
	}
	return c.Elapsed(t)
}

// Format renders a non-negative duration as "HH:MM min". Hours are not capped.
func Format(d time.Duration) string {
	if d < 0 {
		return Zero
	}
	totalMinutes := int64(d / time.Minute)
	return fmt.Sprintf("%02d:%02d min", totalMinutes/60, totalMinutes%60)
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z0700",
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 arrival timestamp. Values without an offset
// are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	// date-only values are UTC midnight, as ECMAScript date parsing does
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
