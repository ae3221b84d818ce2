// Package daytime provides wall-clock helpers for sleep analysis.
// Instants are stored as time.Time; these functions interpret them in a
// caller-supplied location.
package daytime

import (
	"math"
	"time"
)

// MinutesPerDay is the number of minutes in a calendar day.
const MinutesPerDay = 24 * 60

// Nighttime window used for time-of-day plausibility.
const (
	NightStart = 22 * 60 // 22:00
	NightEnd   = 6 * 60  // 06:00
)

// In returns t in loc, treating a nil loc as time.Local.
func In(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc)
}

// MinutesSinceMidnight returns the wall-clock minute of t in loc (0-1439).
// Example: 23:30 returns 1410.
func MinutesSinceMidnight(t time.Time, loc *time.Location) int {
	local := In(t, loc)
	return local.Hour()*60 + local.Minute()
}

// Weekday returns the day of week of t in loc.
func Weekday(t time.Time, loc *time.Location) time.Weekday {
	return In(t, loc).Weekday()
}

// EveningAnchored maps a minute of day onto a scale that is continuous across
// midnight for bedtimes: times before noon are treated as belonging to the
// previous evening.
// Example: 00:30 (30) returns 1470, 23:30 (1410) stays 1410.
func EveningAnchored(minutes int) int {
	if minutes < 12*60 {
		return minutes + MinutesPerDay
	}
	return minutes
}

// Normalize wraps a minute count into 0-1439.
// Example: 1470 returns 30, -30 returns 1410.
func Normalize(minutes float64) float64 {
	return math.Mod(math.Mod(minutes, MinutesPerDay)+MinutesPerDay, MinutesPerDay)
}

// Distance returns the shortest distance in minutes between two minutes of day,
// going either way around the clock (0-720).
// Example: Distance(1430, 10) returns 20.
func Distance(a, b float64) float64 {
	d := math.Abs(Normalize(a) - Normalize(b))
	if d > MinutesPerDay/2 {
		d = MinutesPerDay - d
	}
	return d
}

// WithinDailyRange reports whether t falls between start and end minutes of day,
// inclusive. Ranges where start > end wrap past midnight (for example 22:00-06:00).
func WithinDailyRange(t time.Time, loc *time.Location, start, end int) bool {
	m := MinutesSinceMidnight(t, loc)
	if start <= end {
		return m >= start && m <= end
	}
	return m >= start || m <= end
}

// IsNighttime reports whether t falls in the 22:00-06:00 window.
func IsNighttime(t time.Time, loc *time.Location) bool {
	return WithinDailyRange(t, loc, NightStart, NightEnd)
}

// Clock formats a minute of day as HH:MM.
func Clock(minutes float64) string {
	m := int(Normalize(math.Round(minutes)))
	return time.Date(0, 1, 1, m/60, m%60, 0, 0, time.UTC).Format("15:04")
}
