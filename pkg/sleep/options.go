package sleep

import (
	"time"

	"github.com/codeGROOVE-dev/snooze/pkg/pattern"
)

// Option configures a Detector.
type Option func(*OptionHolder)

// WithPreferences sets the initial preferences. Invalid preferences are logged
// and the defaults are kept.
func WithPreferences(p Preferences) Option {
	return func(o *OptionHolder) {
		o.prefs = &p
	}
}

// WithCapacity sets the event buffer capacity.
func WithCapacity(n int) Option {
	return func(o *OptionHolder) {
		o.capacity = n
	}
}

// WithLocation sets the location used for time-of-day and day-of-week decisions.
func WithLocation(loc *time.Location) Option {
	return func(o *OptionHolder) {
		o.loc = loc
	}
}

// WithCacheTTL sets how long a detected sleep period is served from cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *OptionHolder) {
		o.cacheTTL = ttl
	}
}

// WithPatternMatcher shares an existing pattern matcher, for example one restored
// from a saved model.
func WithPatternMatcher(m *pattern.Matcher) Option {
	return func(o *OptionHolder) {
		o.matcher = m
	}
}

// OptionHolder holds configuration options.
type OptionHolder struct {
	prefs    *Preferences
	loc      *time.Location
	matcher  *pattern.Matcher
	capacity int
	cacheTTL time.Duration
}
