// Package pattern learns a user's typical sleep schedule per day of week and
// scores new sleep periods against it.
package pattern

import (
	"math"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/snooze/pkg/daytime"
)

const (
	learningRate      = 0.1
	confidenceStep    = 0.05
	timeTolerance     = 120.0 // minutes
	likelyWindow      = 180.0 // minutes
	likelyMinWeight   = 0.3
	likelyMinQuiet    = 2 * time.Hour
	regularitySpread  = 180.0 // stddev in minutes at which regularity reaches 0
	regularityMinimum = 8     // sessions before regularity is computed

	defaultBedtime  = 23*60 + 30
	defaultWakeTime = 7*60 + 30
	defaultDuration = 8.0
)

// Session is a finished sleep period fed to the matcher.
type Session struct {
	Bedtime       time.Time
	WakeTime      time.Time
	DurationHours float64
	// Confident marks sessions detected with at least medium confidence.
	Confident bool
}

func (s Session) valid() bool {
	return !s.Bedtime.IsZero() && !s.WakeTime.IsZero() &&
		s.DurationHours >= 1.0 && s.DurationHours <= 24.0
}

// DayPattern is the learned model for one day of week.
type DayPattern struct {
	Bedtime    float64 `json:"bedtime_minutes"`   // minutes since midnight
	WakeTime   float64 `json:"wake_time_minutes"` // minutes since midnight
	Confidence float64 `json:"confidence"`
	Samples    int     `json:"samples"`
}

// Model is a point-in-time copy of everything the matcher has learned.
type Model struct {
	Days                 [7]DayPattern `json:"days"`
	AverageDurationHours float64       `json:"average_duration_hours"`
	Regularity           float64       `json:"regularity"`
	Sessions             int           `json:"sessions"`
}

type dayModel struct {
	bedtime float64 // evening-anchored minutes, see daytime.EveningAnchored
	wake    float64
	weight  float64
	samples int
}

// Matcher holds per-weekday exponential moving averages of bedtime, wake time,
// and a global average sleep duration. It is safe for concurrent use.
type Matcher struct {
	loc         *time.Location
	days        [7]dayModel
	avgDuration float64
	regularity  float64
	sessions    int
	mu          sync.RWMutex
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLocation sets the location used to derive day of week and time of day.
func WithLocation(loc *time.Location) Option {
	return func(m *Matcher) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// New creates a Matcher with no learned sessions.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		loc:         time.Local,
		avgDuration: defaultDuration,
	}
	for i := range m.days {
		m.days[i] = dayModel{bedtime: defaultBedtime, wake: defaultWakeTime}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func ema(old, sample float64) float64 {
	return old*(1-learningRate) + sample*learningRate
}

// Update folds a finished session into the model. Invalid sessions are ignored.
func (m *Matcher) Update(s Session) {
	if !s.valid() {
		return
	}

	day := daytime.Weekday(s.Bedtime, m.loc)
	bed := float64(daytime.EveningAnchored(daytime.MinutesSinceMidnight(s.Bedtime, m.loc)))
	wake := float64(daytime.MinutesSinceMidnight(s.WakeTime, m.loc))

	m.mu.Lock()
	defer m.mu.Unlock()

	d := &m.days[day]
	if d.samples == 0 {
		d.bedtime, d.wake = bed, wake
	} else {
		d.bedtime, d.wake = ema(d.bedtime, bed), ema(d.wake, wake)
	}
	d.samples++

	if m.sessions == 0 {
		m.avgDuration = s.DurationHours
	} else {
		m.avgDuration = ema(m.avgDuration, s.DurationHours)
	}

	if s.Confident {
		d.weight = math.Min(1.0, d.weight+confidenceStep)
	}

	m.sessions++
	if m.sessions >= regularityMinimum {
		m.regularity = m.scheduleRegularity()
	}
}

// scheduleRegularity scores how tightly the seven typical bedtimes cluster.
// Callers hold mu.
func (m *Matcher) scheduleRegularity() float64 {
	var mean float64
	for _, d := range m.days {
		mean += d.bedtime
	}
	mean /= float64(len(m.days))

	var variance float64
	for _, d := range m.days {
		variance += (d.bedtime - mean) * (d.bedtime - mean)
	}
	variance /= float64(len(m.days))

	return math.Max(0, 1-math.Sqrt(variance)/regularitySpread)
}

// Match scores how closely a sleep period fits the learned pattern for the
// bedtime's day of week, in [0,1]. Bedtime and wake deviations are weighted by
// that day's confidence; duration deviation always has weight 1.
func (m *Matcher) Match(bedtime, wake time.Time) float64 {
	day := daytime.Weekday(bedtime, m.loc)
	bed := float64(daytime.MinutesSinceMidnight(bedtime, m.loc))
	wk := float64(daytime.MinutesSinceMidnight(wake, m.loc))
	hours := wake.Sub(bedtime).Hours()

	m.mu.RLock()
	d := m.days[day]
	avg := m.avgDuration
	m.mu.RUnlock()

	bedScore := math.Max(0, 1-daytime.Distance(bed, d.bedtime)/timeTolerance)
	wakeScore := math.Max(0, 1-daytime.Distance(wk, d.wake)/timeTolerance)
	durScore := 0.0
	if avg > 0 {
		durScore = math.Max(0, 1-math.Abs(hours-avg)/avg)
	}

	c := d.weight
	return (c*bedScore + c*wakeScore + durScore) / (2*c + 1)
}

// IsLikelySleepTime reports whether now looks like the user's bedtime: at least two
// hours without interaction, within three hours of that day's typical bedtime, and
// enough learned confidence for the day.
func (m *Matcher) IsLikelySleepTime(now, lastInteraction time.Time) bool {
	if now.Sub(lastInteraction) < likelyMinQuiet {
		return false
	}
	day := daytime.Weekday(now, m.loc)
	minutes := float64(daytime.MinutesSinceMidnight(now, m.loc))

	m.mu.RLock()
	d := m.days[day]
	m.mu.RUnlock()

	return daytime.Distance(minutes, d.bedtime) <= likelyWindow && d.weight > likelyMinWeight
}

// ExpectedBedtime returns the typical bedtime for day (0=Sunday) in minutes since
// midnight. Days outside 0-6 return 23:30.
func (m *Matcher) ExpectedBedtime(day int) int {
	if day < 0 || day > 6 {
		return defaultBedtime
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int(daytime.Normalize(math.Round(m.days[day].bedtime)))
}

// Regularity returns the schedule regularity score in [0,1].
func (m *Matcher) Regularity() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.regularity
}

// AverageDuration returns the smoothed sleep duration in hours.
func (m *Matcher) AverageDuration() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.avgDuration
}

// Sessions returns how many sessions have been learned.
func (m *Matcher) Sessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions
}

// Snapshot returns a copy of the learned model.
func (m *Matcher) Snapshot() Model {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := Model{
		AverageDurationHours: m.avgDuration,
		Regularity:           m.regularity,
		Sessions:             m.sessions,
	}
	for i, d := range m.days {
		out.Days[i] = DayPattern{
			Bedtime:    daytime.Normalize(d.bedtime),
			WakeTime:   d.wake,
			Confidence: d.weight,
			Samples:    d.samples,
		}
	}
	return out
}

// Restore replaces the learned state with a model saved by Snapshot.
func (m *Matcher) Restore(model Model) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range model.Days {
		bed := d.Bedtime
		if bed < 12*60 {
			bed += daytime.MinutesPerDay
		}
		m.days[i] = dayModel{
			bedtime: bed,
			wake:    d.WakeTime,
			weight:  math.Max(0, math.Min(1, d.Confidence)),
			samples: d.Samples,
		}
	}
	m.avgDuration = model.AverageDurationHours
	if m.avgDuration <= 0 {
		m.avgDuration = defaultDuration
	}
	m.regularity = model.Regularity
	m.sessions = model.Sessions
}
