package sleep

import (
	"errors"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/snooze/pkg/daytime"
)

// ErrInvalidPreferences is returned when preference values are out of range.
var ErrInvalidPreferences = errors.New("invalid preferences")

// Preferences are the user's sleep goals and detection tuning.
// Bedtimes and wake time are minutes since midnight.
type Preferences struct {
	TargetSleepHours      float64       `json:"target_sleep_hours" yaml:"target_sleep_hours"`
	TargetBedtime         int           `json:"target_bedtime" yaml:"target_bedtime"`
	TargetWakeTime        int           `json:"target_wake_time" yaml:"target_wake_time"`
	WeekdayBedtime        int           `json:"weekday_bedtime" yaml:"weekday_bedtime"`
	WeekendBedtime        int           `json:"weekend_bedtime" yaml:"weekend_bedtime"`
	MinimumInteractionGap time.Duration `json:"minimum_interaction_gap" yaml:"minimum_interaction_gap"`
	TimeCheckThreshold    time.Duration `json:"time_check_threshold" yaml:"time_check_threshold"`
	ConfidenceThreshold   float64       `json:"confidence_threshold" yaml:"confidence_threshold"`
	TrackInterruptions    bool          `json:"track_interruptions" yaml:"track_interruptions"`
	EnableSmartDetection  bool          `json:"enable_smart_detection" yaml:"enable_smart_detection"`
}

// DefaultPreferences returns an 8 hour target with a 23:30 bedtime.
func DefaultPreferences() Preferences {
	return Preferences{
		TargetSleepHours:      8.0,
		TargetBedtime:         23*60 + 30,
		TargetWakeTime:        7*60 + 30,
		WeekdayBedtime:        23*60 + 30,
		WeekendBedtime:        24 * 60,
		MinimumInteractionGap: 4 * time.Hour,
		TimeCheckThreshold:    30 * time.Second,
		ConfidenceThreshold:   0.7,
		TrackInterruptions:    true,
		EnableSmartDetection:  true,
	}
}

// Validate reports the first out-of-range field. NaN is out of every range.
func (p Preferences) Validate() error {
	switch {
	case !(p.TargetSleepHours >= 1 && p.TargetSleepHours <= 12):
		return fmt.Errorf("%w: target sleep hours %.1f outside 1-12", ErrInvalidPreferences, p.TargetSleepHours)
	case !(p.ConfidenceThreshold >= 0.1 && p.ConfidenceThreshold <= 1):
		return fmt.Errorf("%w: confidence threshold %.2f outside 0.1-1", ErrInvalidPreferences, p.ConfidenceThreshold)
	case p.MinimumInteractionGap < time.Hour:
		return fmt.Errorf("%w: minimum interaction gap %v below 1h", ErrInvalidPreferences, p.MinimumInteractionGap)
	case p.TimeCheckThreshold <= 0:
		return fmt.Errorf("%w: time check threshold must be positive", ErrInvalidPreferences)
	}
	for _, b := range []struct {
		name    string
		minutes int
	}{
		{"target bedtime", p.TargetBedtime},
		{"weekday bedtime", p.WeekdayBedtime},
		{"weekend bedtime", p.WeekendBedtime},
	} {
		if b.minutes < 0 || b.minutes > daytime.MinutesPerDay {
			return fmt.Errorf("%w: %s %d outside 0-%d", ErrInvalidPreferences, b.name, b.minutes, daytime.MinutesPerDay)
		}
	}
	if p.TargetWakeTime < 0 || p.TargetWakeTime >= daytime.MinutesPerDay {
		return fmt.Errorf("%w: target wake time %d outside 0-%d", ErrInvalidPreferences, p.TargetWakeTime, daytime.MinutesPerDay-1)
	}
	return nil
}

// BedtimeForDay returns the weekend bedtime on Saturday and Sunday and the
// weekday bedtime otherwise.
func (p Preferences) BedtimeForDay(day time.Weekday) int {
	if day == time.Saturday || day == time.Sunday {
		return p.WeekendBedtime
	}
	return p.WeekdayBedtime
}
