package sleep

import (
	"fmt"
	"math"
	"time"

	"github.com/codeGROOVE-dev/snooze/pkg/interaction"
)

// Confidence is an ordinal estimate of how trustworthy a detected sleep period is.
type Confidence uint8

// Confidence levels, lowest first.
const (
	VeryLow Confidence = iota
	Low
	Medium
	High
	VeryHigh
)

func (c Confidence) String() string {
	switch c {
	case VeryLow:
		return "Very Low"
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	case VeryHigh:
		return "Very High"
	default:
		return fmt.Sprintf("Confidence(%d)", uint8(c))
	}
}

// LevelFor maps a confidence fraction in [0,1] to a level by fifths.
func LevelFor(score float64) Confidence {
	level := int(math.Floor(clamp(score) * 5))
	return Confidence(min(level, int(VeryHigh)))
}

// Interruption is a brief wake-up inside a sleep period.
type Interruption struct {
	Timestamp    time.Time               `json:"timestamp"`
	Duration     time.Duration           `json:"duration"`
	Cause        interaction.Type        `json:"cause"`
	Category     interaction.AppCategory `json:"category"`
	IsBriefCheck bool                    `json:"is_brief_check"`
	Impact       float64                 `json:"impact_score"`
}

// Result is the outcome of one sleep detection pass.
// A result without WakeTime means the user may still be asleep.
type Result struct {
	Bedtime           *time.Time     `json:"bedtime,omitempty"`
	WakeTime          *time.Time     `json:"wake_time,omitempty"`
	Interruptions     []Interruption `json:"interruptions,omitempty"`
	DurationHours     float64        `json:"duration_hours"`
	Score             float64        `json:"confidence_score"`
	QualityScore      float64        `json:"quality_score"`
	PatternMatchScore float64        `json:"pattern_match_score"`
	Confidence        Confidence     `json:"confidence"`
	ManuallyConfirmed bool           `json:"manually_confirmed"`
}

// Valid reports whether the result is a finished, physiologically plausible sleep period.
func (r Result) Valid() bool {
	return r.Bedtime != nil && r.WakeTime != nil &&
		r.DurationHours >= 1.0 && r.DurationHours <= 24.0
}

// SleepEfficiency returns the share of time in bed not spent on interruptions.
func (r Result) SleepEfficiency() float64 {
	if !r.Valid() {
		return 0
	}
	inBed := r.WakeTime.Sub(*r.Bedtime)
	if inBed <= 0 {
		return 0
	}
	var awake time.Duration
	for _, i := range r.Interruptions {
		awake += i.Duration
	}
	return clamp(float64(inBed-awake) / float64(inBed))
}

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	out := r
	if r.Bedtime != nil {
		t := *r.Bedtime
		out.Bedtime = &t
	}
	if r.WakeTime != nil {
		t := *r.WakeTime
		out.WakeTime = &t
	}
	if r.Interruptions != nil {
		out.Interruptions = append([]Interruption(nil), r.Interruptions...)
	}
	return out
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
