package sleep

import (
	"math"
	"slices"
	"time"

	"github.com/codeGROOVE-dev/snooze/pkg/daytime"
	"github.com/codeGROOVE-dev/snooze/pkg/gap"
	"github.com/codeGROOVE-dev/snooze/pkg/interaction"
	"github.com/codeGROOVE-dev/snooze/pkg/pattern"
)

const (
	// A gap holding this many brief checks is too broken up to be sleep.
	maxBriefChecks = 5

	interruptionMaxLength = 120 * time.Second
	briefCheckImpact      = 0.1
	fullImpactDuration    = 10 * time.Minute

	interruptionWeight     = 0.1
	interruptionsTolerated = 3
	excessPenalty          = 0.05

	manualWindow = 30 * time.Minute

	// Preference-based consistency tolerates this many minutes of bedtime drift.
	preferenceTolerance = 180.0
)

// Confidence weights. They sum to 1.
const (
	weightManual    = 0.5
	weightDuration  = 0.2
	weightPattern   = 0.15
	weightQuality   = 0.1
	weightNighttime = 0.05
)

// lastMeaningful returns the newest meaningful event in sorted events.
func lastMeaningful(events []interaction.Event) (interaction.Event, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if interaction.IsMeaningfulUse(events[i]) {
			return events[i], true
		}
	}
	return interaction.Event{}, false
}

// findSleepStart picks the newest gap that is not flooded with brief checks.
// Without one, it falls back to the still-open gap since the newest meaningful event.
func findSleepStart(events []interaction.Event, prefs *Preferences, now time.Time) (time.Time, bool) {
	if len(events) >= 2 {
		gaps := gap.Detect(events, prefs.MinimumInteractionGap)
		for _, g := range slices.Backward(gaps) {
			if g.BriefInteractions < maxBriefChecks {
				return g.Start, true
			}
		}
	}
	last, ok := lastMeaningful(events)
	if ok && now.Sub(last.Timestamp) >= prefs.MinimumInteractionGap {
		return last.Timestamp, true
	}
	return time.Time{}, false
}

// findSleepEnd returns the first meaningful event strictly after bedtime.
func findSleepEnd(events []interaction.Event, bedtime time.Time) (time.Time, bool) {
	for _, e := range events {
		if e.Timestamp.After(bedtime) && interaction.IsMeaningfulUse(e) {
			return e.Timestamp, true
		}
	}
	return time.Time{}, false
}

func findInterruptions(events []interaction.Event, bedtime, wake time.Time, prefs *Preferences) []Interruption {
	var out []Interruption
	for _, e := range events {
		if !e.Timestamp.After(bedtime) {
			continue
		}
		if !e.Timestamp.Before(wake) {
			break
		}
		if e.Type == interaction.SleepConfirmation {
			continue
		}
		if !interaction.IsTimeCheck(e) && e.Duration >= interruptionMaxLength {
			continue
		}
		brief := e.Duration < prefs.TimeCheckThreshold
		out = append(out, Interruption{
			Timestamp:    e.Timestamp,
			Duration:     e.Duration,
			Cause:        interaction.Classify(e, nil),
			Category:     e.Category,
			IsBriefCheck: brief,
			Impact:       impact(e.Duration, brief),
		})
	}
	return out
}

func impact(d time.Duration, brief bool) float64 {
	if brief {
		return briefCheckImpact
	}
	// Never below a brief check, so impact does not drop as duration grows.
	return math.Max(briefCheckImpact, math.Min(1, float64(d)/float64(fullImpactDuration)))
}

// quality starts at 1, loses a tenth of each interruption's impact, and a flat
// penalty for each interruption past the third.
func quality(interruptions []Interruption) float64 {
	q := 1.0
	for _, i := range interruptions {
		q -= i.Impact * interruptionWeight
	}
	if extra := len(interruptions) - interruptionsTolerated; extra > 0 {
		q -= float64(extra) * excessPenalty
	}
	return clamp(q)
}

func durationScore(hours, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return math.Max(0, 1-math.Abs(hours-target)/target)
}

// preferenceConsistency scores a period against the user's stated goals,
// used until the pattern matcher has learned something.
func preferenceConsistency(bedtime time.Time, hours float64, prefs *Preferences, loc *time.Location) float64 {
	expected := float64(prefs.BedtimeForDay(daytime.Weekday(bedtime, loc)))
	actual := float64(daytime.MinutesSinceMidnight(bedtime, loc))
	bedScore := math.Max(0, 1-daytime.Distance(actual, expected)/preferenceTolerance)
	return (bedScore + durationScore(hours, prefs.TargetSleepHours)) / 2
}

func patternScore(bedtime, wake time.Time, hours float64, prefs *Preferences, m *pattern.Matcher, loc *time.Location) float64 {
	if prefs.EnableSmartDetection && m.Sessions() > 0 {
		return m.Match(bedtime, wake)
	}
	return preferenceConsistency(bedtime, hours, prefs, loc)
}

func confidenceScore(r *Result, prefs *Preferences, loc *time.Location) float64 {
	var score float64
	if r.ManuallyConfirmed {
		score += weightManual
	}
	score += weightDuration * durationScore(r.DurationHours, prefs.TargetSleepHours)
	score += weightPattern * clamp(r.PatternMatchScore)
	score += weightQuality * clamp(r.QualityScore)
	if daytime.IsNighttime(*r.Bedtime, loc) {
		score += weightNighttime
	}
	return clamp(score)
}

// manuallyConfirmed reports whether a sleep confirmation lies within 30 minutes
// of bedtime, either side.
func manuallyConfirmed(events []interaction.Event, bedtime time.Time) bool {
	from, to := bedtime.Add(-manualWindow), bedtime.Add(manualWindow)
	for _, e := range events {
		if e.Type == interaction.SleepConfirmation && !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			return true
		}
	}
	return false
}

// analyze runs one full detection pass over sorted events.
func analyze(events []interaction.Event, now time.Time, prefs *Preferences, m *pattern.Matcher, loc *time.Location) Result {
	var r Result
	if len(events) == 0 {
		return r
	}

	bedtime, ok := findSleepStart(events, prefs, now)
	if !ok {
		return r
	}
	r.Bedtime = &bedtime

	wake, ok := findSleepEnd(events, bedtime)
	if !ok {
		return r
	}
	r.WakeTime = &wake
	r.DurationHours = wake.Sub(bedtime).Hours()

	if prefs.TrackInterruptions {
		r.Interruptions = findInterruptions(events, bedtime, wake, prefs)
	}
	r.QualityScore = quality(r.Interruptions)
	r.PatternMatchScore = patternScore(bedtime, wake, r.DurationHours, prefs, m, loc)
	r.ManuallyConfirmed = manuallyConfirmed(events, bedtime)

	r.Score = confidenceScore(&r, prefs, loc)
	r.Confidence = LevelFor(r.Score)
	if r.ManuallyConfirmed {
		r.Confidence = VeryHigh
	}
	return r
}
