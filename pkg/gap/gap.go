// Package gap finds inactivity gaps between meaningful phone interactions.
package gap

import (
	"time"

	"github.com/codeGROOVE-dev/snooze/pkg/interaction"
)

// TimeGap is a span with no meaningful use between two meaningful events.
type TimeGap struct {
	Start             time.Time     `json:"start"`
	End               time.Time     `json:"end"`
	Duration          time.Duration `json:"duration"`
	BriefInteractions int           `json:"brief_interactions"`
}

// ContainsBriefInteractions reports whether any time checks fell inside the gap.
func (g TimeGap) ContainsBriefInteractions() bool {
	return g.BriefInteractions > 0
}

// Hours returns the gap length in hours.
func (g TimeGap) Hours() float64 {
	return g.Duration.Hours()
}

// Detect scans events, which must be sorted by timestamp, and returns every gap
// of at least minGap between consecutive meaningful events. The scan cursor starts
// at the first event whatever its type and moves to each meaningful event.
func Detect(events []interaction.Event, minGap time.Duration) []TimeGap {
	if len(events) < 2 {
		return nil
	}

	var gaps []TimeGap
	cursor := 0
	for i := 1; i < len(events); i++ {
		if !interaction.IsMeaningfulUse(events[i]) {
			continue
		}

		start, end := events[cursor].Timestamp, events[i].Timestamp
		if elapsed := end.Sub(start); elapsed > 0 && elapsed >= minGap {
			brief := 0
			for _, e := range events[cursor+1 : i] {
				if interaction.IsTimeCheck(e) {
					brief++
				}
			}
			gaps = append(gaps, TimeGap{
				Start:             start,
				End:               end,
				Duration:          elapsed,
				BriefInteractions: brief,
			})
		}
		cursor = i
	}
	return gaps
}
