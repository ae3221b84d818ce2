// Package histogram renders a night of phone interactions as a terminal timeline.
package histogram

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/snooze/pkg/interaction"
	"github.com/codeGROOVE-dev/snooze/pkg/sleep"
)

// Rows are this long.
const bucket = 30 * time.Minute

// Markers in the second column.
const (
	markBedtime      = "B"
	markWake         = "W"
	markInterruption = "!"
	markSleep        = "z"
)

type row struct {
	start       time.Time
	mark        string
	meaningful  int
	other       int
	interrupted bool
}

// span returns the window to draw: an hour either side of the sleep period.
// Open periods run to the newest event.
func span(r sleep.Result, events []interaction.Event) (time.Time, time.Time, bool) {
	if r.Bedtime == nil {
		return time.Time{}, time.Time{}, false
	}
	end := *r.Bedtime
	if r.WakeTime != nil {
		end = *r.WakeTime
	} else if n := len(events); n > 0 && events[n-1].Timestamp.After(end) {
		end = events[n-1].Timestamp
	}
	return r.Bedtime.Add(-time.Hour).Truncate(bucket), end.Add(time.Hour), true
}

func markerColor(mark string) *color.Color {
	switch mark {
	case markBedtime, markWake:
		return color.New(color.FgCyan, color.Bold)
	case markInterruption:
		return color.New(color.FgRed)
	case markSleep:
		return color.New(color.FgBlue)
	default:
		return color.New(color.Reset)
	}
}

// Night draws one row per 30 minutes around a detected sleep period. Rows
// inside the period are marked z, rows holding an interruption !, and the
// bedtime and wake rows B and W. Bars count events: meaningful use in yellow,
// everything else in grey. Events must be sorted by timestamp.
func Night(r sleep.Result, events []interaction.Event, loc *time.Location) string {
	var output strings.Builder
	output.WriteString("🌙 Night Timeline (30-minute resolution)\n")
	output.WriteString(strings.Repeat("─", 50) + "\n")

	from, to, ok := span(r, events)
	if !ok {
		return output.String() + "No sleep period detected\n"
	}
	if loc == nil {
		loc = time.Local
	}

	var rows []row
	for t := from; t.Before(to); t = t.Add(bucket) {
		rows = append(rows, row{start: t})
	}
	index := func(t time.Time) int {
		if t.Before(from) || !t.Before(to) {
			return -1
		}
		return int(t.Sub(from) / bucket)
	}

	for _, e := range events {
		i := index(e.Timestamp)
		if i < 0 {
			continue
		}
		if interaction.IsMeaningfulUse(e) {
			rows[i].meaningful++
		} else {
			rows[i].other++
		}
	}
	for _, in := range r.Interruptions {
		if i := index(in.Timestamp); i >= 0 {
			rows[i].interrupted = true
		}
	}

	for i := range rows {
		rw := &rows[i]
		end := rw.start.Add(bucket)
		asleep := end.After(*r.Bedtime) && (r.WakeTime == nil || rw.start.Before(*r.WakeTime))
		switch {
		case index(*r.Bedtime) == i:
			rw.mark = markBedtime
		case r.WakeTime != nil && index(*r.WakeTime) == i:
			rw.mark = markWake
		case rw.interrupted:
			rw.mark = markInterruption
		case asleep:
			rw.mark = markSleep
		}
	}

	if total := len(events); total < 5 {
		output.WriteString(fmt.Sprintf("⚠️  Limited data: only %d events available\n", total))
		output.WriteString(strings.Repeat("─", 50) + "\n")
	}

	yellow := color.New(color.FgYellow)
	grey := color.New(color.FgHiBlack)
	for _, rw := range rows {
		line := rw.start.In(loc).Format("15:04") + " "
		if rw.mark != "" {
			line += markerColor(rw.mark).Sprint(rw.mark) + " "
		} else {
			line += "  "
		}

		count := rw.meaningful + rw.other
		if count > 0 {
			line += fmt.Sprintf("(%2d) ", count)
			if rw.meaningful > 0 {
				line += yellow.Sprint(strings.Repeat("█", rw.meaningful))
			}
			switch {
			case rw.other == 1 && rw.meaningful == 0:
				line += grey.Sprint("·")
			case rw.other > 0:
				line += grey.Sprint(strings.Repeat("█", rw.other))
			}
		}
		output.WriteString(strings.TrimRight(line, " ") + "\n")
	}

	if r.Valid() {
		output.WriteString(strings.Repeat("─", 50) + "\n")
		output.WriteString(fmt.Sprintf("💤 %s → %s  %.1fh  confidence %s  quality %.2f\n",
			r.Bedtime.In(loc).Format("15:04"), r.WakeTime.In(loc).Format("15:04"),
			r.DurationHours, r.Confidence, r.QualityScore))
	}
	return output.String()
}
