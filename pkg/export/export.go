// Package export renders sleep detection results as JSON, CSV, or fixed binary records.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/snooze/pkg/sleep"
)

// timestampLayout is ISO-8601 UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

func timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

type jsonInterruption struct {
	Timestamp    string  `json:"timestamp"`
	DurationMS   int64   `json:"duration_ms"`
	Cause        string  `json:"cause"`
	Category     string  `json:"category"`
	IsBriefCheck bool    `json:"is_brief_check"`
	ImpactScore  float64 `json:"impact_score"`
}

type jsonSession struct {
	Bedtime           string             `json:"bedtime,omitempty"`
	WakeTime          string             `json:"wake_time,omitempty"`
	Interruptions     []jsonInterruption `json:"interruptions,omitempty"`
	Confidence        string             `json:"confidence"`
	DurationHours     float64            `json:"duration_hours"`
	ConfidenceLevel   int                `json:"confidence_level"`
	ConfidenceScore   float64            `json:"confidence_score"`
	QualityScore      float64            `json:"quality_score"`
	PatternMatchScore float64            `json:"pattern_match_score"`
	SleepEfficiency   float64            `json:"sleep_efficiency"`
	InterruptionCount int                `json:"interruptions_count"`
	ManuallyConfirmed bool               `json:"manually_confirmed"`
}

type jsonExport struct {
	ExportTimestamp string        `json:"export_timestamp"`
	Sessions        []jsonSession `json:"sleep_sessions"`
	TotalSessions   int           `json:"total_sessions"`
	IncludeDebug    bool          `json:"include_debug"`
}

// JSON renders sessions as one export document. Interruptions are listed only
// when includeDebug is set.
func JSON(sessions []sleep.Result, exportedAt time.Time, includeDebug bool) ([]byte, error) {
	doc := jsonExport{
		ExportTimestamp: timestamp(exportedAt),
		TotalSessions:   len(sessions),
		IncludeDebug:    includeDebug,
		Sessions:        make([]jsonSession, 0, len(sessions)),
	}
	for i := range sessions {
		r := &sessions[i]
		s := jsonSession{
			DurationHours:     r.DurationHours,
			Confidence:        r.Confidence.String(),
			ConfidenceLevel:   int(r.Confidence),
			ConfidenceScore:   r.Score,
			QualityScore:      r.QualityScore,
			PatternMatchScore: r.PatternMatchScore,
			SleepEfficiency:   r.SleepEfficiency(),
			InterruptionCount: len(r.Interruptions),
			ManuallyConfirmed: r.ManuallyConfirmed,
		}
		if r.Bedtime != nil {
			s.Bedtime = timestamp(*r.Bedtime)
		}
		if r.WakeTime != nil {
			s.WakeTime = timestamp(*r.WakeTime)
		}
		if includeDebug {
			for _, in := range r.Interruptions {
				s.Interruptions = append(s.Interruptions, jsonInterruption{
					Timestamp:    timestamp(in.Timestamp),
					DurationMS:   in.Duration.Milliseconds(),
					Cause:        in.Cause.String(),
					Category:     in.Category.String(),
					IsBriefCheck: in.IsBriefCheck,
					ImpactScore:  in.Impact,
				})
			}
		}
		doc.Sessions = append(doc.Sessions, s)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sessions: %w", err)
	}
	return data, nil
}

var csvHeader = []string{
	"Date", "Bedtime", "WakeTime", "DurationHours", "Confidence", "QualityScore",
	"ManuallyConfirmed", "PatternMatch", "SleepEfficiency", "InterruptionsCount",
}

func decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// CSV renders one row per valid session. Dates and clock times are in loc.
func CSV(sessions []sleep.Result, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i := range sessions {
		r := &sessions[i]
		if !r.Valid() {
			continue
		}
		bed, wake := r.Bedtime.In(loc), r.WakeTime.In(loc)
		row := []string{
			bed.Format("2006-01-02"),
			bed.Format("15:04"),
			wake.Format("15:04"),
			decimal(r.DurationHours),
			r.Confidence.String(),
			decimal(r.QualityScore),
			strconv.FormatBool(r.ManuallyConfirmed),
			decimal(r.PatternMatchScore),
			decimal(r.SleepEfficiency()),
			strconv.Itoa(len(r.Interruptions)),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

type metricJSON struct {
	Count     int     `json:"count"`
	TotalMS   float64 `json:"total_ms"`
	AverageMS float64 `json:"average_ms"`
	LastMS    float64 `json:"last_ms"`
	MaxMS     float64 `json:"max_ms"`
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// MetricsJSON renders detector performance counters.
func MetricsJSON(stats map[string]sleep.Stat, at time.Time) ([]byte, error) {
	ops := make(map[string]metricJSON, len(stats))
	for name, s := range stats {
		ops[name] = metricJSON{
			Count:     s.Count,
			TotalMS:   millis(s.Total),
			AverageMS: millis(s.Average()),
			LastMS:    millis(s.Last),
			MaxMS:     millis(s.Max),
		}
	}
	data, err := json.MarshalIndent(struct {
		Timestamp  string                `json:"timestamp"`
		Operations map[string]metricJSON `json:"operations"`
	}{timestamp(at), ops}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metrics: %w", err)
	}
	return data, nil
}
