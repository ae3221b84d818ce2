package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/snooze/pkg/interaction"
	"github.com/codeGROOVE-dev/snooze/pkg/sleep"
)

// rawEvent is one line of an event log: timestamp_ms,duration_ms,type,category.
type rawEvent struct {
	line                   int
	timestampMS, duration  int64
	typeCode, categoryCode int
}

// readEvents parses an event log. A header line is skipped, and rows come back
// ordered by timestamp.
func readEvents(r io.Reader) ([]rawEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []rawEvent
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading events: %w", err)
		}
		if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "timestamp_ms") {
			continue
		}
		ev, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ev.line = line
		out = append(out, ev)
	}
	slices.SortStableFunc(out, func(a, b rawEvent) int {
		switch {
		case a.timestampMS < b.timestampMS:
			return -1
		case a.timestampMS > b.timestampMS:
			return 1
		default:
			return 0
		}
	})
	return out, nil
}

func parseRow(rec []string) (rawEvent, error) {
	if len(rec) < 2 {
		return rawEvent{}, fmt.Errorf("want at least timestamp_ms and duration_ms, got %d fields", len(rec))
	}
	fields := make([]int64, 4)
	for i := range min(len(rec), 4) {
		v, err := strconv.ParseInt(strings.TrimSpace(rec[i]), 10, 64)
		if err != nil {
			return rawEvent{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		fields[i] = v
	}
	return rawEvent{
		timestampMS:  fields[0],
		duration:     fields[1],
		typeCode:     int(fields[2]),
		categoryCode: int(fields[3]),
	}, nil
}

func readEventsFile(path string) ([]rawEvent, error) {
	if path == "-" {
		return readEvents(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening events: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file
	return readEvents(f)
}

// loadPreferences reads YAML preferences over the defaults, so a file only
// needs the fields it changes.
func loadPreferences(path string) (sleep.Preferences, error) {
	prefs := sleep.DefaultPreferences()
	data, err := os.ReadFile(path)
	if err != nil {
		return prefs, fmt.Errorf("reading preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return prefs, fmt.Errorf("parsing preferences: %w", err)
	}
	if err := prefs.Validate(); err != nil {
		return prefs, err
	}
	return prefs, nil
}

// toEvent converts a row the same way Detector.Ingest does.
func (e rawEvent) toEvent() (interaction.Event, error) {
	return interaction.FromRaw(e.timestampMS, e.duration, e.typeCode, e.categoryCode)
}
