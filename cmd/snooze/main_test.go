package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/snooze/pkg/export"
	"github.com/codeGROOVE-dev/snooze/pkg/sleep"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// writeLog writes two nights, Monday and Tuesday, sleeping 23:00 to 07:00 UTC
// with one glance at 03:00, and phone use every two hours on Tuesday.
func writeLog(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp_ms,duration_ms,type,category\n")
	b.WriteString("# two nights\n")
	for day := range 2 {
		bed := time.Date(2025, 3, 10+day, 23, 0, 0, 0, time.UTC)
		fmt.Fprintf(&b, "%d,120000,0,1\n", bed.UnixMilli())
		fmt.Fprintf(&b, "%d,10000,0,5\n", bed.Add(4*time.Hour).UnixMilli())
		fmt.Fprintf(&b, "%d,180000,0,2\n", bed.Add(8*time.Hour).UnixMilli())
		if day == 0 {
			for h := 10; h <= 22; h += 2 {
				fmt.Fprintf(&b, "%d,120000,0,4\n", bed.Add(time.Duration(h)*time.Hour).UnixMilli())
			}
		}
	}
	path := filepath.Join(t.TempDir(), "events.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadEvents(t *testing.T) {
	in := "timestamp_ms,duration_ms,type,category\n2000,5000,1,0\n# note\n1000, 60000, 2, 3\n3000,0\n"
	got, err := readEvents(strings.NewReader(in))
	if err != nil {
		t.Fatalf("readEvents: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("read %d events, want 3", len(got))
	}
	if got[0].timestampMS != 1000 || got[0].typeCode != 2 || got[0].categoryCode != 3 {
		t.Errorf("first event = %+v, want the earliest row", got[0])
	}
	if got[2].typeCode != 0 {
		t.Errorf("missing type column should default to unknown, got %d", got[2].typeCode)
	}

	if _, err := readEvents(strings.NewReader("abc,1\n")); err == nil {
		t.Error("expected an error for a non-numeric timestamp")
	}
	if _, err := readEvents(strings.NewReader("1000\n")); err == nil {
		t.Error("expected an error for a row without duration")
	}
}

func TestLoadPreferences(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.yaml")
	if err := os.WriteFile(path, []byte("target_sleep_hours: 7.5\nminimum_interaction_gap: 3h\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := loadPreferences(path)
	if err != nil {
		t.Fatalf("loadPreferences: %v", err)
	}
	if p.TargetSleepHours != 7.5 || p.MinimumInteractionGap != 3*time.Hour {
		t.Errorf("preferences = %+v", p)
	}
	if p.WeekdayBedtime != sleep.DefaultPreferences().WeekdayBedtime {
		t.Error("unset fields should keep their defaults")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("target_sleep_hours: 15\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadPreferences(bad); !errors.Is(err, sleep.ErrInvalidPreferences) {
		t.Errorf("loadPreferences(bad) error = %v", err)
	}
}

func TestRunFormats(t *testing.T) {
	color.NoColor = true
	path := writeLog(t)
	ctx := context.Background()

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		if err := run(ctx, quiet, config{eventsPath: path, format: "text", tz: "UTC"}, &out); err != nil {
			t.Fatalf("run: %v", err)
		}
		t.Logf("report:\n%s", out.String())
		for _, want := range []string{"Bedtime:     Tue 23:00", "Duration:    8.0 hours", "Interruptions: 1", "Learned from 2 nights"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("report missing %q", want)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		if err := run(ctx, quiet, config{eventsPath: path, format: "json", tz: "UTC"}, &out); err != nil {
			t.Fatalf("run: %v", err)
		}
		var doc struct {
			TotalSessions int `json:"total_sessions"`
		}
		if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if doc.TotalSessions != 2 {
			t.Errorf("total_sessions = %d, want 2", doc.TotalSessions)
		}
	})

	t.Run("csv", func(t *testing.T) {
		var out bytes.Buffer
		if err := run(ctx, quiet, config{eventsPath: path, format: "csv", tz: "UTC"}, &out); err != nil {
			t.Fatalf("run: %v", err)
		}
		rows := strings.Split(strings.TrimSpace(out.String()), "\n")
		if len(rows) != 3 || !strings.HasPrefix(rows[1], "2025-03-10,23:00,07:00,8.00") {
			t.Errorf("unexpected csv:\n%s", out.String())
		}
	})

	t.Run("binary", func(t *testing.T) {
		var out bytes.Buffer
		if err := run(ctx, quiet, config{eventsPath: path, format: "binary", tz: "UTC"}, &out); err != nil {
			t.Fatalf("run: %v", err)
		}
		if out.Len() != 2*export.RecordSize {
			t.Fatalf("wrote %d bytes, want two records", out.Len())
		}
		r, err := export.UnmarshalBinary(out.Bytes()[export.RecordSize:])
		if err != nil {
			t.Fatal(err)
		}
		if !r.Bedtime.Equal(time.Date(2025, 3, 11, 23, 0, 0, 0, time.UTC)) {
			t.Errorf("second record bedtime = %v", r.Bedtime)
		}
	})
}

func TestRunHistoryAcrossInvocations(t *testing.T) {
	path := writeLog(t)
	dir := t.TempDir()
	ctx := context.Background()

	cfg := config{eventsPath: path, format: "json", tz: "UTC", historyDir: dir}
	if err := run(ctx, quiet, cfg, io.Discard); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sessions.gob")); err != nil {
		t.Fatalf("history not saved: %v", err)
	}

	// A second run over the same nights keeps one session per night.
	var out bytes.Buffer
	if err := run(ctx, quiet, cfg, &out); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.Contains(out.String(), `"total_sessions": 2`) {
		t.Errorf("unexpected export:\n%s", out.String())
	}
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	if err := run(ctx, quiet, config{format: "text"}, io.Discard); !errors.Is(err, errUsage) {
		t.Errorf("missing -events error = %v", err)
	}
	if err := run(ctx, quiet, config{eventsPath: "x", format: "xml"}, io.Discard); !errors.Is(err, errUsage) {
		t.Errorf("bad format error = %v", err)
	}
	if err := run(ctx, quiet, config{eventsPath: writeLog(t), format: "text", tz: "Not/AZone"}, io.Discard); err == nil {
		t.Error("expected an error for an unknown time zone")
	}
}
