// Package main implements the snooze CLI, which replays a phone interaction log
// through the sleep detector.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/snooze/pkg/daytime"
	"github.com/codeGROOVE-dev/snooze/pkg/export"
	"github.com/codeGROOVE-dev/snooze/pkg/histogram"
	"github.com/codeGROOVE-dev/snooze/pkg/history"
	"github.com/codeGROOVE-dev/snooze/pkg/interaction"
	"github.com/codeGROOVE-dev/snooze/pkg/pattern"
	"github.com/codeGROOVE-dev/snooze/pkg/sleep"
)

var (
	eventsPath = flag.String("events", "", "Event log CSV: timestamp_ms,duration_ms,type,category (- for stdin)")
	nowFlag    = flag.String("now", "", "Current time, RFC3339 (default: one minute after the last event)")
	prefsPath  = flag.String("prefs", "", "Preferences YAML file")
	format     = flag.String("format", "text", "Output format: text, json, csv, or binary")
	historyDir = flag.String("history-dir", "", "Directory to keep session history in (or set SNOOZE_HISTORY_DIR)")
	tzName     = flag.String("tz", "", "IANA time zone for wall-clock decisions (or set SNOOZE_TZ)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Show version")
)

var errUsage = errors.New("usage")

type config struct {
	eventsPath string
	now        string
	prefsPath  string
	format     string
	historyDir string
	tz         string
	verbose    bool
}

func main() {
	flag.Parse()

	if *version {
		fmt.Println("snooze CLI v0.3.0")
		return
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	cfg := config{
		eventsPath: *eventsPath,
		now:        *nowFlag,
		prefsPath:  *prefsPath,
		format:     *format,
		historyDir: *historyDir,
		tz:         *tzName,
		verbose:    *verbose,
	}
	if cfg.tz == "" {
		cfg.tz = os.Getenv("SNOOZE_TZ")
	}
	if cfg.historyDir == "" {
		cfg.historyDir = os.Getenv("SNOOZE_HISTORY_DIR")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, logger, cfg, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Usage: %s -events file.csv [flags]\n", os.Args[0])
			flag.PrintDefaults()
		} else {
			logger.Error("snooze failed", "error", err)
		}
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg config, out io.Writer) error {
	if cfg.eventsPath == "" {
		return errUsage
	}
	switch cfg.format {
	case "text", "json", "csv", "binary":
	default:
		return fmt.Errorf("%w: unknown format %q", errUsage, cfg.format)
	}

	loc := time.Local
	if cfg.tz != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.tz); err != nil {
			return fmt.Errorf("loading time zone: %w", err)
		}
	}

	prefs := sleep.DefaultPreferences()
	if cfg.prefsPath != "" {
		var err error
		if prefs, err = loadPreferences(cfg.prefsPath); err != nil {
			return err
		}
	}

	raw, err := readEventsFile(cfg.eventsPath)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return errors.New("event log is empty")
	}

	var hist *history.Store
	if cfg.historyDir != "" {
		if hist, err = history.Open(ctx, cfg.historyDir, logger, history.WithLocation(loc)); err != nil {
			return err
		}
	} else {
		hist = history.New(logger, history.WithLocation(loc))
	}
	defer func() {
		if err := hist.Close(ctx); err != nil {
			logger.Error("failed to save history", "error", err)
		}
	}()

	matcher := pattern.New(pattern.WithLocation(loc))
	if model, ok := hist.Model(); ok {
		matcher.Restore(model)
		logger.Debug("restored pattern model", "sessions", model.Sessions)
	}

	detector := sleep.NewWithLogger(logger,
		sleep.WithPreferences(prefs),
		sleep.WithLocation(loc),
		sleep.WithPatternMatcher(matcher),
		sleep.WithCapacity(max(len(raw), 1)),
	)

	// Detect after each meaningful event so every night in the log is learned
	// in order, then once more at the requested time.
	events := make([]interaction.Event, 0, len(raw))
	for _, re := range raw {
		typ, err := detector.Ingest(re.timestampMS, re.duration, re.typeCode, re.categoryCode)
		if err != nil {
			logger.Warn("skipping event", "line", re.line, "error", err)
			continue
		}
		e, _ := re.toEvent() //nolint:errcheck // accepted by Ingest above
		e = e.WithType(typ)
		events = append(events, e)
		if interaction.IsMeaningfulUse(e) {
			hist.Record(detector.Detect(e.Timestamp.Add(time.Minute)))
		}
	}
	if len(events) == 0 {
		return errors.New("no usable events in log")
	}

	now := events[len(events)-1].Timestamp.Add(time.Minute)
	if cfg.now != "" {
		if now, err = time.Parse(time.RFC3339, cfg.now); err != nil {
			return fmt.Errorf("parsing -now: %w", err)
		}
	}
	result := detector.Detect(now)
	hist.Record(result)
	hist.SetModel(detector.PatternModel())

	switch cfg.format {
	case "json":
		data, err := export.JSON(hist.All(), now, cfg.verbose)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "csv":
		data, err := export.CSV(hist.All(), loc)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	case "binary":
		for _, r := range hist.All() {
			data, err := export.MarshalBinary(r)
			if err != nil {
				return err
			}
			if _, err := out.Write(data); err != nil {
				return fmt.Errorf("writing record: %w", err)
			}
		}
		return nil
	default:
		printText(out, detector, result, events, now, loc, cfg.verbose)
		return nil
	}
}

func printText(out io.Writer, d *sleep.Detector, r sleep.Result, events []interaction.Event, now time.Time, loc *time.Location, verbose bool) {
	fmt.Fprintf(out, "\n😴 Sleep Report for %s\n", now.In(loc).Format("Mon Jan 2 15:04 MST"))
	fmt.Fprintln(out, strings.Repeat("─", 50))

	switch {
	case r.Valid():
		fmt.Fprintf(out, "🛏️  Bedtime:     %s\n", r.Bedtime.In(loc).Format("Mon 15:04"))
		fmt.Fprintf(out, "⏰ Wake time:   %s\n", r.WakeTime.In(loc).Format("Mon 15:04"))
		fmt.Fprintf(out, "⏱️  Duration:    %.1f hours\n", r.DurationHours)
		fmt.Fprintf(out, "📈 Confidence:  %s (%.0f%%)\n", confidenceColor(r.Confidence).Sprint(r.Confidence), r.Score*100)
		fmt.Fprintf(out, "✨ Quality:     %.2f, efficiency %.1f%%\n", r.QualityScore, r.SleepEfficiency()*100)
		fmt.Fprintf(out, "🔁 Pattern:     %.2f\n", r.PatternMatchScore)
		if r.ManuallyConfirmed {
			fmt.Fprintln(out, "✅ Confirmed manually")
		}
		if n := len(r.Interruptions); n > 0 {
			fmt.Fprintf(out, "⚡ Interruptions: %d\n", n)
		}
	case r.Bedtime != nil:
		fmt.Fprintf(out, "🌙 Asleep since %s\n", r.Bedtime.In(loc).Format("Mon 15:04"))
	default:
		fmt.Fprintln(out, "No sleep period detected")
	}

	if d.IsCurrentlyAsleep(now) {
		if start := d.EstimatedSleepStart(now); start != nil {
			fmt.Fprintf(out, "💤 Currently asleep, estimated since %s\n", start.In(loc).Format("15:04"))
		}
	} else if d.IsLikelySleepTime(now) {
		fmt.Fprintln(out, "🌙 Usually asleep around now")
	}

	model := d.PatternModel()
	if model.Sessions > 0 {
		fmt.Fprintf(out, "📅 Learned from %d nights, regularity %.2f, usual bedtime tonight %s\n",
			model.Sessions, model.Regularity,
			daytime.Clock(model.Days[daytime.Weekday(now, loc)].Bedtime))
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, histogram.Night(r, events, loc))

	if verbose {
		data, err := export.MetricsJSON(d.PerformanceMetrics(), now)
		if err == nil {
			fmt.Fprintln(out, "\n⚙️  Performance")
			fmt.Fprintln(out, string(data))
		}
		s := d.Statistics()
		fmt.Fprintf(out, "events=%d periods=%d cache_hits=%d cache_misses=%d buffered=%d memory=%dB\n",
			s.EventsProcessed, s.SleepPeriodsDetected, s.CacheHits, s.CacheMisses, s.BufferedEvents, s.MemoryBytes)
	}
}

func confidenceColor(c sleep.Confidence) *color.Color {
	switch c {
	case sleep.VeryHigh, sleep.High:
		return color.New(color.FgGreen)
	case sleep.Medium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
