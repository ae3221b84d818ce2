// Package sleep infers bedtime and wake time from phone interaction events.
package sleep

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/snooze/pkg/constants"
	"github.com/codeGROOVE-dev/snooze/pkg/eventstore"
	"github.com/codeGROOVE-dev/snooze/pkg/interaction"
	"github.com/codeGROOVE-dev/snooze/pkg/pattern"
)

// CacheState is the lifecycle of the detector's cached result.
type CacheState uint8

// Cache states.
const (
	NoResult CacheState = iota
	Detecting
	Cached
)

func (s CacheState) String() string {
	switch s {
	case NoResult:
		return "no_result"
	case Detecting:
		return "detecting"
	case Cached:
		return "cached"
	default:
		return fmt.Sprintf("CacheState(%d)", uint8(s))
	}
}

// Stats are running totals for diagnostics.
type Stats struct {
	EventsProcessed      uint64 `json:"events_processed"`
	SleepPeriodsDetected uint64 `json:"sleep_periods_detected"`
	CacheHits            uint64 `json:"cache_hits"`
	CacheMisses          uint64 `json:"cache_misses"`
	BufferedEvents       int    `json:"buffered_events"`
	MemoryBytes          int    `json:"memory_bytes"`
}

// Approximate in-memory size of one buffered event.
const eventBytes = 40

type sessionKey struct {
	bedtime, wake int64
}

// Detector is the sleep period detector. It is safe for concurrent use.
type Detector struct {
	logger  *slog.Logger
	store   *eventstore.Store
	matcher *pattern.Matcher
	loc     *time.Location
	metrics *metrics
	prefs   atomic.Pointer[Preferences]

	// Guarded by mu.
	cached     Result
	cachedAt   time.Time
	learned    map[sessionKey]struct{}
	generation uint64
	state      CacheState
	mu         sync.Mutex

	cacheTTL time.Duration

	eventsProcessed atomic.Uint64
	periodsDetected atomic.Uint64
	cacheHits       atomic.Uint64
	cacheMisses     atomic.Uint64
}

// NewWithLogger creates a new Detector with a custom logger.
func NewWithLogger(logger *slog.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	optHolder := &OptionHolder{}
	for _, opt := range opts {
		opt(optHolder)
	}

	loc := optHolder.loc
	if loc == nil {
		loc = time.Local
	}
	ttl := optHolder.cacheTTL
	if ttl <= 0 {
		ttl = constants.CacheTTL
	}
	matcher := optHolder.matcher
	if matcher == nil {
		matcher = pattern.New(pattern.WithLocation(loc))
	}

	d := &Detector{
		logger:   logger,
		store:    eventstore.New(optHolder.capacity),
		matcher:  matcher,
		loc:      loc,
		metrics:  newMetrics(),
		learned:  make(map[sessionKey]struct{}),
		cacheTTL: ttl,
	}

	prefs := DefaultPreferences()
	if optHolder.prefs != nil {
		if err := optHolder.prefs.Validate(); err != nil {
			logger.Warn("ignoring invalid preferences, using defaults", "error", err)
		} else {
			prefs = *optHolder.prefs
		}
	}
	d.prefs.Store(&prefs)

	logger.Debug("sleep detector created",
		"capacity", d.store.Cap(), "location", loc.String(), "cache_ttl", ttl)
	return d
}

// New creates a new Detector using slog.Default().
func New(opts ...Option) *Detector {
	return NewWithLogger(slog.Default(), opts...)
}

// invalidate drops the cached result. Callers must not hold mu.
func (d *Detector) invalidate() {
	d.mu.Lock()
	d.state = NoResult
	d.cached = Result{}
	d.cachedAt = time.Time{}
	d.generation++
	d.mu.Unlock()
}

// AddEvent classifies an event against the previous one, buffers it, and returns
// the classified type. Negative durations are clamped to zero.
func (d *Detector) AddEvent(e interaction.Event) interaction.Type {
	defer d.metrics.since(opAddEvent, time.Now())

	if e.Duration < 0 {
		e.Duration = 0
	}
	var prev *interaction.Event
	if last, ok := d.store.Last(); ok {
		prev = &last
	}
	e.Type = interaction.Classify(e, prev)
	d.store.Add(e)
	d.eventsProcessed.Add(1)
	d.invalidate()
	return e.Type
}

// Ingest accepts an event in host wire form: Unix milliseconds and raw codes.
func (d *Detector) Ingest(tsMillis, durationMillis int64, typeCode, categoryCode int) (interaction.Type, error) {
	e, err := interaction.FromRaw(tsMillis, durationMillis, typeCode, categoryCode)
	if err != nil {
		d.logger.Warn("rejecting raw event", "timestamp_ms", tsMillis, "error", err)
		return interaction.Unknown, fmt.Errorf("ingest event: %w", err)
	}
	return d.AddEvent(e), nil
}

// ConfirmManualSleep records that the user said they were going to sleep at ts.
func (d *Detector) ConfirmManualSleep(ts time.Time) {
	d.AddEvent(interaction.Event{
		Timestamp: ts,
		Type:      interaction.SleepConfirmation,
		Category:  interaction.CategorySystem,
	})
}

// Detect returns the most plausible sleep period as of now. Valid results are
// cached until the cache TTL passes or an input changes.
func (d *Detector) Detect(now time.Time) Result {
	start := time.Now()

	d.mu.Lock()
	if d.state == Cached && !now.Before(d.cachedAt) && now.Sub(d.cachedAt) < d.cacheTTL {
		r := d.cached.Clone()
		d.mu.Unlock()
		d.cacheHits.Add(1)
		d.metrics.since(opCacheHit, start)
		return r
	}
	gen := d.generation
	d.state = Detecting
	d.mu.Unlock()

	defer d.metrics.since(opDetect, start)
	d.cacheMisses.Add(1)

	events := d.store.SnapshotSorted()
	prefs := d.prefs.Load()
	r := analyze(events, now, prefs, d.matcher, d.loc)

	d.mu.Lock()
	if d.generation != gen {
		// An input changed while we were computing; leave the cache empty.
		d.mu.Unlock()
		return r
	}
	if !r.Valid() {
		d.state = NoResult
		d.mu.Unlock()
		d.logger.Debug("no finished sleep period",
			"events", len(events), "bedtime", r.Bedtime != nil)
		return r
	}
	d.state = Cached
	d.cached = r.Clone()
	d.cachedAt = now
	key := sessionKey{bedtime: r.Bedtime.UnixMilli(), wake: r.WakeTime.UnixMilli()}
	_, seen := d.learned[key]
	d.learned[key] = struct{}{}
	d.mu.Unlock()

	if !seen {
		d.periodsDetected.Add(1)
		d.matcher.Update(pattern.Session{
			Bedtime:       *r.Bedtime,
			WakeTime:      *r.WakeTime,
			DurationHours: r.DurationHours,
			Confident:     r.Confidence >= Medium,
		})
		d.logger.Info("sleep period detected",
			"bedtime", r.Bedtime.In(d.loc).Format(time.RFC3339),
			"wake", r.WakeTime.In(d.loc).Format(time.RFC3339),
			"hours", fmt.Sprintf("%.1f", r.DurationHours),
			"confidence", r.Confidence.String(),
			"interruptions", len(r.Interruptions))
	}
	return r
}

// IsCurrentlyAsleep reports whether the newest meaningful event is at least the
// minimum interaction gap before now.
func (d *Detector) IsCurrentlyAsleep(now time.Time) bool {
	defer d.metrics.since(opIsCurrentlyAsleep, time.Now())
	return d.asleep(d.store.SnapshotSorted(), now)
}

func (d *Detector) asleep(events []interaction.Event, now time.Time) bool {
	last, ok := lastMeaningful(events)
	return ok && now.Sub(last.Timestamp) >= d.prefs.Load().MinimumInteractionGap
}

// EstimatedSleepStart returns when the current sleep began, or nil when the user
// does not appear to be asleep.
func (d *Detector) EstimatedSleepStart(now time.Time) *time.Time {
	defer d.metrics.since(opEstimatedSleepStart, time.Now())
	events := d.store.SnapshotSorted()
	if !d.asleep(events, now) {
		return nil
	}
	bedtime, ok := findSleepStart(events, d.prefs.Load(), now)
	if !ok {
		return nil
	}
	return &bedtime
}

// IsLikelySleepTime reports whether now matches the learned bedtime for today
// after a long enough quiet period.
func (d *Detector) IsLikelySleepTime(now time.Time) bool {
	last, ok := lastMeaningful(d.store.SnapshotSorted())
	if !ok {
		return false
	}
	return d.matcher.IsLikelySleepTime(now, last.Timestamp)
}

// UpdatePreferences validates and installs p. On error the previous preferences
// stay in effect.
func (d *Detector) UpdatePreferences(p Preferences) error {
	defer d.metrics.since(opUpdatePreferences, time.Now())
	if err := p.Validate(); err != nil {
		d.logger.Warn("rejecting preferences update", "error", err)
		return fmt.Errorf("update preferences: %w", err)
	}
	d.prefs.Store(&p)
	d.invalidate()
	d.logger.Info("preferences updated",
		"target_hours", p.TargetSleepHours,
		"minimum_gap", p.MinimumInteractionGap,
		"smart_detection", p.EnableSmartDetection)
	return nil
}

// Preferences returns a copy of the preferences in effect.
func (d *Detector) Preferences() Preferences {
	return *d.prefs.Load()
}

// ClearOldData drops events before cutoff and returns how many were removed.
func (d *Detector) ClearOldData(cutoff time.Time) int {
	defer d.metrics.since(opClearOldData, time.Now())
	n := d.store.PurgeOlderThan(cutoff)

	d.mu.Lock()
	for k := range d.learned {
		if k.wake < cutoff.UnixMilli() {
			delete(d.learned, k)
		}
	}
	d.mu.Unlock()

	d.invalidate()
	if n > 0 {
		d.logger.Debug("cleared old events", "removed", n, "cutoff", cutoff)
	}
	return n
}

// Optimize drops events outside the retention window, releases buffer slack,
// and resets performance counters.
func (d *Detector) Optimize(now time.Time) {
	n := d.ClearOldData(now.Add(-constants.RetentionWindow))
	d.store.Compact()
	d.metrics.reset()
	d.logger.Debug("optimized", "removed", n, "buffered", d.store.Len())
}

// PerformanceMetrics returns elapsed-time statistics per operation.
func (d *Detector) PerformanceMetrics() map[string]Stat {
	return d.metrics.snapshot()
}

// Statistics returns running totals.
func (d *Detector) Statistics() Stats {
	n := d.store.Len()
	return Stats{
		EventsProcessed:      d.eventsProcessed.Load(),
		SleepPeriodsDetected: d.periodsDetected.Load(),
		CacheHits:            d.cacheHits.Load(),
		CacheMisses:          d.cacheMisses.Load(),
		BufferedEvents:       n,
		MemoryBytes:          d.store.Cap() * eventBytes,
	}
}

// CacheState returns the current cache state.
func (d *Detector) CacheState() CacheState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// PatternModel returns a copy of what the pattern matcher has learned.
func (d *Detector) PatternModel() pattern.Model {
	return d.matcher.Snapshot()
}

// Regularity returns the learned schedule regularity in [0,1].
func (d *Detector) Regularity() float64 {
	return d.matcher.Regularity()
}
