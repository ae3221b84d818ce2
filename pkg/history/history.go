// Package history keeps a bounded record of finished sleep sessions, one per
// night, with an optional snapshot on disk.
package history

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/maypok86/otter/v2"

	"github.com/codeGROOVE-dev/snooze/pkg/constants"
	"github.com/codeGROOVE-dev/snooze/pkg/pattern"
	"github.com/codeGROOVE-dev/snooze/pkg/sleep"
)

const snapshotFile = "sessions.gob"

// NightLayout formats night keys.
const NightLayout = "2006-01-02"

// Entry is one recorded night.
type Entry struct {
	RecordedAt time.Time
	Night      string
	Result     sleep.Result
}

// snapshot is the on-disk format.
type snapshot struct {
	Model   *pattern.Model
	Entries []Entry
}

// Option configures a Store.
type Option func(*OptionHolder)

// WithMaxNights bounds how many nights are kept.
func WithMaxNights(n int) Option {
	return func(o *OptionHolder) {
		o.maxNights = n
	}
}

// WithLocation sets the location night keys are computed in.
func WithLocation(loc *time.Location) Option {
	return func(o *OptionHolder) {
		o.loc = loc
	}
}

// WithRetention expires nights this long after they were recorded.
func WithRetention(d time.Duration) Option {
	return func(o *OptionHolder) {
		o.retention = d
	}
}

// WithSaveInterval snapshots to disk periodically. Only used by Open.
func WithSaveInterval(d time.Duration) Option {
	return func(o *OptionHolder) {
		o.saveInterval = d
	}
}

// WithSaveAttempts sets how many times a snapshot write is tried.
func WithSaveAttempts(n uint) Option {
	return func(o *OptionHolder) {
		o.saveAttempts = n
	}
}

// OptionHolder holds configuration options.
type OptionHolder struct {
	loc          *time.Location
	maxNights    int
	retention    time.Duration
	saveInterval time.Duration
	saveAttempts uint
}

// Store holds recorded nights keyed by night date. It is safe for concurrent use.
type Store struct {
	cache      *otter.Cache[string, Entry]
	logger     *slog.Logger
	loc        *time.Location
	model      *pattern.Model
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	attempts   uint
	mu         sync.Mutex
}

func holder(opts []Option) *OptionHolder {
	o := &OptionHolder{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New creates an in-memory store.
func New(logger *slog.Logger, opts ...Option) *Store {
	return newStore(logger, holder(opts))
}

func newStore(logger *slog.Logger, o *OptionHolder) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if o.maxNights <= 0 {
		o.maxNights = constants.HistoryNights
	}
	if o.loc == nil {
		o.loc = time.Local
	}
	if o.saveAttempts == 0 {
		o.saveAttempts = 3
	}

	copts := &otter.Options[string, Entry]{
		MaximumSize:     o.maxNights,
		InitialCapacity: min(o.maxNights, 64),
	}
	if o.retention > 0 {
		copts.ExpiryCalculator = otter.ExpiryWriting[string, Entry](o.retention)
	}

	return &Store{
		cache:    otter.Must(copts),
		logger:   logger,
		loc:      o.loc,
		attempts: o.saveAttempts,
	}
}

// Open creates a store backed by a snapshot in dir, loading any existing one.
// Close writes the final snapshot.
func Open(ctx context.Context, dir string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	o := holder(opts)
	s := newStore(logger, o)
	s.dir = dir

	if err := s.load(); err != nil {
		s.logger.Warn("failed to load history from disk", "error", err)
	}
	s.logger.Info("history opened", "dir", dir, "nights", s.Len())

	if o.saveInterval > 0 {
		s.startPeriodicSave(ctx, o.saveInterval)
	}
	return s, nil
}

// Night returns the night a bedtime belongs to. Bedtimes before noon count
// toward the previous evening.
func Night(bedtime time.Time, loc *time.Location) string {
	local := bedtime.In(loc)
	if local.Hour() < 12 {
		local = local.AddDate(0, 0, -1)
	}
	return local.Format(NightLayout)
}

// Record stores a finished session, replacing any earlier one for the same night.
// Results that are not valid sleep periods are ignored.
func (s *Store) Record(r sleep.Result) bool {
	if !r.Valid() {
		return false
	}
	night := Night(*r.Bedtime, s.loc)
	s.cache.Set(night, Entry{Night: night, Result: r.Clone(), RecordedAt: time.Now()})
	s.logger.Debug("recorded night", "night", night, "hours", r.DurationHours)
	return true
}

// Get returns the session recorded for night (formatted as NightLayout).
func (s *Store) Get(night string) (sleep.Result, bool) {
	e, ok := s.cache.GetIfPresent(night)
	if !ok {
		return sleep.Result{}, false
	}
	return e.Result.Clone(), true
}

// All returns every recorded session ordered by bedtime.
func (s *Store) All() []sleep.Result {
	entries := s.entries()
	out := make([]sleep.Result, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Result.Clone())
	}
	return out
}

func (s *Store) entries() []Entry {
	var out []Entry
	for _, e := range s.cache.All() {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return a.Result.Bedtime.Compare(*b.Result.Bedtime)
	})
	return out
}

// Len returns the approximate number of recorded nights.
func (s *Store) Len() int {
	return s.cache.EstimatedSize()
}

// SetModel remembers a pattern model to persist with the sessions.
func (s *Store) SetModel(m pattern.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = &m
}

// Model returns the persisted pattern model, if any.
func (s *Store) Model() (pattern.Model, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return pattern.Model{}, false
	}
	return *s.model, true
}

func (s *Store) path() string {
	return filepath.Join(s.dir, snapshotFile)
}

func (s *Store) load() error {
	file, err := os.Open(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("no existing history file", "path", s.path())
			return nil
		}
		return fmt.Errorf("opening history file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			s.logger.Debug("failed to close history file", "error", closeErr)
		}
	}()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return fmt.Errorf("decoding history file: %w", err)
	}
	loaded := 0
	for _, e := range snap.Entries {
		if e.Result.Valid() {
			s.cache.Set(e.Night, e)
			loaded++
		}
	}
	s.mu.Lock()
	s.model = snap.Model
	s.mu.Unlock()

	s.logger.Debug("loaded history", "path", s.path(), "entries", len(snap.Entries), "loaded", loaded)
	return nil
}

// Save writes the snapshot, retrying with backoff. It is a no-op for stores
// created with New.
func (s *Store) Save(ctx context.Context) error {
	if s.dir == "" {
		return nil
	}
	err := retry.Do(
		s.write,
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("retrying history save", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}

func (s *Store) write() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempPath := s.path() + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp history file: %w", err)
	}
	defer func() {
		if removeErr := os.Remove(tempPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			s.logger.Debug("failed to remove temp file", "error", removeErr)
		}
	}()

	snap := snapshot{Model: s.model, Entries: s.entries()}
	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		_ = file.Close() //nolint:errcheck // already failing
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close() //nolint:errcheck // already failing
		return fmt.Errorf("syncing history file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing history file: %w", err)
	}
	if err := os.Rename(tempPath, s.path()); err != nil {
		return fmt.Errorf("replacing history file: %w", err)
	}

	s.logger.Debug("history saved", "nights", len(snap.Entries), "path", s.path())
	return nil
}

func (s *Store) startPeriodicSave(ctx context.Context, interval time.Duration) {
	saveCtx, cancel := context.WithCancel(ctx)
	s.saveCancel = cancel

	s.saveWg.Add(1)
	go func() {
		defer s.saveWg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-saveCtx.Done():
				return
			case <-ticker.C:
				if err := s.Save(saveCtx); err != nil {
					s.logger.Error("periodic history save failed", "error", err)
				}
			}
		}
	}()
}

// Close stops periodic saving and writes a final snapshot.
func (s *Store) Close(ctx context.Context) error {
	if s.saveCancel != nil {
		s.saveCancel()
	}
	s.saveWg.Wait()
	return s.Save(ctx)
}
