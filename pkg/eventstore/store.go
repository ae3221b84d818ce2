// Package eventstore provides a bounded, thread-safe ring buffer of interaction events.
package eventstore

import (
	"slices"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/snooze/pkg/constants"
	"github.com/codeGROOVE-dev/snooze/pkg/interaction"
)

// Store holds the most recent interaction events in insertion order.
// When the buffer is full, new events overwrite the oldest ones.
type Store struct {
	events   []interaction.Event
	capacity int
	next     int // slot the next write goes to once the buffer is full
	full     bool
	mu       sync.Mutex
}

// New creates a store holding at most capacity events.
// A non-positive capacity uses constants.MaxEvents.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = constants.MaxEvents
	}
	return &Store{
		events:   make([]interaction.Event, 0, min(capacity, 1024)),
		capacity: capacity,
	}
}

// Add appends an event, overwriting the oldest one when the store is full.
func (s *Store) Add(e interaction.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.full {
		s.events = append(s.events, e)
		if len(s.events) == s.capacity {
			s.full = true
			s.next = 0
		}
		return
	}
	s.events[s.next] = e
	s.next = (s.next + 1) % s.capacity
}

// Last returns the most recently added event.
func (s *Store) Last() (interaction.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == 0 {
		return interaction.Event{}, false
	}
	if !s.full {
		return s.events[len(s.events)-1], true
	}
	idx := (s.next - 1 + s.capacity) % s.capacity
	return s.events[idx], true
}

// SnapshotSorted returns a copy of all retained events ordered by timestamp.
// Events with equal timestamps keep their insertion order.
func (s *Store) SnapshotSorted() []interaction.Event {
	s.mu.Lock()
	out := s.ordered()
	s.mu.Unlock()

	slices.SortStableFunc(out, func(a, b interaction.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}

// ordered returns a copy of the events in insertion order. Callers hold mu.
func (s *Store) ordered() []interaction.Event {
	out := make([]interaction.Event, 0, len(s.events))
	if !s.full {
		return append(out, s.events...)
	}
	out = append(out, s.events[s.next:]...)
	return append(out, s.events[:s.next]...)
}

// PurgeOlderThan removes events with timestamps before cutoff and returns how many were removed.
func (s *Store) PurgeOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := slices.DeleteFunc(s.ordered(), func(e interaction.Event) bool {
		return e.Timestamp.Before(cutoff)
	})
	removed := len(s.events) - len(kept)
	if removed == 0 {
		return 0
	}

	// Back in insertion order with room to grow, so writes append again.
	s.events = kept
	s.full = len(kept) >= s.capacity
	s.next = 0
	return removed
}

// Compact releases unused buffer memory.
func (s *Store) Compact() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.full || cap(s.events) == len(s.events) {
		return
	}
	s.events = slices.Clip(slices.Clone(s.events))
}

// Len returns the number of retained events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Cap returns the maximum number of retained events.
func (s *Store) Cap() int {
	return s.capacity
}
