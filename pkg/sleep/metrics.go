package sleep

import (
	"maps"
	"sync"
	"time"
)

// Operation names reported by Detector.PerformanceMetrics.
const (
	opDetect              = "detect"
	opCacheHit            = "cache_hit"
	opAddEvent            = "add_event"
	opIsCurrentlyAsleep   = "is_currently_asleep"
	opEstimatedSleepStart = "estimated_sleep_start"
	opUpdatePreferences   = "update_preferences"
	opClearOldData        = "clear_old_data"
)

// Stat is the accumulated elapsed time of one operation.
type Stat struct {
	Count int           `json:"count"`
	Total time.Duration `json:"total_ns"`
	Last  time.Duration `json:"last_ns"`
	Max   time.Duration `json:"max_ns"`
}

// Average returns the mean elapsed time per call.
func (s Stat) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

type metrics struct {
	stats map[string]Stat
	mu    sync.Mutex
}

func newMetrics() *metrics {
	return &metrics{stats: make(map[string]Stat)}
}

// since records the time elapsed from start. Intended for use with defer.
func (m *metrics) since(op string, start time.Time) {
	elapsed := time.Since(start)
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats[op]
	s.Count++
	s.Total += elapsed
	s.Last = elapsed
	s.Max = max(s.Max, elapsed)
	m.stats[op] = s
}

func (m *metrics) snapshot() map[string]Stat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.stats)
}

func (m *metrics) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.stats)
}
