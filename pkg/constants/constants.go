// Package constants defines shared constants for the snooze engine.
package constants

import "time"

// MaxEvents is the default capacity of the interaction event ring buffer.
// Once full, the oldest event is overwritten.
const MaxEvents = 10_000

// CacheTTL is how long a detection result stays valid when no new events arrive.
const CacheTTL = 5 * time.Minute

// RetentionWindow is how much event history Optimize keeps.
const RetentionWindow = 7 * 24 * time.Hour

// HistoryNights is the default number of finalized nights kept by the history store.
const HistoryNights = 90
