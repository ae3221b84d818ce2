package interaction

import "time"

// Duration thresholds used when an event arrives without a type.
const (
	timeCheckMax     = 15 * time.Second // below this is always a time check
	ambiguousMax     = 30 * time.Second // 15s-30s depends on context
	meaningfulMax    = 5 * time.Minute  // at or above this is extended use
	continuationSpan = 2 * time.Minute
)

// Classify returns the interaction type of e. A type that is already set is kept.
// Unknown events are classified by duration; events in the ambiguous 15-30s band
// count as a continuation of a meaningful session when prev was meaningful use
// less than two minutes earlier. A prev later than e never continues it.
func Classify(e Event, prev *Event) Type {
	if e.Type != Unknown {
		return e.Type
	}

	switch {
	case e.Duration < timeCheckMax:
		return TimeCheck
	case e.Duration < ambiguousMax:
		if prev != nil && prev.Type == MeaningfulUse {
			if gap := e.Timestamp.Sub(prev.Timestamp); gap >= 0 && gap < continuationSpan {
				return MeaningfulUse
			}
		}
		return TimeCheck
	case e.Duration < meaningfulMax:
		return MeaningfulUse
	default:
		return ExtendedUse
	}
}

// resolve returns the event type, falling back to duration-only classification.
func resolve(e Event) Type {
	if e.Type != Unknown {
		return e.Type
	}
	return Classify(e, nil)
}

// IsTimeCheck reports whether e is a brief check.
func IsTimeCheck(e Event) bool {
	return resolve(e) == TimeCheck
}

// IsMeaningfulUse reports whether e indicates the user was awake and engaged.
func IsMeaningfulUse(e Event) bool {
	switch resolve(e) {
	case MeaningfulUse, ExtendedUse, NotificationResponse:
		return true
	default:
		return false
	}
}
