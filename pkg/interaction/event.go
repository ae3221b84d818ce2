// Package interaction models phone interaction events and classifies them
// as brief checks or meaningful use.
package interaction

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by FromRaw for malformed host input.
var (
	ErrNegativeDuration = errors.New("negative interaction duration")
	ErrUnknownType      = errors.New("unknown interaction type code")
	ErrUnknownCategory  = errors.New("unknown app category code")
)

// Type is the classification of a single interaction.
// The numeric values are the codes used by host bridges.
type Type uint8

// Interaction types.
const (
	Unknown              Type = 0
	TimeCheck            Type = 1 // brief glance at clock or notifications
	MeaningfulUse        Type = 2
	NotificationResponse Type = 3
	ExtendedUse          Type = 4 // session of 5 minutes or more
	SleepConfirmation    Type = 5 // explicit "going to sleep now"
)

func (t Type) String() string {
	switch t {
	case Unknown:
		return "unknown"
	case TimeCheck:
		return "time_check"
	case MeaningfulUse:
		return "meaningful_use"
	case NotificationResponse:
		return "notification_response"
	case ExtendedUse:
		return "extended_use"
	case SleepConfirmation:
		return "sleep_confirmation"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// AppCategory describes the app an interaction happened in. It is informational only.
type AppCategory uint8

// App categories.
const (
	CategoryUnknown       AppCategory = 0
	CategorySocialMedia   AppCategory = 1
	CategoryMessaging     AppCategory = 2
	CategoryEntertainment AppCategory = 3
	CategoryProductivity  AppCategory = 4
	CategoryClockAlarm    AppCategory = 5
	CategorySystem        AppCategory = 6
)

func (c AppCategory) String() string {
	switch c {
	case CategoryUnknown:
		return "unknown"
	case CategorySocialMedia:
		return "social_media"
	case CategoryMessaging:
		return "messaging"
	case CategoryEntertainment:
		return "entertainment"
	case CategoryProductivity:
		return "productivity"
	case CategoryClockAlarm:
		return "clock_alarm"
	case CategorySystem:
		return "system"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// Event is a single screen interaction. Events are values and are never mutated
// once stored.
type Event struct {
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Type      Type          `json:"type"`
	Category  AppCategory   `json:"category"`
}

// WithType returns a copy of e with its type replaced.
func (e Event) WithType(t Type) Event {
	e.Type = t
	return e
}

// FromRaw converts host bridge values into an Event.
// Timestamps and durations are in milliseconds.
func FromRaw(tsMillis, durationMillis int64, typeCode, categoryCode int) (Event, error) {
	if durationMillis < 0 {
		return Event{}, fmt.Errorf("duration %dms: %w", durationMillis, ErrNegativeDuration)
	}
	if typeCode < int(Unknown) || typeCode > int(SleepConfirmation) {
		return Event{}, fmt.Errorf("code %d: %w", typeCode, ErrUnknownType)
	}
	if categoryCode < int(CategoryUnknown) || categoryCode > int(CategorySystem) {
		return Event{}, fmt.Errorf("code %d: %w", categoryCode, ErrUnknownCategory)
	}
	return Event{
		Timestamp: time.UnixMilli(tsMillis),
		Duration:  time.Duration(durationMillis) * time.Millisecond,
		Type:      Type(typeCode),
		Category:  AppCategory(categoryCode),
	}, nil
}
