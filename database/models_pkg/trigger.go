package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Trigger types
const (
	TriggerTime    = "time"
	TriggerEvent   = "event"
	TriggerPattern = "pattern"
	TriggerManual  = "manual"
)

// Trigger is the decoded form of an automation's trigger_config. Exactly one
// variant exists per trigger type.
type Trigger interface {
	Type() string
}

// TimeTrigger fires at a wall-clock time, optionally restricted to weekdays
// (0=Monday ... 6=Sunday). Empty DaysOfWeek means every day.
type TimeTrigger struct {
	Time       string `json:"time"`
	DaysOfWeek []int  `json:"days_of_week,omitempty"`
}

func (TimeTrigger) Type() string { return TriggerTime }

// MinuteOfDay returns the trigger time as minutes since midnight.
func (t TimeTrigger) MinuteOfDay() (int, error) {
	return ParseClock(t.Time)
}

// Matches reports whether weekday is allowed by DaysOfWeek.
func (t TimeTrigger) Matches(weekday int) bool {
	if len(t.DaysOfWeek) == 0 {
		return true
	}
	for _, d := range t.DaysOfWeek {
		if d == weekday {
			return true
		}
	}
	return false
}

// EventTrigger fires when a device event matches. Empty fields match anything.
type EventTrigger struct {
	EventType string `json:"event_type"`
	DeviceID  string `json:"device_id,omitempty"`
	State     string `json:"state,omitempty"`
}

func (EventTrigger) Type() string { return TriggerEvent }

// PatternTrigger binds an automation to a learned pattern.
type PatternTrigger struct {
	PatternID uint `json:"pattern_id"`
}

func (PatternTrigger) Type() string { return TriggerPattern }

// ManualTrigger only fires on explicit request.
type ManualTrigger struct{}

func (ManualTrigger) Type() string { return TriggerManual }

// ParseTrigger validates raw against the schema of triggerType.
func ParseTrigger(triggerType string, raw []byte) (Trigger, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = []byte("{}")
	}
	switch triggerType {
	case TriggerTime:
		var t TimeTrigger
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("invalid time trigger: %w", err)
		}
		if _, err := ParseClock(t.Time); err != nil {
			return nil, fmt.Errorf("invalid time trigger: %w", err)
		}
		if err := ValidateDays(t.DaysOfWeek); err != nil {
			return nil, fmt.Errorf("invalid time trigger: %w", err)
		}
		return t, nil
	case TriggerEvent:
		var t EventTrigger
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("invalid event trigger: %w", err)
		}
		if t.EventType == "" {
			return nil, fmt.Errorf("invalid event trigger: event_type is required")
		}
		return t, nil
	case TriggerPattern:
		var t PatternTrigger
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("invalid pattern trigger: %w", err)
		}
		if t.PatternID == 0 {
			return nil, fmt.Errorf("invalid pattern trigger: pattern_id is required")
		}
		return t, nil
	case TriggerManual:
		return ManualTrigger{}, nil
	default:
		return nil, fmt.Errorf("unknown trigger type %q", triggerType)
	}
}

// ParseClock parses "HH:MM" (24h) into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders hour and minute as zero-padded "HH:MM".
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// ValidateDays checks that every entry is a weekday index in 0..6.
func ValidateDays(days []int) error {
	for _, d := range days {
		if d < 0 || d > 6 {
			return fmt.Errorf("day_of_week %d out of range 0..6", d)
		}
	}
	return nil
}
