// Package events carries hub notifications from the automation pipeline to
// the SSE broker, webhooks and the Redis channel.
package events

import (
	"context"
	"sync"
	"time"
)

// Event types
const (
	PatternDetected    = "pattern_detected"
	SuggestionCreated  = "suggestion_created"
	SuggestionAnswered = "suggestion_answered"
	AutomationCreated  = "automation_created"
	AutomationExecuted = "automation_executed"
	DeviceStateChange  = "device_state_change"
	DeviceAction       = "device_action"
)

// Event is one notification. Payload is JSON-encoded by every sink.
type Event struct {
	Type    string      `json:"type"`
	UserID  string      `json:"user_id,omitempty"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

// New stamps an event with the current time.
func New(eventType, userID string, payload interface{}) Event {
	return Event{Type: eventType, UserID: userID, At: time.Now(), Payload: payload}
}

// Publisher receives events. Implementations must not block the caller for long.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Multi fans an event out to every non-nil publisher.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}

// Nop drops everything.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Recorder keeps published events in memory, for tests and the CLI.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types lists recorded event types in publish order.
func (r *Recorder) Types() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

// DeviceEvent is the payload of DeviceStateChange and DeviceAction events.
type DeviceEvent struct {
	DeviceID   string                 `json:"device_id"`
	DeviceType string                 `json:"device_type,omitempty"`
	Action     string                 `json:"action,omitempty"`
	Value      *string                `json:"value,omitempty"`
	State      string                 `json:"state,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}
