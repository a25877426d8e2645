package handlers

import (
	"context"
	"fmt"

	"homehub/automation"
	"homehub/events"
	"homehub/gateway"
	"homehub/logger"
)

// ActionRecorder is the part of automation.Recorder the handlers need
type ActionRecorder interface {
	Record(ctx context.Context, in automation.RecordInput) (*automation.RecordResult, error)
}

// StateChangeHandler handles devices reporting a change made outside the
// hub (wall switch, vendor app). The change is learned from like any other
// action and announced as a device_state_change event.
type StateChangeHandler struct {
	recorder ActionRecorder
	events   events.Publisher
	log      *logger.Logger
}

// NewStateChangeHandler creates a new state change handler
func NewStateChangeHandler(recorder ActionRecorder, pub events.Publisher, log *logger.Logger) *StateChangeHandler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &StateChangeHandler{recorder: recorder, events: pub, log: logger.OrNop(log)}
}

func (h *StateChangeHandler) GetMessageType() string { return gateway.FrameStateChange }

func (h *StateChangeHandler) Handle(ctx context.Context, f gateway.Frame) error {
	if f.DeviceID == "" {
		return fmt.Errorf("state change without device_id")
	}

	// frames without an action only refresh state and are not learned from
	if f.Action != "" && h.recorder != nil {
		if _, err := h.recorder.Record(ctx, automation.RecordInput{
			DeviceID:   f.DeviceID,
			DeviceType: f.DeviceType,
			Action:     f.Action,
			Value:      f.Value,
			Context:    map[string]interface{}{"source": "gateway"},
			UserID:     f.UserID,
		}); err != nil {
			h.log.Error("⚠️  Failed to record gateway action", "device_id", f.DeviceID, "error", err)
		}
	}

	h.events.Publish(ctx, events.New(events.DeviceStateChange, f.UserID, events.DeviceEvent{
		DeviceID:   f.DeviceID,
		DeviceType: f.DeviceType,
		Action:     f.Action,
		Value:      f.Value,
		State:      f.State.StateString(),
		Attributes: f.State,
	}))
	return nil
}

// DeviceEventHandler turns sensor events (motion, door contact...) into hub
// events so event-triggered automations can react to them. The frame's
// event_type becomes the event type.
type DeviceEventHandler struct {
	events events.Publisher
}

// NewDeviceEventHandler creates a new device event handler
func NewDeviceEventHandler(pub events.Publisher) *DeviceEventHandler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &DeviceEventHandler{events: pub}
}

func (h *DeviceEventHandler) GetMessageType() string { return gateway.FrameDeviceEvent }

func (h *DeviceEventHandler) Handle(ctx context.Context, f gateway.Frame) error {
	eventType := f.EventType
	if eventType == "" {
		eventType = events.DeviceAction
	}
	h.events.Publish(ctx, events.New(eventType, f.UserID, events.DeviceEvent{
		DeviceID:   f.DeviceID,
		DeviceType: f.DeviceType,
		Action:     f.Action,
		Value:      f.Value,
		State:      f.State.StateString(),
		Attributes: f.State,
	}))
	return nil
}
