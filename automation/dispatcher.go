package automation

import (
	"context"
	"strings"

	models "homehub/database/models_pkg"
	"homehub/events"
	"homehub/logger"
)

// EventDispatcher runs event-triggered automations. It is registered as an
// events.Publisher so device events reach it like any other sink.
type EventDispatcher struct {
	automations RunnableLister
	runner      Runner
	log         *logger.Logger
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher(lister RunnableLister, runner Runner, log *logger.Logger) *EventDispatcher {
	return &EventDispatcher{automations: lister, runner: runner, log: logger.OrNop(log)}
}

// Publish implements events.Publisher. Only device events are considered.
func (d *EventDispatcher) Publish(ctx context.Context, ev events.Event) {
	dev, ok := ev.Payload.(events.DeviceEvent)
	if !ok {
		return
	}
	d.Dispatch(ctx, ev.Type, dev)
}

// Dispatch executes every runnable event automation matching the event and
// returns how many were invoked.
func (d *EventDispatcher) Dispatch(ctx context.Context, eventType string, dev events.DeviceEvent) int {
	list, err := d.automations.ListRunnable(ctx, models.TriggerEvent)
	if err != nil {
		d.log.Error("⚠️  Failed to load event automations", "error", err)
		return 0
	}

	fired := 0
	for _, a := range list {
		trigger, err := a.Trigger()
		if err != nil {
			continue
		}
		et, ok := trigger.(models.EventTrigger)
		if !ok || !matchesEvent(et, eventType, dev) {
			continue
		}

		fired++
		d.log.Info("📡 Event triggered automation", "automation_id", a.ID, "event_type", eventType, "device_id", dev.DeviceID)
		if _, err := d.runner.Execute(ctx, a.ID, map[string]interface{}{
			"trigger_type": models.TriggerEvent,
			"event_type":   eventType,
			"device_id":    dev.DeviceID,
			"state":        dev.State,
		}); err != nil {
			d.log.Error("⚠️  Event execution failed", "automation_id", a.ID, "error", err)
		}
	}
	return fired
}

func matchesEvent(t models.EventTrigger, eventType string, dev events.DeviceEvent) bool {
	if t.EventType != eventType {
		return false
	}
	if t.DeviceID != "" && t.DeviceID != dev.DeviceID {
		return false
	}
	if t.State != "" && !strings.EqualFold(t.State, dev.State) {
		return false
	}
	return true
}
