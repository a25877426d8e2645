// Package devices defines the device-control interface the automation
// executor drives, plus an in-memory backend.
package devices

import (
	"context"
	"fmt"
	"strconv"
)

// Supported device actions
const (
	ActionTurnOn         = "turn_on"
	ActionTurnOff        = "turn_off"
	ActionSetTemperature = "set_temperature"
	ActionSetBrightness  = "set_brightness"
	ActionSetColor       = "set_color"
)

// State is the last known state of a device, as reported by its backend.
type State map[string]interface{}

// Device describes one controllable device.
type Device struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type" yaml:"type"`
	Room  string `json:"room,omitempty" yaml:"room"`
	State State  `json:"state" yaml:"state"`
}

// Controller is implemented by every device backend. The bool results report
// whether the device accepted the command; errors are transport failures.
type Controller interface {
	TurnOn(ctx context.Context, deviceID string) (bool, error)
	TurnOff(ctx context.Context, deviceID string) (bool, error)
	SetTemperature(ctx context.Context, deviceID string, temperature float64) (bool, error)
	SetBrightness(ctx context.Context, deviceID string, brightness int) (bool, error)
	SetColor(ctx context.Context, deviceID string, color string) (bool, error)
	// GetDeviceState returns nil when the device is unknown
	GetDeviceState(ctx context.Context, deviceID string) (State, error)
	ListDevices(ctx context.Context) ([]Device, error)
}

// Dispatch runs a named action with an optional string value against c.
// Unknown actions and unparsable values are reported as errors.
func Dispatch(ctx context.Context, c Controller, deviceID, action string, value *string) (bool, error) {
	switch action {
	case ActionTurnOn:
		return c.TurnOn(ctx, deviceID)
	case ActionTurnOff:
		return c.TurnOff(ctx, deviceID)
	case ActionSetTemperature:
		if value == nil {
			return false, fmt.Errorf("%s requires a value", action)
		}
		temp, err := strconv.ParseFloat(*value, 64)
		if err != nil {
			return false, fmt.Errorf("invalid temperature %q", *value)
		}
		return c.SetTemperature(ctx, deviceID, temp)
	case ActionSetBrightness:
		if value == nil {
			return false, fmt.Errorf("%s requires a value", action)
		}
		level, err := strconv.Atoi(*value)
		if err != nil {
			// "75.0" is common from clients that send floats
			f, ferr := strconv.ParseFloat(*value, 64)
			if ferr != nil {
				return false, fmt.Errorf("invalid brightness %q", *value)
			}
			level = int(f)
		}
		return c.SetBrightness(ctx, deviceID, level)
	case ActionSetColor:
		if value == nil || *value == "" {
			return false, fmt.Errorf("%s requires a value", action)
		}
		return c.SetColor(ctx, deviceID, *value)
	default:
		return false, fmt.Errorf("unknown action %q", action)
	}
}

// StateString extracts the on/off state, or "" when the device does not report one.
func (s State) StateString() string {
	if s == nil {
		return ""
	}
	if v, ok := s["state"].(string); ok {
		return v
	}
	return ""
}
