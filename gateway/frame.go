// Package gateway drives devices through a remote device gateway over a
// websocket. Frames are protobuf-encoded google.protobuf.Struct messages so
// the gateway needs no generated code to speak the protocol.
package gateway

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"homehub/devices"
)

// Frame types
const (
	FrameCommand     = "command"      // hub -> gateway: run an action
	FrameGetState    = "get_state"    // hub -> gateway: read one device
	FrameListDevices = "list_devices" // hub -> gateway: enumerate devices
	FramePing        = "ping"
	FrameAck         = "ack"          // gateway -> hub: reply to any request, correlated by ID
	FrameStateChange = "state_change" // gateway -> hub: a device changed on its own
	FrameDeviceEvent = "device_event" // gateway -> hub: sensor events (motion, door...)
	FramePong        = "pong"
)

// Frame is one message on the gateway socket. Unused fields are omitted on
// the wire.
type Frame struct {
	Type       string
	ID         string
	DeviceID   string
	DeviceType string
	Action     string
	Value      *string
	UserID     string
	EventType  string
	OK         bool
	Error      string
	State      devices.State
	Devices    []devices.Device
	At         time.Time
}

// Marshal encodes the frame as a binary protobuf Struct
func (f Frame) Marshal() ([]byte, error) {
	fields := map[string]*structpb.Value{
		"type": structpb.NewStringValue(f.Type),
	}
	setString := func(key, v string) {
		if v != "" {
			fields[key] = structpb.NewStringValue(v)
		}
	}
	setString("id", f.ID)
	setString("device_id", f.DeviceID)
	setString("device_type", f.DeviceType)
	setString("action", f.Action)
	setString("user_id", f.UserID)
	setString("event_type", f.EventType)
	setString("error", f.Error)
	if f.Value != nil {
		fields["value"] = structpb.NewStringValue(*f.Value)
	}
	if f.Type == FrameAck {
		fields["ok"] = structpb.NewBoolValue(f.OK)
	}
	if !f.At.IsZero() {
		fields["at"] = structpb.NewStringValue(f.At.UTC().Format(time.RFC3339Nano))
	}
	if f.State != nil {
		st, err := structpb.NewStruct(map[string]interface{}(f.State))
		if err != nil {
			return nil, fmt.Errorf("encode state: %w", err)
		}
		fields["state"] = structpb.NewStructValue(st)
	}
	if f.Devices != nil {
		list := make([]interface{}, 0, len(f.Devices))
		for _, d := range f.Devices {
			list = append(list, map[string]interface{}{
				"id":    d.ID,
				"name":  d.Name,
				"type":  d.Type,
				"room":  d.Room,
				"state": map[string]interface{}(d.State),
			})
		}
		lv, err := structpb.NewList(list)
		if err != nil {
			return nil, fmt.Errorf("encode devices: %w", err)
		}
		fields["devices"] = structpb.NewListValue(lv)
	}

	return proto.Marshal(&structpb.Struct{Fields: fields})
}

// UnmarshalFrame decodes a binary frame. Numbers inside state maps come back
// as float64, as with JSON.
func UnmarshalFrame(data []byte) (Frame, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return Frame{}, fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	m := st.AsMap()

	f := Frame{
		Type:       str(m, "type"),
		ID:         str(m, "id"),
		DeviceID:   str(m, "device_id"),
		DeviceType: str(m, "device_type"),
		Action:     str(m, "action"),
		UserID:     str(m, "user_id"),
		EventType:  str(m, "event_type"),
		Error:      str(m, "error"),
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("frame without type")
	}
	if v, ok := m["value"].(string); ok {
		f.Value = &v
	}
	if ok, present := m["ok"].(bool); present {
		f.OK = ok
	}
	if at, ok := m["at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			f.At = t
		}
	}
	if state, ok := m["state"].(map[string]interface{}); ok {
		f.State = devices.State(state)
	}
	if list, ok := m["devices"].([]interface{}); ok {
		f.Devices = make([]devices.Device, 0, len(list))
		for _, item := range list {
			dm, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			d := devices.Device{
				ID:   str(dm, "id"),
				Name: str(dm, "name"),
				Type: str(dm, "type"),
				Room: str(dm, "room"),
			}
			if s, ok := dm["state"].(map[string]interface{}); ok {
				d.State = devices.State(s)
			}
			f.Devices = append(f.Devices, d)
		}
	}
	return f, nil
}

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
