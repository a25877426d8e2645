package devices

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Mock is an in-memory Controller. It is the default backend and the one
// the tests drive.
type Mock struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

// DefaultDevices is the fleet the hub starts with when no seed file is set.
func DefaultDevices() []Device {
	return []Device{
		{ID: "living_room_light", Name: "Living Room Light", Type: "light", Room: "living_room", State: State{"state": "off", "brightness": 0}},
		{ID: "bedroom_light", Name: "Bedroom Light", Type: "light", Room: "bedroom", State: State{"state": "off", "brightness": 0}},
		{ID: "kitchen_light", Name: "Kitchen Light", Type: "light", Room: "kitchen", State: State{"state": "off", "brightness": 0}},
		{ID: "thermostat", Name: "Thermostat", Type: "thermostat", Room: "hallway", State: State{"state": "on", "temperature": 72.0}},
	}
}

// NewMock builds a mock backend holding copies of devs.
func NewMock(devs []Device) *Mock {
	m := &Mock{devices: make(map[string]*Device, len(devs))}
	for _, d := range devs {
		d := d
		state := State{}
		for k, v := range d.State {
			state[k] = v
		}
		d.State = state
		m.devices[d.ID] = &d
	}
	return m
}

type seedFile struct {
	Devices []Device `yaml:"devices"`
}

// LoadSeed reads a YAML device list:
//
//	devices:
//	  - id: porch_light
//	    type: light
//	    state: {state: "off", brightness: 0}
func LoadSeed(path string) ([]Device, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read device seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse device seed: %w", err)
	}
	for i, d := range f.Devices {
		if d.ID == "" || d.Type == "" {
			return nil, fmt.Errorf("device seed entry %d needs id and type", i)
		}
		if d.Name == "" {
			f.Devices[i].Name = d.ID
		}
	}
	return f.Devices, nil
}

func (m *Mock) update(deviceID string, fn func(d *Device) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return false
	}
	return fn(d)
}

func (m *Mock) TurnOn(_ context.Context, deviceID string) (bool, error) {
	return m.update(deviceID, func(d *Device) bool {
		d.State["state"] = "on"
		if d.Type == "light" {
			d.State["brightness"] = 100
		}
		return true
	}), nil
}

func (m *Mock) TurnOff(_ context.Context, deviceID string) (bool, error) {
	return m.update(deviceID, func(d *Device) bool {
		d.State["state"] = "off"
		if d.Type == "light" {
			d.State["brightness"] = 0
		}
		return true
	}), nil
}

// SetTemperature only applies to thermostats.
func (m *Mock) SetTemperature(_ context.Context, deviceID string, temperature float64) (bool, error) {
	return m.update(deviceID, func(d *Device) bool {
		if d.Type != "thermostat" {
			return false
		}
		d.State["temperature"] = temperature
		return true
	}), nil
}

// SetBrightness clamps to 0..100; zero switches the light off.
func (m *Mock) SetBrightness(_ context.Context, deviceID string, brightness int) (bool, error) {
	if brightness < 0 {
		brightness = 0
	}
	if brightness > 100 {
		brightness = 100
	}
	return m.update(deviceID, func(d *Device) bool {
		d.State["brightness"] = brightness
		if brightness > 0 {
			d.State["state"] = "on"
		} else {
			d.State["state"] = "off"
		}
		return true
	}), nil
}

func (m *Mock) SetColor(_ context.Context, deviceID string, color string) (bool, error) {
	return m.update(deviceID, func(d *Device) bool {
		d.State["color"] = color
		return true
	}), nil
}

func (m *Mock) GetDeviceState(_ context.Context, deviceID string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return nil, nil
	}
	out := make(State, len(d.State))
	for k, v := range d.State {
		out[k] = v
	}
	return out, nil
}

// ListDevices returns snapshots sorted by id.
func (m *Mock) ListDevices(_ context.Context) ([]Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		cp := *d
		cp.State = make(State, len(d.State))
		for k, v := range d.State {
			cp.State[k] = v
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeviceType returns the registered type of a device, or "".
func (m *Mock) DeviceType(deviceID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.devices[deviceID]; ok {
		return d.Type
	}
	return ""
}
