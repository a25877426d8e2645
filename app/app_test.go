package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homehub/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		APIPort:        0,
		DatabaseDriver: "sqlite",
		DatabasePath:   filepath.Join(t.TempDir(), "data", "automation.db"),
		Timezone:       "UTC",
		Learning:       config.LearningConfig{MinOccurrences: 3, ConfidenceThreshold: 0.6, LookbackDays: 30, RetentionDays: 90},
		Scheduler:      config.SchedulerConfig{Enabled: true, Interval: time.Minute},
		Devices:        config.DeviceConfig{Backend: "mock"},
	}
}

func TestInit_MockBackendFromSeed(t *testing.T) {
	cfg := testConfig(t)
	seed := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(`
devices:
  - id: porch_light
    name: Porch Light
    type: light
    state:
      state: "off"
`), 0o644))
	cfg.Devices.SeedFile = seed

	a := New(cfg, nil)
	require.NoError(t, a.Init(context.Background()))
	defer a.Close()

	list, err := a.Service().Controller.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "porch_light", list[0].ID)
	assert.Nil(t, a.gateway)
	assert.Nil(t, a.Redis())
}

func TestInit_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Devices.Backend = "zigbee"

	a := New(cfg, nil)
	err := a.Init(context.Background())
	defer a.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zigbee")
}

func TestInit_GatewayBackendRegistersHandlers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Devices.Backend = "gateway"
	cfg.Devices.GatewayURL = "ws://127.0.0.1:1/ws"

	a := New(cfg, nil)
	require.NoError(t, a.Init(context.Background()))
	defer a.Close()

	require.NotNil(t, a.gateway)
	assert.Equal(t, []string{"device_event", "state_change"}, a.handlerManager.ListHandlers())
}

func TestRun_StopsOnCancel(t *testing.T) {
	a := New(testConfig(t), nil)
	require.NoError(t, a.Init(context.Background()))
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, a.Service().Scheduler.Running, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, a.Service().Scheduler.Running())
}
