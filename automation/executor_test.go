package automation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "homehub/database/models_pkg"
	"homehub/devices"
)

func TestConditions(t *testing.T) {
	ctx := context.Background()
	ctrl := devices.NewMock(devices.DefaultDevices())
	_, _ = ctrl.TurnOn(ctx, "kitchen_light")

	tests := []struct {
		name string
		cond models.Conditions
		now  [3]int // day, hour, minute
		want bool
	}{
		{name: "no conditions", now: [3]int{0, 3, 0}, want: true},
		{name: "time reached", cond: models.Conditions{Time: "22:00"}, now: [3]int{0, 22, 0}, want: true},
		{name: "time is one-sided", cond: models.Conditions{Time: "22:00"}, now: [3]int{0, 23, 59}, want: true},
		{name: "time not reached", cond: models.Conditions{Time: "22:00"}, now: [3]int{0, 21, 59}, want: false},
		{name: "window inside", cond: models.Conditions{Time: "06:00", Before: "09:00"}, now: [3]int{0, 8, 59}, want: true},
		{name: "window upper bound", cond: models.Conditions{Time: "06:00", Before: "09:00"}, now: [3]int{0, 9, 0}, want: false},
		{name: "overnight window late", cond: models.Conditions{Time: "22:00", Before: "06:00"}, now: [3]int{0, 23, 0}, want: true},
		{name: "overnight window early", cond: models.Conditions{Time: "22:00", Before: "06:00"}, now: [3]int{0, 5, 0}, want: true},
		{name: "overnight window midday", cond: models.Conditions{Time: "22:00", Before: "06:00"}, now: [3]int{0, 12, 0}, want: false},
		{name: "weekday allowed", cond: models.Conditions{DaysOfWeek: []int{0, 1}}, now: [3]int{1, 12, 0}, want: true},
		{name: "weekday refused", cond: models.Conditions{DaysOfWeek: []int{5, 6}}, now: [3]int{1, 12, 0}, want: false},
		{
			name: "device state matches",
			cond: models.Conditions{DeviceStates: []models.DeviceStateCondition{{DeviceID: "kitchen_light", State: "on"}}},
			now:  [3]int{0, 12, 0}, want: true,
		},
		{
			name: "device state differs",
			cond: models.Conditions{DeviceStates: []models.DeviceStateCondition{{DeviceID: "bedroom_light", State: "on"}}},
			now:  [3]int{0, 12, 0}, want: false,
		},
		{
			name: "unknown device passes",
			cond: models.Conditions{DeviceStates: []models.DeviceStateCondition{{DeviceID: "garage", State: "open"}}},
			now:  [3]int{0, 12, 0}, want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := EvaluateConditions(ctx, tt.cond, at(tt.now[0], tt.now[1], tt.now[2]), ctrl)
			assert.Equal(t, tt.want, got, reason)
		})
	}
}

func TestExecute_DisabledTouchesNoDevice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(0, 8, 0))

	a, err := env.svc.Store.Create(ctx, Spec{Name: "off", TriggerType: models.TriggerManual, Actions: []models.ActionSpec{turnOnLiving}, IsEnabled: boolPtr(false)})
	require.NoError(t, err)

	ok, err := env.svc.Executor.Execute(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, env.controller.Calls())

	ok, err = env.svc.Executor.Execute(ctx, 9999, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	logs, err := env.svc.Store.Executions(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestExecute_RunsEveryActionAndLogs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(0, 8, 0))

	a, err := env.svc.Store.Create(ctx, manualSpec("evening",
		models.ActionSpec{DeviceID: "garage_door", Action: "turn_on"}, // unknown device, refused
		models.ActionSpec{DeviceID: "kitchen_light", Action: "dance"},  // unknown action
		models.ActionSpec{DeviceID: "living_room_light", Action: "set_brightness", Value: strPtr("60")},
	))
	require.NoError(t, err)

	ok, err := env.svc.Executor.Execute(ctx, a.ID, map[string]interface{}{"source": "test"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"turn_on:garage_door", "set_brightness:living_room_light"}, env.controller.Calls())

	state, err := env.controller.GetDeviceState(ctx, "living_room_light")
	require.NoError(t, err)
	assert.Equal(t, 60, state["brightness"])

	logs, err := env.svc.Store.Executions(ctx, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	entry := logs[0]
	assert.False(t, entry.Success)
	assert.NotEmpty(t, entry.RunID)
	assert.Equal(t, models.TriggerManual, entry.TriggerType)
	assert.Equal(t, "test", entry.TriggerData["source"])
	require.Len(t, entry.ActionsExecuted, 3)
	assert.False(t, entry.ActionsExecuted[0].Success)
	assert.Contains(t, entry.ActionsExecuted[1].Error, "unknown action")
	assert.True(t, entry.ActionsExecuted[2].Success)
	assert.NotEmpty(t, entry.ErrorMessage)
}

func TestExecute_RecoversFromBackendPanic(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(0, 8, 0))
	env.controller.panic = true

	a, err := env.svc.Store.Create(ctx, manualSpec("boom",
		turnOnLiving,
		models.ActionSpec{DeviceID: "kitchen_light", Action: "turn_off"},
	))
	require.NoError(t, err)

	ok, err := env.svc.Executor.Execute(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"turn_on:living_room_light", "turn_off:kitchen_light"}, env.controller.Calls())

	logs, err := env.svc.Store.Executions(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].ActionsExecuted[0].Error, "panic")
	assert.True(t, logs[0].ActionsExecuted[1].Success)
}

func TestExecute_ConditionsGate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(0, 8, 0))

	a, err := env.svc.Store.Create(ctx, Spec{
		Name:          "late",
		TriggerType:   models.TriggerTime,
		TriggerConfig: json.RawMessage(`{"time":"22:00"}`),
		Actions:       []models.ActionSpec{turnOnLiving},
		Conditions:    &models.Conditions{Time: "22:00"},
	})
	require.NoError(t, err)

	ok, err := env.svc.Executor.Execute(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, env.controller.Calls())

	env.clock.Set(at(0, 22, 30))
	ok, err = env.svc.Executor.Execute(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateFromSuggestion_RequiresAccepted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(7, 12, 0))
	for day := 0; day < 5; day++ {
		env.seedAction(t, "living_room_light", "turn_on", nil, at(day, 19, 0))
	}
	found, err := env.svc.Detector.Detect(ctx, "living_room_light", "default")
	require.NoError(t, err)
	sug, err := env.svc.Suggestions.Generate(ctx, &found[0])
	require.NoError(t, err)

	a, err := env.svc.Executor.CreateFromSuggestion(ctx, sug.ID, "default")
	require.NoError(t, err)
	assert.Nil(t, a, "pending suggestion must not materialize")

	ok, err := env.svc.Suggestions.Reject(ctx, sug.ID, "default")
	require.NoError(t, err)
	require.True(t, ok)
	a, err = env.svc.Executor.CreateFromSuggestion(ctx, sug.ID, "default")
	require.NoError(t, err)
	assert.Nil(t, a, "rejected suggestion must not materialize")

	a, err = env.svc.Executor.CreateFromSuggestion(ctx, 4242, "default")
	require.NoError(t, err)
	assert.Nil(t, a)
}
