package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "homehub/database/models_pkg"
	"homehub/database/patterns"
	"homehub/events"
)

func TestWeekdayEveningScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(0, 19, 0))

	var last *RecordResult
	for day := 0; day < 5; day++ {
		env.clock.Set(at(day, 19, 0))
		res, err := env.svc.Recorder.Record(ctx, RecordInput{
			DeviceID:   "living_room_light",
			DeviceType: "light",
			Action:     "turn_on",
		})
		require.NoError(t, err)
		last = res
	}
	require.Len(t, last.Patterns, 1)

	stored, err := env.svc.ListPatterns(ctx, patterns.Filter{UserID: "default"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	p := stored[0]
	assert.Equal(t, 19, p.Conditions.Data().Hour)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, p.Conditions.Data().DaysOfWeek)
	assert.GreaterOrEqual(t, p.Confidence, 0.6)
	assert.Equal(t, 5, p.OccurrenceCount)

	pending, err := env.svc.Suggestions.ListPending(ctx, "default")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	sug := pending[0]
	assert.Contains(t, sug.SuggestionText, "19:00")
	assert.Contains(t, sug.SuggestionText, "weekdays")

	ok, a, err := env.svc.AcceptAndCreate(ctx, sug.ID, "default")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, a)
	assert.Equal(t, models.TriggerTime, a.TriggerType)
	assert.JSONEq(t, `{"time":"19:00","days_of_week":[0,1,2,3,4]}`, string(a.TriggerConfig))
	require.NotNil(t, a.CreatedFromPattern)
	assert.Equal(t, p.ID, *a.CreatedFromPattern)

	// next Monday evening the scheduler turns the light on
	fired := env.svc.Scheduler.CheckAndTrigger(ctx, at(7, 19, 0))
	assert.Equal(t, 1, fired)
	state, err := env.controller.GetDeviceState(ctx, "living_room_light")
	require.NoError(t, err)
	assert.Equal(t, "on", state["state"])

	// but not on Saturday
	assert.Zero(t, env.svc.Scheduler.CheckAndTrigger(ctx, at(5, 19, 0)))

	types := env.events.Types()
	assert.Contains(t, types, events.PatternDetected)
	assert.Contains(t, types, events.SuggestionCreated)
	assert.Contains(t, types, events.AutomationCreated)
	assert.Contains(t, types, events.AutomationExecuted)
}

func TestRecord_Validation(t *testing.T) {
	env := newTestEnv(t, at(0, 8, 0))
	_, err := env.svc.Recorder.Record(context.Background(), RecordInput{Action: "turn_on"})
	assert.Error(t, err)
	_, err = env.svc.Recorder.Record(context.Background(), RecordInput{DeviceID: "x"})
	assert.Error(t, err)
}

func TestPerform_RecordsAndDispatchesEvents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(0, 21, 0))

	// when the living room light goes on, dim the bedroom
	a, err := env.svc.Store.Create(ctx, Spec{
		Name:          "Follow living room",
		TriggerType:   models.TriggerEvent,
		TriggerConfig: []byte(`{"event_type":"device_state_change","device_id":"living_room_light","state":"on"}`),
		Actions:       []models.ActionSpec{{DeviceID: "bedroom_light", Action: "set_brightness", Value: strPtr("20")}},
	})
	require.NoError(t, err)

	ok, res, err := env.svc.Recorder.Perform(ctx, "living_room_light", "turn_on", nil, "default")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, res)
	assert.Equal(t, "light", res.Action.DeviceType)
	assert.Equal(t, 21, res.Action.Hour)

	assert.Equal(t, []string{"turn_on:living_room_light", "set_brightness:bedroom_light"}, env.controller.Calls())
	logs, err := env.svc.Store.Executions(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "device_state_change", logs[0].TriggerData["event_type"])

	// turning it off does not match the state filter
	_, _, err = env.svc.Recorder.Perform(ctx, "living_room_light", "turn_off", nil, "default")
	require.NoError(t, err)
	logs, err = env.svc.Store.Executions(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	ok, _, err = env.svc.Recorder.Perform(ctx, "garage_door", "turn_on", nil, "default")
	require.NoError(t, err)
	assert.False(t, ok)

	history, err := env.svc.Recorder.History(ctx, "living_room_light", "default", 7, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, "turn_off", history[0].Action)
}

func TestSceneToAutomation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(0, 8, 0))

	bright := 35
	temp := 68.5
	scene := &models.Scene{
		Name: "Movie night",
		DeviceStates: []models.SceneDeviceState{
			{DeviceID: "living_room_light", State: "on", Brightness: &bright, Color: "warm"},
			{DeviceID: "kitchen_light", State: "off"},
			{DeviceID: "thermostat", State: "on", Temperature: &temp},
		},
	}
	require.NoError(t, env.svc.Scenes.Create(ctx, scene))

	acts := SceneActions(scene.DeviceStates)
	var names []string
	for _, a := range acts {
		names = append(names, a.Action+":"+a.DeviceID)
	}
	assert.Equal(t, []string{
		"turn_on:living_room_light", "set_brightness:living_room_light", "set_color:living_room_light",
		"turn_off:kitchen_light",
		"turn_on:thermostat", "set_temperature:thermostat",
	}, names)

	manual, err := env.svc.Scenes.ToAutomation(ctx, scene.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TriggerManual, manual.TriggerType)
	assert.Equal(t, "Scene: Movie night", manual.Name)

	timed, err := env.svc.Scenes.ToAutomation(ctx, scene.ID, &models.TimeTrigger{Time: "20:30", DaysOfWeek: []int{4, 5}})
	require.NoError(t, err)
	assert.Equal(t, models.TriggerTime, timed.TriggerType)

	ok, err := env.svc.Executor.Execute(ctx, manual.ID, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	state, err := env.controller.GetDeviceState(ctx, "thermostat")
	require.NoError(t, err)
	assert.Equal(t, 68.5, state["temperature"])

	_, err = env.svc.Scenes.ToAutomation(ctx, 999, nil)
	assert.Error(t, err)

	assert.Error(t, env.svc.Scenes.Create(ctx, &models.Scene{Name: "empty"}))
}

func recordEvenings(t *testing.T, env *testEnv, days ...int) *RecordResult {
	t.Helper()
	var last *RecordResult
	for _, day := range days {
		env.clock.Set(at(day, 19, 0))
		res, err := env.svc.Recorder.Record(context.Background(), RecordInput{
			DeviceID:   "living_room_light",
			DeviceType: "light",
			Action:     "turn_on",
		})
		require.NoError(t, err)
		last = res
	}
	return last
}

func TestDeactivatedPatternSurvivesRedetection(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(0, 19, 0))

	res := recordEvenings(t, env, 0, 1, 2)
	require.Len(t, res.Patterns, 1)
	id := res.Patterns[0].ID

	ok, err := env.svc.SetPatternActive(ctx, id, false)
	require.NoError(t, err)
	require.True(t, ok)

	res = recordEvenings(t, env, 3)
	assert.Empty(t, res.Patterns)
	assert.Empty(t, res.Suggestions)

	active, err := env.svc.ListPatterns(ctx, patterns.Filter{UserID: "default", ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := env.svc.ListPatterns(ctx, patterns.Filter{UserID: "default"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)
	assert.Equal(t, 4, all[0].OccurrenceCount)

	ok, err = env.svc.SetPatternActive(ctx, id, true)
	require.NoError(t, err)
	require.True(t, ok)
	res = recordEvenings(t, env, 4)
	require.Len(t, res.Patterns, 1)
	assert.True(t, res.Patterns[0].IsActive)

	ok, err = env.svc.SetPatternActive(ctx, 999, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAcceptedPatternIsNotSuggestedAgain(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(0, 19, 0))

	res := recordEvenings(t, env, 0, 1, 2)
	require.Len(t, res.Suggestions, 1)
	ok, a, err := env.svc.AcceptAndCreate(ctx, res.Suggestions[0].ID, "default")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, a)

	res = recordEvenings(t, env, 3, 4)
	assert.Len(t, res.Patterns, 1)
	assert.Empty(t, res.Suggestions)

	pending, err := env.svc.Suggestions.ListPending(ctx, "default")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
