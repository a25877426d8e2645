package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homehub/database"
	models "homehub/database/models_pkg"
)

func TestSceneActivate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(0, 20, 0))

	bright := 20
	scene := &models.Scene{
		Name: "Movie night",
		DeviceStates: []models.SceneDeviceState{
			{DeviceID: "living_room_light", State: "on", Brightness: &bright},
			{DeviceID: "kitchen_light", State: "off"},
		},
	}
	require.NoError(t, env.svc.Scenes.Create(ctx, scene))

	ok, results, err := env.svc.Scenes.Activate(ctx, scene.ID, "default")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, results, 3)
	assert.Equal(t, []string{"turn_on:living_room_light", "set_brightness:living_room_light", "turn_off:kitchen_light"}, env.controller.Calls())

	state, err := env.controller.GetDeviceState(ctx, "living_room_light")
	require.NoError(t, err)
	assert.Equal(t, "on", state["state"])
	assert.Equal(t, 20, state["brightness"])

	_, _, err = env.svc.Scenes.Activate(ctx, scene.ID, "someone_else")
	assert.True(t, database.IsNotFound(err))
	_, _, err = env.svc.Scenes.Activate(ctx, 999, "default")
	assert.True(t, database.IsNotFound(err))
}

func TestSceneActivate_PartialFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(0, 20, 0))

	scene := &models.Scene{
		Name: "Half broken",
		DeviceStates: []models.SceneDeviceState{
			{DeviceID: "garage_door", State: "on"},
			{DeviceID: "bedroom_light", State: "on"},
		},
	}
	require.NoError(t, env.svc.Scenes.Create(ctx, scene))

	ok, results, err := env.svc.Scenes.Activate(ctx, scene.ID, "")
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)

	state, err := env.controller.GetDeviceState(ctx, "bedroom_light")
	require.NoError(t, err)
	assert.Equal(t, "on", state["state"])
}

func TestSceneUpdateDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(0, 20, 0))

	scene := &models.Scene{
		Name:         "Morning",
		DeviceStates: []models.SceneDeviceState{{DeviceID: "kitchen_light", State: "on"}},
	}
	require.NoError(t, env.svc.Scenes.Create(ctx, scene))

	name := "Early morning"
	updated, err := env.svc.Scenes.Update(ctx, scene.ID, "default", SceneUpdate{
		Name:         &name,
		DeviceStates: []models.SceneDeviceState{{DeviceID: "bedroom_light", State: "on"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Early morning", updated.Name)

	list, err := env.svc.Scenes.List(ctx, "default")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Early morning", list[0].Name)
	require.Len(t, list[0].DeviceStates, 1)
	assert.Equal(t, "bedroom_light", list[0].DeviceStates[0].DeviceID)

	empty := " "
	_, err = env.svc.Scenes.Update(ctx, scene.ID, "default", SceneUpdate{Name: &empty})
	var ve *database.ValidationError
	assert.ErrorAs(t, err, &ve)
	_, err = env.svc.Scenes.Update(ctx, scene.ID, "default", SceneUpdate{DeviceStates: []models.SceneDeviceState{}})
	assert.ErrorAs(t, err, &ve)
	_, err = env.svc.Scenes.Update(ctx, 999, "default", SceneUpdate{Name: &name})
	assert.True(t, database.IsNotFound(err))

	assert.True(t, database.IsNotFound(env.svc.Scenes.Delete(ctx, scene.ID, "someone_else")))
	require.NoError(t, env.svc.Scenes.Delete(ctx, scene.ID, "default"))
	assert.True(t, database.IsNotFound(env.svc.Scenes.Delete(ctx, scene.ID, "default")))

	list, err = env.svc.Scenes.List(ctx, "default")
	require.NoError(t, err)
	assert.Empty(t, list)
}
