package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"homehub/database"
	models "homehub/database/models_pkg"
	"homehub/database/patterns"
	"homehub/events"
)

func timePattern(hour, minute int, days []int, value *string) *models.Pattern {
	return &models.Pattern{
		ID:          7,
		PatternType: models.PatternTypeTimeBased,
		DeviceID:    "living_room_light",
		DeviceType:  "light",
		Action:      "set_brightness",
		Value:       value,
		Conditions:  datatypes.NewJSONType(models.PatternConditions{Hour: hour, Minute: minute, DaysOfWeek: days}),
		UserID:      "default",
	}
}

func TestDescribeDays(t *testing.T) {
	tests := []struct {
		days []int
		want string
	}{
		{[]int{0, 1, 2, 3, 4}, "weekdays"},
		{[]int{5, 6}, "weekends"},
		{[]int{0, 1, 2, 3, 4, 5, 6}, "every day"},
		{[]int{2, 0}, "Monday, Wednesday"},
		{[]int{6}, "Sunday"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeDays(tt.days))
		})
	}
}

func TestBuildSuggestion(t *testing.T) {
	sug, ok := BuildSuggestion(timePattern(6, 5, []int{5, 6}, strPtr("30")))
	require.True(t, ok)

	assert.Equal(t,
		"I notice you set brightness to 30 the living_room_light at 06:05 on weekends. Would you like me to automate this?",
		sug.SuggestionText)
	assert.Equal(t, "Auto Set Brightness To 30 living_room_light at 06:05", sug.AutomationName)
	assert.Equal(t, models.SuggestionPending, sug.Status)
	assert.Equal(t, uint(7), sug.PatternID)

	cfg := sug.AutomationConfig.Data()
	assert.Equal(t, models.TriggerTime, cfg.TriggerType)
	assert.JSONEq(t, `{"time":"06:05","days_of_week":[5,6]}`, string(cfg.TriggerConfig))
	require.Len(t, cfg.Actions, 1)
	assert.Equal(t, "set_brightness", cfg.Actions[0].Action)
	assert.Equal(t, "light", cfg.Actions[0].DeviceType)
	assert.Equal(t, "30", *cfg.Actions[0].Value)

	other := timePattern(6, 5, nil, nil)
	other.PatternType = "sequence"
	_, ok = BuildSuggestion(other)
	assert.False(t, ok)
}

func TestGenerate_SinglePending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(7, 12, 0))
	for day := 0; day < 5; day++ {
		env.seedAction(t, "living_room_light", "turn_on", nil, at(day, 19, 0))
	}
	found, err := env.svc.Detector.Detect(ctx, "living_room_light", "default")
	require.NoError(t, err)
	require.Len(t, found, 1)

	first, err := env.svc.Suggestions.Generate(ctx, &found[0])
	require.NoError(t, err)
	second, err := env.svc.Suggestions.Generate(ctx, &found[0])
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	pending, err := env.svc.Suggestions.ListPending(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	created := 0
	for _, typ := range env.events.Types() {
		if typ == events.SuggestionCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestInbox_AcceptReject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(7, 12, 0))
	for day := 0; day < 5; day++ {
		env.seedAction(t, "living_room_light", "turn_on", nil, at(day, 19, 0))
	}
	found, err := env.svc.Detector.Detect(ctx, "living_room_light", "default")
	require.NoError(t, err)
	sug, err := env.svc.Suggestions.Generate(ctx, &found[0])
	require.NoError(t, err)

	ok, err := env.svc.Suggestions.Accept(ctx, 999, "default")
	require.NoError(t, err)
	assert.False(t, ok, "unknown id")
	assert.True(t, database.IsNotFound(env.svc.Suggestions.Explain(ctx, 999, "default")))

	ok, err = env.svc.Suggestions.Reject(ctx, sug.ID, "someone_else")
	require.NoError(t, err)
	assert.False(t, ok, "other user's suggestion")

	ok, err = env.svc.Suggestions.Reject(ctx, sug.ID, "default")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.svc.Suggestions.Accept(ctx, sug.ID, "default")
	require.NoError(t, err)
	assert.False(t, ok, "rejected is terminal")
	assert.True(t, database.IsConflict(env.svc.Suggestions.Explain(ctx, sug.ID, "default")))

	pending, err := env.svc.Suggestions.ListPending(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := env.svc.Suggestions.List(ctx, "default", "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.SuggestionRejected, all[0].Status)
	require.NotNil(t, all[0].RespondedAt)

	// rejected patterns stay stored
	stored, err := env.svc.ListPatterns(ctx, patterns.Filter{})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
