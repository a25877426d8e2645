package suggestions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	models "homehub/database/models_pkg"
	"homehub/database/testutil"
)

func newSuggestion(patternID uint, user string) *models.Suggestion {
	return &models.Suggestion{
		PatternID:      patternID,
		SuggestionText: "I notice you turn on the living_room_light at 19:00 on weekdays.",
		AutomationName: "Auto Turn On living_room_light at 19:00",
		AutomationConfig: datatypes.NewJSONType(models.AutomationConfig{
			TriggerType:   models.TriggerTime,
			TriggerConfig: datatypes.JSON(`{"time":"19:00","days_of_week":[0,1,2,3,4]}`),
			Actions:       []models.ActionSpec{{DeviceID: "living_room_light", Action: "turn_on"}},
		}),
		UserID: user,
	}
}

func TestCreateIfNoPending(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testutil.DB(t))

	first, created, err := repo.CreateIfNoPending(ctx, newSuggestion(1, "default"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.SuggestionPending, first.Status)

	again, created, err := repo.CreateIfNoPending(ctx, newSuggestion(1, "default"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	other, created, err := repo.CreateIfNoPending(ctx, newSuggestion(1, "alice"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestRespond_OnlyOnceAndOnlyOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testutil.DB(t))
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	s, _, err := repo.CreateIfNoPending(ctx, newSuggestion(1, "default"))
	require.NoError(t, err)

	ok, err := repo.Respond(ctx, s.ID, "alice", models.SuggestionAccepted, now)
	require.NoError(t, err)
	assert.False(t, ok, "other user must not answer")

	ok, err = repo.Respond(ctx, s.ID, "default", models.SuggestionAccepted, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Respond(ctx, s.ID, "default", models.SuggestionRejected, now)
	require.NoError(t, err)
	assert.False(t, ok, "responded suggestion is terminal")

	stored, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionAccepted, stored.Status)
	require.NotNil(t, stored.RespondedAt)

	pending, err := repo.List(ctx, "default", models.SuggestionPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// once answered, a fresh pending suggestion may be created for the pattern
	_, created, err := repo.CreateIfNoPending(ctx, newSuggestion(1, "default"))
	require.NoError(t, err)
	assert.True(t, created)
}
