package patterns

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

func newPattern(confidence float64, hour int) *models.Pattern {
	return &models.Pattern{
		PatternType:     models.PatternTypeTimeBased,
		DeviceID:        "living_room_light",
		DeviceType:      "light",
		Action:          "turn_on",
		Conditions:      datatypes.NewJSONType(models.PatternConditions{Hour: hour, Minute: 0, DaysOfWeek: []int{0, 1, 2, 3, 4}}),
		OccurrenceCount: 5,
		Confidence:      confidence,
		LastOccurrence:  time.Date(2024, 1, 5, hour, 0, 0, 0, time.UTC),
		IsActive:        true,
		UserID:          "default",
	}
}

func TestUpsert_UpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testutil.DB(t))

	first := newPattern(0.8, 19)
	require.NoError(t, repo.Upsert(ctx, first))
	require.NotZero(t, first.ID)
	firstDetected := first.FirstDetected

	second := newPattern(0.95, 20)
	second.OccurrenceCount = 9
	require.NoError(t, repo.Upsert(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, firstDetected.Equal(second.FirstDetected))

	all, err := repo.List(ctx, Filter{UserID: "default"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 9, all[0].OccurrenceCount)
	assert.InDelta(t, 0.95, all[0].Confidence, 1e-9)
	assert.Equal(t, 20, all[0].Conditions.Data().Hour)
}

func TestUpsert_DistinctUsersGetDistinctRows(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testutil.DB(t))

	a := newPattern(0.8, 7)
	b := newPattern(0.8, 7)
	b.UserID = "alice"
	require.NoError(t, repo.Upsert(ctx, a))
	require.NoError(t, repo.Upsert(ctx, b))
	assert.NotEqual(t, a.ID, b.ID)
}

func TestList_Filters(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testutil.DB(t))

	low := newPattern(0.61, 7)
	low.DeviceID = "kitchen_light"
	require.NoError(t, repo.Upsert(ctx, low))
	require.NoError(t, repo.Upsert(ctx, newPattern(0.9, 19)))

	got, err := repo.List(ctx, Filter{MinConfidence: 0.8})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "living_room_light", got[0].DeviceID)

	got, err = repo.List(ctx, Filter{DeviceID: "kitchen_light"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	ok, err := repo.SetActive(ctx, low.ID, false)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = repo.List(ctx, Filter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "living_room_light", got[0].DeviceID)

	missing, err := repo.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsert_KeepsDeactivatedPatternInactive(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testutil.DB(t))

	p := newPattern(0.8, 19)
	require.NoError(t, repo.Upsert(ctx, p))

	ok, err := repo.SetActive(ctx, p.ID, false)
	require.NoError(t, err)
	require.True(t, ok)

	again := newPattern(0.9, 19)
	again.OccurrenceCount = 6
	require.NoError(t, repo.Upsert(ctx, again))
	assert.Equal(t, p.ID, again.ID)
	assert.False(t, again.IsActive)
	assert.Equal(t, 6, again.OccurrenceCount)
	assert.InDelta(t, 0.9, again.Confidence, 1e-9)

	active, err := repo.List(ctx, Filter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)
}
