package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"homehub/config"
	models "homehub/database/models_pkg"
	"homehub/database/patterns"
	"homehub/logger"
)

func records(times ...[3]int) []models.ActionRecord {
	out := make([]models.ActionRecord, 0, len(times))
	for _, t := range times {
		out = append(out, *models.NewActionRecord("living_room_light", "light", "turn_on", nil, nil, "", at(t[0], t[1], t[2])))
	}
	return out
}

func TestScoreTimes(t *testing.T) {
	tests := []struct {
		name       string
		records    []models.ActionRecord
		wantHour   int
		wantMinute int
		wantDays   []int
		wantConf   float64
	}{
		{
			name:     "five weekdays at 19:00",
			records:  records([3]int{0, 19, 0}, [3]int{1, 19, 0}, [3]int{2, 19, 0}, [3]int{3, 19, 0}, [3]int{4, 19, 0}),
			wantHour: 19, wantMinute: 0, wantDays: []int{0, 1, 2, 3, 4}, wantConf: 1.0,
		},
		{
			name:     "weekend mornings with minute jitter",
			records:  records([3]int{5, 9, 2}, [3]int{6, 9, 4}, [3]int{12, 9, 7}),
			wantHour: 9, wantMinute: 0, wantDays: []int{5, 6},
			// hour 1.0, bucket 2/3, weekend share 1.0
			wantConf: 0.5 + 0.3*(2.0/3.0) + 0.2,
		},
		{
			name:     "mixed days fall back to the observed set",
			records:  records([3]int{0, 7, 30}, [3]int{5, 7, 30}, [3]int{2, 8, 30}, [3]int{6, 7, 31}),
			wantHour: 7, wantMinute: 30, wantDays: []int{0, 2, 5, 6},
			// hour 3/4, bucket 1.0, days 2/4 weekday -> single day max 1/4
			wantConf: 0.5*0.75 + 0.3 + 0.2*0.25,
		},
		{
			name:     "ties pick the smallest hour and bucket",
			records:  records([3]int{0, 8, 10}, [3]int{1, 7, 20}, [3]int{2, 8, 20}, [3]int{3, 7, 10}),
			wantHour: 7, wantMinute: 10, wantDays: []int{0, 1, 2, 3, 4},
			wantConf: 0.5*0.5 + 0.3*0.5 + 0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreTimes(tt.records)
			assert.Equal(t, tt.wantHour, got.Hour)
			assert.Equal(t, tt.wantMinute, got.Minute)
			assert.Equal(t, tt.wantDays, got.Days)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			assert.GreaterOrEqual(t, got.Confidence, 0.0)
			assert.LessOrEqual(t, got.Confidence, 1.0)
		})
	}
}

func TestDetect_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(7, 12, 0))
	for day := 0; day < 5; day++ {
		env.seedAction(t, "living_room_light", "turn_on", nil, at(day, 19, 0))
	}

	first, err := env.svc.Detector.Detect(ctx, "living_room_light", "default")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := env.svc.Detector.Detect(ctx, "living_room_light", "default")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)

	stored, err := env.svc.ListPatterns(ctx, patterns.Filter{DeviceID: "living_room_light"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 5, stored[0].OccurrenceCount)
	assert.Equal(t, 19, stored[0].Conditions.Data().Hour)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, stored[0].Conditions.Data().DaysOfWeek)
}

func TestDetect_BelowMinOccurrences(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(7, 12, 0))
	env.seedAction(t, "kitchen_light", "turn_on", nil, at(0, 7, 0))
	env.seedAction(t, "kitchen_light", "turn_on", nil, at(1, 7, 0))

	got, err := env.svc.Detector.Detect(ctx, "kitchen_light", "default")
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err := env.svc.ListPatterns(ctx, patterns.Filter{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestDetect_IgnoresScatteredAndStaleActions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(45, 12, 0))

	// outside the 30 day window
	for day := 0; day < 5; day++ {
		env.seedAction(t, "bedroom_light", "turn_off", nil, at(day, 23, 0))
	}
	// inside the window but spread across the day
	env.seedAction(t, "bedroom_light", "turn_off", nil, at(40, 1, 0))
	env.seedAction(t, "bedroom_light", "turn_off", nil, at(41, 9, 17))
	env.seedAction(t, "bedroom_light", "turn_off", nil, at(42, 15, 41))
	env.seedAction(t, "bedroom_light", "turn_off", nil, at(43, 20, 53))

	got, err := env.svc.Detector.Detect(ctx, "bedroom_light", "default")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDetect_GroupsByValueAndKeepsBestPerAction(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, at(7, 12, 0))

	for day := 0; day < 5; day++ {
		env.seedAction(t, "living_room_light", "set_brightness", strPtr("40"), at(day, 21, 0))
	}
	for day := 0; day < 3; day++ {
		env.seedAction(t, "living_room_light", "set_brightness", strPtr("80"), at(day, 6+day, 0))
	}

	got, err := env.svc.Detector.Detect(ctx, "living_room_light", "default")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Value)
	assert.Equal(t, "40", *got[0].Value)
	assert.Equal(t, 5, got[0].OccurrenceCount)
}

func TestNewPatternDetector_WarnsOnInvalidSettings(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	pd := NewPatternDetector(nil, nil, config.LearningConfig{MinOccurrences: 0, ConfidenceThreshold: -0.5, LookbackDays: 14}, nil, log)
	assert.Equal(t, 3, pd.cfg.MinOccurrences)
	assert.InDelta(t, 0.6, pd.cfg.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 14, pd.cfg.LookbackDays)

	warned := logs.FilterMessage("⚠️  Invalid learning setting, using default").All()
	require.Len(t, warned, 2)
	assert.Equal(t, "min_occurrences", warned[0].ContextMap()["setting"])
	assert.Equal(t, "confidence_threshold", warned[1].ContextMap()["setting"])

	logs.TakeAll()
	NewPatternDetector(nil, nil, config.LearningConfig{MinOccurrences: 5, ConfidenceThreshold: 0.8, LookbackDays: 7}, nil, log)
	assert.Zero(t, logs.Len())
}
