package automation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"homehub/config"
	"homehub/database/actions"
	models "homehub/database/models_pkg"
	"homehub/database/testutil"
	"homehub/devices"
	"homehub/events"
)

// 2024-01-01 is a Monday
var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// countingController wraps the mock backend and counts commands
type countingController struct {
	*devices.Mock
	mu    sync.Mutex
	calls []string
	panic bool
}

func newCountingController() *countingController {
	return &countingController{Mock: devices.NewMock(devices.DefaultDevices())}
}

func (c *countingController) record(action, id string) {
	c.mu.Lock()
	c.calls = append(c.calls, action+":"+id)
	c.mu.Unlock()
}

func (c *countingController) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *countingController) TurnOn(ctx context.Context, id string) (bool, error) {
	c.record(devices.ActionTurnOn, id)
	if c.panic {
		panic("backend exploded")
	}
	return c.Mock.TurnOn(ctx, id)
}

func (c *countingController) TurnOff(ctx context.Context, id string) (bool, error) {
	c.record(devices.ActionTurnOff, id)
	return c.Mock.TurnOff(ctx, id)
}

func (c *countingController) SetBrightness(ctx context.Context, id string, level int) (bool, error) {
	c.record(devices.ActionSetBrightness, id)
	return c.Mock.SetBrightness(ctx, id, level)
}

type testEnv struct {
	svc        *Service
	clock      *fakeClock
	controller *countingController
	events     *events.Recorder
	actions    *actions.Repository
}

func newTestEnv(t *testing.T, start time.Time) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	clock := newClock(start)
	ctrl := newCountingController()
	rec := &events.Recorder{}

	cfg := &config.Config{
		Timezone:  "UTC",
		Learning:  config.LearningConfig{MinOccurrences: 3, ConfidenceThreshold: 0.6, LookbackDays: 30},
		Scheduler: config.SchedulerConfig{Enabled: true, Interval: time.Minute},
	}
	svc := NewService(Deps{
		DB:         db,
		Config:     cfg,
		Controller: ctrl,
		Events:     rec,
		Now:        clock.Now,
	})
	return &testEnv{svc: svc, clock: clock, controller: ctrl, events: rec, actions: actions.NewRepository(db)}
}

// seedAction writes an action record directly, bypassing detection
func (e *testEnv) seedAction(t *testing.T, deviceID, action string, value *string, at time.Time) {
	t.Helper()
	rec := models.NewActionRecord(deviceID, "light", action, value, nil, "", at)
	require.NoError(t, e.actions.SaveAction(context.Background(), rec))
}

func at(day, hour, minute int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func manualSpec(name string, actions ...models.ActionSpec) Spec {
	return Spec{Name: name, TriggerType: models.TriggerManual, Actions: actions}
}
