package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	models "homehub/database/models_pkg"
	"homehub/events"
)

func TestAutomationCache_DisabledWithoutRedis(t *testing.T) {
	ctx := context.Background()

	for _, c := range []*AutomationCache{nil, NewAutomationCache(nil)} {
		assert.False(t, c.Enabled())

		c.SetPendingSuggestions(ctx, "default", []models.Suggestion{{ID: 1}})
		_, ok := c.GetPendingSuggestions(ctx, "default")
		assert.False(t, ok)

		c.SetRunnable(ctx, models.TriggerTime, []models.Automation{{ID: 1}})
		_, ok = c.GetRunnable(ctx, models.TriggerTime)
		assert.False(t, ok)

		_, ok = c.GetActiveWebhooks(ctx)
		assert.False(t, ok)

		assert.NotPanics(t, func() {
			c.InvalidateSuggestions(ctx, "default")
			c.InvalidateAutomations(ctx)
			c.InvalidateWebhooks(ctx)
			c.Publish(ctx, events.New(events.PatternDetected, "default", nil))
		})
	}
}

func TestRedisClient_NilIsSafe(t *testing.T) {
	var r *RedisClient
	ctx := context.Background()

	assert.Error(t, r.Set(ctx, "k", 1, 0))
	assert.Error(t, r.Get(ctx, "k", new(int)))
	assert.Error(t, r.Publish(ctx, "c", "m"))
	assert.Nil(t, r.Subscribe(ctx, "c"))
	assert.NoError(t, r.Close())
}
