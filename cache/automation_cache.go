package cache

import (
	"context"
	"fmt"
	"time"

	models "homehub/database/models_pkg"
	"homehub/events"
)

// Cache keys
const (
	keyPendingSuggestions = "homehub:suggestions:pending:%s"
	keyRunnableByTrigger  = "homehub:automations:runnable:%s"
	keyActiveWebhooks     = "homehub:webhooks:active"

	// EventsChannel is the Redis pub/sub channel hub events are mirrored to
	EventsChannel = "homehub:events"

	suggestionsTTL = 10 * time.Minute
	automationsTTL = 5 * time.Minute
	webhooksTTL    = time.Hour
)

// AutomationCache keeps hot read paths of the pipeline in Redis. Every method
// is a no-op (or a miss) when the cache has no Redis client.
type AutomationCache struct {
	redis *RedisClient
}

// NewAutomationCache creates a cache; redis may be nil
func NewAutomationCache(redis *RedisClient) *AutomationCache {
	return &AutomationCache{redis: redis}
}

// Enabled reports whether a Redis client is attached
func (c *AutomationCache) Enabled() bool {
	return c != nil && c.redis != nil
}

// GetPendingSuggestions returns the cached pending list for a user
func (c *AutomationCache) GetPendingSuggestions(ctx context.Context, userID string) ([]models.Suggestion, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var out []models.Suggestion
	if err := c.redis.Get(ctx, fmt.Sprintf(keyPendingSuggestions, userID), &out); err != nil {
		return nil, false
	}
	return out, true
}

// SetPendingSuggestions caches a user's pending list
func (c *AutomationCache) SetPendingSuggestions(ctx context.Context, userID string, list []models.Suggestion) {
	if !c.Enabled() {
		return
	}
	_ = c.redis.Set(ctx, fmt.Sprintf(keyPendingSuggestions, userID), list, suggestionsTTL)
}

// InvalidateSuggestions drops a user's pending list
func (c *AutomationCache) InvalidateSuggestions(ctx context.Context, userID string) {
	if !c.Enabled() {
		return
	}
	_ = c.redis.Delete(ctx, fmt.Sprintf(keyPendingSuggestions, userID))
}

// GetRunnable returns cached enabled+active automations of a trigger type
func (c *AutomationCache) GetRunnable(ctx context.Context, triggerType string) ([]models.Automation, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var out []models.Automation
	if err := c.redis.Get(ctx, fmt.Sprintf(keyRunnableByTrigger, triggerType), &out); err != nil {
		return nil, false
	}
	return out, true
}

// SetRunnable caches enabled+active automations of a trigger type
func (c *AutomationCache) SetRunnable(ctx context.Context, triggerType string, list []models.Automation) {
	if !c.Enabled() {
		return
	}
	_ = c.redis.Set(ctx, fmt.Sprintf(keyRunnableByTrigger, triggerType), list, automationsTTL)
}

// InvalidateAutomations drops every runnable listing
func (c *AutomationCache) InvalidateAutomations(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	keys := []string{
		fmt.Sprintf(keyRunnableByTrigger, models.TriggerTime),
		fmt.Sprintf(keyRunnableByTrigger, models.TriggerEvent),
		fmt.Sprintf(keyRunnableByTrigger, models.TriggerPattern),
		fmt.Sprintf(keyRunnableByTrigger, models.TriggerManual),
	}
	_ = c.redis.Delete(ctx, keys...)
}

// GetActiveWebhooks returns the cached active webhook list
func (c *AutomationCache) GetActiveWebhooks(ctx context.Context) ([]models.Webhook, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var out []models.Webhook
	if err := c.redis.Get(ctx, keyActiveWebhooks, &out); err != nil {
		return nil, false
	}
	return out, true
}

// SetActiveWebhooks caches the active webhook list
func (c *AutomationCache) SetActiveWebhooks(ctx context.Context, hooks []models.Webhook) {
	if !c.Enabled() {
		return
	}
	_ = c.redis.Set(ctx, keyActiveWebhooks, hooks, webhooksTTL)
}

// InvalidateWebhooks drops the active webhook list
func (c *AutomationCache) InvalidateWebhooks(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	_ = c.redis.Delete(ctx, keyActiveWebhooks)
}

// Publish mirrors an event onto EventsChannel
func (c *AutomationCache) Publish(ctx context.Context, ev events.Event) {
	if !c.Enabled() {
		return
	}
	_ = c.redis.Publish(ctx, EventsChannel, ev)
}
