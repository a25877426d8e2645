// Package notifications delivers hub events to user-registered webhooks.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"homehub/cache"
	"homehub/database"
	models "homehub/database/models_pkg"
	"homehub/database/webhooks"
	"homehub/events"
	"homehub/logger"
)

const (
	statusSuccess = "SUCCESS"
	statusFailed  = "FAILED"
)

// WebhookManager handles webhook notifications. It implements
// events.Publisher; deliveries run in the background.
type WebhookManager struct {
	repo   *webhooks.Repository
	cache  *cache.AutomationCache
	client *http.Client
	log    *logger.Logger

	// retry delays are RetryDelaySeconds * retryUnit
	retryUnit time.Duration
	inflight  sync.WaitGroup
}

// WebhookPayload represents the JSON payload sent to webhooks
type WebhookPayload struct {
	Event   string      `json:"event"`
	UserID  string      `json:"user_id,omitempty"`
	At      time.Time   `json:"at"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// NewWebhookManager creates a new webhook manager. c may be nil.
func NewWebhookManager(repo *webhooks.Repository, c *cache.AutomationCache, log *logger.Logger) *WebhookManager {
	return &WebhookManager{
		repo:  repo,
		cache: c,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log:       logger.OrNop(log),
		retryUnit: time.Second,
	}
}

// Publish sends the event to every matching active webhook
func (wm *WebhookManager) Publish(ctx context.Context, ev events.Event) {
	hooks, err := wm.getActiveWebhooks(ctx)
	if err != nil {
		wm.log.Error("⚠️  Failed to load webhooks", "error", err)
		return
	}
	if len(hooks) == 0 {
		return
	}

	payload := CreatePayload(ev)
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		wm.log.Error("⚠️  Failed to marshal webhook payload", "event", ev.Type, "error", err)
		return
	}

	for _, hook := range hooks {
		if !shouldSend(hook, ev) {
			continue
		}
		wm.inflight.Add(1)
		go func(hook models.Webhook) {
			defer wm.inflight.Done()
			wm.deliverWebhook(context.WithoutCancel(ctx), hook, ev.Type, payloadBytes)
		}(hook)
	}
}

// Wait blocks until every in-flight delivery finished
func (wm *WebhookManager) Wait() {
	wm.inflight.Wait()
}

func (wm *WebhookManager) getActiveWebhooks(ctx context.Context) ([]models.Webhook, error) {
	if cached, ok := wm.cache.GetActiveWebhooks(ctx); ok {
		return cached, nil
	}

	hooks, err := wm.repo.GetActiveWebhooks(ctx)
	if err != nil {
		return nil, err
	}

	wm.cache.SetActiveWebhooks(ctx, hooks)
	return hooks, nil
}

// CreatePayload wraps an event with a readable message
func CreatePayload(ev events.Event) WebhookPayload {
	return WebhookPayload{
		Event:   ev.Type,
		UserID:  ev.UserID,
		At:      ev.At,
		Message: describe(ev),
		Data:    ev.Payload,
	}
}

func describe(ev events.Event) string {
	switch p := ev.Payload.(type) {
	case *models.Suggestion:
		return "💡 " + p.SuggestionText
	case models.Pattern:
		return fmt.Sprintf("🔍 Pattern detected: %s %s (confidence %.0f%%)", p.DeviceID, p.Action, p.Confidence*100)
	case *models.Pattern:
		return fmt.Sprintf("🔍 Pattern detected: %s %s (confidence %.0f%%)", p.DeviceID, p.Action, p.Confidence*100)
	case *models.AutomationExecution:
		if p.Success {
			return fmt.Sprintf("✅ Automation %d executed", p.AutomationID)
		}
		return fmt.Sprintf("❌ Automation %d failed: %s", p.AutomationID, p.ErrorMessage)
	case *models.Automation:
		return fmt.Sprintf("🤖 Automation created: %s", p.Name)
	case events.DeviceEvent:
		if p.State != "" {
			return fmt.Sprintf("🔌 %s is now %s", p.DeviceID, p.State)
		}
		return fmt.Sprintf("🔌 %s: %s", p.DeviceID, ev.Type)
	}
	return ev.Type
}

func shouldSend(hook models.Webhook, ev events.Event) bool {
	if hook.UserID != "" && ev.UserID != "" && hook.UserID != ev.UserID {
		return false
	}
	if strings.TrimSpace(hook.EventTypes) == "" {
		return true
	}
	for _, t := range strings.Split(hook.EventTypes, ",") {
		if strings.TrimSpace(t) == ev.Type {
			return true
		}
	}
	return false
}

func (wm *WebhookManager) deliverWebhook(ctx context.Context, hook models.Webhook, eventType string, payload []byte) {
	maxRetries := hook.RetryCount
	if maxRetries <= 0 {
		maxRetries = 1
	}
	method := hook.Method
	if method == "" {
		method = http.MethodPost
	}

	var (
		statusCode int
		lastErr    string
	)
	for attempt := 1; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, hook.URL, bytes.NewReader(payload))
		if err != nil {
			lastErr = err.Error()
			break
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "homehub-webhooks/1.0")
		req.Header.Set("X-Homehub-Event", eventType)

		if hook.AuthHeader != "" {
			req.Header.Set(hook.AuthHeader, hook.AuthValue)
		} else if hook.AuthValue != "" {
			req.Header.Set("Authorization", "Bearer "+hook.AuthValue)
		}

		wm.log.Debug("🔹 Sending webhook", "url", hook.URL, "attempt", attempt, "max", maxRetries)

		resp, err := wm.client.Do(req)
		if err == nil {
			statusCode = resp.StatusCode
			resp.Body.Close()
			if statusCode >= 200 && statusCode < 300 {
				wm.logDelivery(ctx, hook.ID, eventType, statusSuccess, statusCode, "", attempt)
				return
			}
			lastErr = fmt.Sprintf("unexpected status %d", statusCode)
		} else {
			statusCode = 0
			lastErr = err.Error()
		}

		if attempt < maxRetries {
			time.Sleep(time.Duration(hook.RetryDelaySeconds) * wm.retryUnit)
		}
	}

	wm.log.Warn("⚠️  Webhook delivery failed", "webhook_id", hook.ID, "event", eventType, "error", lastErr)
	wm.logDelivery(ctx, hook.ID, eventType, statusFailed, statusCode, lastErr, maxRetries)
}

func (wm *WebhookManager) logDelivery(ctx context.Context, webhookID int, eventType, status string, code int, errMsg string, attempt int) {
	now := time.Now()
	entry := &models.WebhookDelivery{
		WebhookID:    webhookID,
		EventType:    eventType,
		TriggeredAt:  now,
		Status:       status,
		RetryAttempt: attempt,
		ErrorMessage: errMsg,
	}
	if code != 0 {
		entry.HTTPStatusCode = &code
	}

	if err := wm.repo.SaveDelivery(ctx, entry); err != nil {
		wm.log.Error("⚠️  Failed to save webhook log", "webhook_id", webhookID, "error", err)
	}
	if err := wm.repo.RecordOutcome(ctx, webhookID, status == statusSuccess, errMsg, now); err != nil {
		wm.log.Error("⚠️  Failed to update webhook counters", "webhook_id", webhookID, "error", err)
	}
}

// RefreshCache drops the cached webhook list
func (wm *WebhookManager) RefreshCache(ctx context.Context) {
	wm.cache.InvalidateWebhooks(ctx)
	wm.log.Info("🔄 Webhook cache invalidated")
}

// List returns every webhook
func (wm *WebhookManager) List(ctx context.Context) ([]models.Webhook, error) {
	hooks, err := wm.repo.GetWebhooks(ctx)
	if err != nil {
		return nil, database.WrapDBError("WebhookManager.List", err)
	}
	return hooks, nil
}

// Register validates and stores a new webhook subscription
func (wm *WebhookManager) Register(ctx context.Context, hook *models.Webhook) error {
	if strings.TrimSpace(hook.Name) == "" {
		return database.NewValidationError("name", "is required")
	}
	u, err := url.Parse(hook.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return database.NewValidationErrorWithValue("url", "must be an absolute http(s) URL", hook.URL)
	}
	hook.Method = strings.ToUpper(hook.Method)
	if hook.Method == "" {
		hook.Method = http.MethodPost
	}
	if hook.Method != http.MethodPost && hook.Method != http.MethodPut {
		return database.NewValidationErrorWithValue("method", "must be POST or PUT", hook.Method)
	}
	if hook.UserID == "" {
		hook.UserID = models.DefaultUserID
	}
	hook.ID = 0
	hook.IsActive = true

	if err := wm.repo.SaveWebhook(ctx, hook); err != nil {
		return database.WrapDBError("WebhookManager.Register", err)
	}
	wm.RefreshCache(ctx)
	wm.log.Info("🔔 Webhook registered", "webhook_id", hook.ID, "url", hook.URL)
	return nil
}

// Delete removes a webhook; false when it did not exist
func (wm *WebhookManager) Delete(ctx context.Context, id int) (bool, error) {
	ok, err := wm.repo.DeleteWebhook(ctx, id)
	if err != nil {
		return false, database.WrapDBError("WebhookManager.Delete", err)
	}
	if ok {
		wm.RefreshCache(ctx)
	}
	return ok, nil
}

// Deliveries returns the delivery log of one webhook
func (wm *WebhookManager) Deliveries(ctx context.Context, id, limit int) ([]models.WebhookDelivery, error) {
	list, err := wm.repo.ListDeliveries(ctx, id, limit)
	if err != nil {
		return nil, database.WrapDBError("WebhookManager.Deliveries", err)
	}
	return list, nil
}
