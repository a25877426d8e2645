package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	models "homehub/database/models_pkg"

	"gorm.io/gorm"
)

// Repository handles webhook subscriptions and their delivery log
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new webhooks repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetActiveWebhooks retrieves all active webhooks
func (r *Repository) GetActiveWebhooks(ctx context.Context) ([]models.Webhook, error) {
	var hooks []models.Webhook
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&hooks).Error; err != nil {
		return nil, fmt.Errorf("GetActiveWebhooks: %w", err)
	}
	return hooks, nil
}

// GetWebhooks retrieves all webhooks (active and inactive)
func (r *Repository) GetWebhooks(ctx context.Context) ([]models.Webhook, error) {
	var hooks []models.Webhook
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&hooks).Error; err != nil {
		return nil, fmt.Errorf("GetWebhooks: %w", err)
	}
	return hooks, nil
}

// GetWebhookByID retrieves a specific webhook, nil when it does not exist
func (r *Repository) GetWebhookByID(ctx context.Context, id int) (*models.Webhook, error) {
	var hook models.Webhook
	err := r.db.WithContext(ctx).First(&hook, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetWebhookByID: %w", err)
	}
	return &hook, nil
}

// SaveWebhook creates or updates a webhook
func (r *Repository) SaveWebhook(ctx context.Context, hook *models.Webhook) error {
	if err := r.db.WithContext(ctx).Save(hook).Error; err != nil {
		return fmt.Errorf("SaveWebhook: %w", err)
	}
	return nil
}

// DeleteWebhook deletes a webhook. Returns false if it did not exist.
func (r *Repository) DeleteWebhook(ctx context.Context, id int) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Webhook{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("DeleteWebhook: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SaveDelivery appends a delivery log row
func (r *Repository) SaveDelivery(ctx context.Context, d *models.WebhookDelivery) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("SaveDelivery: %w", err)
	}
	return nil
}

// RecordOutcome bumps the sent/failed counters and stamps last_triggered_at
func (r *Repository) RecordOutcome(ctx context.Context, id int, success bool, lastErr string, at time.Time) error {
	updates := map[string]interface{}{
		"last_triggered_at": at,
		"last_error":        lastErr,
	}
	if success {
		updates["total_sent"] = gorm.Expr("total_sent + 1")
	} else {
		updates["total_failed"] = gorm.Expr("total_failed + 1")
	}
	if err := r.db.WithContext(ctx).Model(&models.Webhook{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("RecordOutcome: %w", err)
	}
	return nil
}

// ListDeliveries returns a webhook's delivery log, newest first
func (r *Repository) ListDeliveries(ctx context.Context, webhookID, limit int) ([]models.WebhookDelivery, error) {
	var out []models.WebhookDelivery
	query := r.db.WithContext(ctx).Where("webhook_id = ?", webhookID).Order("triggered_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("ListDeliveries: %w", err)
	}
	return out, nil
}
