package automations

import (
	"context"
	"errors"
	"fmt"

	models "homehub/database/models_pkg"

	"gorm.io/gorm"
)

// Repository handles database operations for automations and their
// execution history
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new automations repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new automation
func (r *Repository) Create(ctx context.Context, a *models.Automation) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// GetByID retrieves an automation, nil when it does not exist
func (r *Repository) GetByID(ctx context.Context, id uint) (*models.Automation, error) {
	var a models.Automation
	err := r.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return &a, nil
}

// Filter narrows List. Zero fields are ignored.
type Filter struct {
	UserID      string
	TriggerType string
	// RunnableOnly keeps rows with both is_enabled and is_active set
	RunnableOnly bool
}

// List returns automations, oldest first
func (r *Repository) List(ctx context.Context, f Filter) ([]models.Automation, error) {
	var out []models.Automation
	query := r.db.WithContext(ctx).Order("id ASC")

	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}

	if f.TriggerType != "" {
		query = query.Where("trigger_type = ?", f.TriggerType)
	}

	if f.RunnableOnly {
		query = query.Where("is_enabled = ? AND is_active = ?", true, true)
	}

	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return out, nil
}

// SetEnabled updates is_enabled. Returns false if no row matched.
func (r *Repository) SetEnabled(ctx context.Context, id uint, enabled bool) (bool, error) {
	return r.setFlag(ctx, "SetEnabled", id, "is_enabled", enabled)
}

// SetActive updates is_active. Returns false if no row matched.
func (r *Repository) SetActive(ctx context.Context, id uint, active bool) (bool, error) {
	return r.setFlag(ctx, "SetActive", id, "is_active", active)
}

func (r *Repository) setFlag(ctx context.Context, op string, id uint, column string, value bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Automation{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return false, fmt.Errorf("%s: %w", op, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SaveExecution appends an execution log row inside its own transaction
func (r *Repository) SaveExecution(ctx context.Context, exec *models.AutomationExecution) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(exec).Error
	})
	if err != nil {
		return fmt.Errorf("SaveExecution: %w", err)
	}
	return nil
}

// ListExecutions returns an automation's execution log, newest first
func (r *Repository) ListExecutions(ctx context.Context, automationID uint, limit int) ([]models.AutomationExecution, error) {
	var out []models.AutomationExecution
	query := r.db.WithContext(ctx).Where("automation_id = ?", automationID).
		Order("executed_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("ListExecutions: %w", err)
	}
	return out, nil
}
