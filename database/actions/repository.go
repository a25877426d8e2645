package actions

import (
	"context"
	"fmt"
	"time"

	models "homehub/database/models_pkg"

	"gorm.io/gorm"
)

// Repository handles the append-only device action log
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new actions repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SaveAction appends one action record
func (r *Repository) SaveAction(ctx context.Context, record *models.ActionRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("SaveAction: %w", err)
	}
	return nil
}

// GetDeviceActions returns a device's actions for one user since the given
// time, oldest first. This is the detection window query.
func (r *Repository) GetDeviceActions(ctx context.Context, deviceID, userID string, since time.Time) ([]models.ActionRecord, error) {
	var records []models.ActionRecord
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND user_id = ? AND timestamp >= ?", deviceID, userID, since.UTC()).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("GetDeviceActions: %w", err)
	}
	return records, nil
}

// HistoryFilter narrows GetHistory. Zero fields are ignored.
type HistoryFilter struct {
	DeviceID string
	UserID   string
	Since    time.Time
	Limit    int
}

// GetHistory retrieves recent actions, newest first
func (r *Repository) GetHistory(ctx context.Context, f HistoryFilter) ([]models.ActionRecord, error) {
	var records []models.ActionRecord
	query := r.db.WithContext(ctx).Order("timestamp DESC").Order("id DESC")

	if f.DeviceID != "" {
		query = query.Where("device_id = ?", f.DeviceID)
	}

	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}

	if !f.Since.IsZero() {
		query = query.Where("timestamp >= ?", f.Since.UTC())
	}

	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("GetHistory: %w", err)
	}
	return records, nil
}

// DeleteBefore removes actions older than cutoff and returns how many went
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("timestamp < ?", cutoff.UTC()).Delete(&models.ActionRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("DeleteBefore: %w", result.Error)
	}
	return result.RowsAffected, nil
}
