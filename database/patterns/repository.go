package patterns

import (
	"context"
	"errors"
	"fmt"

	models "homehub/database/models_pkg"

	"gorm.io/gorm"
)

// Repository handles database operations for learned patterns
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new patterns repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert stores p keyed by (device_id, action, user_id). An existing row keeps
// its id, first_detected and is_active; everything the detector computes is
// overwritten. The stored row is written back into p.
func (r *Repository) Upsert(ctx context.Context, p *models.Pattern) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Pattern
		err := tx.Where("device_id = ? AND action = ? AND user_id = ?", p.DeviceID, p.Action, p.UserID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if p.FirstDetected.IsZero() {
				p.FirstDetected = p.LastOccurrence
			}
			return tx.Create(p).Error
		}
		if err != nil {
			return err
		}

		existing.PatternType = p.PatternType
		existing.DeviceType = p.DeviceType
		existing.Value = p.Value
		existing.Conditions = p.Conditions
		existing.OccurrenceCount = p.OccurrenceCount
		existing.Confidence = p.Confidence
		existing.LastOccurrence = p.LastOccurrence
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		*p = existing
		return nil
	})
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// GetByID retrieves a pattern, nil when it does not exist
func (r *Repository) GetByID(ctx context.Context, id uint) (*models.Pattern, error) {
	var p models.Pattern
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return &p, nil
}

// Filter narrows List. Zero fields are ignored.
type Filter struct {
	DeviceID      string
	UserID        string
	MinConfidence float64
	ActiveOnly    bool
}

// List returns patterns ordered by confidence, highest first
func (r *Repository) List(ctx context.Context, f Filter) ([]models.Pattern, error) {
	var patterns []models.Pattern
	query := r.db.WithContext(ctx).Order("confidence DESC").Order("id ASC")

	if f.DeviceID != "" {
		query = query.Where("device_id = ?", f.DeviceID)
	}

	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}

	if f.MinConfidence > 0 {
		query = query.Where("confidence >= ?", f.MinConfidence)
	}

	if f.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Find(&patterns).Error; err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return patterns, nil
}

// SetActive toggles the soft lifecycle flag. Returns false if no row matched.
func (r *Repository) SetActive(ctx context.Context, id uint, active bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Pattern{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return false, fmt.Errorf("SetActive: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
