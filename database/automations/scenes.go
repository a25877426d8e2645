package automations

import (
	"context"
	"errors"
	"fmt"

	models "homehub/database/models_pkg"

	"gorm.io/gorm"
)

// CreateScene inserts a scene
func (r *Repository) CreateScene(ctx context.Context, s *models.Scene) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("CreateScene: %w", err)
	}
	return nil
}

// GetScene retrieves a scene, nil when it does not exist
func (r *Repository) GetScene(ctx context.Context, id uint) (*models.Scene, error) {
	var s models.Scene
	err := r.db.WithContext(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetScene: %w", err)
	}
	return &s, nil
}

// ListScenes returns a user's scenes ordered by name
func (r *Repository) ListScenes(ctx context.Context, userID string) ([]models.Scene, error) {
	var out []models.Scene
	query := r.db.WithContext(ctx).Order("name ASC")
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("ListScenes: %w", err)
	}
	return out, nil
}

// UpdateScene saves every column of an existing scene
func (r *Repository) UpdateScene(ctx context.Context, s *models.Scene) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return fmt.Errorf("UpdateScene: %w", err)
	}
	return nil
}

// DeleteScene removes a scene. Returns false if it did not exist.
func (r *Repository) DeleteScene(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Scene{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("DeleteScene: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
