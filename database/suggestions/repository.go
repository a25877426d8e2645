package suggestions

import (
	"context"
	"errors"
	"fmt"
	"time"

	models "homehub/database/models_pkg"

	"gorm.io/gorm"
)

// Repository handles database operations for automation suggestions
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new suggestions repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateIfNoPending inserts s unless a pending suggestion already exists for
// the same pattern and user, in which case that one is returned and created
// is false.
func (r *Repository) CreateIfNoPending(ctx context.Context, s *models.Suggestion) (result *models.Suggestion, created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Suggestion
		findErr := tx.Where("pattern_id = ? AND user_id = ? AND status = ?", s.PatternID, s.UserID, models.SuggestionPending).
			Order("id ASC").
			First(&existing).Error
		if findErr == nil {
			result = &existing
			return nil
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}
		s.Status = models.SuggestionPending
		if err := tx.Create(s).Error; err != nil {
			return err
		}
		result, created = s, true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("CreateIfNoPending: %w", err)
	}
	return result, created, nil
}

// HasAccepted reports whether the user already accepted a suggestion for the pattern
func (r *Repository) HasAccepted(ctx context.Context, patternID uint, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Suggestion{}).
		Where("pattern_id = ? AND user_id = ? AND status = ?", patternID, userID, models.SuggestionAccepted).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("HasAccepted: %w", err)
	}
	return count > 0, nil
}

// GetByID retrieves a suggestion, nil when it does not exist
func (r *Repository) GetByID(ctx context.Context, id uint) (*models.Suggestion, error) {
	var s models.Suggestion
	err := r.db.WithContext(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return &s, nil
}

// List returns a user's suggestions, newest first. Empty status means all.
func (r *Repository) List(ctx context.Context, userID, status string) ([]models.Suggestion, error) {
	var out []models.Suggestion
	query := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return out, nil
}

// Respond moves a pending suggestion owned by userID to status. The update is
// conditional on the row still being pending, so a suggestion is answered at
// most once. Returns false when nothing matched.
func (r *Repository) Respond(ctx context.Context, id uint, userID, status string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Suggestion{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.SuggestionPending).
		Updates(map[string]interface{}{
			"status":       status,
			"responded_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("Respond: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
