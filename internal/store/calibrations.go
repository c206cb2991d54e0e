package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// CalibrationRepository persists reference postures. Saving a profile
// activates it and deactivates the user's others in the same transaction.
type CalibrationRepository interface {
	Save(ctx context.Context, profile *CalibrationProfile) error
	GetActive(ctx context.Context, userID string) (*CalibrationProfile, error)
}

type calibrationRepository struct {
	db *gorm.DB
}

// NewCalibrationRepository creates a GORM-backed CalibrationRepository.
func NewCalibrationRepository(db *gorm.DB) CalibrationRepository {
	return &calibrationRepository{db: db}
}

func (r *calibrationRepository) Save(ctx context.Context, profile *CalibrationProfile) error {
	profile.Active = true

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&CalibrationProfile{}).
			Where("user_id = ? AND active = ?", profile.UserID, true).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(profile).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save calibration profile: %w", err)
	}
	return nil
}

func (r *calibrationRepository) GetActive(ctx context.Context, userID string) (*CalibrationProfile, error) {
	var profile CalibrationProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("created_at DESC").
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("active calibration for user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get calibration profile: %w", err)
	}
	return &profile, nil
}
