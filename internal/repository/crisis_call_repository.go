package repository

import (
	"fmt"

	"gorm.io/gorm"

	"mindmate/internal/model"
)

type CrisisCallRepository struct {
	db *gorm.DB
}

func NewCrisisCallRepository(db *gorm.DB) *CrisisCallRepository {
	return &CrisisCallRepository{db: db}
}

func (r *CrisisCallRepository) Create(call *model.CrisisCall) error {
	if err := r.db.Create(call).Error; err != nil {
		return fmt.Errorf("create crisis call failed: %w", err)
	}
	return nil
}

func (r *CrisisCallRepository) ListByUserID(userID uint, limit int) ([]model.CrisisCall, error) {
	limit = normalizeLimit(limit)
	var calls []model.CrisisCall
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&calls).Error; err != nil {
		return nil, fmt.Errorf("list crisis calls failed: %w", err)
	}
	return calls, nil
}
