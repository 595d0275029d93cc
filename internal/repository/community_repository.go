package repository

import (
	"fmt"

	"gorm.io/gorm"

	"mindmate/internal/model"
)

type CommunityRepository struct {
	db *gorm.DB
}

func NewCommunityRepository(db *gorm.DB) *CommunityRepository {
	return &CommunityRepository{db: db}
}

func (r *CommunityRepository) Create(message *model.CommunityMessage) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create community message failed: %w", err)
	}
	return nil
}

// ListRecent returns the newest community messages, oldest first.
func (r *CommunityRepository) ListRecent(limit int) ([]model.CommunityMessage, error) {
	limit = normalizeLimit(limit)

	var messages []model.CommunityMessage
	if err := r.db.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list community messages failed: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
