package repository

import (
	"fmt"

	"gorm.io/gorm"

	"mindmate/internal/model"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 200
)

// normalizeLimit defaults a missing limit and caps an oversized one.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	default:
		return limit
	}
}

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// ListBySessionID returns the latest messages of a session in chronological order.
func (r *MessageRepository) ListBySessionID(sessionID uint, limit int) ([]model.Message, error) {
	limit = normalizeLimit(limit)
	return r.ListRecentBySessionID(sessionID, limit)
}

// ListRecentBySessionID returns at most limit of the newest messages, oldest first.
// The id column breaks ties between equal timestamps.
func (r *MessageRepository) ListRecentBySessionID(sessionID uint, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return []model.Message{}, nil
	}

	var messages []model.Message
	if err := r.db.Where("session_id = ?", sessionID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
