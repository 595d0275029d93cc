package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"mindmate/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(session *model.Session) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListByUserID(userID uint) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) GetByIDAndUserID(sessionID, userID uint) (*model.Session, error) {
	var session model.Session
	if err := r.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) Exists(sessionID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&model.Session{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check session failed: %w", err)
	}
	return count > 0, nil
}

// RenameIfTitle sets the title only while the stored title still equals current.
// It reports whether this call performed the rename.
func (r *SessionRepository) RenameIfTitle(sessionID uint, current, title string) (bool, error) {
	res := r.db.Model(&model.Session{}).
		Where("id = ? AND title = ?", sessionID, current).
		Update("title", title)
	if res.Error != nil {
		return false, fmt.Errorf("rename session failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteWithMessages removes the session and its messages in one transaction.
func (r *SessionRepository) DeleteWithMessages(sessionID, userID uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ? AND user_id = ?", sessionID, userID).Delete(&model.Message{}).Error; err != nil {
			return fmt.Errorf("delete session messages failed: %w", err)
		}
		res := tx.Where("id = ? AND user_id = ?", sessionID, userID).Delete(&model.Session{})
		if res.Error != nil {
			return fmt.Errorf("delete session failed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
