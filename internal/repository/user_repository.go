package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"mindmate/internal/model"
)

// UserRepository returns (nil, nil) from lookups that match no account.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	return r.first("username", r.db.Where("username = ?", username))
}

func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
	return r.first("email", r.db.Where("email = ?", email))
}

func (r *UserRepository) GetByID(id uint) (*model.User, error) {
	return r.first("id", r.db.Where("id = ?", id))
}

func (r *UserRepository) first(by string, query *gorm.DB) (*model.User, error) {
	var user model.User
	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by %s failed: %w", by, err)
	}
	return &user, nil
}
