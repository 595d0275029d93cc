package model

import "time"

type CommunityMessage struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	PublicID  string    `gorm:"size:36;not null;uniqueIndex" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Username  string    `gorm:"size:64;not null" json:"username"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	ImageURL  string    `gorm:"size:512" json:"image_url,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
