package model

import "time"

const (
	CallStatusInitiated = "initiated"
	CallStatusFailed    = "failed"
)

// CrisisCall records one escalation attempt to a hotline, successful or not.
type CrisisCall struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Category  string    `gorm:"size:32;not null" json:"category"`
	CallSID   string    `gorm:"size:64" json:"call_sid,omitempty"`
	Status    string    `gorm:"size:16;not null" json:"status"`
	Error     string    `gorm:"size:512" json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
