package model

import (
	"time"
)

// PasswordReset is a single-use password reset token
type PasswordReset struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	Token     string    `json:"-" gorm:"type:varchar(36);uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether the token can still be redeemed
func (p *PasswordReset) Valid(now time.Time) bool {
	return !p.Used && now.Before(p.ExpiresAt)
}
