package models

import "time"

// PasswordResetToken records an issued reset token so it can be redeemed once
type PasswordResetToken struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	TokenID   string    `gorm:"uniqueIndex;not null;size:64" json:"-"` // JWT jti
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Used      bool      `gorm:"not null;default:false" json:"used"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}

// TableName overrides the table name
func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}
