package models

import (
	"strings"
	"time"
)

// User represents an account holder who owns reports and chat sessions
type User struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	DisplayName string    `gorm:"not null" json:"display_name"`
	FirstName   string    `gorm:"not null" json:"first_name"`
	LastName    string    `gorm:"not null" json:"last_name"`
	Email       string    `gorm:"uniqueIndex;not null" json:"email"`
	Password    string    `gorm:"not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// FullName joins first and last name, falling back to the display name
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.DisplayName
	}
	return name
}
