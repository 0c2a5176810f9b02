package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SessionType tags which chat flow a session belongs to
type SessionType string

const (
	SessionTypeReport     SessionType = "report"
	SessionTypeMedication SessionType = "medication"
)

// Valid reports whether t is a known session type
func (t SessionType) Valid() bool {
	return t == SessionTypeReport || t == SessionTypeMedication
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatSession represents a conversation thread between a user and the AI.
// Sessions are never physically deleted; IsActive flips to false once.
type ChatSession struct {
	ID                 uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID          string      `gorm:"uniqueIndex;not null;size:255" json:"session_id"`
	UserID             uint        `gorm:"not null;index:idx_sessions_user_active" json:"user_id"`
	Title              string      `gorm:"not null;size:100" json:"title"`
	Type               SessionType `gorm:"type:varchar(20);not null;index" json:"type"`
	IsActive           bool        `gorm:"not null;default:true;index:idx_sessions_user_active" json:"is_active"`
	MessageCount       int         `gorm:"not null;default:0" json:"message_count"`
	LastMessagePreview string      `gorm:"type:text" json:"last_message_preview"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `gorm:"index" json:"updated_at"`

	// Relationships
	User     User          `gorm:"foreignKey:UserID" json:"-"`
	Messages []ChatMessage `gorm:"foreignKey:ChatSessionID" json:"messages,omitempty"`
}

// TableName overrides the table name
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// BeforeCreate hook to generate UUID before creating a new session
func (cs *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if cs.ID == uuid.Nil {
		cs.ID = uuid.New()
	}
	return nil
}

// ChatMessage represents a single append-only message in a chat session
type ChatMessage struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ChatSessionID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_messages_session_seq" json:"-"`
	Sequence      int               `gorm:"not null;uniqueIndex:idx_messages_session_seq" json:"sequence"`
	Role          string            `gorm:"type:varchar(20);not null" json:"role"`
	Content       string            `gorm:"type:text;not null" json:"content"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// TableName overrides the table name
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// BeforeCreate hook to generate UUID before creating a new message
func (cm *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if cm.ID == uuid.Nil {
		cm.ID = uuid.New()
	}
	return nil
}

// IsFallback reports whether the message was substituted after an AI failure
func (cm *ChatMessage) IsFallback() bool {
	flag, ok := cm.Metadata["error"].(bool)
	return ok && flag
}

// PreviewLength caps the last-message preview shown in session listings
const PreviewLength = 100

// Preview shortens content to at most PreviewLength runes
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLength {
		return content
	}
	return string(runes[:PreviewLength-3]) + "..."
}
