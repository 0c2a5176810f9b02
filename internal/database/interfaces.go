package database

import (
	"context"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
)

// ChatHistoryStore caches the ordered message list of a chat session
type ChatHistoryStore interface {
	GetChatHistory(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	SetChatHistory(ctx context.Context, sessionID string, messages []models.ChatMessage) error
	DeleteChatHistory(ctx context.Context, sessionIDs ...string) error
	Close() error
}
