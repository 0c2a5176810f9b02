package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
)

// ChatRepository defines the interface for chat data operations.
// Reads only ever see active sessions of the given owner.
type ChatRepository interface {
	// Session operations
	FindActive(ctx context.Context, userID uint, sessionID string) (*models.ChatSession, error)
	Create(ctx context.Context, session *models.ChatSession, messages []models.ChatMessage) error
	ListActive(ctx context.Context, userID uint, sessionType models.SessionType, limit int) ([]models.ChatSession, error)
	Deactivate(ctx context.Context, userID uint, sessionID string) error
	DeactivateAll(ctx context.Context, userID uint, sessionType models.SessionType) ([]string, error)

	// Message operations
	GetMessages(ctx context.Context, sessionPK uuid.UUID) ([]models.ChatMessage, error)
	AppendMessages(ctx context.Context, session *models.ChatSession, messages []models.ChatMessage) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository instance
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// activeFor restricts a query to the owner's sessions that were not deleted
func activeFor(userID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("chat_sessions.user_id = ? AND chat_sessions.is_active = ?", userID, true)
	}
}

func (r *chatRepository) FindActive(ctx context.Context, userID uint, sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.WithContext(ctx).
		Scopes(activeFor(userID)).
		Where("session_id = ?", sessionID).
		Take(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Create inserts a new session together with its first messages in one
// transaction. A session id already active for the same owner reports
// ErrSessionExists; any other earlier use of the id, by this owner or
// another, reports ErrSessionNotFound.
func (r *chatRepository) Create(ctx context.Context, session *models.ChatSession, messages []models.ChatMessage) error {
	now := time.Now()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ChatSession
		err := tx.Select("user_id", "is_active").
			Where("session_id = ?", session.SessionID).
			Take(&existing).Error
		switch {
		case err == nil:
			if existing.UserID == session.UserID && existing.IsActive {
				return ErrSessionExists
			}
			return ErrSessionNotFound
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if session.ID == uuid.Nil {
			session.ID = uuid.New()
		}
		session.IsActive = true
		session.MessageCount = len(messages)
		if len(messages) > 0 {
			session.LastMessagePreview = models.Preview(messages[len(messages)-1].Content)
		}

		if err := tx.Create(session).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrSessionExists
			}
			return err
		}
		if len(messages) == 0 {
			return nil
		}

		for i := range messages {
			messages[i].ChatSessionID = session.ID
			messages[i].Sequence = i + 1
			if messages[i].CreatedAt.IsZero() {
				messages[i].CreatedAt = now
			}
		}
		return tx.Create(&messages).Error
	})
}

func (r *chatRepository) ListActive(ctx context.Context, userID uint, sessionType models.SessionType, limit int) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	query := r.db.WithContext(ctx).
		Scopes(activeFor(userID)).
		Order("updated_at DESC")

	if sessionType != "" {
		query = query.Where("type = ?", sessionType)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// Deactivate soft-deletes one session. Ownership and active state are
// checked in the same statement.
func (r *chatRepository) Deactivate(ctx context.Context, userID uint, sessionID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Scopes(activeFor(userID)).
		Where("session_id = ?", sessionID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeactivateAll soft-deletes every active session of a type and returns
// the affected session ids.
func (r *chatRepository) DeactivateAll(ctx context.Context, userID uint, sessionType models.SessionType) ([]string, error) {
	var sessionIDs []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ChatSession{}).
			Scopes(activeFor(userID)).
			Where("type = ?", sessionType).
			Pluck("session_id", &sessionIDs).Error; err != nil {
			return err
		}
		if len(sessionIDs) == 0 {
			return nil
		}

		return tx.Model(&models.ChatSession{}).
			Scopes(activeFor(userID)).
			Where("session_id IN ?", sessionIDs).
			Update("is_active", false).Error
	})
	if err != nil {
		return nil, err
	}
	return sessionIDs, nil
}

func (r *chatRepository) GetMessages(ctx context.Context, sessionPK uuid.UUID) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("chat_session_id = ?", sessionPK).
		Order("sequence ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// AppendMessages stores messages after the session's current tail and
// updates the session counters in one transaction. The session struct is
// updated in place with the persisted values.
func (r *chatRepository) AppendMessages(ctx context.Context, session *models.ChatSession, messages []models.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes concurrent appends to one session
		var locked models.ChatSession
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ? AND is_active = ?", session.ID, true).
			Take(&locked).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}

		var last int
		if err := tx.Model(&models.ChatMessage{}).
			Where("chat_session_id = ?", session.ID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&last).Error; err != nil {
			return err
		}

		for i := range messages {
			messages[i].ChatSessionID = session.ID
			messages[i].Sequence = last + i + 1
			if messages[i].CreatedAt.IsZero() {
				messages[i].CreatedAt = now
			}
		}

		if err := tx.Create(&messages).Error; err != nil {
			return err
		}

		preview := models.Preview(messages[len(messages)-1].Content)
		result := tx.Model(&models.ChatSession{}).
			Where("id = ? AND is_active = ?", session.ID, true).
			Updates(map[string]interface{}{
				"message_count":        last + len(messages),
				"last_message_preview": preview,
				"updated_at":           now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSessionNotFound
		}

		session.MessageCount = last + len(messages)
		session.LastMessagePreview = preview
		session.UpdatedAt = now
		return nil
	})

	return err
}

// Repository errors
var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrSessionExists   = errors.New("chat session already exists")
)
