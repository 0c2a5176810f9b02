package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/repository"
)

// SessionSummary is the listing view of a session, without message bodies
type SessionSummary struct {
	SessionID    string             `json:"session_id"`
	Title        string             `json:"title"`
	Type         models.SessionType `json:"type"`
	MessageCount int                `json:"message_count"`
	LastMessage  string             `json:"last_message"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// HistoryService lists, loads, and soft-deletes chat sessions
type HistoryService interface {
	List(ctx context.Context, userID uint, sessionType string) ([]SessionSummary, error)
	Get(ctx context.Context, userID uint, sessionID string) (*models.ChatSession, error)
	Delete(ctx context.Context, userID uint, sessionID string) error
	ClearAll(ctx context.Context, userID uint, sessionType string) (int, error)
}

type historyService struct {
	chatRepo  repository.ChatRepository
	cache     database.ChatHistoryStore
	pageLimit int
	logger    *slog.Logger
}

// NewHistoryService creates a new history service instance. cache may be nil.
func NewHistoryService(
	chatRepo repository.ChatRepository,
	cache database.ChatHistoryStore,
	cfg *config.Config,
	logger *slog.Logger,
) HistoryService {
	limit := cfg.SessionListLimit
	if limit <= 0 {
		limit = 50
	}
	return &historyService{
		chatRepo:  chatRepo,
		cache:     cache,
		pageLimit: limit,
		logger:    logger,
	}
}

func parseSessionType(raw string, required bool) (models.SessionType, error) {
	t := models.SessionType(strings.ToLower(strings.TrimSpace(raw)))
	if t == "" && !required {
		return "", nil
	}
	if !t.Valid() {
		return "", newValidationError("type", "type must be report or medication")
	}
	return t, nil
}

// List returns the newest active sessions first, optionally filtered by type
func (s *historyService) List(ctx context.Context, userID uint, sessionType string) ([]SessionSummary, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	t, err := parseSessionType(sessionType, false)
	if err != nil {
		return nil, err
	}

	sessions, err := s.chatRepo.ListActive(ctx, userID, t, s.pageLimit)
	if err != nil {
		s.logger.Error("❌ [HistoryService] Failed to list sessions", "user_id", userID, "error", err)
		return nil, err
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, SessionSummary{
			SessionID:    session.SessionID,
			Title:        session.Title,
			Type:         session.Type,
			MessageCount: session.MessageCount,
			LastMessage:  models.Preview(session.LastMessagePreview),
			CreatedAt:    session.CreatedAt,
			UpdatedAt:    session.UpdatedAt,
		})
	}
	return summaries, nil
}

// Get loads one active session with its messages. The cache is consulted
// only after ownership has been confirmed.
func (s *historyService) Get(ctx context.Context, userID uint, sessionID string) (*models.ChatSession, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}

	session, err := s.chatRepo.FindActive(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, err := s.cache.GetChatHistory(ctx, session.SessionID)
		if err == nil && len(cached) > 0 && len(cached) == session.MessageCount {
			session.Messages = cached
			return session, nil
		}
	}

	messages, err := s.chatRepo.GetMessages(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	session.Messages = messages

	if s.cache != nil && len(messages) > 0 {
		if err := s.cache.SetChatHistory(ctx, session.SessionID, messages); err != nil {
			s.logger.Warn("⚠️ [HistoryService] Failed to warm history cache", "session_id", sessionID, "error", err)
		}
	}
	return session, nil
}

// Delete soft-deletes a session owned by the caller
func (s *historyService) Delete(ctx context.Context, userID uint, sessionID string) error {
	if userID == 0 {
		return ErrUnauthorized
	}

	if err := s.chatRepo.Deactivate(ctx, userID, sessionID); err != nil {
		return err
	}
	s.dropCache(ctx, sessionID)

	s.logger.Info("🗑️ [HistoryService] Session deleted", "session_id", sessionID, "user_id", userID)
	return nil
}

// ClearAll soft-deletes every active session of the given type and returns how many
func (s *historyService) ClearAll(ctx context.Context, userID uint, sessionType string) (int, error) {
	if userID == 0 {
		return 0, ErrUnauthorized
	}
	t, err := parseSessionType(sessionType, true)
	if err != nil {
		return 0, err
	}

	sessionIDs, err := s.chatRepo.DeactivateAll(ctx, userID, t)
	if err != nil {
		s.logger.Error("❌ [HistoryService] Failed to clear sessions", "user_id", userID, "error", err)
		return 0, err
	}
	s.dropCache(ctx, sessionIDs...)

	s.logger.Info("🧹 [HistoryService] Sessions cleared",
		"user_id", userID,
		"type", t,
		"count", len(sessionIDs),
	)
	return len(sessionIDs), nil
}

func (s *historyService) dropCache(ctx context.Context, sessionIDs ...string) {
	if s.cache == nil || len(sessionIDs) == 0 {
		return
	}
	if err := s.cache.DeleteChatHistory(ctx, sessionIDs...); err != nil {
		s.logger.Warn("⚠️ [HistoryService] Failed to drop cached history", "sessions", len(sessionIDs), "error", err)
	}
}
