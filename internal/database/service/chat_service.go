package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/ai"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/repository"
)

// DefaultTitle names a session whose generated title was unusable
const DefaultTitle = "New Chat"

// FallbackReply is stored in place of an AI answer when the provider fails
const FallbackReply = "I'm sorry, I'm having trouble responding right now. " +
	"Please try again in a moment. If your question is urgent, please contact a healthcare professional."

const reportInstructions = `You are MedAssist, an assistant that helps patients understand their medical reports and test results.
Explain medical terms in plain language, point out values the report marks as outside the normal range, and suggest questions to ask a doctor.
You do not diagnose conditions or prescribe treatment. Always recommend consulting a healthcare professional for personal medical decisions.`

const medicationInstructions = `You are MedAssist, an assistant that answers general questions about medications.
Explain what a medication is commonly used for, typical side effects, general precautions and well-known interactions in plain language.
Never tell the user to start, stop or change a dose. Always recommend confirming with a doctor or pharmacist.`

// SendInput is one user chat message
type SendInput struct {
	UserID    uint
	SessionID string
	Message   string
	Type      string
}

// SendResult is the outcome of a chat turn. Degraded is set when the
// assistant message is the fixed fallback reply.
type SendResult struct {
	Session     *models.ChatSession
	UserMessage models.ChatMessage
	Reply       models.ChatMessage
	Degraded    bool
}

// ChatService runs one chat turn per Send
type ChatService interface {
	Send(ctx context.Context, in SendInput) (*SendResult, error)
}

type chatService struct {
	chatRepo   repository.ChatRepository
	reportRepo repository.ReportRepository
	client     ai.GenerativeClient
	cache      database.ChatHistoryStore
	timeout    time.Duration
	logger     *slog.Logger
}

// NewChatService creates a new chat service instance. cache may be nil.
func NewChatService(
	chatRepo repository.ChatRepository,
	reportRepo repository.ReportRepository,
	client ai.GenerativeClient,
	cache database.ChatHistoryStore,
	cfg *config.Config,
	logger *slog.Logger,
) ChatService {
	return &chatService{
		chatRepo:   chatRepo,
		reportRepo: reportRepo,
		client:     client,
		cache:      cache,
		timeout:    cfg.AITimeoutDuration(),
		logger:     logger,
	}
}

func (s *chatService) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	if in.UserID == 0 {
		return nil, ErrUnauthorized
	}

	message := strings.TrimSpace(in.Message)
	sessionID := strings.TrimSpace(in.SessionID)
	if message == "" {
		return nil, newValidationError("message", "message is required")
	}
	if sessionID == "" {
		return nil, newValidationError("sessionId", "session id is required")
	}

	declared := models.SessionType(strings.ToLower(strings.TrimSpace(in.Type)))
	if declared != "" && !declared.Valid() {
		return nil, newValidationError("type", "type must be report or medication")
	}

	session, history, isNew, err := s.load(ctx, in.UserID, sessionID, declared, message)
	if err != nil {
		return nil, err
	}

	userMsg := models.ChatMessage{
		Role:      models.RoleUser,
		Content:   message,
		CreatedAt: time.Now(),
	}

	prompt := make([]ai.Message, 0, len(history)+2)
	prompt = append(prompt, ai.Message{Role: ai.RoleSystem, Content: s.systemPrompt(ctx, session)})
	for _, m := range history {
		prompt = append(prompt, ai.Message{Role: m.Role, Content: m.Content})
	}
	prompt = append(prompt, ai.Message{Role: ai.RoleUser, Content: message})

	reply, degraded := s.complete(ctx, session, prompt)

	exchange := []models.ChatMessage{userMsg, reply}
	session, history, err = s.persist(ctx, session, history, exchange, isNew)
	if err != nil {
		if !errors.Is(err, repository.ErrSessionNotFound) {
			s.logger.Error("❌ [ChatService] Failed to persist messages",
				"session_id", sessionID,
				"error", err,
			)
		}
		return nil, err
	}

	s.refreshCache(ctx, session.SessionID, append(history, exchange...))

	s.logger.Info("💬 [ChatService] Chat turn stored",
		"session_id", session.SessionID,
		"type", session.Type,
		"message_count", session.MessageCount,
		"degraded", degraded,
	)

	return &SendResult{
		Session:     session,
		UserMessage: exchange[0],
		Reply:       exchange[1],
		Degraded:    degraded,
	}, nil
}

// load returns the caller's active session and its stored messages. An
// unknown session id yields an unsaved session that persist creates
// together with the first exchange.
func (s *chatService) load(
	ctx context.Context,
	userID uint,
	sessionID string,
	declared models.SessionType,
	firstMessage string,
) (*models.ChatSession, []models.ChatMessage, bool, error) {
	session, err := s.chatRepo.FindActive(ctx, userID, sessionID)
	if err == nil {
		history, err := s.chatRepo.GetMessages(ctx, session.ID)
		if err != nil {
			return nil, nil, false, err
		}
		return session, history, false, nil
	}
	if !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, nil, false, err
	}

	session = &models.ChatSession{
		SessionID: sessionID,
		UserID:    userID,
		Type:      ResolveSessionType(declared, sessionID),
		Title:     s.generateTitle(ctx, firstMessage),
	}
	return session, []models.ChatMessage{}, true, nil
}

// persist stores one exchange. A new session is created with it in a single
// write; when the same owner created the session concurrently, the exchange
// is appended to that session instead.
func (s *chatService) persist(
	ctx context.Context,
	session *models.ChatSession,
	history []models.ChatMessage,
	exchange []models.ChatMessage,
	isNew bool,
) (*models.ChatSession, []models.ChatMessage, error) {
	if !isNew {
		return session, history, s.chatRepo.AppendMessages(ctx, session, exchange)
	}

	err := s.chatRepo.Create(ctx, session, exchange)
	if err == nil {
		s.logger.Info("🆕 [ChatService] Session created",
			"session_id", session.SessionID,
			"user_id", session.UserID,
			"type", session.Type,
			"title", session.Title,
		)
		return session, history, nil
	}
	if !errors.Is(err, repository.ErrSessionExists) {
		return nil, nil, err
	}

	s.logger.Info("🔁 [ChatService] Session created concurrently, appending",
		"session_id", session.SessionID,
	)
	existing, err := s.chatRepo.FindActive(ctx, session.UserID, session.SessionID)
	if err != nil {
		return nil, nil, err
	}
	stored, err := s.chatRepo.GetMessages(ctx, existing.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.chatRepo.AppendMessages(ctx, existing, exchange); err != nil {
		return nil, nil, err
	}
	return existing, stored, nil
}

// ResolveSessionType prefers an explicit type, then a "medication" marker
// in the session id, then report.
func ResolveSessionType(declared models.SessionType, sessionID string) models.SessionType {
	if declared.Valid() {
		return declared
	}
	if strings.Contains(strings.ToLower(sessionID), string(models.SessionTypeMedication)) {
		return models.SessionTypeMedication
	}
	return models.SessionTypeReport
}

func (s *chatService) generateTitle(ctx context.Context, firstMessage string) string {
	titleCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := s.client.Complete(titleCtx, ai.TitleMessages(firstMessage))
	if err != nil {
		s.logger.Warn("⚠️ [ChatService] Title generation failed, using default", "error", err)
		return DefaultTitle
	}
	return NormalizeTitle(completion.Content)
}

// NormalizeTitle trims a generated title to its first line and the length
// limit, and falls back to DefaultTitle for degenerate output.
func NormalizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"'*#`))

	if r := []rune(title); len(r) > ai.TitleMaxLength {
		title = strings.TrimSpace(string(r[:ai.TitleMaxLength]))
	}

	lower := strings.ToLower(title)
	if utf8.RuneCountInString(title) < 3 || strings.Contains(lower, "title") || strings.Contains(lower, "analysis") {
		return DefaultTitle
	}
	return title
}

// systemPrompt returns the base instructions for the session type, plus the
// newest completed report for report sessions. The result is used for one
// call and never stored.
func (s *chatService) systemPrompt(ctx context.Context, session *models.ChatSession) string {
	if session.Type == models.SessionTypeMedication {
		return medicationInstructions
	}

	report, err := s.reportRepo.FindLatestCompleted(ctx, session.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrReportNotFound) {
			s.logger.Warn("⚠️ [ChatService] Could not load report context", "user_id", session.UserID, "error", err)
		}
		return reportInstructions
	}

	return reportInstructions + "\n\n" + ReportContext(report)
}

// ReportContext renders a completed report as a context block for the model
func ReportContext(report *models.MedicalReport) string {
	summary := ""
	if report.AIAnalysis != nil {
		summary = report.AIAnalysis.Summary
	}

	var b strings.Builder
	b.WriteString("The user's most recent analyzed medical report:\n")
	fmt.Fprintf(&b, "File: %s\n", report.OriginalName)
	fmt.Fprintf(&b, "Category: %s\n", report.ReportType.Label())
	fmt.Fprintf(&b, "Extracted text:\n%s\n", report.ExtractedText)
	fmt.Fprintf(&b, "Previous analysis summary:\n%s", summary)
	return b.String()
}

// complete asks the model for a reply and substitutes the fallback on failure
func (s *chatService) complete(ctx context.Context, session *models.ChatSession, prompt []ai.Message) (models.ChatMessage, bool) {
	aiCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := s.client.Complete(aiCtx, prompt)
	if err != nil {
		s.logger.Error("❌ [ChatService] AI completion failed, using fallback reply",
			"session_id", session.SessionID,
			"error", err,
		)
		return models.ChatMessage{
			Role:      models.RoleAssistant,
			Content:   FallbackReply,
			Metadata:  datatypes.JSONMap{"error": true},
			CreatedAt: time.Now(),
		}, true
	}

	return models.ChatMessage{
		Role:    models.RoleAssistant,
		Content: completion.Content,
		Metadata: datatypes.JSONMap{
			"model":             completion.Model,
			"prompt_tokens":     completion.Usage.PromptTokens,
			"completion_tokens": completion.Usage.CompletionTokens,
			"total_tokens":      completion.Usage.TotalTokens,
		},
		CreatedAt: time.Now(),
	}, false
}

// refreshCache writes the full history to the cache; on failure the entry
// is dropped so readers fall back to the database.
func (s *chatService) refreshCache(ctx context.Context, sessionID string, messages []models.ChatMessage) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetChatHistory(ctx, sessionID, messages); err != nil {
		s.logger.Warn("⚠️ [ChatService] Failed to cache history", "session_id", sessionID, "error", err)
		_ = s.cache.DeleteChatHistory(ctx, sessionID)
	}
}
