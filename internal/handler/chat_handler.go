package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/service"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/middleware"
)

// DegradedHint accompanies a fallback reply
const DegradedHint = "AI service is temporarily unavailable, please try again"

// ChatHandler handles chat turns and session history
type ChatHandler struct {
	chat        service.ChatService
	history     service.HistoryService
	rateLimiter middleware.RateLimiter
	dailyLimit  int64
	logger      *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	chat service.ChatService,
	history service.HistoryService,
	rateLimiter middleware.RateLimiter,
	cfg *config.Config,
	logger *slog.Logger,
) *ChatHandler {
	return &ChatHandler{
		chat:        chat,
		history:     history,
		rateLimiter: rateLimiter,
		dailyLimit:  cfg.DailyMessageLimit,
		logger:      logger,
	}
}

// ChatRequest is one user message
type ChatRequest struct {
	SessionID string `json:"sessionId" binding:"required,max=255"`
	Message   string `json:"message" binding:"required"`
	Type      string `json:"type"`
}

// Chat stores a user message and the assistant's reply. A fallback reply
// still answers 200 with status "degraded".
func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := requireUser(c, h.logger)
	if !ok {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("⚠️ [ChatHandler] Invalid chat request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. sessionId and message are required."})
		return
	}

	ctx := c.Request.Context()

	allowed, used, err := h.rateLimiter.CheckDailyLimit(ctx, userID, h.dailyLimit)
	if err != nil {
		h.logger.Warn("⚠️ [ChatHandler] Rate limit check failed, allowing request", "user_id", userID, "error", err)
	}
	if !allowed {
		h.logger.Warn("⚠️ [ChatHandler] Daily message limit reached",
			"user_id", userID,
			"used", used,
			"limit", h.dailyLimit,
		)
		c.Header("X-RateLimit-Limit", strconv.FormatInt(h.dailyLimit, 10))
		c.Header("X-RateLimit-Remaining", "0")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "Daily message limit reached, please try again tomorrow",
			"limit": h.dailyLimit,
			"used":  used,
		})
		return
	}

	result, err := h.chat.Send(ctx, service.SendInput{
		UserID:    userID,
		SessionID: req.SessionID,
		Message:   req.Message,
		Type:      req.Type,
	})
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	if err := h.rateLimiter.IncrementDailyCount(ctx, userID); err != nil {
		h.logger.Warn("⚠️ [ChatHandler] Failed to record message count", "user_id", userID, "error", err)
	}
	if remaining, err := h.rateLimiter.GetRemaining(ctx, userID, h.dailyLimit); err == nil && remaining >= 0 {
		c.Header("X-RateLimit-Limit", strconv.FormatInt(h.dailyLimit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	}

	body := gin.H{
		"status":       "success",
		"sessionId":    result.Session.SessionID,
		"title":        result.Session.Title,
		"type":         result.Session.Type,
		"messageCount": result.Session.MessageCount,
		"message":      result.Reply,
	}
	if result.Degraded {
		body["status"] = "degraded"
		body["error"] = DegradedHint
	}
	c.JSON(http.StatusOK, body)
}

// ListSessions returns session summaries, optionally filtered by ?type=
func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := requireUser(c, h.logger)
	if !ok {
		return
	}

	sessions, err := h.history.List(c.Request.Context(), userID, c.Query("type"))
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": len(sessions)})
}

// GetSession returns one session with its messages
func (h *ChatHandler) GetSession(c *gin.Context) {
	userID, ok := requireUser(c, h.logger)
	if !ok {
		return
	}

	session, err := h.history.Get(c.Request.Context(), userID, c.Param("sessionId"))
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// DeleteSession soft-deletes one session
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	userID, ok := requireUser(c, h.logger)
	if !ok {
		return
	}

	if err := h.history.Delete(c.Request.Context(), userID, c.Param("sessionId")); err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Chat session deleted"})
}

// ClearSessions soft-deletes every session of ?type=
func (h *ChatHandler) ClearSessions(c *gin.Context) {
	userID, ok := requireUser(c, h.logger)
	if !ok {
		return
	}

	count, err := h.history.ClearAll(c.Request.Context(), userID, c.Query("type"))
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Chat sessions cleared", "deleted": count})
}
